package persistence

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/conversation"
	"github.com/lucerna-ai/lucerna/modules/chat/infrastructure/persistence/models"
	"github.com/lucerna-ai/lucerna/pkg/composables"
)

const (
	insertConversationQuery = `
		INSERT INTO chat_conversations (
			id, owner_id, owner_kind, assistant_id, title, thread_handle,
			message_count, prompt_tokens, completion_tokens, last_message_at,
			archived, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	selectConversationQuery = `
		SELECT id, owner_id, owner_kind, assistant_id, title, thread_handle,
			message_count, prompt_tokens, completion_tokens, last_message_at,
			archived, created_at, updated_at
		FROM chat_conversations
		WHERE id = $1 AND deleted_at IS NULL`

	listConversationsQuery = `
		SELECT id, owner_id, owner_kind, assistant_id, title, thread_handle,
			message_count, prompt_tokens, completion_tokens, last_message_at,
			archived, created_at, updated_at
		FROM chat_conversations
		WHERE owner_id = $1 AND owner_kind = $2 AND deleted_at IS NULL
		ORDER BY COALESCE(last_message_at, created_at) DESC`

	setArchivedQuery = `
		UPDATE chat_conversations SET archived = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`

	setThreadHandleQuery = `
		UPDATE chat_conversations SET thread_handle = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`

	// Conditional write: only the first titling attempt lands.
	setTitleIfEmptyQuery = `
		UPDATE chat_conversations SET title = $2, updated_at = now()
		WHERE id = $1 AND title IS NULL AND deleted_at IS NULL`

	applyTurnUsageQuery = `
		UPDATE chat_conversations SET
			prompt_tokens = prompt_tokens + $2,
			completion_tokens = completion_tokens + $3,
			last_message_at = $4,
			updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`

	softDeleteConversationQuery = `
		UPDATE chat_conversations SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`

	hardDeleteConversationQuery = `DELETE FROM chat_conversations WHERE id = $1`

	insertMessageQuery = `
		INSERT INTO chat_messages (
			id, conversation_id, role, content, prompt_tokens,
			completion_tokens, provider, model_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	deleteMessageQuery = `DELETE FROM chat_messages WHERE id = $1`

	bumpMessageCountQuery = `
		UPDATE chat_conversations SET message_count = message_count + $2
		WHERE id = $1`

	listMessagesQuery = `
		SELECT id, conversation_id, role, content, prompt_tokens,
			completion_tokens, provider, model_id, created_at
		FROM (
			SELECT id, conversation_id, role, content, prompt_tokens,
				completion_tokens, provider, model_id, created_at
			FROM chat_messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC`

	listAllMessagesQuery = `
		SELECT id, conversation_id, role, content, prompt_tokens,
			completion_tokens, provider, model_id, created_at
		FROM chat_messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC`
)

type PgConversationRepository struct{}

func NewPgConversationRepository() conversation.Repository {
	return &PgConversationRepository{}
}

func (r *PgConversationRepository) Create(ctx context.Context, c conversation.Conversation) (conversation.Conversation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	m := ToDBConversation(c)
	if _, err := tx.Exec(ctx, insertConversationQuery,
		m.ID, m.OwnerID, m.OwnerKind, m.AssistantID, m.Title, m.ThreadHandle,
		m.MessageCount, m.PromptTokens, m.CompletionTokens, m.LastMessageAt,
		m.Archived, m.CreatedAt, m.UpdatedAt,
	); err != nil {
		return nil, errors.Wrap(err, "failed to insert conversation")
	}
	return c, nil
}

func (r *PgConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, selectConversationQuery, id)
	m, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, conversation.ErrConversationNotFound
		}
		return nil, errors.Wrap(err, "failed to query conversation")
	}
	return ToDomainConversation(m), nil
}

func (r *PgConversationRepository) List(ctx context.Context, ownerID uuid.UUID, ownerKind conversation.OwnerKind) ([]conversation.Conversation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, listConversationsQuery, ownerID, string(ownerKind))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	defer rows.Close()

	var out []conversation.Conversation
	for rows.Next() {
		m, err := scanConversation(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan conversation")
		}
		out = append(out, ToDomainConversation(m))
	}
	return out, rows.Err()
}

func (r *PgConversationRepository) SetArchived(ctx context.Context, id uuid.UUID, archived bool) error {
	return r.execOnConversation(ctx, setArchivedQuery, id, archived)
}

func (r *PgConversationRepository) SetThreadHandle(ctx context.Context, id uuid.UUID, handle string) error {
	return r.execOnConversation(ctx, setThreadHandleQuery, id, handle)
}

func (r *PgConversationRepository) SetTitleIfEmpty(ctx context.Context, id uuid.UUID, title string) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	tag, err := tx.Exec(ctx, setTitleIfEmptyQuery, id, title)
	if err != nil {
		return false, errors.Wrap(err, "failed to set conversation title")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgConversationRepository) ApplyTurnUsage(ctx context.Context, id uuid.UUID, promptTokens, completionTokens int64, at time.Time) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, applyTurnUsageQuery, id, promptTokens, completionTokens, at)
	if err != nil {
		return errors.Wrap(err, "failed to apply turn usage")
	}
	if tag.RowsAffected() == 0 {
		return conversation.ErrConversationNotFound
	}
	return nil
}

func (r *PgConversationRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, softDeleteConversationQuery, id)
	if err != nil {
		return errors.Wrap(err, "failed to soft-delete conversation")
	}
	if tag.RowsAffected() == 0 {
		return conversation.ErrConversationNotFound
	}
	return nil
}

func (r *PgConversationRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, hardDeleteConversationQuery, id); err != nil {
		return errors.Wrap(err, "failed to delete conversation")
	}
	return nil
}

func (r *PgConversationRepository) AddMessage(ctx context.Context, m conversation.Message) (conversation.Message, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	dbm := ToDBMessage(m)
	if _, err := tx.Exec(ctx, insertMessageQuery,
		dbm.ID, dbm.ConversationID, dbm.Role, dbm.Content, dbm.PromptTokens,
		dbm.CompletionTokens, dbm.Provider, dbm.ModelID, dbm.CreatedAt,
	); err != nil {
		return nil, errors.Wrap(err, "failed to insert message")
	}
	if _, err := tx.Exec(ctx, bumpMessageCountQuery, dbm.ConversationID, 1); err != nil {
		return nil, errors.Wrap(err, "failed to bump message count")
	}
	return m, nil
}

func (r *PgConversationRepository) DeleteMessage(ctx context.Context, messageID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	row := tx.QueryRow(ctx, `SELECT conversation_id FROM chat_messages WHERE id = $1`, messageID)
	var conversationID uuid.UUID
	if err := row.Scan(&conversationID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return errors.Wrap(err, "failed to locate message")
	}
	if _, err := tx.Exec(ctx, deleteMessageQuery, messageID); err != nil {
		return errors.Wrap(err, "failed to delete message")
	}
	if _, err := tx.Exec(ctx, bumpMessageCountQuery, conversationID, -1); err != nil {
		return errors.Wrap(err, "failed to bump message count")
	}
	return nil
}

func (r *PgConversationRepository) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]conversation.Message, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	var rows pgx.Rows
	if limit > 0 {
		rows, err = tx.Query(ctx, listMessagesQuery, conversationID, limit)
	} else {
		rows, err = tx.Query(ctx, listAllMessagesQuery, conversationID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to list messages")
	}
	defer rows.Close()

	var out []conversation.Message
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(
			&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.PromptTokens,
			&m.CompletionTokens, &m.Provider, &m.ModelID, &m.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan message")
		}
		msg, err := ToDomainMessage(m)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (r *PgConversationRepository) execOnConversation(ctx context.Context, query string, id uuid.UUID, arg any) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, query, id, arg)
	if err != nil {
		return errors.Wrap(err, "failed to update conversation")
	}
	if tag.RowsAffected() == 0 {
		return conversation.ErrConversationNotFound
	}
	return nil
}

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	m := &models.Conversation{}
	if err := row.Scan(
		&m.ID, &m.OwnerID, &m.OwnerKind, &m.AssistantID, &m.Title, &m.ThreadHandle,
		&m.MessageCount, &m.PromptTokens, &m.CompletionTokens, &m.LastMessageAt,
		&m.Archived, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return m, nil
}
