package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/assistant"
	"github.com/lucerna-ai/lucerna/modules/chat/infrastructure/persistence/models"
	"github.com/lucerna-ai/lucerna/pkg/composables"
)

const (
	upsertAssistantQuery = `
		INSERT INTO chat_assistants (
			id, name, provider, model_id, system_prompt, temperature, top_p,
			max_output_tokens, frequency_penalty, presence_penalty,
			stop_sequences, response_format, reasoning_effort,
			content_filter_enabled, knowledge_base_id, history_window,
			enabled, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			provider = EXCLUDED.provider,
			model_id = EXCLUDED.model_id,
			system_prompt = EXCLUDED.system_prompt,
			temperature = EXCLUDED.temperature,
			top_p = EXCLUDED.top_p,
			max_output_tokens = EXCLUDED.max_output_tokens,
			frequency_penalty = EXCLUDED.frequency_penalty,
			presence_penalty = EXCLUDED.presence_penalty,
			stop_sequences = EXCLUDED.stop_sequences,
			response_format = EXCLUDED.response_format,
			reasoning_effort = EXCLUDED.reasoning_effort,
			content_filter_enabled = EXCLUDED.content_filter_enabled,
			knowledge_base_id = EXCLUDED.knowledge_base_id,
			history_window = EXCLUDED.history_window,
			enabled = EXCLUDED.enabled,
			updated_at = now()`

	selectAssistantQuery = `
		SELECT id, name, provider, model_id, system_prompt, temperature, top_p,
			max_output_tokens, frequency_penalty, presence_penalty,
			stop_sequences, response_format, reasoning_effort,
			content_filter_enabled, knowledge_base_id, history_window,
			enabled, created_at, updated_at
		FROM chat_assistants
		WHERE id = $1`

	listAssistantsQuery = `
		SELECT id, name, provider, model_id, system_prompt, temperature, top_p,
			max_output_tokens, frequency_penalty, presence_penalty,
			stop_sequences, response_format, reasoning_effort,
			content_filter_enabled, knowledge_base_id, history_window,
			enabled, created_at, updated_at
		FROM chat_assistants
		ORDER BY created_at ASC`

	deleteAssistantQuery = `DELETE FROM chat_assistants WHERE id = $1`
)

type PgAssistantRepository struct{}

func NewPgAssistantRepository() assistant.Repository {
	return &PgAssistantRepository{}
}

func (r *PgAssistantRepository) GetByID(ctx context.Context, id uuid.UUID) (assistant.Assistant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	m, err := scanAssistant(tx.QueryRow(ctx, selectAssistantQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, assistant.ErrAssistantNotFound
		}
		return nil, errors.Wrap(err, "failed to query assistant")
	}
	return ToDomainAssistant(m)
}

func (r *PgAssistantRepository) List(ctx context.Context) ([]assistant.Assistant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, listAssistantsQuery)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list assistants")
	}
	defer rows.Close()

	var out []assistant.Assistant
	for rows.Next() {
		m, err := scanAssistant(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan assistant")
		}
		a, err := ToDomainAssistant(m)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PgAssistantRepository) Save(ctx context.Context, a assistant.Assistant) (assistant.Assistant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	m := ToDBAssistant(a)
	if _, err := tx.Exec(ctx, upsertAssistantQuery,
		m.ID, m.Name, m.Provider, m.ModelID, m.SystemPrompt, m.Temperature,
		m.TopP, m.MaxOutputTokens, m.FrequencyPenalty, m.PresencePenalty,
		m.StopSequences, m.ResponseFormat, m.ReasoningEffort,
		m.ContentFilterEnabled, m.KnowledgeBaseID, m.HistoryWindow,
		m.Enabled, m.CreatedAt, m.UpdatedAt,
	); err != nil {
		return nil, errors.Wrap(err, "failed to save assistant")
	}
	return a, nil
}

func (r *PgAssistantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, deleteAssistantQuery, id); err != nil {
		return errors.Wrap(err, "failed to delete assistant")
	}
	return nil
}

func scanAssistant(row pgx.Row) (*models.Assistant, error) {
	m := &models.Assistant{}
	if err := row.Scan(
		&m.ID, &m.Name, &m.Provider, &m.ModelID, &m.SystemPrompt, &m.Temperature,
		&m.TopP, &m.MaxOutputTokens, &m.FrequencyPenalty, &m.PresencePenalty,
		&m.StopSequences, &m.ResponseFormat, &m.ReasoningEffort,
		&m.ContentFilterEnabled, &m.KnowledgeBaseID, &m.HistoryWindow,
		&m.Enabled, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return m, nil
}
