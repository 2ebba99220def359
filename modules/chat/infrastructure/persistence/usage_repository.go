package persistence

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/usage"
	"github.com/lucerna-ai/lucerna/pkg/composables"
)

const (
	insertUsageEntryQuery = `
		INSERT INTO usage_ledger (
			id, subject_id, subject_kind, conversation_id, provider, model_id,
			prompt_tokens, completion_tokens, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	usageReportQuery = `
		SELECT COUNT(*),
			COALESCE(SUM(prompt_tokens), 0),
			COALESCE(SUM(completion_tokens), 0)
		FROM usage_ledger
		WHERE subject_id = $1 AND created_at >= $2 AND created_at < $3`
)

type PgUsageRepository struct{}

func NewPgUsageRepository() usage.Repository {
	return &PgUsageRepository{}
}

func (r *PgUsageRepository) Append(ctx context.Context, e usage.Entry) (usage.Entry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return usage.Entry{}, err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m := ToDBUsageEntry(e)
	if _, err := tx.Exec(ctx, insertUsageEntryQuery,
		m.ID, m.SubjectID, m.SubjectKind, m.ConversationID, m.Provider,
		m.ModelID, m.PromptTokens, m.CompletionTokens, m.CreatedAt,
	); err != nil {
		return usage.Entry{}, errors.Wrap(err, "failed to append usage entry")
	}
	return ToDomainUsageEntry(m), nil
}

func (r *PgUsageRepository) Report(ctx context.Context, subjectID uuid.UUID, from, to time.Time) (usage.Report, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return usage.Report{}, err
	}
	report := usage.Report{SubjectID: subjectID, From: from, To: to}
	if err := tx.QueryRow(ctx, usageReportQuery, subjectID, from, to).Scan(
		&report.Turns, &report.PromptTokens, &report.CompletionTokens,
	); err != nil {
		return usage.Report{}, errors.Wrap(err, "failed to build usage report")
	}
	return report, nil
}
