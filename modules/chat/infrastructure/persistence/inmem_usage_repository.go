package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/usage"
)

type InmemUsageRepository struct {
	mu      sync.RWMutex
	entries []usage.Entry
}

func NewInmemUsageRepository() *InmemUsageRepository {
	return &InmemUsageRepository{}
}

func (r *InmemUsageRepository) Append(_ context.Context, e usage.Entry) (usage.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	r.entries = append(r.entries, e)
	return e, nil
}

func (r *InmemUsageRepository) Report(_ context.Context, subjectID uuid.UUID, from, to time.Time) (usage.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report := usage.Report{SubjectID: subjectID, From: from, To: to}
	for _, e := range r.entries {
		if e.SubjectID != subjectID {
			continue
		}
		if e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
			continue
		}
		report.Turns++
		report.PromptTokens += e.PromptTokens
		report.CompletionTokens += e.CompletionTokens
	}
	return report, nil
}

// Entries returns a copy of the ledger for assertions.
func (r *InmemUsageRepository) Entries() []usage.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]usage.Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
