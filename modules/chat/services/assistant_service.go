package services

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/assistant"
)

// ModelLister is implemented by provider clients that can enumerate the
// models available to the configured credentials.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// AssistantService is the admin-facing CRUD surface over assistant configs.
type AssistantService struct {
	repo   assistant.Repository
	models ModelLister
}

func NewAssistantService(repo assistant.Repository, models ModelLister) *AssistantService {
	return &AssistantService{repo: repo, models: models}
}

func (s *AssistantService) List(ctx context.Context) ([]assistant.Assistant, error) {
	return s.repo.List(ctx)
}

func (s *AssistantService) GetByID(ctx context.Context, id uuid.UUID) (assistant.Assistant, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, assistant.ErrAssistantNotFound) {
			return nil, ErrAssistantNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *AssistantService) Save(ctx context.Context, a assistant.Assistant) (assistant.Assistant, error) {
	return s.repo.Save(ctx, a)
}

func (s *AssistantService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// Models lists the model ids the primary provider offers. Returns an empty
// list when no lister is configured.
func (s *AssistantService) Models(ctx context.Context) ([]string, error) {
	if s.models == nil {
		return nil, nil
	}
	return s.models.ListModels(ctx)
}
