package assistant

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Assistant, error)
	List(ctx context.Context) ([]Assistant, error)
	Save(ctx context.Context, a Assistant) (Assistant, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
