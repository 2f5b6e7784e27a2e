package ports

import (
	"context"

	"github.com/njprem/regdocs/internal/domain"
)

type UploadLogRepository interface {
	Insert(ctx context.Context, entry *domain.UploadLog) (*domain.UploadLog, error)
	// Prune keeps the newest keep entries and returns how many were removed.
	Prune(ctx context.Context, keep int) (int, error)
	Recent(ctx context.Context, limit int) ([]domain.UploadLog, error)
}
