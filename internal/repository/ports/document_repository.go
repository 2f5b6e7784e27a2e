package ports

import (
	"context"

	"github.com/njprem/regdocs/internal/domain"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) (*domain.Document, error)
	FindByID(ctx context.Context, id int64) (*domain.Document, error)
	List(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, int, error)
	Delete(ctx context.Context, id int64) error
}

type DocumentVersionRepository interface {
	Create(ctx context.Context, version *domain.DocumentVersion) (*domain.DocumentVersion, error)
	FindByID(ctx context.Context, id int64) (*domain.DocumentVersion, error)
	Latest(ctx context.Context, docID int64) (*domain.DocumentVersion, error)
	LatestByDocs(ctx context.Context, docIDs []int64) (map[int64]*domain.DocumentVersion, error)
	ListByDoc(ctx context.Context, docID int64) ([]domain.DocumentVersion, error)
	ToggleActive(ctx context.Context, id int64) (*domain.DocumentVersion, error)
	SetRagDocID(ctx context.Context, id int64, ragDocID string) error
}
