package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/njprem/regdocs/internal/domain"
)

type DocumentVersionRepository struct {
	db *sqlx.DB
}

func NewDocumentVersionRepo(db *sqlx.DB) *DocumentVersionRepository {
	return &DocumentVersionRepository{db: db}
}

const versionColumns = `id, doc_id, version_code, date_issued, is_active, file_key, file_name, rag_doc_id, created_at, updated_at`

func (r *DocumentVersionRepository) Create(ctx context.Context, v *domain.DocumentVersion) (*domain.DocumentVersion, error) {
	const query = `
		INSERT INTO document_versions (
			doc_id, version_code, date_issued, is_active, file_key, file_name, rag_doc_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING ` + versionColumns

	var inserted domain.DocumentVersion
	if err := r.db.GetContext(ctx, &inserted, query,
		v.DocID,
		v.VersionCode,
		nullTimePtr(v.DateIssued),
		v.IsActive,
		nullStringPtr(v.FileKey),
		nullStringPtr(v.FileName),
		nullStringPtr(v.RagDocID),
	); err != nil {
		return nil, err
	}
	return &inserted, nil
}

func (r *DocumentVersionRepository) FindByID(ctx context.Context, id int64) (*domain.DocumentVersion, error) {
	const query = `SELECT ` + versionColumns + ` FROM document_versions WHERE id = $1`

	var v domain.DocumentVersion
	if err := r.db.GetContext(ctx, &v, query, id); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *DocumentVersionRepository) Latest(ctx context.Context, docID int64) (*domain.DocumentVersion, error) {
	const query = `
		SELECT ` + versionColumns + `
		FROM document_versions
		WHERE doc_id = $1
		ORDER BY date_issued DESC NULLS LAST, id DESC
		LIMIT 1
	`

	var v domain.DocumentVersion
	if err := r.db.GetContext(ctx, &v, query, docID); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *DocumentVersionRepository) LatestByDocs(ctx context.Context, docIDs []int64) (map[int64]*domain.DocumentVersion, error) {
	result := make(map[int64]*domain.DocumentVersion, len(docIDs))
	if len(docIDs) == 0 {
		return result, nil
	}

	const query = `
		SELECT DISTINCT ON (doc_id) ` + versionColumns + `
		FROM document_versions
		WHERE doc_id = ANY($1)
		ORDER BY doc_id, date_issued DESC NULLS LAST, id DESC
	`

	rows := []domain.DocumentVersion{}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(docIDs)); err != nil {
		return nil, err
	}
	for i := range rows {
		result[rows[i].DocID] = &rows[i]
	}
	return result, nil
}

func (r *DocumentVersionRepository) ListByDoc(ctx context.Context, docID int64) ([]domain.DocumentVersion, error) {
	const query = `
		SELECT ` + versionColumns + `
		FROM document_versions
		WHERE doc_id = $1
		ORDER BY id ASC
	`

	rows := []domain.DocumentVersion{}
	if err := r.db.SelectContext(ctx, &rows, query, docID); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *DocumentVersionRepository) ToggleActive(ctx context.Context, id int64) (*domain.DocumentVersion, error) {
	const query = `
		UPDATE document_versions
		SET is_active = NOT is_active,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + versionColumns

	var v domain.DocumentVersion
	if err := r.db.GetContext(ctx, &v, query, id); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *DocumentVersionRepository) SetRagDocID(ctx context.Context, id int64, ragDocID string) error {
	const query = `
		UPDATE document_versions
		SET rag_doc_id = $2,
		    updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, nullStringPtr(&ragDocID))
	return err
}
