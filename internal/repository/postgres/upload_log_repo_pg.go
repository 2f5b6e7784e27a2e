package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/njprem/regdocs/internal/domain"
)

type UploadLogRepository struct {
	db *sqlx.DB
}

func NewUploadLogRepo(db *sqlx.DB) *UploadLogRepository {
	return &UploadLogRepository{db: db}
}

const uploadLogColumns = `id, kb, doc_no, title, display_name, rag_doc_id, rag_status, uploaded_at`

func (r *UploadLogRepository) Insert(ctx context.Context, entry *domain.UploadLog) (*domain.UploadLog, error) {
	const query = `
		INSERT INTO upload_logs (kb, doc_no, title, display_name, rag_doc_id, rag_status, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING ` + uploadLogColumns

	var inserted domain.UploadLog
	if err := r.db.GetContext(ctx, &inserted, query,
		nullStringPtr(entry.KB),
		nullStringPtr(entry.DocNo),
		entry.Title,
		nullStringPtr(entry.DisplayName),
		nullStringPtr(entry.RagDocID),
		entry.RagStatus,
	); err != nil {
		return nil, err
	}
	return &inserted, nil
}

func (r *UploadLogRepository) Prune(ctx context.Context, keep int) (int, error) {
	const selectOld = `
		SELECT id FROM upload_logs
		ORDER BY uploaded_at DESC, id DESC
		OFFSET $1
	`

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, selectOld, keep); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM upload_logs WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}

func (r *UploadLogRepository) Recent(ctx context.Context, limit int) ([]domain.UploadLog, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT ` + uploadLogColumns + `
		FROM upload_logs
		ORDER BY uploaded_at DESC, id DESC
		LIMIT $1
	`

	rows := []domain.UploadLog{}
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, err
	}
	return rows, nil
}
