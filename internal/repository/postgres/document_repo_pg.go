package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/njprem/regdocs/internal/domain"
)

type DocumentRepository struct {
	db *sqlx.DB
}

func NewDocumentRepo(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, title, department, doc_no, date_issued, review_meeting, created_at, updated_at`

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	const query = `
		INSERT INTO documents (title, department, doc_no, date_issued, review_meeting, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING ` + documentColumns

	var inserted domain.Document
	if err := r.db.GetContext(ctx, &inserted, query,
		doc.Title,
		doc.Department,
		nullStringPtr(doc.DocNo),
		nullTimePtr(doc.DateIssued),
		nullStringPtr(doc.ReviewMeeting),
	); err != nil {
		return nil, err
	}
	return &inserted, nil
}

func (r *DocumentRepository) FindByID(ctx context.Context, id int64) (*domain.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	var doc domain.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns one page of documents, newest issue date first, together with
// the total number of documents matching the filter.
func (r *DocumentRepository) List(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.Department != "" {
		args = append(args, filter.Department)
		where = append(where, fmt.Sprintf("department = $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR doc_no ILIKE $%d)", len(args), len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM documents`+clause, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + documentColumns + ` FROM documents` + clause +
		` ORDER BY date_issued DESC NULLS LAST, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	docs := []domain.Document{}
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
