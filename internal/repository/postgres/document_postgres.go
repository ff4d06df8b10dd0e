package postgres

import (
	"context"
	"database/sql"
	"errors"

	"docsync/internal/model"
	"docsync/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const columns = `id, title, content, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*model.Document, error) {
	var d model.Document
	if err := row.Scan(&d.ID, &d.Title, &d.Content, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

// Put upserts the full record.
func (r *DocumentPostgres) Put(ctx context.Context, doc *model.Document) error {
	const q = `
		INSERT INTO documents (id, title, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			title      = EXCLUDED.title,
			content    = EXCLUDED.content,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, q, doc.ID, doc.Title, doc.Content, doc.CreatedAt, doc.UpdatedAt); err != nil {
		return repository.Unavailable("put", err)
	}
	return nil
}

// Get fetches a single document by its ID.
func (r *DocumentPostgres) Get(ctx context.Context, id string) (*model.Document, error) {
	const q = `SELECT ` + columns + ` FROM documents WHERE id = $1`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, repository.Unavailable("get", err)
	}
	return d, nil
}

// Delete removes a document by ID and returns the removed row.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) (*model.Document, error) {
	const q = `DELETE FROM documents WHERE id = $1 RETURNING ` + columns
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, repository.Unavailable("delete", err)
	}
	return d, nil
}

// Update locks the row, applies fn and writes the result in one transaction.
func (r *DocumentPostgres) Update(ctx context.Context, id string, fn repository.MutateFunc) (*model.Document, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, repository.Unavailable("update begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	const qSelect = `SELECT ` + columns + ` FROM documents WHERE id = $1 FOR UPDATE`
	d, err := scanDocument(tx.QueryRowContext(ctx, qSelect, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, repository.Unavailable("update select", err)
	}

	if err := fn(d); err != nil {
		return nil, err
	}

	const qUpdate = `
		UPDATE documents
		SET title = $2, content = $3, updated_at = $4
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, qUpdate, d.ID, d.Title, d.Content, d.UpdatedAt); err != nil {
		return nil, repository.Unavailable("update exec", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, repository.Unavailable("update commit", err)
	}
	return d, nil
}

// Scan uses keyset pagination over the primary key; the token is the last ID returned.
func (r *DocumentPostgres) Scan(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	after, err := repository.DecodeToken(pq.Token)
	if err != nil {
		return nil, err
	}
	limit := pq.Limit
	if limit <= 0 {
		limit = repository.DefaultPageSize
	}

	// Fetch one extra row to learn whether another page exists.
	const q = `SELECT ` + columns + ` FROM documents WHERE id > $1 ORDER BY id LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, after, limit+1)
	if err != nil {
		return nil, repository.Unavailable("scan", err)
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, repository.Unavailable("scan row", err)
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, repository.Unavailable("scan rows", err)
	}

	res := &repository.PageResult[model.Document]{Items: items}
	if len(items) > limit {
		res.Items = items[:limit]
		res.NextToken = repository.EncodeToken(items[limit-1].ID)
	}
	return res, nil
}

func (r *DocumentPostgres) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return repository.Unavailable("ping", err)
	}
	return nil
}
