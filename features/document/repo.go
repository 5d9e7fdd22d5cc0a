package document

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, doc *Document) error {
	query := `INSERT INTO documents (filename, title, chunk_count, size_bytes, word_count, line_count, citations)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, query, doc.Filename, doc.Title, doc.ChunkCount,
		doc.SizeBytes, doc.WordCount, doc.LineCount, pq.Array(doc.Citations)).
		Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
}

func (r *PostgresRepo) Update(ctx context.Context, doc *Document) error {
	query := `UPDATE documents SET title = $1, chunk_count = $2, size_bytes = $3, word_count = $4, line_count = $5, updated_at = NOW()
		WHERE filename = $6 RETURNING id, updated_at`
	return r.db.QueryRowContext(ctx, query, doc.Title, doc.ChunkCount, doc.SizeBytes,
		doc.WordCount, doc.LineCount, doc.Filename).Scan(&doc.ID, &doc.UpdatedAt)
}

func (r *PostgresRepo) SaveSummary(ctx context.Context, filename, summary string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET summary = $1, updated_at = NOW() WHERE filename = $2`, summary, filename)
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

func (r *PostgresRepo) GetByFilename(ctx context.Context, filename string) (*Document, error) {
	doc := &Document{}
	query := `SELECT id, filename, title, chunk_count, size_bytes, word_count, line_count, citations, summary, created_at, updated_at
		FROM documents WHERE filename = $1`
	err := r.db.QueryRowContext(ctx, query, filename).Scan(&doc.ID, &doc.Filename, &doc.Title,
		&doc.ChunkCount, &doc.SizeBytes, &doc.WordCount, &doc.LineCount,
		pq.Array(&doc.Citations), &doc.Summary, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *PostgresRepo) ExistsByFilename(ctx context.Context, filename string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM documents WHERE filename = $1)`
	if err := r.db.QueryRowContext(ctx, query, filename).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Document, error) {
	query := `SELECT id, filename, title, chunk_count, size_bytes, word_count, line_count, citations, summary, created_at, updated_at
		FROM documents ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Filename, &d.Title, &d.ChunkCount, &d.SizeBytes,
			&d.WordCount, &d.LineCount, pq.Array(&d.Citations), &d.Summary, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

func (r *PostgresRepo) Filenames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT filename FROM documents ORDER BY filename`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *PostgresRepo) DeleteByFilename(ctx context.Context, filename string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE filename = $1`, filename)
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
