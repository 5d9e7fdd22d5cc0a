package chat

import (
	"context"
	"database/sql"
	"encoding/json"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, e *Entry) error {
	sources, err := json.Marshal(e.Sources)
	if err != nil {
		return err
	}
	query := `INSERT INTO chat_history (question, answer, sources, chat_saved)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query, e.Question, e.Answer, sources, e.Saved).
		Scan(&e.ID, &e.CreatedAt)
}

func (r *PostgresRepo) List(ctx context.Context, savedOnly bool, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, question, answer, sources, chat_saved, created_at FROM chat_history`
	if savedOnly {
		query += ` WHERE chat_saved = TRUE`
	}
	query += ` ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var sources []byte
		if err := rows.Scan(&e.ID, &e.Question, &e.Answer, &sources, &e.Saved, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &e.Sources); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_history`).Scan(&count)
	return count, err
}

func (r *PostgresRepo) SetSaved(ctx context.Context, id string, saved bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chat_history SET chat_saved = $1 WHERE id = $2`, saved, id)
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

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_history WHERE id = $1`, id)
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
