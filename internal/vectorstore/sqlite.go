package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

const chunksSchema = `
CREATE TABLE IF NOT EXISTS chunks (
    id TEXT PRIMARY KEY,
    content TEXT NOT NULL,
    filename TEXT NOT NULL,
    chunk_index INTEGER NOT NULL,
    line_start INTEGER NOT NULL,
    line_end INTEGER NOT NULL,
    uploaded_at TEXT,
    extra TEXT,
    embedding BLOB
);
CREATE INDEX IF NOT EXISTS idx_chunks_filename ON chunks(filename);
`

// SQLiteClient is an embedded, file-backed vector store. Vectors are
// stored as BLOBs and searched with a brute-force cosine scan, which is
// adequate at single-tenant document counts.
type SQLiteClient struct {
	db         *sql.DB
	collection string
}

// OpenSQLite opens (or creates) the collection database file under
// dir. The file name is derived from the collection name.
func OpenSQLite(dir, collection string) (*SQLiteClient, error) {
	dbPath := filepath.Join(dir, collection+".db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, classifySQLite("open", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, classifySQLite("open", err)
	}
	if _, err := db.Exec(chunksSchema); err != nil {
		_ = db.Close()
		return nil, classifySQLite("open", err)
	}
	return &SQLiteClient{db: db, collection: collection}, nil
}

func (c *SQLiteClient) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return classifySQLite("upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, content, filename, chunk_index, line_start, line_end, uploaded_at, extra, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			filename = excluded.filename,
			chunk_index = excluded.chunk_index,
			line_start = excluded.line_start,
			line_end = excluded.line_end,
			uploaded_at = excluded.uploaded_at,
			extra = excluded.extra,
			embedding = excluded.embedding`)
	if err != nil {
		return classifySQLite("upsert", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if r.ID == "" {
			return &Error{Kind: KindUnknown, Op: "upsert", Err: fmt.Errorf("record without id")}
		}
		extra, err := encodeExtra(r.Metadata.Extra)
		if err != nil {
			return &Error{Kind: KindUnknown, Op: "upsert", Err: err}
		}
		m := r.Metadata
		if _, err := stmt.ExecContext(ctx, r.ID, r.Content, m.Filename, m.ChunkIndex,
			m.LineStart, m.LineEnd, m.UploadedAt, extra, encodeEmbedding(r.Embedding)); err != nil {
			return classifySQLite("upsert", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classifySQLite("upsert", err)
	}
	return nil
}

func (c *SQLiteClient) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT id, content, filename, chunk_index, line_start, line_end, uploaded_at, extra, embedding FROM chunks`)
	if err != nil {
		return nil, classifySQLite("query", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var uploadedAt, extra sql.NullString
		var blob []byte
		if err := rows.Scan(&m.ID, &m.Content, &m.Metadata.Filename, &m.Metadata.ChunkIndex,
			&m.Metadata.LineStart, &m.Metadata.LineEnd, &uploadedAt, &extra, &blob); err != nil {
			return nil, classifySQLite("query", err)
		}
		m.Metadata.UploadedAt = uploadedAt.String
		if m.Metadata.Extra, err = decodeExtra(extra.String); err != nil {
			return nil, &Error{Kind: KindUnknown, Op: "query", Err: err}
		}
		emb, err := decodeEmbedding(blob)
		if err != nil {
			return nil, &Error{Kind: KindCollision, Op: "query", Err: err}
		}
		m.Distance = cosineDistance(vector, emb)
		m.HasDistance = true
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLite("query", err)
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (c *SQLiteClient) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := c.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM chunks WHERE id IN (%s)", placeholders), args...)
	if err != nil {
		return classifySQLite("delete_by_ids", err)
	}
	return nil
}

func (c *SQLiteClient) DeleteByFilter(ctx context.Context, field, value string) ([]string, error) {
	if field != "filename" {
		return nil, &Error{Kind: KindUnknown, Op: "delete_by_filter",
			Err: fmt.Errorf("unsupported filter field %q", field)}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classifySQLite("delete_by_filter", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM chunks WHERE filename = ? ORDER BY rowid`, value)
	if err != nil {
		return nil, classifySQLite("delete_by_filter", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, classifySQLite("delete_by_filter", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, classifySQLite("delete_by_filter", err)
	}

	if len(ids) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE filename = ?`, value); err != nil {
			return nil, classifySQLite("delete_by_filter", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, classifySQLite("delete_by_filter", err)
	}
	return ids, nil
}

func (c *SQLiteClient) Count(ctx context.Context) (int, error) {
	var count int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return 0, classifySQLite("count", err)
	}
	return count, nil
}

func (c *SQLiteClient) GetAll(ctx context.Context, limit, offset int, filterValue string) ([]Record, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	query := `SELECT id, content, filename, chunk_index, line_start, line_end, uploaded_at, extra
		FROM chunks ORDER BY rowid LIMIT ? OFFSET ?`
	args := []any{limit, offset}
	if filterValue != "" {
		query = `SELECT id, content, filename, chunk_index, line_start, line_end, uploaded_at, extra
			FROM chunks WHERE filename = ? ORDER BY rowid LIMIT ? OFFSET ?`
		args = []any{filterValue, limit, offset}
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifySQLite("get_all", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var uploadedAt, extra sql.NullString
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata.Filename, &r.Metadata.ChunkIndex,
			&r.Metadata.LineStart, &r.Metadata.LineEnd, &uploadedAt, &extra); err != nil {
			return nil, classifySQLite("get_all", err)
		}
		r.Metadata.UploadedAt = uploadedAt.String
		if r.Metadata.Extra, err = decodeExtra(extra.String); err != nil {
			return nil, &Error{Kind: KindUnknown, Op: "get_all", Err: err}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLite("get_all", err)
	}
	return records, nil
}

func (c *SQLiteClient) CollectionName() string { return c.collection }

func (c *SQLiteClient) Close() error { return c.db.Close() }

func encodeExtra(extra map[string]string) (string, error) {
	if len(extra) == 0 {
		return "", nil
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeExtra(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	var extra map[string]string
	if err := json.Unmarshal([]byte(s), &extra); err != nil {
		return nil, err
	}
	return extra, nil
}

// classifySQLite maps driver errors onto the typed error surface.
// Locked/busy states are transient init races; a corrupt or foreign
// file at the database path means a prior instance left stale state.
func classifySQLite(op string, err error) *Error {
	msg := strings.ToLower(err.Error())
	kind := KindUnknown
	switch {
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "busy"):
		kind = KindTenant
	case strings.Contains(msg, "file is not a database"),
		strings.Contains(msg, "malformed"),
		strings.Contains(msg, "already exists"):
		kind = KindCollision
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

var _ Client = (*SQLiteClient)(nil)
