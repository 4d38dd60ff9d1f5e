// Package sqlite is a durable persistence gateway backed by SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/tbxark/stepform/gateway"
	"github.com/tbxark/stepform/types"
	"github.com/tbxark/stepform/wizard"

	_ "modernc.org/sqlite"
)

var _ wizard.Gateway = (*Store)(nil)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS draft_fields (
	draft_key TEXT NOT NULL,
	field_key TEXT NOT NULL,
	value_json TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (draft_key, field_key)
)`,
	`CREATE TABLE IF NOT EXISTS draft_steps (
	draft_key TEXT NOT NULL,
	step INTEGER NOT NULL,
	saved_at TEXT NOT NULL,
	PRIMARY KEY (draft_key, step)
)`,
	`CREATE TABLE IF NOT EXISTS drafts_finalized (
	draft_key TEXT PRIMARY KEY,
	finalized_at TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS uploads (
	content_id TEXT PRIMARY KEY,
	file_name TEXT NOT NULL,
	content_type TEXT NOT NULL,
	data BLOB NOT NULL,
	created_at TEXT NOT NULL
)`,
}

// Store keeps drafts keyed by the draft key carried in the context.
type Store struct {
	db      *sql.DB
	baseURL string
}

// Open opens or creates the database at path. Upload URLs are built as
// baseURL + "/" + content id.
func Open(path, baseURL string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create draft directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open draft db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set draft db journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set draft db busy timeout: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initialize draft schema: %w", err)
		}
	}
	if baseURL == "" {
		baseURL = "/uploads"
	}
	return &Store{db: db, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) FetchDraft(ctx context.Context) (*types.Draft, error) {
	key := gateway.DraftKeyOrDefault(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT field_key, value_json FROM draft_fields WHERE draft_key = ? ORDER BY field_key`, key)
	if err != nil {
		return nil, fmt.Errorf("query draft %q: %w", key, err)
	}
	defer rows.Close()

	d := &types.Draft{Fields: map[string]any{}}
	for rows.Next() {
		var field, valueJSON string
		if err := rows.Scan(&field, &valueJSON); err != nil {
			return nil, fmt.Errorf("scan draft field: %w", err)
		}
		var value any
		if err := sonic.UnmarshalString(valueJSON, &value); err != nil {
			return nil, fmt.Errorf("unmarshal draft field %q: %w", field, err)
		}
		d.Fields[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate draft fields: %w", err)
	}

	stepRows, err := s.db.QueryContext(ctx, `SELECT step FROM draft_steps WHERE draft_key = ? ORDER BY step`, key)
	if err != nil {
		return nil, fmt.Errorf("query draft steps %q: %w", key, err)
	}
	defer stepRows.Close()
	for stepRows.Next() {
		var step int
		if err := stepRows.Scan(&step); err != nil {
			return nil, fmt.Errorf("scan draft step: %w", err)
		}
		d.SavedSteps = append(d.SavedSteps, step)
	}
	if err := stepRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate draft steps: %w", err)
	}

	if len(d.Fields) == 0 && len(d.SavedSteps) == 0 {
		return nil, types.ErrDraftNotFound
	}
	return d, nil
}

// SaveStep stores uploads and fields of one step in a single transaction.
// Fields are upserted and uploads deduplicated by content, so repeating a
// request leaves the database unchanged apart from timestamps.
func (s *Store) SaveStep(ctx context.Context, req *types.SaveStepRequest) (*types.SaveStepResult, error) {
	key := gateway.DraftKeyOrDefault(ctx)
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin save step: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res := &types.SaveStepResult{UploadedURLs: map[string]string{}}
	fields := make(map[string]any, len(req.Fields)+len(req.Uploads))
	for k, v := range req.Fields {
		fields[k] = v
	}
	for _, u := range req.Uploads {
		id := gateway.ContentID(u.File.Data)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO uploads (content_id, file_name, content_type, data, created_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(content_id) DO NOTHING`,
			id, u.File.Name, u.File.ContentType, u.File.Data, now,
		); err != nil {
			return nil, fmt.Errorf("store upload %q: %w", u.Key, err)
		}
		url := s.baseURL + "/" + id
		res.UploadedURLs[u.Key] = url
		fields[u.Key] = url
	}
	if err := upsertFields(ctx, tx, key, fields, now); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO draft_steps (draft_key, step, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(draft_key, step) DO UPDATE SET saved_at = excluded.saved_at`,
		key, req.Step, now,
	); err != nil {
		return nil, fmt.Errorf("mark step %d saved: %w", req.Step, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit save step: %w", err)
	}
	return res, nil
}

// Finalize stores the complete field set and marks the draft finalized.
func (s *Store) Finalize(ctx context.Context, fields map[string]any) error {
	key := gateway.DraftKeyOrDefault(ctx)
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finalize: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := upsertFields(ctx, tx, key, fields, now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO drafts_finalized (draft_key, finalized_at) VALUES (?, ?)
		 ON CONFLICT(draft_key) DO UPDATE SET finalized_at = excluded.finalized_at`,
		key, now,
	); err != nil {
		return fmt.Errorf("finalize draft %q: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit finalize: %w", err)
	}
	return nil
}

func (s *Store) Finalized(ctx context.Context) (bool, error) {
	var at string
	err := s.db.QueryRowContext(ctx, `SELECT finalized_at FROM drafts_finalized WHERE draft_key = ?`, gateway.DraftKeyOrDefault(ctx)).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query finalized: %w", err)
	}
	return true, nil
}

// OpenUpload returns the stored upload with the given content id.
func (s *Store) OpenUpload(ctx context.Context, id string) (types.File, bool, error) {
	var f types.File
	err := s.db.QueryRowContext(ctx, `SELECT file_name, content_type, data FROM uploads WHERE content_id = ?`, id).
		Scan(&f.Name, &f.ContentType, &f.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return types.File{}, false, nil
	}
	if err != nil {
		return types.File{}, false, fmt.Errorf("query upload %q: %w", id, err)
	}
	return f, true, nil
}

// Reset removes the draft routed by ctx. Uploads are kept.
func (s *Store) Reset(ctx context.Context) error {
	key := gateway.DraftKeyOrDefault(ctx)
	for _, table := range []string{"draft_fields", "draft_steps", "drafts_finalized"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE draft_key = ?`, key); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) countUploads(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM uploads`).Scan(&n)
	return n, err
}

func upsertFields(ctx context.Context, tx *sql.Tx, key string, fields map[string]any, now string) error {
	for field, value := range fields {
		payload, err := sonic.MarshalString(value)
		if err != nil {
			return fmt.Errorf("marshal field %q: %w", field, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO draft_fields (draft_key, field_key, value_json, updated_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(draft_key, field_key) DO UPDATE SET
			 value_json = excluded.value_json,
			 updated_at = excluded.updated_at`,
			key, field, payload, now,
		); err != nil {
			return fmt.Errorf("save field %q: %w", field, err)
		}
	}
	return nil
}
