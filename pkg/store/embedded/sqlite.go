// Package embedded is the in-process document store used when no remote cluster
// is configured. Documents live in a single SQLite database under the data directory.
package embedded

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nimburion/esbench/pkg/observability/logger"
	"github.com/nimburion/esbench/pkg/security"
	"github.com/nimburion/esbench/pkg/store/search"
)

// Store is a search.Client backed by SQLite.
//
// Tables:
//
//	indices(name, shards, replicas, keyword_fields)  PRIMARY KEY (name)
//	documents(index_name, id, source)                 PRIMARY KEY (index_name, id)
type Store struct {
	db          *sql.DB
	path        string
	clusterName string
	logger      logger.Logger
}

// Config configures the embedded store.
type Config struct {
	// DataDir is the directory holding the database file.
	DataDir     string
	ClusterName string
}

// Open creates the data directory and database if needed.
func Open(ctx context.Context, cfg Config, log logger.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		return nil, fmt.Errorf("embedded store data directory is required")
	}
	if strings.TrimSpace(cfg.ClusterName) == "" {
		return nil, fmt.Errorf("embedded store cluster name is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	path, err := security.ConfinedPath(cfg.DataDir, cfg.ClusterName+".db")
	if err != nil {
		return nil, fmt.Errorf("invalid cluster name %q: %w", cfg.ClusterName, err)
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded store: %w", err)
	}
	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		`CREATE TABLE IF NOT EXISTS indices (
			name TEXT PRIMARY KEY,
			shards INTEGER NOT NULL,
			replicas INTEGER NOT NULL,
			keyword_fields TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			index_name TEXT NOT NULL REFERENCES indices(name) ON DELETE CASCADE,
			id TEXT NOT NULL,
			source TEXT NOT NULL,
			PRIMARY KEY (index_name, id)
		)`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialise embedded store: %w", err)
		}
	}

	log.Info("embedded store opened", "path", path, "cluster_name", cfg.ClusterName)
	return &Store{db: db, path: path, clusterName: cfg.ClusterName, logger: log}, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// HealthCheck verifies the database answers queries.
func (s *Store) HealthCheck(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("embedded store health check failed: %w", err)
	}
	return nil
}

// WaitForStatus reports green once the database answers: a single local node has
// no unassigned shards.
func (s *Store) WaitForStatus(ctx context.Context, status string, timeout time.Duration) (*search.ClusterHealth, error) {
	if err := s.HealthCheck(ctx); err != nil {
		return nil, err
	}
	return &search.ClusterHealth{
		ClusterName:   s.clusterName,
		Status:        search.HealthGreen,
		NumberOfNodes: 1,
	}, nil
}

// IndexExists reports whether index has been created.
func (s *Store) IndexExists(ctx context.Context, index string) (bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx, "SELECT name FROM indices WHERE name = ?", index).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up index %s: %w", index, err)
	}
	return true, nil
}

// CreateIndex registers index. Creating an existing index fails.
func (s *Store) CreateIndex(ctx context.Context, index string, settings search.IndexSettings) error {
	if strings.TrimSpace(index) == "" {
		return fmt.Errorf("index is required")
	}
	fields, err := json.Marshal(settings.KeywordFields)
	if err != nil {
		return fmt.Errorf("%w: %w", search.ErrSerialization, err)
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO indices (name, shards, replicas, keyword_fields) VALUES (?, ?, ?, ?) ON CONFLICT(name) DO NOTHING",
		index, settings.Shards, settings.Replicas, string(fields),
	)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", index, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("index %s already exists", index)
	}
	return nil
}

// DeleteIndex drops index and its documents. A missing index is not an error.
func (s *Store) DeleteIndex(ctx context.Context, index string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM indices WHERE name = ?", index); err != nil {
		return fmt.Errorf("failed to delete index %s: %w", index, err)
	}
	return nil
}

// Refresh is a no-op: writes are visible as soon as they commit.
func (s *Store) Refresh(ctx context.Context, index string) error {
	return nil
}

// GetDocument fetches a document by ID.
func (s *Store) GetDocument(ctx context.Context, index, id string) (map[string]any, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT source FROM documents WHERE index_name = ? AND id = ?", index, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get document %s/%s: %w", index, id, err)
	}
	source, err := decodeSource(raw)
	if err != nil {
		return nil, false, err
	}
	return source, true, nil
}

// IndexDocument upserts a document, creating the index with default settings
// when it does not exist yet.
func (s *Store) IndexDocument(ctx context.Context, index, id string, source map[string]any) error {
	if strings.TrimSpace(index) == "" || strings.TrimSpace(id) == "" {
		return fmt.Errorf("index and document id are required")
	}
	raw, err := encodeSource(source)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO indices (name, shards, replicas) VALUES (?, 1, 0) ON CONFLICT(name) DO NOTHING", index,
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO documents (index_name, id, source) VALUES (?, ?, ?)
			 ON CONFLICT(index_name, id) DO UPDATE SET source = excluded.source`,
			index, id, raw,
		)
		return err
	})
}

// UpdateDocument merges partial into an existing document.
func (s *Store) UpdateDocument(ctx context.Context, index, id string, partial map[string]any) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var raw string
		err := tx.QueryRowContext(ctx,
			"SELECT source FROM documents WHERE index_name = ? AND id = ?", index, id,
		).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("document %s/%s: %w", index, id, search.ErrNotFound)
		}
		if err != nil {
			return err
		}
		source, err := decodeSource(raw)
		if err != nil {
			return err
		}
		for k, v := range partial {
			source[k] = v
		}
		merged, err := encodeSource(source)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE documents SET source = ? WHERE index_name = ? AND id = ?", merged, index, id,
		)
		return err
	})
}

// DeleteDocument removes a document.
func (s *Store) DeleteDocument(ctx context.Context, index, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE index_name = ? AND id = ?", index, id)
	if err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", index, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s/%s: %w", index, id, search.ErrNotFound)
	}
	return nil
}

// ScanDocuments returns up to Count documents ordered by the key field.
func (s *Store) ScanDocuments(ctx context.Context, req search.ScanRequest) ([]search.Document, error) {
	if req.Count <= 0 {
		return nil, fmt.Errorf("scan count must be positive, got %d", req.Count)
	}
	exists, err := s.IndexExists(ctx, req.Index)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("index %s: %w", req.Index, search.ErrNotFound)
	}

	path := jsonPath(req.KeyField)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source FROM documents
		 WHERE index_name = ? AND json_extract(source, ?) >= ?
		 ORDER BY json_extract(source, ?), id
		 LIMIT ?`,
		req.Index, path, req.StartKey, path, req.Count,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", req.Index, err)
	}
	defer rows.Close()

	var docs []search.Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		source, err := decodeSource(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, search.Document{ID: id, Source: project(source, req.KeyField, req.Fields)})
	}
	return docs, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	s.logger.Debug("closing embedded store", "path", s.path)
	return s.db.Close()
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func project(source map[string]any, keyField string, fields []string) map[string]any {
	if len(fields) == 0 {
		return source
	}
	out := make(map[string]any, len(fields)+1)
	for _, f := range append([]string{keyField}, fields...) {
		if v, ok := source[f]; ok {
			out[f] = v
		}
	}
	return out
}

func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}

func encodeSource(source map[string]any) (string, error) {
	if source == nil {
		source = map[string]any{}
	}
	b, err := json.Marshal(source)
	if err != nil {
		return "", fmt.Errorf("%w: %w", search.ErrSerialization, err)
	}
	return string(b), nil
}

func decodeSource(raw string) (map[string]any, error) {
	var source map[string]any
	if err := json.Unmarshal([]byte(raw), &source); err != nil {
		return nil, fmt.Errorf("%w: %w", search.ErrSerialization, err)
	}
	if source == nil {
		source = map[string]any{}
	}
	return source, nil
}

var _ search.Client = (*Store)(nil)
