package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/shirabe/internal/models"
)

// SQLiteStorage implements Storage using SQLite. Embeddings are stored as
// little-endian float32 BLOBs alongside the chunk row, so the vector index
// can be rebuilt without re-embedding.
type SQLiteStorage struct {
	db *sql.DB
}

var _ Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		source_kind TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		doc_id TEXT NOT NULL DEFAULT '',
		manual TEXT NOT NULL DEFAULT '',
		chapter TEXT NOT NULL DEFAULT '',
		jurisdiction TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		topic_clusters TEXT NOT NULL DEFAULT '[]',
		is_summary INTEGER NOT NULL DEFAULT 0,
		summary_kind TEXT NOT NULL DEFAULT '',
		embedding BLOB,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source_kind ON chunks(source_kind);
	CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id);

	CREATE TABLE IF NOT EXISTS index_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

const chunkColumns = `id, text, source_kind, content_hash, doc_id, manual, chapter,
	jurisdiction, state, title, topic_clusters, is_summary, summary_kind`

// UpsertChunks inserts or replaces chunks with their embeddings in one
// transaction. Existing rows keep their created_at.
func (s *SQLiteStorage) UpsertChunks(ctx context.Context, chunks []*models.Chunk, embeddings [][]float32) error {
	if len(embeddings) != 0 && len(embeddings) != len(chunks) {
		return fmt.Errorf("chunks and embeddings length mismatch: %d vs %d", len(chunks), len(embeddings))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (`+chunkColumns+`, embedding, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			source_kind = excluded.source_kind,
			content_hash = excluded.content_hash,
			doc_id = excluded.doc_id,
			manual = excluded.manual,
			chapter = excluded.chapter,
			jurisdiction = excluded.jurisdiction,
			state = excluded.state,
			title = excluded.title,
			topic_clusters = excluded.topic_clusters,
			is_summary = excluded.is_summary,
			summary_kind = excluded.summary_kind,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for i, chunk := range chunks {
		topicsJSON, err := json.Marshal(chunk.Metadata.TopicClusters)
		if err != nil {
			return fmt.Errorf("failed to marshal topic clusters for %s: %w", chunk.ID, err)
		}
		var blob interface{}
		if len(embeddings) != 0 && embeddings[i] != nil {
			blob = float32SliceToBytes(embeddings[i])
		}
		m := chunk.Metadata
		if _, err := stmt.ExecContext(ctx,
			chunk.ID, chunk.Text, chunk.SourceKind, chunk.ContentHash,
			m.DocID, m.Manual, m.Chapter, m.Jurisdiction, m.State, m.Title,
			string(topicsJSON), boolToInt(m.IsSummary), m.SummaryKind,
			blob, now,
		); err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", chunk.ID, err)
		}
	}
	return tx.Commit()
}

// GetChunks returns stored chunks keyed by id. Missing ids are absent.
func (s *SQLiteStorage) GetChunks(ctx context.Context, ids []string) (map[string]*models.Chunk, error) {
	found := make(map[string]*models.Chunk, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	// Bulk fetch in batches to stay under SQLite's bound-parameter limit.
	const batchSize = 500
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		placeholders := strings.Repeat("?,", len(batch))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]interface{}, len(batch))
		for i, id := range batch {
			args[i] = id
		}

		rows, err := s.db.QueryContext(ctx,
			`SELECT `+chunkColumns+` FROM chunks WHERE id IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			chunk, err := scanChunk(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			found[chunk.ID] = chunk
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return found, nil
}

// DeleteChunks removes chunks by id.
func (s *SQLiteStorage) DeleteChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM chunks WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ContentHashes returns id -> content hash for all stored chunks.
func (s *SQLiteStorage) ContentHashes(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, content_hash FROM chunks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, err
		}
		hashes[id] = hash
	}
	return hashes, rows.Err()
}

// AllChunks returns every stored chunk, without embeddings.
func (s *SQLiteStorage) AllChunks(ctx context.Context) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+chunkColumns+` FROM chunks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// AllEmbeddings returns every stored embedding with its chunk id. Rows
// without an embedding are skipped.
func (s *SQLiteStorage) AllEmbeddings(ctx context.Context) ([]string, [][]float32, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, embedding FROM chunks WHERE embedding IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var ids []string
	var vectors [][]float32
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		vectors = append(vectors, bytesToFloat32Slice(blob))
	}
	return ids, vectors, rows.Err()
}

// FilterIDs resolves metadata filters to the matching chunk id set, or nil
// when no filter is set.
func (s *SQLiteStorage) FilterIDs(ctx context.Context, f models.Filters) (map[string]struct{}, error) {
	if f.IsZero() {
		return nil, nil
	}

	query := `SELECT id FROM chunks WHERE 1=1`
	var args []interface{}
	if f.Source != "" {
		query += ` AND source_kind = ?`
		args = append(args, f.Source)
	}
	if f.Manual != "" {
		query += ` AND manual = ?`
		args = append(args, f.Manual)
	}
	if f.Jurisdiction != "" {
		query += ` AND jurisdiction = ?`
		args = append(args, f.Jurisdiction)
	}
	if f.State != "" {
		query += ` AND state = ?`
		args = append(args, f.State)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// Count returns the total number of chunks.
func (s *SQLiteStorage) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// CountBySource returns chunk counts grouped by source kind.
func (s *SQLiteStorage) CountBySource(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_kind, COUNT(*) FROM chunks GROUP BY source_kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// IndexMeta returns the stored embedding model metadata, or nil when unset.
func (s *SQLiteStorage) IndexMeta(ctx context.Context) (*IndexMeta, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM index_meta`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meta IndexMeta
	found := false
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		switch key {
		case "model":
			meta.Model = value
			found = true
		case "dimensions":
			var dims int
			if _, err := fmt.Sscanf(value, "%d", &dims); err != nil {
				return nil, fmt.Errorf("corrupt index_meta dimensions %q: %w", value, err)
			}
			meta.Dimensions = dims
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &meta, nil
}

// SetIndexMeta stores the embedding model metadata.
func (s *SQLiteStorage) SetIndexMeta(ctx context.Context, meta IndexMeta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	upsert := `INSERT INTO index_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := tx.ExecContext(ctx, upsert, "model", meta.Model); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, upsert, "dimensions", fmt.Sprintf("%d", meta.Dimensions)); err != nil {
		return err
	}
	return tx.Commit()
}

// Reset drops all chunks and index metadata.
func (s *SQLiteStorage) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_meta`); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func scanChunk(rows *sql.Rows) (*models.Chunk, error) {
	var chunk models.Chunk
	var topicsJSON string
	var isSummary int
	if err := rows.Scan(
		&chunk.ID, &chunk.Text, &chunk.SourceKind, &chunk.ContentHash,
		&chunk.Metadata.DocID, &chunk.Metadata.Manual, &chunk.Metadata.Chapter,
		&chunk.Metadata.Jurisdiction, &chunk.Metadata.State, &chunk.Metadata.Title,
		&topicsJSON, &isSummary, &chunk.Metadata.SummaryKind,
	); err != nil {
		return nil, err
	}
	if topicsJSON != "" && topicsJSON != "[]" {
		if err := json.Unmarshal([]byte(topicsJSON), &chunk.Metadata.TopicClusters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal topic clusters for %s: %w", chunk.ID, err)
		}
	}
	chunk.Metadata.IsSummary = isSummary != 0
	return &chunk, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
