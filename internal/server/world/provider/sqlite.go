package provider

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/world"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
)

// SQLite stores chunks and the world metadata in one database file.
type SQLite struct {
	db    *sql.DB
	codec Codec
}

func OpenSQLite(path string, codec Codec) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db, codec: codec}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("exec %q: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			x INTEGER NOT NULL,
			z INTEGER NOT NULL,
			data BLOB NOT NULL,
			saved_at TEXT NOT NULL,
			PRIMARY KEY (x, z)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLite) LoadChunk(pos chunk.Pos) (*world.Chunk, error) {
	var record []byte
	err := s.db.QueryRow(`SELECT data FROM chunks WHERE x = ? AND z = ?`, pos.X, pos.Z).Scan(&record)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("read chunk %v: %w", pos, err)
	}
	return s.codec.Decode(pos, record)
}

func (s *SQLite) SaveChunks(chunks []*world.Chunk) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO chunks (x, z, data, saved_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (x, z) DO UPDATE SET data = excluded.data, saved_at = excluded.saved_at`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, c := range chunks {
		record, err := s.codec.Encode(c)
		if err != nil {
			return fmt.Errorf("save chunk %v: %w", c.Pos(), err)
		}
		if _, err := stmt.Exec(c.Pos().X, c.Pos().Z, record, now); err != nil {
			return fmt.Errorf("save chunk %v: %w", c.Pos(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const worldKey = "world"

func (s *SQLite) LoadWorld() (*world.WorldData, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, worldKey).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("read world data: %w", err)
	}
	var wd world.WorldData
	if err := json.Unmarshal([]byte(value), &wd); err != nil {
		return nil, fmt.Errorf("parse world data: %w", err)
	}
	return &wd, nil
}

func (s *SQLite) SaveWorld(data *world.WorldData) error {
	value, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal world data: %w", err)
	}
	if _, err := s.db.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, worldKey, string(value)); err != nil {
		return fmt.Errorf("save world data: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}
