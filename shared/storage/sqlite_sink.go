package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"seq-aggregator/shared/middleware"
	"seq-aggregator/shared/seqbuffer"
)

const sinkComponent = "SQLite Sink"

const (
	dropTableSQL   = `DROP TABLE IF EXISTS seq_data`
	createTableSQL = `CREATE TABLE seq_data (
		seq    INTEGER PRIMARY KEY NOT NULL,
		number INTEGER NOT NULL
	)`
	insertRowSQL = `INSERT INTO seq_data (seq, number) VALUES (?, ?)`
)

// SQLiteSink persists accepted items into the seq_data table of a SQLite file
type SQLiteSink struct {
	db   *sql.DB
	path string
}

// OpenSQLiteSink opens (creating if needed) the database at path
func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	// The consumer is the only writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", path, err)
	}

	middleware.LogInfo(sinkComponent, "Opened database %s", path)
	return &SQLiteSink{db: db, path: path}, nil
}

// Reset drops and recreates the seq_data table
func (s *SQLiteSink) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, dropTableSQL); err != nil {
		return fmt.Errorf("failed to drop seq_data: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create seq_data: %w", err)
	}
	middleware.LogInfo(sinkComponent, "Table seq_data created in %s", s.path)
	return nil
}

// AppendBatch inserts every item inside a single transaction
func (s *SQLiteSink) AppendBatch(ctx context.Context, items []seqbuffer.SeqData) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertRowSQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, item.Seq, item.Value); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert seq %d: %w", item.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %d rows: %w", len(items), err)
	}
	middleware.LogDebug(sinkComponent, "Persisted %d rows", len(items))
	return nil
}

// Rows reads back every stored row ordered by sequence index
func (s *SQLiteSink) Rows(ctx context.Context) ([]seqbuffer.SeqData, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, number FROM seq_data ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query seq_data: %w", err)
	}
	defer rows.Close()

	var result []seqbuffer.SeqData
	for rows.Next() {
		var item seqbuffer.SeqData
		if err := rows.Scan(&item.Seq, &item.Value); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// Close closes the database
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
