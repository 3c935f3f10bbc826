// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
)

// Snapshot is an immutable description of one dataset version.
type Snapshot struct {
	SessionID  string   `json:"session_id"`
	SourceName string   `json:"source_name"`
	Version    int      `json:"version"`
	Columns    []string `json:"columns"`
	RowCount   int64    `json:"row_count"`
}

// Dataset is one session's table plus its version history.
//
// # Thread Safety
//
// Reader and Snapshot may be called concurrently; Commit serializes behind a
// write lock. A Reader opened before a Commit keeps seeing its own version
// because version tables are never rewritten.
type Dataset struct {
	sessionID  string
	sourceName string
	db         *sql.DB
	logger     *slog.Logger

	mu       sync.RWMutex
	version  int
	columns  []string
	rowCount int64
}

// Snapshot returns the current version metadata.
func (d *Dataset) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cols := make([]string, len(d.columns))
	copy(cols, d.columns)
	return Snapshot{
		SessionID:  d.sessionID,
		SourceName: d.sourceName,
		Version:    d.version,
		Columns:    cols,
		RowCount:   d.rowCount,
	}
}

// Close releases the session database.
func (d *Dataset) Close() error {
	return d.db.Close()
}

// Reader is a read handle pinned to one dataset version. The SQL it executes
// sees the version through a connection-scoped TEMP VIEW named "data".
// Callers must Close the reader to return the connection to the pool.
type Reader struct {
	Snapshot Snapshot
	conn     *sql.Conn
}

// Reader opens a read handle on the current version.
//
// # Description
//
//	Takes a connection from the pool and binds a TEMP VIEW "data" to the
//	version table that is current at call time. Because version tables are
//	immutable, the handle stays consistent even if a commit promotes a new
//	version while the reader is alive.
//
// # Outputs
//
//	*Reader - read handle; the caller owns it and must Close it.
//	error   - connection acquisition or view creation failure.
func (d *Dataset) Reader(ctx context.Context) (*Reader, error) {
	snap := d.Snapshot()
	if snap.Version == 0 {
		return nil, ErrNoData
	}

	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("dataset: failed to acquire connection: %w", err)
	}
	stmt := fmt.Sprintf("CREATE TEMP VIEW data AS SELECT * FROM %s", versionTable(snap.Version))
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("dataset: failed to bind snapshot view: %w", err)
	}
	return &Reader{Snapshot: snap, conn: conn}, nil
}

// Query runs a read query against the pinned snapshot.
func (r *Reader) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.conn.QueryContext(ctx, query, args...)
}

// QueryRow runs a single-row query against the pinned snapshot.
func (r *Reader) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.conn.QueryRowContext(ctx, query, args...)
}

// Close drops the snapshot view and returns the connection to the pool.
func (r *Reader) Close() error {
	// Best effort: the view is connection-scoped and dies with the
	// connection anyway, but pooled connections get reused.
	_, _ = r.conn.ExecContext(context.Background(), "DROP VIEW IF EXISTS data")
	return r.conn.Close()
}

// Commit materializes a transformation query as the next dataset version.
//
// # Description
//
//	Runs under the write lock, so concurrent commits from a parallel tool
//	batch are applied one at a time. The query may reference the logical
//	table "data", which is bound to the version current at commit time.
//	The result is written to a fresh version table; prior versions are
//	kept so live readers never observe a change.
//
// # Inputs
//
//	ctx   - governs the materialization query.
//	query - a validated SELECT/WITH statement over "data".
//
// # Outputs
//
//	Snapshot - metadata of the newly promoted version.
//	error    - the version counter is not advanced on failure.
func (d *Dataset) Commit(ctx context.Context, query string) (Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.version == 0 {
		return Snapshot{}, ErrNoData
	}

	conn, err := d.db.Conn(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("dataset: failed to acquire connection: %w", err)
	}
	defer conn.Close()

	view := fmt.Sprintf("CREATE TEMP VIEW data AS SELECT * FROM %s", versionTable(d.version))
	if _, err := conn.ExecContext(ctx, view); err != nil {
		return Snapshot{}, fmt.Errorf("dataset: failed to bind commit view: %w", err)
	}
	defer func() { _, _ = conn.ExecContext(context.Background(), "DROP VIEW IF EXISTS data") }()

	next := d.version + 1
	nextTable := versionTable(next)
	create := fmt.Sprintf("CREATE TABLE %s AS %s", nextTable, query)
	if _, err := conn.ExecContext(ctx, create); err != nil {
		return Snapshot{}, fmt.Errorf("dataset: transformation failed: %w", err)
	}

	columns, rowCount, err := introspect(ctx, conn, nextTable)
	if err != nil {
		_, _ = conn.ExecContext(context.Background(), "DROP TABLE IF EXISTS "+nextTable)
		return Snapshot{}, err
	}

	d.version = next
	d.columns = columns
	d.rowCount = rowCount
	d.logger.Info("dataset version promoted",
		slog.Int("version", next),
		slog.Int64("row_count", rowCount),
		slog.Int("column_count", len(columns)))

	cols := make([]string, len(columns))
	copy(cols, columns)
	return Snapshot{
		SessionID:  d.sessionID,
		SourceName: d.sourceName,
		Version:    next,
		Columns:    cols,
		RowCount:   rowCount,
	}, nil
}

// Preview returns up to limit rows of the current version for prompt
// construction and upload acknowledgements.
func (d *Dataset) Preview(ctx context.Context, limit int) ([]string, [][]any, error) {
	reader, err := d.Reader(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer reader.Close()

	rows, err := reader.Query(ctx, fmt.Sprintf("SELECT * FROM data LIMIT %d", limit))
	if err != nil {
		return nil, nil, fmt.Errorf("dataset: preview query failed: %w", err)
	}
	defer rows.Close()
	return CollectRows(rows)
}

// introspect reads the column list and row count of a version table.
func introspect(ctx context.Context, conn *sql.Conn, table string) ([]string, int64, error) {
	rows, err := conn.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", table))
	if err != nil {
		return nil, 0, fmt.Errorf("dataset: failed to introspect %s: %w", table, err)
	}
	columns, err := rows.Columns()
	rows.Close()
	if err != nil {
		return nil, 0, fmt.Errorf("dataset: failed to read columns of %s: %w", table, err)
	}

	var rowCount int64
	count := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	if err := conn.QueryRowContext(ctx, count).Scan(&rowCount); err != nil {
		return nil, 0, fmt.Errorf("dataset: failed to count %s: %w", table, err)
	}
	return columns, rowCount, nil
}

// CollectRows drains a result set into column names and row values.
func CollectRows(rows *sql.Rows) ([]string, [][]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("dataset: failed to read result columns: %w", err)
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("dataset: failed to scan result row: %w", err)
		}
		for i, v := range values {
			// libsql hands TEXT back as []byte; normalize for JSON.
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("dataset: result iteration failed: %w", err)
	}
	return columns, out, nil
}
