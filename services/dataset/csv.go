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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// sniffSampleRows caps how many rows feed column type inference.
const sniffSampleRows = 1000

// LoadCSV ingests a CSV stream as version 1 of a session's dataset.
//
// # Description
//
//	Parses the stream, infers a column type (INTEGER, REAL, or TEXT) from a
//	sample of the values, and bulk-inserts the rows inside one transaction.
//	The first record is treated as the header. Re-uploading for the same
//	session discards the previous dataset and starts the version history
//	over at 1.
//
// # Inputs
//
//	ctx        - governs the ingest transaction.
//	sessionID  - owning session.
//	sourceName - original filename, surfaced in snapshots and prompts.
//	r          - CSV stream including the header record.
//
// # Outputs
//
//	*Dataset - the registered dataset at version 1.
//	error    - parse or insert failure; no dataset is registered on error.
func (s *Store) LoadCSV(ctx context.Context, sessionID, sourceName string, r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("dataset: failed to read CSV header: %w", err)
	}
	columns := normalizeHeader(header)
	if len(columns) == 0 {
		return nil, errors.New("dataset: CSV has no columns")
	}

	var records [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: failed to parse CSV: %w", err)
		}
		// Ragged rows are padded or clipped to the header width rather
		// than rejected; spreadsheet exports produce them routinely.
		if len(record) < len(columns) {
			padded := make([]string, len(columns))
			copy(padded, record)
			record = padded
		} else if len(record) > len(columns) {
			record = record[:len(columns)]
		}
		records = append(records, record)
	}

	types := sniffColumnTypes(columns, records)

	ds, err := s.open(sessionID, sourceName)
	if err != nil {
		return nil, err
	}

	if err := ds.loadInitial(ctx, columns, types, records); err != nil {
		_ = s.Drop(sessionID)
		return nil, err
	}
	s.logger.Info("dataset loaded",
		"session_id", sessionID,
		"source", sourceName,
		"rows", len(records),
		"columns", len(columns))
	return ds, nil
}

// loadInitial creates data_v1 and fills it inside one transaction.
func (d *Dataset) loadInitial(ctx context.Context, columns, types []string, records [][]string) error {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = quoteIdent(col) + " " + types[i]
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", versionTable(1), strings.Join(defs, ", "))

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dataset: failed to begin ingest transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("dataset: failed to create version table: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",")
	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", versionTable(1), placeholders)
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("dataset: failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		args := make([]any, len(record))
		for i, field := range record {
			args[i] = coerceField(field, types[i])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("dataset: failed to insert row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dataset: failed to commit ingest: %w", err)
	}

	d.mu.Lock()
	d.version = 1
	d.columns = columns
	d.rowCount = int64(len(records))
	d.mu.Unlock()
	return nil
}

// normalizeHeader trims header cells and backfills blanks with positional
// names so every column is addressable in SQL.
func normalizeHeader(header []string) []string {
	columns := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		columns[i] = name
	}
	return columns
}

// sniffColumnTypes infers INTEGER, REAL, or TEXT per column from a sample.
// A column is numeric only if every non-empty sampled value parses; one
// stray string demotes it to TEXT.
func sniffColumnTypes(columns []string, records [][]string) []string {
	sample := records
	if len(sample) > sniffSampleRows {
		sample = sample[:sniffSampleRows]
	}

	types := make([]string, len(columns))
	for i := range columns {
		allInt, allReal, seen := true, true, false
		for _, record := range sample {
			field := strings.TrimSpace(record[i])
			if field == "" {
				continue
			}
			seen = true
			if _, err := strconv.ParseInt(field, 10, 64); err != nil {
				allInt = false
			}
			if _, err := strconv.ParseFloat(field, 64); err != nil {
				allReal = false
			}
			if !allInt && !allReal {
				break
			}
		}
		switch {
		case !seen:
			types[i] = "TEXT"
		case allInt:
			types[i] = "INTEGER"
		case allReal:
			types[i] = "REAL"
		default:
			types[i] = "TEXT"
		}
	}
	return types
}

// coerceField converts a CSV cell to the Go value matching the column type.
// Empty cells become NULL.
func coerceField(field, colType string) any {
	trimmed := strings.TrimSpace(field)
	if trimmed == "" {
		return nil
	}
	switch colType {
	case "INTEGER":
		if v, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return v
		}
	case "REAL":
		if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return v
		}
	}
	return field
}
