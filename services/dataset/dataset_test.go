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
	"errors"
	"strings"
	"testing"
)

const salesCSV = `region,units,price
north,10,9.99
south,7,12.50
east,3,8.00
`

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(InMemoryConfig())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLoadCSV_SnapshotMetadata(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ds, err := store.LoadCSV(ctx, "sess-1", "sales.csv", strings.NewReader(salesCSV))
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}

	snap := ds.Snapshot()
	if snap.Version != 1 {
		t.Errorf("expected version 1, got %d", snap.Version)
	}
	if snap.RowCount != 3 {
		t.Errorf("expected 3 rows, got %d", snap.RowCount)
	}
	want := []string{"region", "units", "price"}
	if len(snap.Columns) != len(want) {
		t.Fatalf("expected columns %v, got %v", want, snap.Columns)
	}
	for i, col := range want {
		if snap.Columns[i] != col {
			t.Errorf("column %d: expected %q, got %q", i, col, snap.Columns[i])
		}
	}
	if snap.SourceName != "sales.csv" {
		t.Errorf("expected source name sales.csv, got %q", snap.SourceName)
	}
}

func TestReader_QueriesLogicalDataView(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ds, err := store.LoadCSV(ctx, "sess-1", "sales.csv", strings.NewReader(salesCSV))
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}

	reader, err := ds.Reader(ctx)
	if err != nil {
		t.Fatalf("Reader failed: %v", err)
	}
	defer reader.Close()

	var total int64
	if err := reader.QueryRow(ctx, "SELECT SUM(units) FROM data").Scan(&total); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if total != 20 {
		t.Errorf("expected SUM(units)=20, got %d", total)
	}
}

func TestCommit_PromotesNewVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ds, err := store.LoadCSV(ctx, "sess-1", "sales.csv", strings.NewReader(salesCSV))
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}

	snap, err := ds.Commit(ctx, "SELECT *, units * price AS revenue FROM data")
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if snap.Version != 2 {
		t.Errorf("expected version 2, got %d", snap.Version)
	}
	if snap.RowCount != 3 {
		t.Errorf("expected row count preserved, got %d", snap.RowCount)
	}
	if len(snap.Columns) != 4 || snap.Columns[3] != "revenue" {
		t.Errorf("expected added revenue column, got %v", snap.Columns)
	}

	// The live dataset reflects the promotion.
	if ds.Snapshot().Version != 2 {
		t.Errorf("dataset snapshot not advanced: %+v", ds.Snapshot())
	}
}

func TestCommit_FailedTransformationLeavesVersionAlone(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ds, err := store.LoadCSV(ctx, "sess-1", "sales.csv", strings.NewReader(salesCSV))
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}

	if _, err := ds.Commit(ctx, "SELECT no_such_column FROM data"); err == nil {
		t.Fatal("expected commit of invalid query to fail")
	}
	if got := ds.Snapshot().Version; got != 1 {
		t.Errorf("failed commit must not advance the version, got %d", got)
	}

	// A subsequent valid commit still lands on version 2.
	snap, err := ds.Commit(ctx, "SELECT region, units FROM data WHERE units > 5")
	if err != nil {
		t.Fatalf("Commit after failure failed: %v", err)
	}
	if snap.Version != 2 {
		t.Errorf("expected version 2 after recovery, got %d", snap.Version)
	}
	if snap.RowCount != 2 {
		t.Errorf("expected 2 filtered rows, got %d", snap.RowCount)
	}
}

func TestPreview_ReturnsRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ds, err := store.LoadCSV(ctx, "sess-1", "sales.csv", strings.NewReader(salesCSV))
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}

	columns, rows, err := ds.Preview(ctx, 2)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if len(columns) != 3 {
		t.Errorf("expected 3 columns, got %v", columns)
	}
	if len(rows) != 2 {
		t.Errorf("expected preview limited to 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "north" {
		t.Errorf("expected first region 'north', got %v", rows[0][0])
	}
}

func TestStore_GetAndDrop(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Get("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	if _, err := store.LoadCSV(ctx, "sess-1", "sales.csv", strings.NewReader(salesCSV)); err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if _, err := store.Get("sess-1"); err != nil {
		t.Errorf("expected dataset after load, got %v", err)
	}

	if err := store.Drop("sess-1"); err != nil {
		t.Errorf("Drop failed: %v", err)
	}
	if _, err := store.Get("sess-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after drop, got %v", err)
	}

	// Dropping again is a no-op.
	if err := store.Drop("sess-1"); err != nil {
		t.Errorf("second Drop should be a no-op, got %v", err)
	}
}

func TestSniffColumnTypes(t *testing.T) {
	columns := []string{"id", "score", "label", "empty"}
	records := [][]string{
		{"1", "0.5", "alpha", ""},
		{"2", "3", "beta", ""},
		{"3", "-1.25", "7", ""},
	}

	types := sniffColumnTypes(columns, records)
	want := []string{"INTEGER", "REAL", "TEXT", "TEXT"}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("column %q: expected %s, got %s", columns[i], want[i], types[i])
		}
	}
}

func TestNormalizeHeader_BackfillsBlanks(t *testing.T) {
	got := normalizeHeader([]string{" region ", "", "price"})
	want := []string{"region", "column_2", "price"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("header %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
