// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sandbox

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianData/services/dataset"
	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
)

func newTestDataset(t *testing.T, csv string) *dataset.Dataset {
	t.Helper()
	store, err := dataset.NewStore(dataset.InMemoryConfig())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ds, err := store.LoadCSV(context.Background(), "sess-1", "test.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	return ds
}

const testCSV = `region,units,price
north,10,9.99
south,7,12.50
east,3,8.00
west,5,10.00
`

func TestExecute_Scalar(t *testing.T) {
	sb := newTestSandbox(t)
	ds := newTestDataset(t, testCSV)

	outcome := sb.Execute(context.Background(), ds, "SELECT SUM(units) FROM data")
	if !outcome.Result.Success {
		t.Fatalf("expected success, got error %q", outcome.Result.Error)
	}
	if outcome.Result.Kind != datatypes.ResultScalar {
		t.Errorf("expected scalar, got %s", outcome.Result.Kind)
	}
	if v := outcome.Result.ScalarValue(); fmt.Sprintf("%v", v) != "25" {
		t.Errorf("expected scalar 25, got %v", v)
	}
}

func TestExecute_TableWithRowBudget(t *testing.T) {
	sb := newTestSandbox(t)

	var b strings.Builder
	b.WriteString("id,label\n")
	for i := 0; i < 80; i++ {
		fmt.Fprintf(&b, "%d,row%d\n", i, i)
	}
	ds := newTestDataset(t, b.String())

	outcome := sb.Execute(context.Background(), ds, "SELECT id, label FROM data ORDER BY id")
	if !outcome.Result.Success {
		t.Fatalf("expected success, got error %q", outcome.Result.Error)
	}
	if outcome.Result.Kind != datatypes.ResultTable {
		t.Errorf("expected table, got %s", outcome.Result.Kind)
	}
	if outcome.Result.RowCount != 80 {
		t.Errorf("expected full cardinality 80, got %d", outcome.Result.RowCount)
	}
	if len(outcome.Result.Rows) != MaxQueryRows {
		t.Errorf("expected %d materialized rows, got %d", MaxQueryRows, len(outcome.Result.Rows))
	}
	if !strings.Contains(outcome.Result.Preview, "30 more rows") {
		t.Errorf("preview should note truncation, got:\n%s", outcome.Result.Preview)
	}
}

func TestExecute_TransformCommitsNewVersion(t *testing.T) {
	sb := newTestSandbox(t)
	ds := newTestDataset(t, testCSV)

	outcome := sb.Execute(context.Background(), ds, "SELECT *, units * price AS revenue FROM data")
	if !outcome.Result.Success {
		t.Fatalf("expected success, got error %q", outcome.Result.Error)
	}
	if outcome.Result.Kind != datatypes.ResultTableTransform {
		t.Fatalf("expected table_transform, got %s", outcome.Result.Kind)
	}
	if outcome.Transform == nil || outcome.Snapshot == nil {
		t.Fatal("transform outcome must carry summary and snapshot")
	}
	if outcome.Snapshot.Version != 2 {
		t.Errorf("expected committed version 2, got %d", outcome.Snapshot.Version)
	}
	if len(outcome.Transform.AddedColumns) != 1 || outcome.Transform.AddedColumns[0] != "revenue" {
		t.Errorf("expected added column revenue, got %v", outcome.Transform.AddedColumns)
	}
	if ds.Snapshot().Version != 2 {
		t.Errorf("dataset should be promoted, got version %d", ds.Snapshot().Version)
	}
}

func TestExecute_ValidationFailureIsNotFatal(t *testing.T) {
	sb := newTestSandbox(t)
	ds := newTestDataset(t, testCSV)

	outcome := sb.Execute(context.Background(), ds, "DROP TABLE data")
	if outcome.Result.Success {
		t.Fatal("expected failure result")
	}
	if outcome.Result.Kind != datatypes.ResultNone {
		t.Errorf("expected kind none, got %s", outcome.Result.Kind)
	}
	if !strings.Contains(outcome.Result.Error, "DROP") {
		t.Errorf("the rejection must name the forbidden verb, got %q", outcome.Result.Error)
	}
	if ds.Snapshot().Version != 1 {
		t.Errorf("dataset must be untouched, got version %d", ds.Snapshot().Version)
	}
}

func TestExecute_SQLErrorIsFoldedIntoResult(t *testing.T) {
	sb := newTestSandbox(t)
	ds := newTestDataset(t, testCSV)

	outcome := sb.Execute(context.Background(), ds, "SELECT no_such FROM data")
	if outcome.Result.Success {
		t.Fatal("expected failure result")
	}
	if !strings.Contains(outcome.Result.Error, "query failed") {
		t.Errorf("unexpected error text: %q", outcome.Result.Error)
	}
}

func TestRenderPreview_Empty(t *testing.T) {
	if got := RenderPreview(nil, nil, 0); got != "(no result)" {
		t.Errorf("expected placeholder for empty result, got %q", got)
	}
}
