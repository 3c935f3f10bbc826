// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianData/services/dataset"
	"github.com/AleutianAI/AleutianData/services/sandbox"
)

const systemPromptTemplate = `You are a data analyst working with a user on a tabular dataset.
The dataset is available to the sql_query tool as the table ` + "`data`" + `.

Rules:
- Communicate with the user ONLY through tools. Plain assistant text is never
  shown to the user; use output_text for prose, output_table for tables, and
  create_plot for charts.
- Use sql_query for every fact you state about the data; never estimate values
  from the preview alone.
- SQL must be read-only SELECT or WITH statements. A query that keeps all
  original columns at a similar row count replaces the dataset for the
  remainder of the session, so only write such queries when the user asks for
  a lasting transformation (cleaning, renaming, derived columns).
- Results are capped at 50 rows per query; aggregate instead of paging.
- When the question is fully answered, call finalize with a short session
  title and follow-up suggestions. Do not call finalize before at least one
  user-visible output has been sent.

%s`

// previewRowBudget bounds the sample rows embedded in the system prompt.
const previewRowBudget = 5

// BuildSystemPrompt assembles the system prompt for one turn: the standing
// instructions plus a summary and small sample of the current dataset. The
// sample is re-read each turn so committed transforms are visible to the
// model immediately.
func BuildSystemPrompt(ctx context.Context, ds *dataset.Dataset) (string, error) {
	summary, err := DataContext(ctx, ds)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(systemPromptTemplate, summary), nil
}

// DataContext renders the dataset's shape and a short sample as prompt text.
// The same text is handed to the judge so the verdict is grounded in what the
// model could actually see.
func DataContext(ctx context.Context, ds *dataset.Dataset) (string, error) {
	snap := ds.Snapshot()
	columns, rows, err := ds.Preview(ctx, previewRowBudget)
	if err != nil {
		return "", fmt.Errorf("agent: failed to preview dataset: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dataset %q: %d rows, %d columns (version %d).\n",
		snap.SourceName, snap.RowCount, len(snap.Columns), snap.Version)
	b.WriteString("Columns: ")
	b.WriteString(strings.Join(snap.Columns, ", "))
	b.WriteString("\n\nSample rows:\n")
	b.WriteString(sandbox.RenderPreview(columns, rows, snap.RowCount))
	return b.String(), nil
}
