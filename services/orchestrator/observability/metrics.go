// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the
// orchestrator.
//
// # Description
//
// This package implements Prometheus metrics for monitoring agent turns.
// Metrics include:
//   - Run counters (by status)
//   - Iteration and duration histograms
//   - Tool invocation counters (by tool, status)
//   - Active run and session gauges
//
// # Integration
//
// Metrics are exposed via /metrics endpoint. Use with Prometheus + Grafana
// for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for agent metrics
const agentSubsystem = "agent"

// AgentMetrics holds all Prometheus metrics for agent turn execution.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring the agent loop.
// Initialize once at startup via InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type AgentMetrics struct {
	// RunsTotal counts agent turns by terminal status.
	// Labels: status (completed, canceled, error)
	RunsTotal *prometheus.CounterVec

	// RunDurationSeconds measures wall time of one agent turn.
	// Labels: status (completed, canceled, error)
	RunDurationSeconds *prometheus.HistogramVec

	// IterationsPerRun measures how many loop iterations a turn used.
	IterationsPerRun prometheus.Histogram

	// ToolInvocationsTotal counts tool executions.
	// Labels: tool (sql_query, output_text, ...), status (ok, error)
	ToolInvocationsTotal *prometheus.CounterVec

	// ActiveRuns tracks turns currently executing.
	ActiveRuns prometheus.Gauge

	// EventsEmittedTotal counts events pushed to clients by type.
	// Labels: type (status, text, table, plot, ...)
	EventsEmittedTotal *prometheus.CounterVec

	// DatasetCommitsTotal counts dataset version promotions.
	DatasetCommitsTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance of AgentMetrics.
// Initialized by InitMetrics(); nil until then, and callers must treat a
// nil instance as metrics-disabled.
var DefaultMetrics *AgentMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *AgentMetrics {
	DefaultMetrics = &AgentMetrics{
		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "runs_total",
				Help:      "Total agent turns by terminal status",
			},
			[]string{"status"},
		),

		RunDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "run_duration_seconds",
				Help:      "Wall time of one agent turn in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		),

		IterationsPerRun: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "iterations_per_run",
				Help:      "Loop iterations consumed by one agent turn",
				Buckets:   []float64{1, 2, 3, 5, 8, 10, 15},
			},
		),

		ToolInvocationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "tool_invocations_total",
				Help:      "Total tool executions by tool and status",
			},
			[]string{"tool", "status"},
		),

		ActiveRuns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "active_runs",
				Help:      "Agent turns currently executing",
			},
		),

		EventsEmittedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "events_emitted_total",
				Help:      "Events pushed to clients by type",
			},
			[]string{"type"},
		),

		DatasetCommitsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "dataset_commits_total",
				Help:      "Dataset version promotions from transformations",
			},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Recording Helpers
// =============================================================================

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
	StatusError     = "error"
)

// RecordRun records one finished turn. Safe to call when metrics are
// disabled.
func RecordRun(status string, seconds float64, iterations int) {
	m := DefaultMetrics
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDurationSeconds.WithLabelValues(status).Observe(seconds)
	m.IterationsPerRun.Observe(float64(iterations))
}

// RecordTool records one tool execution. Safe to call when metrics are
// disabled.
func RecordTool(tool string, ok bool) {
	m := DefaultMetrics
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.ToolInvocationsTotal.WithLabelValues(tool, status).Inc()
}

// RecordEvent records one emitted event. Safe to call when metrics are
// disabled.
func RecordEvent(eventType string) {
	if m := DefaultMetrics; m != nil {
		m.EventsEmittedTotal.WithLabelValues(eventType).Inc()
	}
}

// RecordCommit records one dataset promotion. Safe to call when metrics
// are disabled.
func RecordCommit() {
	if m := DefaultMetrics; m != nil {
		m.DatasetCommitsTotal.Inc()
	}
}

// IncActiveRuns marks a turn as started. Safe to call when metrics are
// disabled.
func IncActiveRuns() {
	if m := DefaultMetrics; m != nil {
		m.ActiveRuns.Inc()
	}
}

// DecActiveRuns marks a turn as finished. Safe to call when metrics are
// disabled.
func DecActiveRuns() {
	if m := DefaultMetrics; m != nil {
		m.ActiveRuns.Dec()
	}
}
