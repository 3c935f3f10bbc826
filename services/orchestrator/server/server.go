// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server bootstraps the analysis service. The orchestrator binary
// and the `aleutiandata serve` command both run it; configuration comes
// from the environment in either case.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianData/services/agent"
	"github.com/AleutianAI/AleutianData/services/dataset"
	"github.com/AleutianAI/AleutianData/services/evaluator"
	"github.com/AleutianAI/AleutianData/services/history"
	"github.com/AleutianAI/AleutianData/services/llm"
	"github.com/AleutianAI/AleutianData/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianData/services/orchestrator/routes"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "aleutian-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("analysis-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// Run starts the analysis service and blocks until the listener fails.
func Run() error {
	port := os.Getenv("ANALYSIS_PORT")
	if port == "" {
		port = "12210"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		return fmt.Errorf("failed to setup the OTLP tracer: %w", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	datasets, err := dataset.NewStore(datasetConfig())
	if err != nil {
		return fmt.Errorf("could not initialize the dataset store: %w", err)
	}
	defer datasets.Close()

	sessionPath := os.Getenv("SESSION_DB_PATH")
	if sessionPath == "" {
		sessionPath = "/var/lib/aleutian/sessions"
	}
	sessions, err := history.NewStore(history.DefaultConfig(sessionPath))
	if err != nil {
		return fmt.Errorf("could not open the session store: %w", err)
	}
	defer sessions.Close()

	slog.Info("configuring the LLM client")
	provider := os.Getenv("LLM_PROVIDER")
	client, err := llm.NewToolCallingClient(provider)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	slog.Info("using tool-calling LLM backend", "provider", provider)

	var judge *evaluator.Judge
	if judgeProvider := os.Getenv("JUDGE_PROVIDER"); judgeProvider != "off" {
		gen, err := llm.NewGenerator(judgeProvider)
		if err != nil {
			return fmt.Errorf("failed to initialize judge backend: %w", err)
		}
		judge = evaluator.NewJudge(gen, logger)
	}

	runner, err := agent.NewRunner(agent.Config{
		Client: client,
		Judge:  judge,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not build the agent runner: %w", err)
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("analysis-service"))

	routes.SetupRoutes(router, datasets, sessions, runner)

	slog.Info("starting the analysis server", "port", port)
	return router.Run(":" + port)
}

func datasetConfig() dataset.Config {
	if os.Getenv("DATASET_IN_MEMORY") == "true" {
		return dataset.InMemoryConfig()
	}
	dir := os.Getenv("DATASET_DIR")
	if dir == "" {
		dir = "/var/lib/aleutian/datasets"
	}
	return dataset.DefaultConfig(dir)
}
