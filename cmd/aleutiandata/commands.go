// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianData/services/orchestrator/server"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var (
	flagFile     string
	flagProvider string
	flagJudge    string
	flagMachine  bool
	flagServer   string

	rootCmd = &cobra.Command{
		Use:   "aleutiandata",
		Short: "Conversational analysis for tabular data",
		Long: "aleutiandata loads a CSV and lets you interrogate it in plain language.\n" +
			"An LLM drives SQL exploration in a read-only sandbox; results stream back\n" +
			"as text, tables, and charts.",
	}

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive analysis session over a CSV file",
		RunE:  runChat,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis service",
		Long: "serve starts the HTTP/WebSocket analysis service. Configuration is\n" +
			"read from the environment (ANALYSIS_PORT, LLM_PROVIDER, DATASET_DIR,\n" +
			"SESSION_DB_PATH, JUDGE_PROVIDER, OTEL_EXPORTER_OTLP_ENDPOINT).",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Run()
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the aleutiandata version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("aleutiandata", Version)
		},
	}
)

func init() {
	chatCmd.Flags().StringVarP(&flagFile, "file", "f", "", "CSV file to analyze (required)")
	chatCmd.Flags().StringVar(&flagProvider, "provider", "", "LLM provider: anthropic, openai")
	chatCmd.Flags().StringVar(&flagJudge, "judge", "", "judge provider: anthropic, openai, ollama, off")
	chatCmd.Flags().BoolVar(&flagMachine, "machine", false, "machine-readable output even on a TTY")
	chatCmd.Flags().StringVar(&flagServer, "server", "", "chat against a running service, e.g. http://localhost:12210")
	_ = chatCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
