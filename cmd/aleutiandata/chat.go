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
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianData/pkg/logging"
	"github.com/AleutianAI/AleutianData/pkg/ux"
	"github.com/AleutianAI/AleutianData/services/agent"
	"github.com/AleutianAI/AleutianData/services/dataset"
	"github.com/AleutianAI/AleutianData/services/evaluator"
	"github.com/AleutianAI/AleutianData/services/llm"
	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
)

func runChat(cmd *cobra.Command, args []string) error {
	if flagServer != "" {
		return runRemoteChat(cmd.Context())
	}

	logger, err := logging.New(logging.Config{
		Level:   config.LogLevel,
		LogDir:  config.LogDir,
		Service: "aleutiandata",
	})
	if err != nil {
		return err
	}
	defer logger.Close()

	provider := flagProvider
	if provider == "" {
		provider = config.Provider
	}
	client, err := llm.NewToolCallingClient(provider)
	if err != nil {
		return err
	}

	var judge *evaluator.Judge
	judgeProvider := flagJudge
	if judgeProvider == "" {
		judgeProvider = config.JudgeProvider
	}
	if judgeProvider != "off" {
		gen, err := llm.NewGenerator(judgeProvider)
		if err != nil {
			return fmt.Errorf("judge backend: %w", err)
		}
		judge = evaluator.NewJudge(gen, logger.Logger)
	}

	runner, err := agent.NewRunner(agent.Config{
		Client: client,
		Judge:  judge,
		Logger: logger.Logger,
	})
	if err != nil {
		return err
	}

	store, err := dataset.NewStore(dataset.InMemoryConfig())
	if err != nil {
		return err
	}
	defer store.Close()

	file, err := os.Open(flagFile)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", flagFile, err)
	}
	sessionID := uuid.New().String()
	ds, err := store.LoadCSV(cmd.Context(), sessionID, filepath.Base(flagFile), file)
	file.Close()
	if err != nil {
		return fmt.Errorf("could not load %s: %w", flagFile, err)
	}

	interactive := ux.IsInteractive() && !flagMachine
	renderer := ux.NewEventRenderer(os.Stdout, interactive)

	snap := ds.Snapshot()
	if interactive {
		fmt.Println(ux.Styles.Title.Render("⚓ Aleutian Data"))
		fmt.Println(ux.Styles.Muted.Render(fmt.Sprintf("%s: %d rows, %d columns",
			snap.SourceName, snap.RowCount, len(snap.Columns))))
		fmt.Println(ux.Styles.Muted.Render("Ask a question, or /quit to exit. Ctrl-C stops a running turn."))
	}

	var history []datatypes.Message
	stdin := bufio.NewScanner(os.Stdin)
	stdin.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if interactive {
			fmt.Print(ux.Styles.Highlight.Render("> "))
		}
		if !stdin.Scan() {
			return stdin.Err()
		}
		question := strings.TrimSpace(stdin.Text())
		switch question {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}

		// Ctrl-C cancels the turn, not the program.
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		history = runTurn(ctx, runner, renderer, sessionID, question, ds, history)
		stop()
	}
}

func runTurn(ctx context.Context, runner *agent.Runner, renderer *ux.EventRenderer,
	sessionID, question string, ds *dataset.Dataset, history []datatypes.Message) []datatypes.Message {

	sink := agent.NewChannelSink(256)
	done := make(chan agent.TurnSummary, 1)
	go func() {
		done <- runner.Run(ctx, agent.TurnRequest{
			SessionID: sessionID,
			Question:  question,
			Dataset:   ds,
			History:   history,
		}, sink)
		sink.Close()
	}()

	for event := range sink.Events() {
		renderer.Render(event)
	}
	summary := <-done

	if len(summary.Suggestions) > 0 {
		fmt.Println(ux.Styles.Muted.Render("Try next: " + strings.Join(summary.Suggestions, " · ")))
	}
	return summary.Messages
}
