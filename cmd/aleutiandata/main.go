// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command aleutiandata is the CLI for the Aleutian data analysis agent.
//
// # Usage
//
//	# Analyze a CSV interactively against an LLM backend
//	aleutiandata chat --file sales.csv
//
//	# Choose the provider
//	aleutiandata chat --file sales.csv --provider openai
//
//	# Print the version
//	aleutiandata version
//
// Configuration can also come from aleutian.yaml in the working directory;
// flags override the file.
package main

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the optional aleutian.yaml file shape.
type Config struct {
	Provider      string `yaml:"provider"`
	JudgeProvider string `yaml:"judge_provider"`
	LogLevel      string `yaml:"log_level"`
	LogDir        string `yaml:"log_dir"`
}

var config Config

func main() {
	loadConfig()
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

// loadConfig reads aleutian.yaml when present. Unlike the server, the CLI
// treats a missing file as defaults rather than a fatal error.
func loadConfig() {
	yamlFile, err := os.ReadFile("aleutian.yaml")
	if err != nil {
		return
	}
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		log.Fatalf("Error parsing aleutian.yaml: %v", err)
	}
}
