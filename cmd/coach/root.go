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
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianCoach/pkg/config"
	"github.com/AleutianAI/AleutianCoach/pkg/logging"
)

var (
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "coach",
	Short: "Practice behavioral interviews with multi-agent feedback",
	Long: `coach runs mock behavioral interviews. Every answer is scored by a
five-agent panel and the GRAIL rubric, then turned into coaching feedback
while the next question adapts to how the session is going.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd, practiceCmd, kbCmd, versionCmd)
}

// setup loads .env, the config file and the logger for every subcommand.
func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "coach",
		JSON:    cfg.Logging.JSON || !isTerminal(os.Stderr),
		Quiet:   cmd.Name() == practiceCmd.Name() && cfg.Logging.Dir == "",
	})
	slog.SetDefault(logger.Slog())
	if cfg.Source != "" {
		logger.Slog().Debug("Configuration loaded", slog.String("path", cfg.Source))
	}
	return nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
