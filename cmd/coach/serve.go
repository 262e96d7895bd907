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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianCoach/services/orchestrator"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the interview HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if servePort != 0 {
		cfg.Server.Port = servePort
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := orchestrator.New(ctx, *cfg, orchestrator.Options{Logger: logger.Slog()})
	if err != nil {
		return fmt.Errorf("failed to create coach service: %w", err)
	}
	return svc.Run(ctx)
}

// contextOrBackground keeps commands usable when invoked without
// ExecuteContext.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
