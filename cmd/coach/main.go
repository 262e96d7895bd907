// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command coach runs the interview practice service.
//
// # Usage
//
//	coach serve                 # HTTP API on :12210
//	coach practice --questions 3 --difficulty mid
//	coach kb seed knowledge.yaml
//
// # Environment Variables
//
//   - COACH_PORT: HTTP server port (default: 12210)
//   - LLM_BACKEND_TYPE: LLM provider - openai, ollama, anthropic (default: openai)
//   - WEAVIATE_SERVICE_URL: Weaviate knowledge base URL (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector, or "stdout"
//   - COACH_STORE: session store - memory, badger (default: memory)
//
// A .env file in the working directory is loaded first when present.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
