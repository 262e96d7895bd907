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
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianCoach/pkg/ux"
	"github.com/AleutianAI/AleutianCoach/services/interview/collaborator"
)

var kbDefaults bool

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the coaching knowledge base",
}

var kbSeedCmd = &cobra.Command{
	Use:   "seed [file.yaml]",
	Short: "Import knowledge passages into Weaviate",
	Long: `Imports coaching passages into the Weaviate knowledge base, creating the
schema when it is missing. Passages are keyed by source and title, so seeding
the same file twice overwrites rather than duplicates.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runKBSeed,
}

func init() {
	kbSeedCmd.Flags().BoolVar(&kbDefaults, "defaults", false, "also import the built-in passages")
	kbCmd.AddCommand(kbSeedCmd)
}

// knowledgeFile is the on-disk format read by kb seed.
type knowledgeFile struct {
	Items []collaborator.KnowledgeItem `yaml:"items" validate:"dive"`
}

var knowledgeValidate = validator.New()

func loadKnowledgeFile(path string) ([]collaborator.KnowledgeItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var f knowledgeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(f.Items) == 0 {
		return nil, fmt.Errorf("%s: no items", path)
	}
	if err := knowledgeValidate.Struct(f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f.Items, nil
}

func runKBSeed(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !kbDefaults {
		return errors.New("give a knowledge file or --defaults")
	}
	var items []collaborator.KnowledgeItem
	if kbDefaults {
		items = append(items, collaborator.DefaultKnowledge()...)
	}
	if len(args) == 1 {
		fromFile, err := loadKnowledgeFile(args[0])
		if err != nil {
			return err
		}
		items = append(items, fromFile...)
	}

	if cfg.Weaviate.URL == "" {
		return errors.New("weaviate.url (or WEAVIATE_SERVICE_URL) is not set")
	}
	u, err := url.Parse(cfg.Weaviate.URL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid Weaviate URL: %s", cfg.Weaviate.URL)
	}
	client, err := weaviate.NewClient(weaviate.Config{Host: u.Host, Scheme: u.Scheme})
	if err != nil {
		return fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	ctx, cancel := context.WithTimeout(contextOrBackground(cmd), 5*time.Minute)
	defer cancel()
	if err := collaborator.EnsureKnowledgeSchema(ctx, client); err != nil {
		return err
	}
	n, err := collaborator.ImportKnowledge(ctx, client, items)
	if err != nil {
		return fmt.Errorf("imported %d of %d passages: %w", n, len(items), err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Imported %d passages into %s\n",
		ux.IconSuccess.Render(), n, collaborator.KnowledgeClassName)
	return nil
}
