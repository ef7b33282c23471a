// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models.go - Model listing command handler for hidebar CLI.
//
// Handles "hidebar models" which lists the models installed on the
// local Ollama server.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/hidebarapp/hidebar/internal/config"
	"github.com/hidebarapp/hidebar/internal/util"
)

// HandleModelsCommand handles "hidebar models".
func HandleModelsCommand(args Args, cfg *config.Config) error {
	client := newOllamaClient(cfg, args.Model)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ensureServer(ctx, client, cfg); err != nil {
		return err
	}

	models, err := client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	if len(models) == 0 {
		fmt.Println(WarningStyle.Render("No models installed."))
		fmt.Println(InfoStyle.Render("Install one with: ollama pull llama3.2"))
		return nil
	}

	// Column width fits the longest name, capped so one hugely named
	// model does not push the table off screen.
	nameWidth := 20
	for _, m := range models {
		if w := util.StringWidth(m.Name); w > nameWidth {
			nameWidth = w
		}
	}
	if nameWidth > 48 {
		nameWidth = 48
	}

	if !args.Quiet {
		fmt.Println()
		fmt.Println(TitleStyle.Render("Installed models"))
	}

	active := client.DefaultModel()
	for _, m := range models {
		marker := "  "
		if m.Name == active {
			marker = CommandStyle.Render("* ")
		}

		name := util.PadRight(util.TruncateWidth(m.Name, nameWidth), nameWidth)
		line := fmt.Sprintf("%s%s  %s", marker, ValueStyle.Render(name), InfoStyle.Render(m.FormatSize()))

		if args.Verbose && !m.ModifiedAt.IsZero() {
			line += "  " + InfoStyle.Render(m.ModifiedAt.Format("2006-01-02"))
		}

		fmt.Println(line)
	}

	if !args.Quiet {
		fmt.Println()
		fmt.Println(InfoStyle.Render("* marks the configured default model"))
	}

	return nil
}
