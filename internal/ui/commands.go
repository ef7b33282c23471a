// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui provides the hidebar chat window built on Bubble Tea.
//
// This file defines the async commands the window issues: Ollama health
// checks, model listings, and status line timers. Each command runs in
// its own goroutine and reports back with a message.
package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hidebarapp/hidebar/internal/ollama"
)

// checkTimeout bounds the startup health check. Generous because
// EnsureRunning may have to launch the server and wait for readiness.
const checkTimeout = 30 * time.Second

// listTimeout bounds one model listing request.
const listTimeout = 10 * time.Second

// CheckOllamaCmd reports whether the Ollama server is reachable. With
// autoStart set it launches a local server first when none responds.
func CheckOllamaCmd(client *ollama.Client, autoStart bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()

		var err error
		if autoStart {
			err = client.EnsureRunning(ctx)
		} else {
			err = client.CheckRunning(ctx)
		}

		return OllamaStatusMsg{
			Running: err == nil,
			Error:   err,
		}
	}
}

// ListModelsCmd fetches the installed model list.
func ListModelsCmd(client *ollama.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), listTimeout)
		defer cancel()

		models, err := client.ListModels(ctx)
		return ModelsMsg{
			Models: models,
			Error:  err,
		}
	}
}

// clearStatusCmd schedules the status line with sequence seq to clear
// after d.
func clearStatusCmd(seq int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return statusClearMsg{Seq: seq}
	})
}
