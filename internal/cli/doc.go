// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line interface parsing and execution for hidebar.
//
// This package implements the non-TUI commands and the argument parsing
// that decides whether to launch the chat window at all.
//
// # Key Types
//
//   - Command: Enumeration of all available CLI commands
//   - Args: Parsed command-line arguments with global and command-specific flags
//   - ChatCLI: Line editor with persistent history for the chat REPL
//
// # Usage
//
// Parse and dispatch commands:
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdAsk:
//	    return cli.HandleAskCommand(args, cfg)
//	case cli.CmdChat:
//	    return cli.HandleChatCommand(args, cfg)
//	// ... other commands
//	}
//
// # Commands Overview
//
//   - (default): Launch the full-screen chat window
//   - ask: Single question, streamed answer
//   - chat: Line-based chat REPL
//   - models: List installed Ollama models
//   - config: Show, locate, or initialize the config file
//   - version: Version information
//
// Output adapts to the destination: markdown rendering and colors on a
// TTY, raw text when piped.
package cli
