// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single question command handler for hidebar CLI.
//
// Handles "hidebar ask" which sends one question to the Ollama server
// and streams the answer to stdout.
//
// Command: ask [question]
// Short:   Ask a single question
//
// Examples:
//   hidebar ask "What is a goroutine?"
//   hidebar ask -m mistral:7b "Summarize this" -f notes.txt
//   cat error.log | hidebar ask "What went wrong here?"
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"

	"github.com/hidebarapp/hidebar/internal/config"
	"github.com/hidebarapp/hidebar/internal/ollama"
)

// MaxFileSize is the largest file -f/--file will attach (50 KB).
// Anything bigger would blow the model's context window anyway.
const MaxFileSize = 50 * 1024

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// markdownRenderer is the global glamour renderer for markdown output.
var markdownRenderer *glamour.TermRenderer

func init() {
	var err error
	markdownRenderer, err = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		// Fallback to plain text if renderer initialization fails
		markdownRenderer = nil
	}
}

// renderMarkdown renders markdown content for terminal display.
// Returns the original content if rendering fails or renderer is unavailable.
func renderMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}

	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayResponse displays a response with markdown rendering when appropriate.
// Only renders markdown when stdout is a TTY to avoid corrupting piped output.
func displayResponse(response string) {
	if IsStdoutTTY() {
		fmt.Print(renderMarkdown(response))
	} else {
		fmt.Print(response)
	}
}

// =============================================================================
// ASK COMMAND
// =============================================================================

// HandleAskCommand handles "hidebar ask". It sends one question and
// streams the answer: raw tokens when piped, collected and rendered as
// markdown on a terminal.
func HandleAskCommand(args Args, cfg *config.Config) error {
	question := args.Query

	// Piped stdin becomes the question, or extra context when a
	// question was also given on the command line.
	if piped := readPipedStdin(); piped != "" {
		if question == "" {
			question = piped
		} else {
			question = question + "\n\n" + piped
		}
	}

	if question == "" {
		return fmt.Errorf("no question provided. Usage: hidebar ask \"your question\"")
	}

	// If file is specified, read and append to question
	if args.File != "" {
		fileContent, err := readFileForContext(args.File)
		if err != nil {
			return err
		}
		question = question + "\n" + fileContent

		if !args.Quiet {
			fmt.Fprintf(os.Stderr, "%s\n", InfoStyle.Render("Including file: "+args.File))
		}
	}

	client := newOllamaClient(cfg, args.Model)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ctrl+C cancels the in-flight request instead of killing the
	// process mid-stream.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := ensureServer(ctx, client, cfg); err != nil {
		return err
	}

	messages := []ollama.Message{ollama.NewUserMessage(question)}
	acc := ollama.NewStreamAccumulator()
	useMarkdown := IsStdoutTTY()

	err := client.ChatStream(ctx, client.DefaultModel(), messages, func(chunk ollama.StreamChunk) {
		acc.Add(chunk)
		if !useMarkdown && chunk.Content != "" {
			fmt.Print(chunk.Content)
		}
	})
	if err != nil {
		if ollama.IsCanceled(err) {
			fmt.Fprintln(os.Stderr)
			fmt.Fprintln(os.Stderr, WarningStyle.Render("Canceled."))
			return nil
		}
		return fmt.Errorf("chat request failed: %w", err)
	}

	response := acc.GetContent()
	if strings.TrimSpace(response) == "" {
		return fmt.Errorf("model returned an empty response")
	}

	if useMarkdown {
		displayResponse(response)
	} else {
		// Raw mode streamed tokens already; just terminate the line
		fmt.Println()
	}

	if args.Verbose {
		fmt.Fprintf(os.Stderr, "%s\n", StatsStyle.Render("[stats] "+acc.GetStats().Format()))
	}

	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// newOllamaClient builds a client from config with an optional model
// override from the command line.
func newOllamaClient(cfg *config.Config, modelOverride string) *ollama.Client {
	cc := ollama.DefaultConfig()
	if cfg != nil {
		if cfg.Ollama.URL != "" {
			cc.BaseURL = cfg.Ollama.URL
		}
		if cfg.Ollama.Model != "" {
			cc.DefaultModel = cfg.Ollama.Model
		}
	}
	if modelOverride != "" {
		cc.DefaultModel = modelOverride
	}
	return ollama.NewClientWithConfig(cc)
}

// ensureServer verifies the Ollama server is reachable, launching it
// first when auto_start is configured.
func ensureServer(ctx context.Context, client *ollama.Client, cfg *config.Config) error {
	var err error
	if cfg != nil && cfg.Ollama.AutoStart {
		err = client.EnsureRunning(ctx)
	} else {
		err = client.CheckRunning(ctx)
	}
	if err != nil {
		return fmt.Errorf("Ollama is not running. Start it with: ollama serve")
	}
	return nil
}

// readPipedStdin returns piped stdin content, or "" when stdin is a
// terminal or empty.
func readPipedStdin() string {
	stat, err := os.Stdin.Stat()
	if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
		return ""
	}

	reader := bufio.NewReader(os.Stdin)
	data, err := io.ReadAll(reader)
	if err != nil || len(data) == 0 {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// readFileForContext reads a file and formats it for inclusion in a
// prompt. Files larger than MaxFileSize are rejected.
func readFileForContext(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", fmt.Errorf("cannot access file: %w", err)
	}

	if info.Size() > MaxFileSize {
		return "", fmt.Errorf("file too large: %d bytes (max %d bytes)", info.Size(), MaxFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("\n--- File: %s ---\n", path))
	builder.Write(content)
	builder.WriteString("\n--- End of file ---\n")
	return builder.String(), nil
}
