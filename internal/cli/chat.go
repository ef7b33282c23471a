// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-based chat command handler for hidebar CLI.
//
// Handles "hidebar chat", a plain REPL for terminals where the
// full-screen UI is unwanted (SSH sessions, script-friendly runs).
// It drives the same chat controller as the TUI; only the consumer
// differs: events print to stdout instead of a viewport.
//
// Command: chat
// Short:   Start a line-based chat session
//
// Slash commands inside the session:
//   /help          Show available commands
//   /clear         Clear conversation history
//   /model [name]  Show or switch the active model
//   /models        List installed models
//   /status        Show session status
//   /quit          Exit the session
//
// Examples:
//   hidebar chat
//   hidebar chat --model qwen2.5:3b
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterh/liner"

	"github.com/hidebarapp/hidebar/internal/chat"
	"github.com/hidebarapp/hidebar/internal/config"
	"github.com/hidebarapp/hidebar/internal/ollama"
	"github.com/hidebarapp/hidebar/internal/util"
)

// =============================================================================
// LINE EDITOR
// =============================================================================

// ChatCLI wraps liner to provide line editing with persistent history.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a line editor with history loaded from the config
// directory.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		// Fallback to temp directory if config dir unavailable
		configDir = os.TempDir()
	}
	historyFile := filepath.Join(configDir, "chat_history")

	cli := &ChatCLI{
		line:        line,
		historyFile: historyFile,
	}

	cli.LoadHistory()

	return cli
}

// Close saves history and releases the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// LoadHistory loads input history from the history file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// SaveHistory writes input history to the history file.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}

	// 0600: history may contain anything the user typed
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	c.line.WriteHistory(f)
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}

	return input, nil
}

// =============================================================================
// CHAT SESSION
// =============================================================================

// ChatSession holds the state of one interactive chat session. The
// controller owns the conversation; the session only consumes events.
type ChatSession struct {
	Controller *chat.Controller
	Client     *ollama.Client
	Events     chan chat.Event
	Quiet      bool
}

// HandleChatCommand handles "hidebar chat".
func HandleChatCommand(args Args, cfg *config.Config) error {
	client := newOllamaClient(cfg, args.Model)

	ctx := context.Background()
	if err := ensureServer(ctx, client, cfg); err != nil {
		return err
	}

	// Buffered so the streaming goroutine never blocks on a token; the
	// REPL drains the channel as fast as tokens print.
	events := make(chan chat.Event, 256)
	controller := chat.NewController(client, chat.SinkFunc(func(ev chat.Event) {
		events <- ev
	}), chat.Config{Model: client.DefaultModel()})

	session := &ChatSession{
		Controller: controller,
		Client:     client,
		Events:     events,
		Quiet:      args.Quiet,
	}

	cli := NewChatCLI()
	defer cli.Close()

	// Ctrl+C at the prompt surfaces as ErrPromptAborted through liner.
	// During streaming the terminal is in cooked mode, so the signal
	// arrives here and cancels the in-flight stream instead.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			controller.Cancel()
		}
	}()

	if !args.Quiet {
		printWelcome(session)
	}

	for {
		input, err := cli.ReadInput(PromptStyle.Render("you> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println()
				fmt.Println(InfoStyle.Render("Goodbye."))
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := handleSlashCommand(session, input); quit {
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			fmt.Println(InfoStyle.Render("Goodbye."))
			return nil
		}

		processMessage(session, input)
	}
}

// processMessage submits one message and prints the event stream until
// the response completes or fails.
func processMessage(session *ChatSession, input string) {
	if err := session.Controller.SubmitUserText(input); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("Error:"), err)
		return
	}

	// When stdout is a TTY, collect and render markdown at the end.
	// When piped, print tokens raw as they arrive.
	useMarkdown := IsStdoutTTY()

	fmt.Println() // Space before response

	for ev := range session.Events {
		switch ev := ev.(type) {
		case chat.TokenAppended:
			if !useMarkdown {
				fmt.Print(ev.Text)
			}

		case chat.StreamCompleted:
			if useMarkdown {
				displayResponse(ev.FullText)
			}
			fmt.Println() // Ensure newline after response

			if !session.Quiet {
				fmt.Println(StatsStyle.Render("[stats] " +
					util.IntToString(ev.CompletionTokens) + " tokens | " +
					util.FloatToString(ev.TokensPerSecond) + " tok/s"))
				fmt.Println()
			}
			return

		case chat.StreamFailed:
			fmt.Println()
			if ev.Kind == chat.FailCanceled {
				fmt.Println(WarningStyle.Render("Canceled."))
			} else {
				fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), ev.Message)
			}
			fmt.Println()
			return
		}
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes a slash command. Returns true when the
// session should end.
func handleSlashCommand(session *ChatSession, input string) bool {
	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])

	switch cmd {
	case "/help", "/h", "/?":
		printChatHelp()

	case "/clear", "/c":
		if err := session.Controller.Reset(); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("Error:"), err)
			break
		}
		fmt.Println(InfoStyle.Render("Conversation cleared."))

	case "/model", "/m":
		if len(parts) > 1 {
			session.Controller.SelectModel(parts[1])
			fmt.Printf("%s %s\n", InfoStyle.Render("Model switched to:"), CommandStyle.Render(parts[1]))
		} else {
			fmt.Printf("%s %s\n", InfoStyle.Render("Current model:"), CommandStyle.Render(session.Controller.ActiveModel()))
		}

	case "/models":
		listSessionModels(session)

	case "/status", "/s":
		fmt.Printf("%s %s\n", LabelStyle.Render("Server:"), ValueStyle.Render(session.Client.BaseURL()))
		fmt.Printf("%s %s\n", LabelStyle.Render("Model:"), ValueStyle.Render(session.Controller.ActiveModel()))
		fmt.Printf("%s %s\n", LabelStyle.Render("Turns:"), ValueStyle.Render(util.IntToString(len(session.Controller.History()))))

	case "/quit", "/q", "/exit":
		fmt.Println(InfoStyle.Render("Goodbye."))
		return true

	default:
		fmt.Printf("%s %s\n", WarningStyle.Render("Unknown command:"), cmd)
		fmt.Println(InfoStyle.Render("Type /help for available commands."))
	}

	return false
}

// printChatHelp prints the slash command reference.
func printChatHelp() {
	fmt.Println()
	fmt.Println(TitleStyle.Render("Commands"))
	commands := [][2]string{
		{"/help", "Show this help"},
		{"/clear", "Clear conversation history"},
		{"/model [name]", "Show or switch the active model"},
		{"/models", "List installed models"},
		{"/status", "Show session status"},
		{"/quit", "Exit the session"},
	}
	for _, c := range commands {
		fmt.Printf("  %s %s\n",
			CommandStyle.Render(fmt.Sprintf("%-14s", c[0])),
			InfoStyle.Render(c[1]))
	}
	fmt.Println()
}

// listSessionModels prints installed models inside the REPL.
func listSessionModels(session *ChatSession) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	models, err := session.Client.ListModels(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("Error:"), err)
		return
	}
	if len(models) == 0 {
		fmt.Println(WarningStyle.Render("No models installed. Try: ollama pull llama3.2"))
		return
	}

	active := session.Controller.ActiveModel()
	fmt.Println()
	for _, m := range models {
		marker := "  "
		if m.Name == active {
			marker = CommandStyle.Render("* ")
		}
		fmt.Printf("%s%s %s\n", marker, ValueStyle.Render(m.Name), InfoStyle.Render(m.FormatSize()))
	}
	fmt.Println()
}

// printWelcome prints the session banner.
func printWelcome(session *ChatSession) {
	fmt.Println()
	fmt.Println(TitleStyle.Render("hidebar chat"))
	fmt.Println(Separator())
	fmt.Printf("%s %s\n",
		InfoStyle.Render("Model:"),
		CommandStyle.Render(session.Controller.ActiveModel()))
	fmt.Printf("%s %s\n",
		InfoStyle.Render("Server:"),
		CommandStyle.Render(session.Client.BaseURL()))
	fmt.Println()
	fmt.Println(InfoStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Println()
}
