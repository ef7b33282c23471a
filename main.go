// hidebar - voice-friendly chat for a locally running Ollama server.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hidebarapp/hidebar/internal/audio"
	"github.com/hidebarapp/hidebar/internal/chat"
	"github.com/hidebarapp/hidebar/internal/cli"
	"github.com/hidebarapp/hidebar/internal/config"
	"github.com/hidebarapp/hidebar/internal/logging"
	"github.com/hidebarapp/hidebar/internal/ollama"
	"github.com/hidebarapp/hidebar/internal/speech"
	"github.com/hidebarapp/hidebar/internal/ui"
	"github.com/hidebarapp/hidebar/internal/ui/styles"
	"github.com/hidebarapp/hidebar/internal/voice"
)

// Version information (set at build time)
var (
	Version   = "0.4.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	// A .env file is a development convenience; real configuration
	// lives in ~/.hidebar/config.toml and the HIDEBAR_* environment.
	_ = godotenv.Load()

	cmd, args := cli.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		cfg = config.Default()
	}

	// Route to appropriate handler
	switch cmd {
	case cli.CmdTUI:
		runTUI(args, cfg)
	case cli.CmdAsk:
		exitOnError(cli.HandleAskCommand(args, cfg))
	case cli.CmdChat:
		exitOnError(cli.HandleChatCommand(args, cfg))
	case cli.CmdModels:
		exitOnError(cli.HandleModelsCommand(args, cfg))
	case cli.CmdConfig:
		exitOnError(cli.HandleConfigCommand(args, cfg))
	case cli.CmdVersion:
		cli.PrintVersion()
	case cli.CmdHelp:
		cli.PrintUsage()
	default:
		runTUI(args, cfg)
	}
}

// exitOnError prints a handler error and exits non-zero.
func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runTUI wires the chat controller, voice loop, and window together
// and runs the Bubble Tea program.
func runTUI(args cli.Args, cfg *config.Config) {
	// The TUI owns the terminal, so logs go to a file. A broken log
	// setup must not take the app down with it.
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	// CLI args override config
	if args.Model != "" {
		cfg.Ollama.Model = args.Model
	}
	if args.NoVoice {
		cfg.Voice.Enabled = false
	}

	logger.Info("starting hidebar",
		zap.String("version", Version),
		zap.String("model", cfg.Ollama.Model),
		zap.Bool("voice", cfg.Voice.Enabled))

	bridge := ui.NewBridge()

	ollamaClient := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Ollama.URL,
		DefaultModel: cfg.Ollama.Model,
	})

	controller := chat.NewController(ollamaClient, bridge.ChatSink(), chat.Config{
		Model:  cfg.Ollama.Model,
		Logger: logger.Named("chat"),
	})

	speechClient := speech.NewClientWithConfig(&speech.Config{
		BaseURL:  cfg.Speech.URL,
		APIKey:   cfg.Speech.APIKey,
		Language: cfg.Voice.Language,
	})

	// Voice is optional equipment. Without a microphone the app still
	// runs, it just types.
	var voiceLoop *voice.Loop
	device, devErr := audio.NewMicrophone(logger.Named("audio"))
	if devErr != nil {
		logger.Warn("microphone unavailable, voice input disabled", zap.Error(devErr))
	} else {
		voiceCfg := voice.DefaultConfig()
		voiceCfg.Logger = logger.Named("voice")
		voiceLoop = voice.NewLoop(device, speechClient, controller, bridge.VoiceSink(), voiceCfg)
	}

	m := ui.New(ui.Config{
		Controller: controller,
		Voice:      voiceLoop,
		Client:     ollamaClient,
		Theme:      styles.NewTheme(cfg.UI.Theme),
		AutoStart:  cfg.Ollama.AutoStart,
		ShowStats:  cfg.UI.ShowStats,
		Logger:     logger.Named("ui"),
	})

	p := ui.NewProgram(m)
	bridge.SetProgram(p)

	// Watch the config file and push changes into the running UI.
	// Editing ~/.hidebar/config.toml takes effect without a restart.
	if path, pathErr := config.ConfigPathTOML(); pathErr == nil {
		watcher, watchErr := config.NewWatcher(path, func(next *config.Config) {
			applyReloadedConfig(next, ollamaClient, controller, speechClient)
			bridge.Send(ui.ConfigReloadedMsg{Config: next})
		}, logger.Named("config"))
		if watchErr != nil {
			logger.Warn("config watcher unavailable", zap.Error(watchErr))
		} else if watchErr = watcher.Watch(); watchErr != nil {
			logger.Warn("config watch failed", zap.Error(watchErr))
			watcher.Close()
		} else {
			defer watcher.Close()
		}
	}

	if voiceLoop != nil && cfg.Voice.Enabled {
		voiceLoop.Start()
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running hidebar: %v\n", err)
		os.Exit(1)
	}

	// Let an in-flight capture wind down before the process exits
	if voiceLoop != nil {
		voiceLoop.Stop()
		voiceLoop.Wait()
	}
	if device != nil {
		device.Close()
	}

	logger.Info("hidebar stopped")
}

// applyReloadedConfig pushes live-settable fields from a reloaded
// config into the running clients, before the UI hears about it.
func applyReloadedConfig(next *config.Config, ollamaClient *ollama.Client, controller *chat.Controller, speechClient *speech.Client) {
	if next == nil {
		return
	}

	ollamaClient.SetBaseURL(next.Ollama.URL)
	if next.Ollama.Model != "" {
		ollamaClient.SetDefaultModel(next.Ollama.Model)
		controller.SelectModel(next.Ollama.Model)
	}
	speechClient.SetLanguage(next.Voice.Language)
}
