// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration command handler for hidebar CLI.
//
// Handles "hidebar config" with subcommands:
//   show   Print the effective configuration (default)
//   path   Print the config file path
//   init   Write a default config file
package cli

import (
	"fmt"
	"os"

	"github.com/hidebarapp/hidebar/internal/config"
)

// HandleConfigCommand handles "hidebar config".
func HandleConfigCommand(args Args, cfg *config.Config) error {
	switch args.Subcommand {
	case "", "show":
		return handleConfigShow(cfg)
	case "path":
		return handleConfigPath()
	case "init":
		return handleConfigInit()
	default:
		return fmt.Errorf("unknown config subcommand: %s (expected show, path, or init)", args.Subcommand)
	}
}

// handleConfigShow prints the effective configuration. The speech API
// key is redacted by Config.String.
func handleConfigShow(cfg *config.Config) error {
	if cfg == nil {
		cfg = config.Default()
	}

	path, err := config.ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			fmt.Printf("%s %s\n", LabelStyle.Render("Config file:"), ValueStyle.Render(path))
		} else {
			fmt.Printf("%s %s\n", LabelStyle.Render("Config file:"), InfoStyle.Render(path+" (not created yet)"))
		}
	}

	fmt.Println(cfg.String())
	return nil
}

// handleConfigPath prints the config file path and nothing else, so
// scripts can use it directly.
func handleConfigPath() error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return fmt.Errorf("cannot determine config path: %w", err)
	}
	fmt.Println(path)
	return nil
}

// handleConfigInit writes a default config file, refusing to clobber
// an existing one.
func handleConfigInit() error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return fmt.Errorf("cannot determine config path: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := config.SaveTOML(config.Default(), path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("%s %s\n", SuccessStyle.Render("Created"), ValueStyle.Render(path))
	fmt.Println(InfoStyle.Render("Edit it and restart hidebar, or just relaunch: the TUI reloads it live."))
	return nil
}
