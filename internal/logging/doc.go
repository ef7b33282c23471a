// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the application logger.
//
// All log output goes to a JSON file, by default ~/.hidebar/hidebar.log.
// The terminal UI owns stdout and stderr, so nothing may ever log there;
// even zap's own error output is routed to the file.
//
// # Usage
//
//	logger, err := logging.New(cfg.Logging)
//	if err != nil {
//	    logger = zap.NewNop()
//	}
//	defer logger.Sync()
//
// Library packages accept a *zap.Logger in their configs and default to
// zap.NewNop() when given none, so the file logger is wired exactly once,
// in main.
package logging
