// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers for the hidebar application.
//
// # Key Functions
//
// String Utilities:
//   - StringWidth: Terminal column width of a string (CJK aware)
//   - TruncateWidth: Width-bounded truncation with ellipsis
//   - PadRight: Space padding to a display width
//
// Type Conversion:
//   - FloatToString, IntToString: Numeric to string conversion
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//
// # Usage
//
//	// Fit long text into a status bar
//	display := util.TruncateWidth(longText, 50)
//
//	// Write files atomically to prevent data loss
//	err := util.AtomicWriteFile(path, data, 0644)
package util
