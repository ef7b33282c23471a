// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers for the hidebar application.
package util

import "strconv"

// FloatToString converts a float64 to string with 2 decimal places.
// Used for the tokens-per-second statistics line.
func FloatToString(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// IntToString converts an int to string.
func IntToString(i int) string {
	return strconv.Itoa(i)
}
