// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// This package implements a client for the Ollama local LLM server,
// supporting health checks, model listing, and streaming and
// non-streaming chat completions.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - Message: Chat message with role and content
//   - ChatRequest: Request structure for chat completions
//   - ChatResponse: Response structure with message and metrics
//   - StreamReader: Line-by-line streaming response reader
//   - ClientError: Typed errors (timeout, unreachable, server status)
//
// # Usage
//
// Create a client and send a chat request:
//
//	client := ollama.NewClient()
//	resp, err := client.Chat(ctx, "llama3.2:latest", []ollama.Message{
//	    ollama.NewUserMessage("Hello"),
//	})
//
// For streaming responses:
//
//	err := client.ChatStream(ctx, model, messages, func(chunk ollama.StreamChunk) {
//	    fmt.Print(chunk.Content)
//	})
//
// # Streaming semantics
//
// The response body is a sequence of independently decodable JSON lines.
// Malformed lines are skipped, never fatal. Reading stops at the first
// line whose done flag is true, even if the server writes more. The
// overall stream deadline is enforced from connection start via context.
package ollama
