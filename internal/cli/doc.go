// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the ragchat command tree.
//
// Commands are built with cobra. Every command shares one setup step that
// loads .env files and the configuration, applies flag overrides, starts
// logging and builds the service client.
//
// # Commands
//
//   - (none), tui: full-screen chat
//   - ask: one question, answer streamed to stdout
//   - chat: line-mode chat with slash commands
//   - conversations: list, create, show, rename, delete and export
//   - documents: list, show, put, rm and watch a directory
//   - health: service reachability
//   - config: show, path, keys, get, set and init
//   - devserver: in-memory chat service for local testing
//
// # Usage
//
//	os.Exit(cli.Execute(context.Background(), os.Args[1:]))
//
// ask and chat drive the same session controller as the TUI through a
// session.Driver. Ctrl+C while an answer streams stops that answer.
package cli
