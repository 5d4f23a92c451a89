// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the client-side state of a chat: the selected
// conversation, the sidebar summary list and the answer being streamed.
//
// # Key Types
//
//   - Controller: state machine driving one stream session at a time
//   - SummaryCache: capped, server-ordered list of conversation summaries
//   - Driver: minimal event loop for front-ends without a Bubble Tea program
//
// # Usage
//
// The controller follows the Bubble Tea update model. Operations return a
// tea.Cmd that performs the network work; its result comes back as a message
// that must be passed to Update on the same goroutine:
//
//	ctrl := session.New(session.FromAPI(client), session.Options{})
//	drv := session.NewDriver(ctrl)
//	_ = drv.Run(ctx, ctrl.Init())
//	cmd, err := ctrl.Submit("How long do refunds take?")
//	_ = drv.Run(ctx, cmd)
//
// Every asynchronous result carries the generation it was issued for.
// Selecting another conversation bumps the generation, so results of the
// previous session are received but change nothing.
package session
