// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Driver runs controller commands without a Bubble Tea program. Commands
// execute concurrently; their messages are applied to the controller one at
// a time on the goroutine that called Run.
type Driver struct {
	ctrl  *Controller
	inbox chan tea.Msg
}

// NewDriver creates a driver for ctrl.
func NewDriver(ctrl *Controller) *Driver {
	return &Driver{ctrl: ctrl, inbox: make(chan tea.Msg, 8)}
}

// Send queues msg for the running loop, typically AbortMsg from a signal
// handler. It never blocks; the message is dropped when the queue is full.
func (d *Driver) Send(msg tea.Msg) {
	select {
	case d.inbox <- msg:
	default:
	}
}

// Run executes cmd and every command that follows from it, and returns once
// none are left or ctx is done.
func (d *Driver) Run(ctx context.Context, cmd tea.Cmd) error {
	results := make(chan tea.Msg)
	done := make(chan struct{})
	defer close(done)

	pending := 0
	spawn := func(cmd tea.Cmd) {
		if cmd == nil {
			return
		}
		pending++
		go func() {
			msg := cmd()
			select {
			case results <- msg:
			case <-done:
			}
		}()
	}

	dispatch := func(msg tea.Msg) {
		switch msg := msg.(type) {
		case nil:
		case tea.BatchMsg:
			for _, c := range msg {
				spawn(c)
			}
		default:
			spawn(d.ctrl.Update(msg))
		}
	}

	spawn(cmd)
	for pending > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-d.inbox:
			dispatch(msg)
		case msg := <-results:
			pending--
			dispatch(msg)
		}
	}
	return nil
}
