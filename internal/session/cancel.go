// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
)

// cancelManager holds the cancel function of the stream request for one
// generation. Close may run on another goroutine than Update, hence the mutex.
type cancelManager struct {
	mu         sync.Mutex
	generation uint64
	cancelFunc context.CancelFunc
}

func newCancelManager() *cancelManager {
	return &cancelManager{}
}

// set stores fn for gen, cancelling whatever was stored before.
func (cm *cancelManager) set(gen uint64, fn context.CancelFunc) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc != nil {
		cm.cancelFunc()
	}
	cm.generation = gen
	cm.cancelFunc = fn
}

// current returns the generation whose request is held, and whether one is.
func (cm *cancelManager) current() (uint64, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.generation, cm.cancelFunc != nil
}

// cancel aborts the held request and forgets it. Safe to call repeatedly.
func (cm *cancelManager) cancel() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc != nil {
		cm.cancelFunc()
		cm.cancelFunc = nil
	}
}

// clear releases the held context once its request has finished.
func (cm *cancelManager) clear() {
	cm.cancel()
}
