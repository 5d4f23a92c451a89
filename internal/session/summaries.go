// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "github.com/jeranaias/ragchat/internal/model"

// DefaultSummaryLimit is the number of summaries the service lists.
const DefaultSummaryLimit = 5

// SummaryCache holds the ordered list the sidebar displays. The server
// defines the order; local inserts are provisional until the next Refresh.
//
// SummaryCache is owned by the controller and is not safe for concurrent use.
type SummaryCache struct {
	limit       int
	items       []model.ConversationSummary
	provisional bool
	stale       bool
}

// NewSummaryCache creates an empty cache holding at most limit entries.
// A non-positive limit selects DefaultSummaryLimit.
func NewSummaryCache(limit int) *SummaryCache {
	if limit <= 0 {
		limit = DefaultSummaryLimit
	}
	return &SummaryCache{limit: limit, stale: true}
}

// Limit returns the cap N.
func (c *SummaryCache) Limit() int {
	return c.limit
}

// Refresh replaces the cache with a server list, keeping the first entry
// for any repeated id and at most Limit entries.
func (c *SummaryCache) Refresh(list []model.ConversationSummary) {
	items := make([]model.ConversationSummary, 0, min(len(list), c.limit))
	seen := make(map[string]bool, len(list))
	for _, s := range list {
		if len(items) == c.limit {
			break
		}
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		items = append(items, s.Clone())
	}
	c.items = items
	c.provisional = false
	c.stale = false
}

// InsertOptimistic prepends s, drops any older entry with the same id and
// truncates to Limit.
func (c *SummaryCache) InsertOptimistic(s model.ConversationSummary) {
	items := make([]model.ConversationSummary, 0, c.limit)
	items = append(items, s.Clone())
	for _, existing := range c.items {
		if len(items) == c.limit {
			break
		}
		if existing.ID != s.ID {
			items = append(items, existing)
		}
	}
	c.items = items
	c.provisional = true
}

// Invalidate marks the cache stale. The caller follows up with a Refresh
// from the server.
func (c *SummaryCache) Invalidate() {
	c.stale = true
}

// Stale reports whether the cache awaits a Refresh.
func (c *SummaryCache) Stale() bool {
	return c.stale
}

// Provisional reports whether an optimistic insert happened since the last
// Refresh.
func (c *SummaryCache) Provisional() bool {
	return c.provisional
}

// Items returns a copy of the cached summaries.
func (c *SummaryCache) Items() []model.ConversationSummary {
	out := make([]model.ConversationSummary, len(c.items))
	for i, s := range c.items {
		out[i] = s.Clone()
	}
	return out
}
