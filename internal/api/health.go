// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus is the service health response.
type HealthStatus struct {
	Status  string        `json:"status"`
	Latency time.Duration `json:"-"`
}

// OK reports whether the service declared itself healthy.
func (h HealthStatus) OK() bool {
	return h.Status == "ok"
}

// Health checks that the service is reachable and measures the round trip.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	var out HealthStatus
	if err := c.doJSON(ctx, http.MethodGet, "/health/", nil, &out); err != nil {
		return nil, err
	}
	out.Latency = time.Since(start)
	return &out, nil
}
