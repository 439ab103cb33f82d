// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package netmon

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/privgpt-studio/privgpt-tui/internal/model"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the last observed reachability of the backend.
type Status int

const (
	StatusUnknown Status = iota
	StatusOnline
	StatusOffline
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOnline:
		return "online"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// =============================================================================
// MONITOR
// =============================================================================

// DefaultInterval is how often reachability is probed.
const DefaultInterval = 5 * time.Second

// probeTimeout bounds a single reachability probe.
const probeTimeout = 3 * time.Second

// Probe reports whether the backend is reachable right now.
type Probe func(ctx context.Context) bool

// CatalogSource exposes the models endpoint for the default probe.
// *api.Client satisfies it.
type CatalogSource interface {
	Models(ctx context.Context) (model.Catalog, error)
}

// BackendProbe probes reachability through the models endpoint. The
// endpoint doubles as the catalog fetch, which is why its calls are rate
// limited on the API side as well.
func BackendProbe(src CatalogSource) Probe {
	return func(ctx context.Context) bool {
		ctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		_, err := src.Models(ctx)
		return err == nil
	}
}

// Report is the outcome of one reachability check.
type Report struct {
	Status  Status
	Changed bool

	// Downgraded is set when going offline forced the cloud selection onto
	// a local model. NewSelection carries the replacement.
	Downgraded   bool
	NewSelection model.Selection

	// NoLocalFallback is set when going offline found a cloud selection
	// and no local model to fall back to. The selection stays as it is.
	NoLocalFallback bool
}

// Monitor tracks reachability transitions. Reactions fire on the
// online-to-offline edge exactly once; staying offline is quiet, and
// coming back online is a pure status change.
type Monitor struct {
	mu      sync.Mutex
	probe   Probe
	limiter *rate.Limiter
	status  Status
}

// New creates a monitor using the given probe.
func New(probe Probe) *Monitor {
	return &Monitor{
		probe: probe,
		// One probe per interval with a little headroom for manual checks.
		limiter: rate.NewLimiter(rate.Every(DefaultInterval), 2),
		status:  StatusUnknown,
	}
}

// WithLimiter overrides the probe rate limit.
func (m *Monitor) WithLimiter(l *rate.Limiter) *Monitor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiter = l
	return m
}

// Status returns the last observed status.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Check runs one probe and folds the result against the current model
// selection and catalog. When the rate limit suppresses the probe, the
// previous status is reported unchanged.
func (m *Monitor) Check(ctx context.Context, sel model.Selection, cat model.Catalog) Report {
	m.mu.Lock()
	limiter := m.limiter
	prev := m.status
	m.mu.Unlock()

	if !limiter.Allow() {
		return Report{Status: prev}
	}

	online := m.probe(ctx)

	next := StatusOffline
	if online {
		next = StatusOnline
	}

	m.mu.Lock()
	m.status = next
	m.mu.Unlock()

	rep := Report{Status: next, Changed: next != prev}
	if !rep.Changed {
		return rep
	}

	if next == StatusOffline && sel.IsCloud() {
		if first := cat.FirstLocal(); first != "" {
			rep.Downgraded = true
			rep.NewSelection = model.Selection{Name: first, Type: model.ModelLocal}
		} else {
			rep.NoLocalFallback = true
		}
	}
	return rep
}

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// TickMsg asks the UI to run a reachability check.
type TickMsg struct {
	Time time.Time
}

// StatusMsg carries the outcome of a check back into the update loop.
type StatusMsg struct {
	Report Report
}

// TickCmd schedules the next reachability tick.
func TickCmd(interval time.Duration) tea.Cmd {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// HandleTick runs a check off the update loop and reschedules.
func (m *Monitor) HandleTick(ctx context.Context, sel model.Selection, cat model.Catalog, interval time.Duration) tea.Cmd {
	check := func() tea.Msg {
		return StatusMsg{Report: m.Check(ctx, sel, cat)}
	}
	return tea.Batch(check, TickCmd(interval))
}
