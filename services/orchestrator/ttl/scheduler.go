// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ttl runs periodic expiry sweeps in the background.
package ttl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is how often sweeps run when no interval is configured.
const DefaultInterval = 5 * time.Minute

// Sweeper removes expired entries and reports how many it removed.
// session.Manager implements it.
type Sweeper interface {
	Sweep() int
}

// SchedulerConfig holds configuration for the sweep scheduler.
//
// # Fields
//
//   - Interval: How often to sweep. Default: 5 minutes.
//   - Name: Label used in logs, e.g. "sessions".
type SchedulerConfig struct {
	Interval time.Duration
	Name     string
}

// DefaultSchedulerConfig returns a five-minute session sweep.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{Interval: DefaultInterval, Name: "sessions"}
}

// Scheduler runs a Sweeper on a ticker.
//
// # Description
//
// Manages the lifecycle of a background goroutine using the ticker + done
// channel pattern. A sweep runs immediately on Start and then once per
// Interval until Stop is called or the context is cancelled.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Scheduler struct {
	sweeper Sweeper
	config  SchedulerConfig
	done    chan struct{}
	stopped chan struct{}
	mu      sync.Mutex
	running bool
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(sweeper Sweeper, config SchedulerConfig) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Name == "" {
		config.Name = "sweep"
	}
	return &Scheduler{sweeper: sweeper, config: config}
}

// Start launches the background loop.
//
// # Outputs
//
//   - error: Non-nil if the scheduler is already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})

	slog.Info("Sweep scheduler starting", "name", s.config.Name, "interval", s.config.Interval.String())
	go s.runLoop(ctx, s.done, s.stopped)
	return nil
}

// Stop signals the loop to exit and waits for it. Stopping a stopped
// scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.done)
	stopped := s.stopped
	s.mu.Unlock()

	<-stopped
	slog.Info("Sweep scheduler stopped", "name", s.config.Name)
}

// RunNow sweeps synchronously and returns the number removed.
func (s *Scheduler) RunNow() int {
	return s.sweep()
}

func (s *Scheduler) runLoop(ctx context.Context, done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.sweep()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Sweep scheduler stopped (context cancelled)", "name", s.config.Name)
			return
		case <-done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Scheduler) sweep() (removed int) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Sweep panicked", "name", s.config.Name, "panic", r)
			removed = 0
		}
	}()
	start := time.Now()
	removed = s.sweeper.Sweep()
	if removed > 0 {
		slog.Info("Sweep completed", "name", s.config.Name, "removed", removed,
			"duration_ms", time.Since(start).Milliseconds())
	} else {
		slog.Debug("Sweep completed (nothing expired)", "name", s.config.Name)
	}
	return removed
}
