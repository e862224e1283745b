// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ttl

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCivic/services/orchestrator/session"
)

type countingSweeper struct {
	calls   atomic.Int32
	removed int
	panics  bool
}

func (c *countingSweeper) Sweep() int {
	c.calls.Add(1)
	if c.panics {
		panic("boom")
	}
	return c.removed
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(&countingSweeper{}, SchedulerConfig{})
	assert.Equal(t, DefaultInterval, s.config.Interval)
	assert.Equal(t, "sweep", s.config.Name)
	assert.Equal(t, "sessions", DefaultSchedulerConfig().Name)
}

func TestScheduler_SweepsOnStartAndTick(t *testing.T) {
	sw := &countingSweeper{removed: 2}
	s := NewScheduler(sw, SchedulerConfig{Interval: 10 * time.Millisecond, Name: "test"})

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()), "second start fails")
	assert.Eventually(t, func() bool { return sw.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	s.Stop()
	after := sw.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, sw.calls.Load(), "no sweeps after Stop returns")

	s.Stop()
	require.NoError(t, s.Start(context.Background()), "restart after stop")
	s.Stop()
}

func TestScheduler_ContextCancel(t *testing.T) {
	sw := &countingSweeper{}
	s := NewScheduler(sw, SchedulerConfig{Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, s.Start(ctx))
	assert.Eventually(t, func() bool { return sw.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	s.Stop()
}

func TestScheduler_RunNowRecoversPanic(t *testing.T) {
	s := NewScheduler(&countingSweeper{panics: true}, SchedulerConfig{})
	assert.NotPanics(t, func() {
		assert.Equal(t, 0, s.RunNow())
	})
}

func TestScheduler_SweepsSessionManager(t *testing.T) {
	m := session.NewManager(10, time.Millisecond, nil)
	m.GetOrCreate("a")
	m.GetOrCreate("b")
	time.Sleep(5 * time.Millisecond)

	s := NewScheduler(m, DefaultSchedulerConfig())
	assert.Equal(t, 2, s.RunNow())
	assert.Equal(t, 0, m.Len())
}
