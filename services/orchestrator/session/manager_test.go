// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCivic/services/orchestrator/observability"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(maxSessions int, timeout time.Duration) (*Manager, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	m := NewManager(maxSessions, timeout, nil)
	m.now = clock.Now
	return m, clock
}

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(0, 0, nil)
	assert.Equal(t, DefaultMaxSessions, m.maxSessions)
	assert.Equal(t, DefaultTimeout, m.timeout)
}

func TestGetOrCreate_ReturnsSameSession(t *testing.T) {
	m, clock := newTestManager(10, time.Hour)

	first := m.GetOrCreate("a")
	clock.Advance(time.Minute)
	second := m.GetOrCreate("a")

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.LastActive.After(first.LastActive))
	assert.Equal(t, 1, m.Len())
}

func TestGetOrCreate_BoundEvictsLeastRecentlyActive(t *testing.T) {
	m, clock := newTestManager(3, time.Hour)

	for _, id := range []string{"a", "b", "c"} {
		m.GetOrCreate(id)
		clock.Advance(time.Second)
	}
	m.Touch("a")
	clock.Advance(time.Second)

	m.GetOrCreate("d")

	assert.Equal(t, 3, m.Len())
	_, hasB := m.Get("b")
	assert.False(t, hasB, "b was least recently active")
	for _, id := range []string{"a", "c", "d"} {
		_, ok := m.Get(id)
		assert.True(t, ok, id)
	}
}

func TestGetOrCreate_NeverExceedsMax(t *testing.T) {
	m, clock := newTestManager(5, time.Hour)
	for i := 0; i < 50; i++ {
		m.GetOrCreate(fmt.Sprintf("s-%d", i))
		clock.Advance(time.Millisecond)
		require.LessOrEqual(t, m.Len(), 5)
	}
}

func TestGetOrCreate_SweepsExpiredFirst(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	m, clock := newTestManager(2, 10*time.Minute)
	m.metrics = metrics

	m.GetOrCreate("old")
	clock.Advance(5 * time.Minute)
	m.GetOrCreate("recent")
	clock.Advance(6 * time.Minute)

	m.GetOrCreate("new")

	_, hasOld := m.Get("old")
	_, hasRecent := m.Get("recent")
	assert.False(t, hasOld)
	assert.True(t, hasRecent, "expiry made room, no capacity eviction needed")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionEvictionsTotal.WithLabelValues("expired")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.SessionEvictionsTotal.WithLabelValues("capacity")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ActiveSessions))
}

func TestSweep(t *testing.T) {
	m, clock := newTestManager(10, time.Minute)
	m.GetOrCreate("a")
	m.GetOrCreate("b")
	clock.Advance(30 * time.Second)
	m.Touch("b")
	clock.Advance(45 * time.Second)

	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 0, m.Sweep())
}

func TestAppendAndHistory(t *testing.T) {
	m, _ := newTestManager(10, time.Hour)
	m.GetOrCreate("a")

	for i := 0; i < 8; i++ {
		m.Append("a", Turn{Role: RoleUser, Content: fmt.Sprintf("q%d", i)})
		m.Append("a", Turn{Role: RoleTool, Content: "tool output"})
		m.Append("a", Turn{Role: RoleAssistant, Content: fmt.Sprintf("a%d", i)})
	}

	m.Append("missing", Turn{Role: RoleUser, Content: "late"})
	created, ok := m.Get("missing")
	require.True(t, ok, "append records the turn even for an unknown id")
	require.Len(t, created.Turns, 1)
	assert.Equal(t, "late", created.Turns[0].Content)

	s, ok := m.Get("a")
	require.True(t, ok)
	assert.Len(t, s.Turns, 24)
	assert.False(t, s.Turns[0].Timestamp.IsZero())

	history := s.History(10)
	require.Len(t, history, 10)
	assert.Equal(t, "q3", history[0].Content)
	assert.Equal(t, "a7", history[9].Content)
	for _, turn := range history {
		assert.NotEqual(t, RoleTool, turn.Role)
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	m, _ := newTestManager(10, time.Hour)
	snap := m.GetOrCreate("a")
	snap.Turns = append(snap.Turns, Turn{Role: RoleUser, Content: "sneaky"})

	fresh, _ := m.Get("a")
	assert.Empty(t, fresh.Turns)
}

func TestLock_SerializesSameSession(t *testing.T) {
	m := NewManager(10, time.Hour, nil)

	var inFlight, maxInFlight atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("shared")
			defer unlock()
			n := inFlight.Add(1)
			if n > maxInFlight.Load() {
				maxInFlight.Store(n)
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestEviction_PrefersIdleSessions(t *testing.T) {
	m, clock := newTestManager(2, time.Hour)

	unlock := m.Lock("busy")
	defer unlock()
	clock.Advance(time.Second)
	m.GetOrCreate("idle")
	clock.Advance(time.Second)
	m.GetOrCreate("newcomer")

	_, busyKept := m.Get("busy")
	_, idleKept := m.Get("idle")
	assert.True(t, busyKept, "oldest session is mid-turn and is skipped")
	assert.False(t, idleKept)
	assert.Equal(t, 2, m.Len())
}

func TestEviction_InFlightTurnsSurvive(t *testing.T) {
	m, clock := newTestManager(1, time.Hour)

	unlock := m.Lock("s1")
	m.Append("s1", Turn{Role: RoleUser, Content: "question"})

	// Another visitor arrives mid-turn; every entry is busy so s1 goes.
	clock.Advance(time.Second)
	m.GetOrCreate("other-visitor")
	_, present := m.Get("s1")
	require.False(t, present)
	assert.Equal(t, 1, m.Len())

	m.Append("s1", Turn{Role: RoleAssistant, Content: "answer"})
	unlock()

	s, ok := m.Get("s1")
	require.True(t, ok)
	require.Len(t, s.Turns, 2)
	assert.Equal(t, "question", s.Turns[0].Content)
	assert.Equal(t, "answer", s.Turns[1].Content)
	assert.Equal(t, 1, m.Len())
}

func TestLock_SerializesAcrossEviction(t *testing.T) {
	m, _ := newTestManager(1, time.Hour)

	unlock := m.Lock("s1")
	m.GetOrCreate("other-visitor")

	acquired := make(chan struct{})
	go func() {
		release := m.Lock("s1")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second turn ran while the first still held the session")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second turn never acquired the lock")
	}
}

func TestGetOrCreate_EmptyIDAtCapacity(t *testing.T) {
	m, clock := newTestManager(1, time.Hour)
	m.GetOrCreate("")
	clock.Advance(time.Second)

	done := make(chan struct{})
	go func() {
		m.GetOrCreate("next")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("GetOrCreate did not return")
	}
	_, ok := m.Get("")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())
}

func TestConcurrentGetOrCreate(t *testing.T) {
	m := NewManager(20, time.Hour, nil)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s-%d", i%30)
			m.GetOrCreate(id)
			m.Append(id, Turn{Role: RoleUser, Content: "hi"})
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, m.Len(), 20)
}
