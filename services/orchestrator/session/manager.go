// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session holds bounded, expiring in-memory conversation state.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianCivic/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/tools"
)

// Defaults for NewManager.
const (
	DefaultMaxSessions = 1000
	DefaultTimeout     = 60 * time.Minute
)

// Role is the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is one entry in a conversation.
type Turn struct {
	Role        Role           `json:"role"`
	Content     string         `json:"content"`
	ToolCalls   []tools.Call   `json:"tool_calls,omitempty"`
	ToolResults []tools.Result `json:"tool_results,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Session is an append-only conversation.
//
// Snapshots handed out by Manager are copies; mutate through the Manager.
type Session struct {
	ID         string    `json:"id"`
	Turns      []Turn    `json:"turns"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// History returns the last maxTurns user and assistant turns, oldest first.
func (s *Session) History(maxTurns int) []Turn {
	var out []Turn
	for i := len(s.Turns) - 1; i >= 0 && len(out) < maxTurns; i-- {
		if t := s.Turns[i]; t.Role == RoleUser || t.Role == RoleAssistant {
			out = append(out, t)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (s *Session) clone() *Session {
	c := *s
	c.Turns = append([]Turn(nil), s.Turns...)
	return &c
}

// turnLock serializes reasoning cycles on one session id. It lives apart
// from the session table so eviction never splits the lock.
type turnLock struct {
	mu   sync.Mutex
	refs int
	// session is the live session while a cycle holds or waits on the lock.
	// An evicted session is restored from here on the next Append.
	session *Session
}

// Manager owns every live session.
//
// # Description
//
// The table is bounded by MaxSessions and entries expire after Timeout of
// inactivity. Creation sweeps expired entries, then evicts least-recently
// active entries until there is room. Sessions with a cycle in flight are
// evicted only when every entry is busy.
//
// # Thread Safety
//
// One mutex guards the table. Lock additionally provides a per-session
// mutex so concurrent turns on the same id run one at a time.
type Manager struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	locks       map[string]*turnLock
	maxSessions int
	timeout     time.Duration
	now         func() time.Time
	metrics     *observability.CivicMetrics
}

// NewManager creates a Manager. Non-positive arguments use the defaults.
func NewManager(maxSessions int, timeout time.Duration, metrics *observability.CivicMetrics) *Manager {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		locks:       make(map[string]*turnLock),
		maxSessions: maxSessions,
		timeout:     timeout,
		now:         time.Now,
		metrics:     metrics,
	}
}

// GetOrCreate returns a snapshot of the session, creating it if needed.
// Existing sessions are touched.
func (m *Manager) GetOrCreate(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveLocked(id, m.now()).clone()
}

// Get returns a snapshot without touching the session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return s.clone(), true
}

// Touch marks the session active. It reports whether the session exists.
func (m *Manager) Touch(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if ok {
		s.LastActive = m.now()
	}
	return ok
}

// Append adds a turn and touches the session. A session that was evicted
// while a cycle held its lock is restored with its turns; any other missing
// session is created. The turn is always recorded.
func (m *Manager) Append(id string, turn Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s := m.liveLocked(id, now)
	if turn.Timestamp.IsZero() {
		turn.Timestamp = now
	}
	s.Turns = append(s.Turns, turn)
	s.LastActive = now
}

// Lock acquires the per-session turn lock and returns its release func.
// The session is created if it does not exist.
func (m *Manager) Lock(id string) func() {
	m.mu.Lock()
	tl, ok := m.locks[id]
	if !ok {
		tl = &turnLock{}
		m.locks[id] = tl
	}
	tl.refs++
	m.liveLocked(id, m.now())
	m.mu.Unlock()

	tl.mu.Lock()
	return func() {
		tl.mu.Unlock()
		m.mu.Lock()
		defer m.mu.Unlock()
		tl.refs--
		if tl.refs == 0 {
			delete(m.locks, id)
		}
	}
}

// Sweep removes expired sessions and returns how many were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(m.now())
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// liveLocked returns the table entry for id. A session evicted while a
// cycle holds its lock is restored; otherwise a new session is created.
func (m *Manager) liveLocked(id string, now time.Time) *Session {
	if s, ok := m.sessions[id]; ok {
		s.LastActive = now
		if tl := m.locks[id]; tl != nil {
			tl.session = s
		}
		return s
	}
	if tl := m.locks[id]; tl != nil && tl.session != nil {
		s := tl.session
		s.LastActive = now
		m.insertLocked(s, now)
		slog.Debug("Evicted session restored", "session_id", id, "turns", len(s.Turns))
		return s
	}
	s := &Session{ID: id, CreatedAt: now, LastActive: now}
	m.insertLocked(s, now)
	slog.Debug("Session created", "session_id", id, "active", len(m.sessions))
	return s
}

// insertLocked makes room and adds s to the table.
func (m *Manager) insertLocked(s *Session, now time.Time) {
	m.sweepLocked(now)
	for len(m.sessions) >= m.maxSessions {
		if !m.evictOldestLocked() {
			break
		}
	}
	m.sessions[s.ID] = s
	if tl := m.locks[s.ID]; tl != nil {
		tl.session = s
	}
	m.metrics.SetActiveSessions(len(m.sessions))
}

func (m *Manager) busy(id string) bool {
	_, ok := m.locks[id]
	return ok
}

func (m *Manager) sweepLocked(now time.Time) int {
	removed := 0
	for id, s := range m.sessions {
		if now.Sub(s.LastActive) > m.timeout && !m.busy(id) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("Expired sessions removed", "count", removed, "active", len(m.sessions))
		m.metrics.RecordSessionEviction("expired", removed)
		m.metrics.SetActiveSessions(len(m.sessions))
	}
	return removed
}

// evictOldestLocked removes the least-recently active idle session, or the
// least-recently active busy one when none is idle. It reports whether
// anything was removed.
func (m *Manager) evictOldestLocked() bool {
	var victim string
	var oldest time.Time
	found, foundIdle := false, false
	for id, s := range m.sessions {
		idle := !m.busy(id)
		switch {
		case !found, idle && !foundIdle, idle == foundIdle && s.LastActive.Before(oldest):
			victim, oldest = id, s.LastActive
			found, foundIdle = true, idle
		}
	}
	if !found {
		return false
	}
	delete(m.sessions, victim)
	m.metrics.RecordSessionEviction("capacity", 1)
	slog.Debug("Session evicted for capacity", "session_id", victim, "busy", !foundIdle)
	return true
}
