// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists consent, interaction logs, callback requests,
// question tallies, volunteer sign-ups and donation intents in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AleutianAI/AleutianCivic/services/orchestrator/tools"
)

//go:embed schema.sql
var schemaSQL string

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const topQuestionsLimit = 10

// Interaction is one logged question/answer exchange.
type Interaction struct {
	UserID       string
	SessionID    string
	Query        string
	Response     string
	Confidence   float64
	Sources      []string
	ConsentGiven bool
}

// CallbackRequest asks the campaign to phone a voter.
type CallbackRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Email    string `json:"email,omitempty" binding:"omitempty,email"`
	Question string `json:"question" binding:"required"`
}

// QuestionCount is one row of the question tally.
type QuestionCount struct {
	Question string `json:"question"`
	Count    int    `json:"count"`
}

// Stats summarizes stored activity.
type Stats struct {
	TotalInteractions int             `json:"total_interactions"`
	PendingCallbacks  int             `json:"pending_callbacks"`
	TopQuestions      []QuestionCount `json:"top_questions"`
}

// Store wraps the SQLite handle.
//
// # Thread Safety
//
// Safe for concurrent use. The pool is limited to one connection, which
// serializes writers.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ tools.VolunteerRegistry = (*Store)(nil)
	_ tools.DonationLedger    = (*Store)(nil)
)

// Open opens (creating if needed) the database at path and applies the
// schema. Pass MemoryPath for a throwaway database.
func Open(path string) (*Store, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	slog.Info("Database initialized", "path", path)
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// =============================================================================
// Consent
// =============================================================================

// SetConsent records the user's logging consent. The original consent date
// is kept on update.
func (s *Store) SetConsent(ctx context.Context, userID string, given bool) error {
	now := s.timestamp()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_consent (user_id, consent_given, consent_date, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			consent_given = excluded.consent_given,
			updated_at = excluded.updated_at`,
		userID, given, now, now)
	if err != nil {
		return fmt.Errorf("failed to update consent: %w", err)
	}
	return nil
}

// Consent reports whether the user has consented. Unknown users have not.
func (s *Store) Consent(ctx context.Context, userID string) (bool, error) {
	var given bool
	err := s.db.QueryRowContext(ctx,
		`SELECT consent_given FROM user_consent WHERE user_id = ?`, userID).Scan(&given)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read consent: %w", err)
	}
	return given, nil
}

// =============================================================================
// Interactions
// =============================================================================

// LogInteraction stores the exchange and bumps the question tally in one
// transaction.
func (s *Store) LogInteraction(ctx context.Context, in Interaction) error {
	sources := in.Sources
	if sources == nil {
		sources = []string{}
	}
	encoded, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("failed to encode sources: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.timestamp()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO interactions (user_id, session_id, query, response, confidence, sources, timestamp, consent_given)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.UserID, in.SessionID, in.Query, in.Response, in.Confidence, string(encoded), now, in.ConsentGiven); err != nil {
		return fmt.Errorf("failed to log interaction: %w", err)
	}
	if err := tallyQuestion(ctx, tx, in.Query, now); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordQuestion bumps the tally for a question without storing the answer.
func (s *Store) RecordQuestion(ctx context.Context, question string) error {
	return tallyQuestion(ctx, s.db, question, s.timestamp())
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func tallyQuestion(ctx context.Context, db execer, question, now string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO new_questions (question, count, first_asked, last_asked)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(question) DO UPDATE SET
			count = count + 1,
			last_asked = excluded.last_asked`,
		question, now, now)
	if err != nil {
		return fmt.Errorf("failed to tally question: %w", err)
	}
	return nil
}

// =============================================================================
// Callbacks
// =============================================================================

// LogCallback stores a pending callback request and returns its id.
func (s *Store) LogCallback(ctx context.Context, req CallbackRequest) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO callback_requests (user_id, name, phone, email, question, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		req.UserID, req.Name, req.Phone, req.Email, req.Question, s.timestamp())
	if err != nil {
		return 0, fmt.Errorf("failed to log callback request: %w", err)
	}
	return res.LastInsertId()
}

// =============================================================================
// Tool records
// =============================================================================

// SaveVolunteer stores a volunteer sign-up.
func (s *Store) SaveVolunteer(ctx context.Context, v tools.Volunteer) error {
	interests, err := json.Marshal(v.Interests)
	if err != nil {
		return fmt.Errorf("failed to encode interests: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO volunteers (id, name, email, phone, zip_code, interests, availability, status, registered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Name, v.Email, v.Phone, v.ZipCode, string(interests), v.Availability, v.Status,
		v.RegisteredAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save volunteer: %w", err)
	}
	return nil
}

// SaveDonationIntent stores a donation intent. No payment data is kept.
func (s *Store) SaveDonationIntent(ctx context.Context, d tools.DonationIntent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO donation_intents (id, amount, donor_name, donor_email, employer, occupation, recurring, payment_url, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Amount, d.DonorName, d.DonorEmail, d.Employer, d.Occupation, d.Recurring, d.PaymentURL, d.Status,
		d.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save donation intent: %w", err)
	}
	return nil
}

// =============================================================================
// Stats
// =============================================================================

// Stats returns totals and the most frequently asked questions.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{TopQuestions: []QuestionCount{}}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM interactions`).Scan(&stats.TotalInteractions); err != nil {
		return stats, fmt.Errorf("failed to count interactions: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM callback_requests WHERE status = 'pending'`).Scan(&stats.PendingCallbacks); err != nil {
		return stats, fmt.Errorf("failed to count callbacks: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT question, count FROM new_questions ORDER BY count DESC, last_asked DESC LIMIT ?`, topQuestionsLimit)
	if err != nil {
		return stats, fmt.Errorf("failed to query top questions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var qc QuestionCount
		if err := rows.Scan(&qc.Question, &qc.Count); err != nil {
			return stats, fmt.Errorf("failed to scan question: %w", err)
		}
		stats.TopQuestions = append(stats.TopQuestions, qc)
	}
	return stats, rows.Err()
}
