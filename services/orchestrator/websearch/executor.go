// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package websearch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// StatusError is returned for non-2xx provider responses.
type StatusError struct {
	Provider   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request failed with status %d", e.Provider, e.StatusCode)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

type executorConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// BreakerDelay is how long the breaker stays open before a trial request.
	BreakerDelay time.Duration
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		MaxRetries:   2,
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		BreakerDelay: 15 * time.Second,
	}
}

func shouldRetry(_ *http.Response, err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*StatusError); ok {
		return se.Retryable()
	}
	return true
}

// newHTTPExecutor combines a jittered backoff retry with a circuit breaker
// that opens after 5 failures in 10 calls.
//
//nolint:bodyclose // *http.Response is a type parameter here
func newHTTPExecutor(cfg executorConfig) failsafe.Executor[*http.Response] {
	retry := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(shouldRetry).
		Build()

	breaker := circuitbreaker.NewBuilder[*http.Response]().
		WithFailureThresholdRatio(5, 10).
		WithDelay(cfg.BreakerDelay).
		WithSuccessThreshold(1).
		HandleIf(func(_ *http.Response, err error) bool {
			return err != nil
		}).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			slog.Warn("Web search circuit breaker state change",
				"from_state", stateName(event.OldState), "to_state", stateName(event.NewState))
		}).
		Build()

	return failsafe.With[*http.Response](retry, breaker)
}

func stateName(state circuitbreaker.State) string {
	switch state {
	case circuitbreaker.ClosedState:
		return "closed"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	case circuitbreaker.OpenState:
		return "open"
	default:
		return "unknown"
	}
}

// doRequest runs build+Do through the executor. build is called per attempt
// so request bodies are fresh. Non-2xx responses are drained, closed and
// turned into a *StatusError. On success the caller owns the body.
func doRequest(ctx context.Context, executor failsafe.Executor[*http.Response], client *http.Client,
	provider string, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {

	return executor.WithContext(ctx).Get(func() (*http.Response, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s request failed: %w", provider, err)
		}
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, &StatusError{Provider: provider, StatusCode: resp.StatusCode}
		}
		return resp, nil
	})
}
