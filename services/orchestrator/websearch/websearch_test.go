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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastExecutorConfig() executorConfig {
	return executorConfig{
		MaxRetries:   2,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		BreakerDelay: time.Minute,
	}
}

func TestTavilySearch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req tavilyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-key", req.APIKey)
		assert.Equal(t, 2, req.MaxResults)

		_ = json.NewEncoder(w).Encode(tavilyResponse{Results: []tavilyResult{
			{Title: "Example", URL: "https://example.com", Content: "snippet", RawContent: "full content", Score: 0.99},
			{Title: "Raw only", URL: "https://example.org", RawContent: "raw body"},
		}})
	}))
	defer server.Close()

	provider, err := NewTavilyProvider("test-key", server.URL, newHTTPExecutor(fastExecutorConfig()))
	require.NoError(t, err)

	results, err := provider.Search(context.Background(), "query", SearchOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "snippet", results[0].Content)
	assert.Equal(t, "raw body", results[1].Content)
}

func TestTavilySearch_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"title":"ok","url":"https://a.example","content":"c"}]}`))
	}))
	defer server.Close()

	provider, err := NewTavilyProvider("k", server.URL, newHTTPExecutor(fastExecutorConfig()))
	require.NoError(t, err)

	results, err := provider.Search(context.Background(), "q", SearchOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTavilySearch_DoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	provider, err := NewTavilyProvider("k", server.URL, newHTTPExecutor(fastExecutorConfig()))
	require.NoError(t, err)

	_, err = provider.Search(context.Background(), "q", SearchOptions{Limit: 1})
	require.Error(t, err)
	var statusErr *StatusError
	assert.True(t, errors.As(err, &statusErr))
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearxngSearch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "budget", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"results":[
			{"title":"a","url":"https://a.example","content":" one "},
			{"title":"b","url":"https://b.example","content":"two"},
			{"title":"c","url":"https://c.example","content":"three"}
		]}`))
	}))
	defer server.Close()

	provider, err := NewSearxngProvider(server.URL+"/", newHTTPExecutor(fastExecutorConfig()))
	require.NoError(t, err)

	results, err := provider.Search(context.Background(), "budget", SearchOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "one", results[0].Content)
}

func TestBraveSearch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "brave-key", r.Header.Get("X-Subscription-Token"))
		assert.Equal(t, "3", r.URL.Query().Get("count"))
		_, _ = w.Write([]byte(`{"web":{"results":[{"title":"t","url":"https://x.example","description":"d"}]}}`))
	}))
	defer server.Close()

	provider, err := NewBraveProvider("brave-key", server.URL, newHTTPExecutor(fastExecutorConfig()))
	require.NoError(t, err)

	results, err := provider.Search(context.Background(), "q", SearchOptions{Limit: 3})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d", results[0].Content)
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(Config{Provider: providerTavily})
	assert.Error(t, err, "tavily requires a key")

	p, err := NewProvider(Config{Provider: providerNone})
	assert.NoError(t, err)
	assert.Nil(t, p)

	_, err = NewProvider(Config{Provider: "bing"})
	assert.Error(t, err)

	p, err = NewProvider(Config{Provider: providerSearxng, APIURL: "http://searx.local"})
	require.NoError(t, err)
	assert.IsType(t, &SearxngProvider{}, p)
}

type countingProvider struct {
	calls atomic.Int32
	err   error
}

func (c *countingProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []Result{{Title: query, URL: "https://example.com"}}, nil
}

func TestCachedProvider(t *testing.T) {
	inner := &countingProvider{}
	cached := NewCachedProvider(inner, CacheConfig{RequestsPerSecond: 100, Burst: 10})

	for i := 0; i < 3; i++ {
		results, err := cached.Search(context.Background(), "Transit Bill", SearchOptions{Limit: 2})
		require.NoError(t, err)
		require.Len(t, results, 1)
	}
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, 1, cached.CachedQueries())

	_, err := cached.Search(context.Background(), "transit bill", SearchOptions{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load(), "limit is part of the key")
}

func TestCachedProvider_ErrorsNotCached(t *testing.T) {
	inner := &countingProvider{err: errors.New("down")}
	cached := NewCachedProvider(inner, CacheConfig{RequestsPerSecond: 100, Burst: 10})

	_, err := cached.Search(context.Background(), "q", SearchOptions{})
	assert.Error(t, err)
	_, err = cached.Search(context.Background(), "q", SearchOptions{})
	assert.Error(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestNewCachedProvider_NilInner(t *testing.T) {
	assert.Nil(t, NewCachedProvider(nil, DefaultCacheConfig()))
}

func TestIsOfficialURL(t *testing.T) {
	tests := []struct {
		url    string
		domain string
		want   bool
	}{
		{"https://janeforcouncil.com/issues", "janeforcouncil.com", true},
		{"https://www.janeforcouncil.com/issues", "janeforcouncil.com", true},
		{"https://news.example.com/janeforcouncil.com", "janeforcouncil.com", false},
		{"https://notjaneforcouncil.com", "janeforcouncil.com", false},
		{"https://janeforcouncil.com", "", false},
		{"::bad", "janeforcouncil.com", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, IsOfficialURL(tc.url, tc.domain), tc.url)
	}
}
