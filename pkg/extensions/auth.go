// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"crypto/subtle"
	"errors"
)

// ErrUnauthorized is returned when a token is missing or invalid.
var ErrUnauthorized = errors.New("unauthorized")

// RoleOperator may read stats, preview retrieval and ingest documents.
const RoleOperator = "operator"

// AuthInfo identifies an authenticated caller.
type AuthInfo struct {
	// UserID is the caller's stable identifier.
	UserID string

	// Roles lists granted roles, e.g. RoleOperator.
	Roles []string
}

// HasRole reports whether the caller holds role. A nil AuthInfo holds none.
func (a *AuthInfo) HasRole(role string) bool {
	if a == nil {
		return false
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates bearer tokens.
//
// # Description
//
// Validate returns the caller's identity, or an error wrapping
// ErrUnauthorized when the token is rejected. The token may be empty when
// the request carried no Authorization header.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type AuthProvider interface {
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider admits every request as the local operator. It is meant
// for single-operator deployments behind a private network.
type NopAuthProvider struct{}

// Validate ignores the token.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{UserID: "local-operator", Roles: []string{RoleOperator}}, nil
}

// TokenAuthProvider admits requests that present one shared operator token.
type TokenAuthProvider struct {
	token []byte
}

// NewTokenAuthProvider creates a provider for the given token. An empty
// token is rejected so a misconfiguration cannot open the operator routes.
func NewTokenAuthProvider(token string) (*TokenAuthProvider, error) {
	if token == "" {
		return nil, errors.New("operator token must not be empty")
	}
	return &TokenAuthProvider{token: []byte(token)}, nil
}

// Validate compares the token in constant time.
func (p *TokenAuthProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	if token == "" || subtle.ConstantTimeCompare([]byte(token), p.token) != 1 {
		return nil, ErrUnauthorized
	}
	return &AuthInfo{UserID: "operator", Roles: []string{RoleOperator}}, nil
}

var (
	_ AuthProvider = (*NopAuthProvider)(nil)
	_ AuthProvider = (*TokenAuthProvider)(nil)
)
