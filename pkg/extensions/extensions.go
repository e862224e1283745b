// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extensions defines the pluggable operator-auth and audit points
// of the civic service.
//
// Voter-facing routes are public. Operator routes (stats, retrieval
// preview, ingestion) go through an AuthProvider, and records that change
// campaign data (consent, callbacks, documents) are reported to an
// AuditLogger.
//
// # Defaults
//
// DefaultOptions wires NopAuthProvider, which admits every request as the
// local operator, and NopAuditLogger. Deployments reachable from the
// internet should set ADMIN_API_TOKEN so TokenAuthProvider is used.
//
// # Thread Safety
//
// All implementations must be safe for concurrent use.
package extensions

// ServiceOptions groups the extension points.
type ServiceOptions struct {
	// AuthProvider validates operator bearer tokens.
	AuthProvider AuthProvider

	// AuditLogger records changes to campaign data.
	AuditLogger AuditLogger
}

// DefaultOptions returns options backed by the no-op implementations.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider: &NopAuthProvider{},
		AuditLogger:  &NopAuditLogger{},
	}
}

// WithAuth returns a copy with the given AuthProvider.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}

// WithAudit returns a copy with the given AuditLogger.
func (opts ServiceOptions) WithAudit(logger AuditLogger) ServiceOptions {
	opts.AuditLogger = logger
	return opts
}

// Normalize returns opts with nil fields replaced by the no-op defaults.
func Normalize(opts ServiceOptions) ServiceOptions {
	if opts.AuthProvider == nil {
		opts.AuthProvider = &NopAuthProvider{}
	}
	if opts.AuditLogger == nil {
		opts.AuditLogger = &NopAuditLogger{}
	}
	return opts
}
