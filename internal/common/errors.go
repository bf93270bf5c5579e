// Package common defines shared constants and sentinel errors used across the
// worker and page layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Capability / permission failures. These are expected conditions the
	// caller must branch on, not crashes.
	ErrNotSupported     = errors.New("not supported")
	ErrPermissionDenied = errors.New("permission denied")

	// Messaging errors.
	ErrNoClients      = errors.New("no clients connected")
	ErrUnknownMessage = errors.New("unknown message type")

	// Sync errors.
	ErrUnknownTag = errors.New("unknown sync tag")
)
