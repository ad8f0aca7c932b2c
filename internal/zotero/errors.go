// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package zotero

import "errors"

// Sentinel errors for the gateway contract. Callers branch with errors.Is
// rather than inspecting transport details.
var (
	// ErrNotFound marks a missing item or collection.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a version-token mismatch that survived the single
	// refetch-and-retry a write is allowed.
	ErrConflict = errors.New("version conflict")

	// ErrUnauthorized marks an authentication or permission failure on
	// the remote service.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrReadOnly marks a write attempted against a gateway that does not
	// support writes (offline mirror). It is an unsupported operation,
	// not a transient failure.
	ErrReadOnly = errors.New("gateway is read-only")

	// errPrecondition is the internal marker for a single HTTP 412. The
	// client retries once before surfacing ErrConflict.
	errPrecondition = errors.New("precondition failed")
)
