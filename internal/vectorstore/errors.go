package vectorstore

import (
	"errors"
	"fmt"
)

// Sentinel errors for vector store operations.
var (
	// ErrNotFound is returned when a tenant, database, collection or
	// document does not exist where presence was expected.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is surfaced by the store on duplicate create
	// attempts. Get-or-create treats it as success.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// TransportError wraps connection-level failures (dial, timeout, broken
// pipe). It is terminal for the call; no retry happens inside the client.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("vectorstore: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamError carries a non-2xx response from the store.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("vectorstore: upstream status %d: %s", e.Status, e.Body)
}

// Is maps 404 responses onto ErrNotFound and 409 onto ErrAlreadyExists so
// callers can match with errors.Is without inspecting status codes.
func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == 404
	case ErrAlreadyExists:
		return e.Status == 409
	}
	return false
}
