// Package coordinator owns the periodic refresh loop for one AC system.
//
// It fetches raw state through the Neo API client, normalizes it into an
// immutable Snapshot, and fans the snapshot out to registered listeners.
// Transient failures are retried with capped exponential backoff while the
// last-known-good snapshot keeps serving reads; persistent failures stop the
// loop until externally remediated.
package coordinator

import (
	"context"

	"github.com/andreweacott/actron-neo-bridge/pkg/neo"
)

// API defines the Neo client surface the coordinator needs.
// This interface allows for dependency injection and testing with mocks.
type API interface {
	// ListSystems retrieves the AC systems attached to the account
	ListSystems(ctx context.Context) ([]neo.System, error)

	// FetchStatus retrieves the latest state document for a system
	FetchStatus(ctx context.Context, serial string) (*neo.StatusResponse, error)

	// SendCommand issues a write to a system
	SendCommand(ctx context.Context, serial string, cmd neo.Command) error
}
