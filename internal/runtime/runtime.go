// Package runtime defines the interface to the external worker runtime.
// This abstraction allows the control plane to be independent of a specific
// container engine (e.g., Docker, Podman) and to be tested without one.
package runtime

import (
	"context"
	"errors"
)

// Handle is an opaque reference to a launched worker (e.g. a container id).
type Handle string

// State reports what the runtime knows about a handle.
type State struct {
	Running bool
}

// LaunchSpec describes one worker launch.
type LaunchSpec struct {
	// Image names the worker image to run.
	Image string
	// HostDir is mounted read-write at MountDir inside the worker.
	HostDir  string
	MountDir string
	// Args are passed to the worker entrypoint verbatim.
	Args []string
}

// ErrUnknownHandle is returned by Inspect when the runtime has no record of
// the handle. Callers treat it differently from a transport failure: an
// unknown handle means the persisted handle marker is stale.
var ErrUnknownHandle = errors.New("unknown worker handle")

// Runtime launches, inspects and reclaims opaque worker handles. The control
// plane does not own worker lifetime beyond issuing these calls.
type Runtime interface {
	// Launch starts a detached worker and returns its handle.
	Launch(ctx context.Context, spec LaunchSpec) (Handle, error)

	// Inspect reports whether the worker behind the handle is alive.
	// Returns ErrUnknownHandle when the runtime has no such handle.
	Inspect(ctx context.Context, h Handle) (State, error)

	// Stop terminates a running worker.
	Stop(ctx context.Context, h Handle) error

	// Remove releases the stopped worker's resources.
	Remove(ctx context.Context, h Handle) error
}
