// Package memory provides an in-memory worker runtime for tests and local
// development.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hhsearch/crawlcontrol/internal/runtime"
)

// Worker records one launched worker.
type Worker struct {
	Spec    runtime.LaunchSpec
	Running bool
}

// Runtime tracks launched workers in a map. Failure injection fields let
// tests exercise the control plane's error paths.
type Runtime struct {
	mu      sync.Mutex
	workers map[runtime.Handle]*Worker

	LaunchErr  error
	InspectErr error
	StopErr    error
	RemoveErr  error

	stopCalls   int
	removeCalls int
}

// New returns an empty memory Runtime.
func New() *Runtime {
	return &Runtime{workers: make(map[runtime.Handle]*Worker)}
}

// Launch mints a fresh handle and records the worker as running.
func (r *Runtime) Launch(_ context.Context, spec runtime.LaunchSpec) (runtime.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.LaunchErr != nil {
		return "", r.LaunchErr
	}
	h := runtime.Handle(uuid.NewString())
	r.workers[h] = &Worker{Spec: spec, Running: true}
	return h, nil
}

// Inspect reports the recorded state or ErrUnknownHandle.
func (r *Runtime) Inspect(_ context.Context, h runtime.Handle) (runtime.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.InspectErr != nil {
		return runtime.State{}, r.InspectErr
	}
	w, ok := r.workers[h]
	if !ok {
		return runtime.State{}, fmt.Errorf("inspect %s: %w", h, runtime.ErrUnknownHandle)
	}
	return runtime.State{Running: w.Running}, nil
}

// Stop marks the worker as no longer running.
func (r *Runtime) Stop(_ context.Context, h runtime.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopCalls++
	if r.StopErr != nil {
		return r.StopErr
	}
	w, ok := r.workers[h]
	if !ok {
		return fmt.Errorf("stop %s: %w", h, runtime.ErrUnknownHandle)
	}
	w.Running = false
	return nil
}

// Remove forgets the worker.
func (r *Runtime) Remove(_ context.Context, h runtime.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeCalls++
	if r.RemoveErr != nil {
		return r.RemoveErr
	}
	if _, ok := r.workers[h]; !ok {
		return fmt.Errorf("remove %s: %w", h, runtime.ErrUnknownHandle)
	}
	delete(r.workers, h)
	return nil
}

// Add registers a pre-existing worker under a known handle, for
// reconciliation tests.
func (r *Runtime) Add(h runtime.Handle, running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[h] = &Worker{Running: running}
}

// Get returns the recorded worker for a handle.
func (r *Runtime) Get(h runtime.Handle) (Worker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[h]
	if !ok {
		return Worker{}, false
	}
	return *w, true
}

// Len returns the number of tracked workers.
func (r *Runtime) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// StopCalls returns how many times Stop was invoked.
func (r *Runtime) StopCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopCalls
}

// RemoveCalls returns how many times Remove was invoked.
func (r *Runtime) RemoveCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeCalls
}
