// Package docker implements the worker runtime against the docker CLI.
package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/hhsearch/crawlcontrol/internal/runtime"
)

// Runtime shells out to the docker binary. Workers are started detached;
// the daemon, not this process, owns their lifetime.
type Runtime struct {
	binary string
	logger *zap.Logger
}

// New creates a docker Runtime.
func New(logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runtime{binary: "docker", logger: logger}
}

// Launch runs a detached container with the job directory mounted and
// returns the container id printed by docker run.
func (r *Runtime) Launch(ctx context.Context, spec runtime.LaunchSpec) (runtime.Handle, error) {
	args := []string{
		"run", "-d",
		"-v", fmt.Sprintf("%s:%s", spec.HostDir, spec.MountDir),
		spec.Image,
	}
	args = append(args, spec.Args...)

	out, err := r.run(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("docker run: %w", err)
	}
	handle := runtime.Handle(strings.TrimSpace(out))
	if handle == "" {
		return "", fmt.Errorf("docker run returned no container id")
	}
	return handle, nil
}

// Inspect asks the daemon for the container's running state. An unknown
// container maps to runtime.ErrUnknownHandle so callers can distinguish a
// stale handle marker from a daemon failure.
func (r *Runtime) Inspect(ctx context.Context, h runtime.Handle) (runtime.State, error) {
	out, err := r.run(ctx, "inspect", "-f", "{{.State.Running}}", string(h))
	if err != nil {
		if isNoSuchObject(err) {
			return runtime.State{}, fmt.Errorf("docker inspect %s: %w", h, runtime.ErrUnknownHandle)
		}
		return runtime.State{}, fmt.Errorf("docker inspect %s: %w", h, err)
	}
	return runtime.State{Running: strings.TrimSpace(out) == "true"}, nil
}

// Stop terminates the container.
func (r *Runtime) Stop(ctx context.Context, h runtime.Handle) error {
	if _, err := r.run(ctx, "stop", string(h)); err != nil {
		return fmt.Errorf("docker stop %s: %w", h, err)
	}
	return nil
}

// Remove deletes the stopped container.
func (r *Runtime) Remove(ctx context.Context, h runtime.Handle) error {
	if _, err := r.run(ctx, "rm", string(h)); err != nil {
		return fmt.Errorf("docker rm %s: %w", h, err)
	}
	return nil
}

func (r *Runtime) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	r.logger.Debug("docker call", zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		return "", &cliError{args: args, err: err, stderr: strings.TrimSpace(stderr.String())}
	}
	return stdout.String(), nil
}

// cliError keeps the docker stderr so callers can classify failures.
type cliError struct {
	args   []string
	err    error
	stderr string
}

func (e *cliError) Error() string {
	if e.stderr == "" {
		return fmt.Sprintf("docker %s: %v", strings.Join(e.args, " "), e.err)
	}
	return fmt.Sprintf("docker %s: %v: %s", strings.Join(e.args, " "), e.err, e.stderr)
}

func (e *cliError) Unwrap() error { return e.err }

func isNoSuchObject(err error) bool {
	var cerr *cliError
	if !errors.As(err, &cerr) {
		return false
	}
	return strings.Contains(cerr.stderr, "No such object") ||
		strings.Contains(cerr.stderr, "No such container")
}
