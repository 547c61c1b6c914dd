// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container finds a local container runtime (docker or podman) and
// runs conversion images through it with the PDF on stdin and Markdown on
// stdout.
package container

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

const (
	Docker = "docker"
	Podman = "podman"

	// maxStderr bounds the stderr tail kept on a failed run.
	maxStderr = 1000
)

// Runtime runs images on a local container engine.
type Runtime interface {
	// Name returns "docker" or "podman".
	Name() string

	// Available reports whether the binary is on PATH and answers info.
	Available() bool

	// ImageExists returns nil when image is present locally.
	ImageExists(image string) error

	// Run starts image with args, feeding stdin and collecting stdout. The
	// container is removed when it exits.
	Run(ctx context.Context, image string, args []string, stdin io.Reader, stdout io.Writer) error
}

// RunError reports a container that could not start or exited non-zero.
type RunError struct {
	Runtime string
	Image   string
	Stderr  string
	Err     error
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("running %s container %s: %v", e.Runtime, e.Image, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *RunError) Unwrap() error { return e.Err }

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(name string, args ...string) error
	RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osExecutor) RunSilent(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

func (osExecutor) RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// engine implements Runtime for one binary. Docker and Podman differ only
// in the subcommand that checks for an image.
type engine struct {
	bin        string
	imageCheck []string
	exec       executor
}

func (e *engine) Name() string { return e.bin }

func (e *engine) Available() bool {
	if _, err := e.exec.LookPath(e.bin); err != nil {
		return false
	}
	return e.exec.RunSilent(e.bin, "info") == nil
}

func (e *engine) ImageExists(image string) error {
	args := append(append([]string{}, e.imageCheck...), image)
	if err := e.exec.RunSilent(e.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, e.bin, err)
	}
	return nil
}

func (e *engine) Run(ctx context.Context, image string, args []string, stdin io.Reader, stdout io.Writer) error {
	argv := append([]string{"run", "--rm", "-i", image}, args...)
	var stderr bytes.Buffer
	if err := e.exec.RunPiped(ctx, e.bin, argv, stdin, stdout, &stderr); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &RunError{Runtime: e.bin, Image: image, Stderr: tail(stderr.String(), maxStderr), Err: err}
	}
	return nil
}

// tail keeps the last n bytes of s, trimmed.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}

func newEngine(bin string, exec executor) (*engine, error) {
	switch bin {
	case Docker:
		return &engine{bin: Docker, imageCheck: []string{"image", "inspect"}, exec: exec}, nil
	case Podman:
		return &engine{bin: Podman, imageCheck: []string{"image", "exists"}, exec: exec}, nil
	default:
		return nil, fmt.Errorf("unsupported container runtime %q: use docker or podman", bin)
	}
}

var defaultExec executor = osExecutor{}

// Lookup returns the named runtime, or the detected one when name is
// empty. The runtime must be available.
func Lookup(name string) (Runtime, error) {
	return lookup(name, defaultExec)
}

func lookup(name string, exec executor) (Runtime, error) {
	if name == "" {
		return detect(exec)
	}
	e, err := newEngine(name, exec)
	if err != nil {
		return nil, err
	}
	if !e.Available() {
		return nil, fmt.Errorf("container runtime %s is not available", name)
	}
	return e, nil
}

// Detect tries docker first, then podman.
func Detect() (Runtime, error) {
	return detect(defaultExec)
}

func detect(exec executor) (Runtime, error) {
	for _, bin := range []string{Docker, Podman} {
		e, _ := newEngine(bin, exec)
		if e.Available() {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no container runtime available: neither %s nor %s found or operational", Docker, Podman)
}
