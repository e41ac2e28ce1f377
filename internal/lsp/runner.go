package lsp

import (
	"bytes"
	"context"
	"os/exec"
)

// ExecRunner abstracts command execution for testability.
type ExecRunner interface {
	// Run executes a command bounded by ctx and returns its output.
	// Implementations must terminate the process when ctx expires.
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

// RealRunner implements ExecRunner using os/exec.
type RealRunner struct{}

// Run executes the command. exec.CommandContext kills the process when the
// context deadline passes, so a hung probe cannot block the caller.
func (RealRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
