package trivy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// DefaultBinary is the scanner executable looked up on PATH.
const DefaultBinary = "trivy"

// Runner defines the operations needed to drive trivy.
type Runner interface {
	EnsureBinary() error
	Scan(ctx context.Context, input ScanInput) error
	Version(ctx context.Context) (string, error)
}

// CommandRunner executes the real trivy binary present on the host.
type CommandRunner struct {
	Binary string
}

// ScanInput describes a single filesystem scan invocation.
type ScanInput struct {
	Target        string
	GlobalOptions []string
	ReportPath    string
	Stdout        io.Writer
}

// ScanError is returned when trivy exits with a non-zero status.
type ScanError struct {
	ExitCode int
	Stderr   []byte
}

func (e *ScanError) Error() string {
	msg := strings.TrimSpace(string(e.Stderr))
	if msg == "" {
		return fmt.Sprintf("trivy exited with status %d", e.ExitCode)
	}
	return fmt.Sprintf("trivy exited with status %d: %s", e.ExitCode, msg)
}

// NewRunner returns a command runner for the given binary, falling back to DefaultBinary.
func NewRunner(binary string) Runner {
	if binary == "" {
		binary = DefaultBinary
	}
	return &CommandRunner{Binary: binary}
}

// EnsureBinary verifies that the trivy binary is discoverable on PATH.
func (r *CommandRunner) EnsureBinary() error {
	_, err := exec.LookPath(r.Binary)
	if err != nil {
		return fmt.Errorf("trivy binary not found: %w", err)
	}
	return nil
}

// ScanArgs returns the argument vector for `trivy fs`. Global options are
// kept in the order supplied and the target always comes last.
func ScanArgs(input ScanInput) []string {
	args := []string{
		"fs",
		"-q",
		"-f", "json",
		"-o", input.ReportPath,
	}
	args = append(args, input.GlobalOptions...)
	return append(args, input.Target)
}

// Scan executes trivy fs and blocks until it exits. Stderr is captured and
// attached to a *ScanError when the exit status is non-zero.
func (r *CommandRunner) Scan(ctx context.Context, input ScanInput) error {
	var stderr bytes.Buffer

	// Global options are forwarded on purpose; they are scanner flags chosen
	// by the operator invoking this tool.
	cmd := exec.CommandContext(ctx, r.Binary, ScanArgs(input)...) // #nosec G204
	cmd.Stdout = input.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = io.Discard
	}
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ScanError{ExitCode: exitErr.ExitCode(), Stderr: stderr.Bytes()}
	}
	return fmt.Errorf("run %s: %w", r.Binary, err)
}

// Version runs `trivy --version` and returns the first line of its output.
func (r *CommandRunner) Version(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, r.Binary, "--version") // #nosec G204
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", err
	}

	version, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	if version == "" {
		return "unknown", nil
	}
	return version, nil
}
