package triage

import (
	"errors"
	"fmt"
)

// Kind classifies why a triage run stopped.
type Kind int

const (
	// KindPrecondition means the scan target is not an existing directory.
	KindPrecondition Kind = iota + 1
	// KindScanFailed means trivy could not be run or exited non-zero.
	KindScanFailed
	// KindReportMissing means trivy succeeded but left no report behind.
	KindReportMissing
	// KindReportMalformed means the report could not be decoded.
	KindReportMalformed
	// KindIO covers copy/remove failures and output write errors.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindScanFailed:
		return "scan-failed"
	case KindReportMissing:
		return "report-missing"
	case KindReportMalformed:
		return "report-malformed"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is returned by Pipeline.Run for every terminal failure.
type Error struct {
	Kind Kind
	Path string
	// Stderr holds the scanner's captured stderr for KindScanFailed.
	Stderr []byte
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindPrecondition:
		return fmt.Sprintf("no such directory to scan %s", e.Path)
	case KindReportMissing:
		return fmt.Sprintf("no such report file or it can't be read %s", e.Path)
	}

	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ExitCode is the process exit status for err: 0 for nil, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// KindOf returns the Kind carried by err, or 0 when err is not a triage error.
func KindOf(err error) Kind {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Kind
	}
	return 0
}
