package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/example/trivy-exp-dep/internal/triage"
	"github.com/fatih/color"
)

var (
	red   = color.New(color.FgRed).SprintFunc()
	green = color.New(color.FgGreen).SprintFunc()
)

// ReportError writes the diagnostic for err to w and returns the process
// exit code. A failed trivy run is relayed as trivy's own stderr, byte for byte.
func ReportError(w io.Writer, err error) int {
	if err == nil {
		return 0
	}

	var terr *triage.Error
	if errors.As(err, &terr) && terr.Kind == triage.KindScanFailed && len(terr.Stderr) > 0 {
		_, _ = w.Write(terr.Stderr)
		return triage.ExitCode(err)
	}

	fmt.Fprintf(w, "%s %v\n", red("Error:"), err)
	return triage.ExitCode(err)
}
