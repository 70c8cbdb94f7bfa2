// Package triage runs trivy once against a directory and decides what a
// follow-up scan should look at.
package triage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/trivy-exp-dep/internal/events"
	"github.com/example/trivy-exp-dep/internal/manifest"
	"github.com/example/trivy-exp-dep/internal/report"
	"github.com/example/trivy-exp-dep/internal/trivy"
)

const (
	// ArchiveName is the file written into the scan target on the no-findings path.
	ArchiveName = "trivy.json"

	reportFileName = "prescan.json"
)

// Options describe a single triage run.
type Options struct {
	Target        string
	GlobalOptions []string
	// ReportPath is where trivy writes its intermediate report. When empty a
	// private temporary directory is created for the run.
	ReportPath     string
	ManifestSuffix string
}

// Outcome summarises what a successful run produced.
type Outcome struct {
	Findings  bool
	Packages  []string
	Manifests []string
	// Archived is the copied report path on the no-findings path.
	Archived string
}

// Pipeline wires the scanner to the report and manifest steps.
type Pipeline struct {
	Runner trivy.Runner
	Stdout io.Writer
	Events *events.Emitter
}

// ValidateTarget ensures path names an existing directory.
func ValidateTarget(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return &Error{Kind: KindPrecondition, Path: path, Err: err}
	}
	return nil
}

// Run executes the whole triage. On the findings path the package line and
// any manifest paths are written to Stdout; on the no-findings path the
// report is copied to <target>/trivy.json and nothing is written. The
// intermediate report is removed before Run returns.
func (p *Pipeline) Run(ctx context.Context, opts Options) (Outcome, error) {
	if err := ValidateTarget(opts.Target); err != nil {
		return Outcome{}, err
	}

	suffix := opts.ManifestSuffix
	if suffix == "" {
		suffix = manifest.DefaultSuffix
	}

	reportPath, cleanup, err := scopedReportPath(opts.ReportPath)
	if err != nil {
		return Outcome{}, &Error{Kind: KindIO, Err: err}
	}
	defer cleanup()

	if err := p.scan(ctx, opts, reportPath); err != nil {
		return Outcome{}, err
	}

	rep, err := report.Read(reportPath)
	if err != nil {
		if errors.Is(err, report.ErrMissing) {
			return Outcome{}, &Error{Kind: KindReportMissing, Path: reportPath, Err: err}
		}
		return Outcome{}, &Error{Kind: KindReportMalformed, Path: reportPath, Err: err}
	}

	if !rep.HasResults() {
		archived, err := archiveReport(reportPath, opts.Target)
		if err != nil {
			return Outcome{}, &Error{Kind: KindIO, Path: reportPath, Err: err}
		}
		p.emit(events.Event{Type: events.TypeReportArchived, Message: "No results, report archived", Fields: map[string]interface{}{"path": archived}})
		return Outcome{Archived: archived}, nil
	}

	out := Outcome{Findings: true, Packages: rep.Packages()}
	p.emit(events.Event{Type: events.TypeReportParsed, Fields: map[string]interface{}{"packages": len(out.Packages)}})

	if _, err := fmt.Fprintln(p.Stdout, strings.Join(out.Packages, " ")); err != nil {
		return out, &Error{Kind: KindIO, Err: err}
	}

	err = manifest.Locate(opts.Target, suffix, func(path string) error {
		out.Manifests = append(out.Manifests, path)
		p.emit(events.Event{Type: events.TypeManifestFound, Fields: map[string]interface{}{"path": path}})
		_, err := fmt.Fprintln(p.Stdout, path)
		return err
	})
	if err != nil {
		return out, &Error{Kind: KindIO, Err: err}
	}

	p.emit(events.Event{Type: events.TypeTriageFinished, Fields: map[string]interface{}{"packages": len(out.Packages), "manifests": len(out.Manifests)}})
	return out, nil
}

func (p *Pipeline) scan(ctx context.Context, opts Options, reportPath string) error {
	p.emit(events.Event{Type: events.TypeScanStart, Message: "Starting trivy fs", Fields: map[string]interface{}{"target": opts.Target, "globalOptions": opts.GlobalOptions}})

	err := p.Runner.Scan(ctx, trivy.ScanInput{
		Target:        opts.Target,
		GlobalOptions: opts.GlobalOptions,
		ReportPath:    reportPath,
	})
	if err != nil {
		terr := &Error{Kind: KindScanFailed, Err: err}
		var scanErr *trivy.ScanError
		if errors.As(err, &scanErr) {
			terr.Stderr = scanErr.Stderr
		}
		return terr
	}

	p.emit(events.Event{Type: events.TypeScanFinished, Fields: map[string]interface{}{"report": reportPath}})
	return nil
}

// emit never fails the run; events are advisory.
func (p *Pipeline) emit(evt events.Event) {
	_ = p.Events.Emit(evt)
}

// scopedReportPath returns the report location for this run and a cleanup
// func that removes whatever the run left behind.
func scopedReportPath(explicit string) (string, func(), error) {
	if explicit != "" {
		return explicit, func() { _ = os.Remove(explicit) }, nil
	}

	dir, err := os.MkdirTemp("", "trivy-exp-dep-*")
	if err != nil {
		return "", func() {}, err
	}
	return filepath.Join(dir, reportFileName), func() { _ = os.RemoveAll(dir) }, nil
}

// archiveReport copies the report into target and removes the original.
func archiveReport(reportPath, target string) (string, error) {
	dest := filepath.Join(target, ArchiveName)
	if err := copyFile(reportPath, dest); err != nil {
		return "", err
	}
	if err := os.Remove(reportPath); err != nil {
		return "", err
	}
	return dest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
