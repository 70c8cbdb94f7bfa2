package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/trivy-exp-dep/internal/config"
	"github.com/example/trivy-exp-dep/internal/triage"
	"github.com/example/trivy-exp-dep/internal/trivy"
	"github.com/google/go-cmp/cmp"
)

// fakeRunner stands in for the trivy binary.
type fakeRunner struct {
	binary     string
	report     []byte
	scanErr    error
	missing    bool
	version    string
	scanInputs []trivy.ScanInput
}

func (f *fakeRunner) EnsureBinary() error {
	if f.missing {
		return errors.New("trivy binary not found")
	}
	return nil
}

func (f *fakeRunner) Version(ctx context.Context) (string, error) {
	return f.version, nil
}

func (f *fakeRunner) Scan(ctx context.Context, input trivy.ScanInput) error {
	f.scanInputs = append(f.scanInputs, input)
	if f.scanErr != nil {
		return f.scanErr
	}
	return os.WriteFile(input.ReportPath, f.report, 0o600)
}

// factoryFor returns a runnerFactory handing out runner and recording the binary asked for.
func factoryFor(runner *fakeRunner) (runnerFactory, *int) {
	calls := 0
	return func(binary string) trivy.Runner {
		calls++
		runner.binary = binary
		return runner
	}, &calls
}

func executeRoot(t *testing.T, runner *fakeRunner, args []string) (string, string, *int, error) {
	t.Helper()

	own, global := splitPassthrough(args)
	factory, calls := factoryFor(runner)
	loader := &config.Loader{ConfigPath: filepath.Join(t.TempDir(), "absent.yml")}
	cmd := newRootCmd(loader, factory, global)

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append(own, "--config", loader.ConfigPath))

	err := cmd.Execute()
	return stdout.String(), stderr.String(), calls, err
}

func TestRootFindingsPath(t *testing.T) {
	target := t.TempDir()
	for _, name := range []string{"Pipfile", filepath.Join("svc", "Pipfile")} {
		path := filepath.Join(target, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("[packages]\n"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	runner := &fakeRunner{report: []byte(`{"Results":[{"Vulnerabilities":[{"PkgName":"django"},{"PkgName":"django"},{"PkgName":"requests"}]}]}`)}
	stdout, _, _, err := executeRoot(t, runner, []string{"-p", target, "--trivy", "/opt/trivy", "--global", "--skip-dirs", "tests", "-s", "HIGH"})
	if err != nil {
		t.Fatalf("root command failed: %v", err)
	}

	want := "django requests\n" +
		filepath.Join(target, "Pipfile") + "\n" +
		filepath.Join(target, "svc", "Pipfile") + "\n"
	if diff := cmp.Diff(want, stdout); diff != "" {
		t.Fatalf("stdout mismatch (-want +got):\n%s", diff)
	}

	if runner.binary != "/opt/trivy" {
		t.Errorf("expected configured binary, got %q", runner.binary)
	}
	if len(runner.scanInputs) != 1 {
		t.Fatalf("expected one scan, got %d", len(runner.scanInputs))
	}
	if diff := cmp.Diff([]string{"--skip-dirs", "tests", "-s", "HIGH"}, runner.scanInputs[0].GlobalOptions); diff != "" {
		t.Errorf("global options mismatch (-want +got):\n%s", diff)
	}
	if runner.scanInputs[0].Target != target {
		t.Errorf("expected target %s, got %s", target, runner.scanInputs[0].Target)
	}
}

func TestRootNoFindingsPath(t *testing.T) {
	target := t.TempDir()
	runner := &fakeRunner{report: []byte(`{}`)}

	stdout, stderr, _, err := executeRoot(t, runner, []string{"--path", target})
	if err != nil {
		t.Fatalf("root command failed: %v", err)
	}
	if stdout != "" || stderr != "" {
		t.Fatalf("expected no output, got stdout=%q stderr=%q", stdout, stderr)
	}

	data, err := os.ReadFile(filepath.Join(target, "trivy.json"))
	if err != nil {
		t.Fatalf("archived report missing: %v", err)
	}
	if string(data) != `{}` {
		t.Fatalf("archived report differs: %q", data)
	}
}

func TestRootInvalidDirectoryNeverBuildsRunner(t *testing.T) {
	runner := &fakeRunner{}
	missing := filepath.Join(t.TempDir(), "does-not-exist")

	_, _, calls, err := executeRoot(t, runner, []string{"-p", missing})
	if triage.KindOf(err) != triage.KindPrecondition {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if *calls != 0 || len(runner.scanInputs) != 0 {
		t.Fatal("trivy must not be invoked for an invalid directory")
	}

	stderr := &bytes.Buffer{}
	if code := ReportError(stderr, err); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "no such directory to scan "+missing) {
		t.Fatalf("unexpected diagnostic %q", stderr.String())
	}
}

func TestRootScanFailureRelaysStderr(t *testing.T) {
	runner := &fakeRunner{scanErr: &trivy.ScanError{ExitCode: 1, Stderr: []byte("2024-01-01T00:00:00Z\tFATAL\tinit error\nunknown flag: --bogus\n")}}

	stdout, _, _, err := executeRoot(t, runner, []string{"-p", t.TempDir(), "--global", "--bogus"})
	if err == nil {
		t.Fatal("expected failure")
	}
	if stdout != "" {
		t.Fatalf("expected no stdout, got %q", stdout)
	}

	stderr := &bytes.Buffer{}
	if code := ReportError(stderr, err); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	want := "2024-01-01T00:00:00Z\tFATAL\tinit error\nunknown flag: --bogus\n"
	if diff := cmp.Diff(want, stderr.String()); diff != "" {
		t.Fatalf("stderr mismatch (-want +got):\n%s", diff)
	}
}

func TestRootRejectsPositionalArgs(t *testing.T) {
	_, _, calls, err := executeRoot(t, &fakeRunner{}, []string{"some/dir"})
	if err == nil {
		t.Fatal("expected positional arguments to be rejected")
	}
	if *calls != 0 {
		t.Fatal("runner should not be built")
	}
}

func TestRootEnvironmentPath(t *testing.T) {
	target := t.TempDir()
	t.Setenv("EXPDEP_PATH", target)

	runner := &fakeRunner{report: []byte(`{"Results":[{"Vulnerabilities":[{"PkgName":"jinja2"}]}]}`)}
	stdout, _, _, err := executeRoot(t, runner, nil)
	if err != nil {
		t.Fatalf("root command failed: %v", err)
	}
	if stdout != "jinja2\n" {
		t.Fatalf("unexpected stdout %q", stdout)
	}
}

func TestVersionCommand(t *testing.T) {
	stdout, _, _, err := executeRoot(t, &fakeRunner{}, []string{"version"})
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if stdout != "trivy-exp-dep version "+version+"\n" {
		t.Fatalf("unexpected version output %q", stdout)
	}
}

func TestReportErrorGeneric(t *testing.T) {
	stderr := &bytes.Buffer{}
	if code := ReportError(stderr, errors.New("boom")); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "boom") {
		t.Fatalf("diagnostic missing message: %q", stderr.String())
	}

	if code := ReportError(stderr, nil); code != 0 {
		t.Fatalf("nil error should map to 0, got %d", code)
	}
}

func TestExecuteForwardsGlobalOptions(t *testing.T) {
	target := t.TempDir()
	runner := &fakeRunner{report: []byte(`{"Results":[{"Vulnerabilities":[{"PkgName":"urllib3"}]}]}`)}
	factory, calls := factoryFor(runner)

	args := []string{"-p", target, "--config", filepath.Join(t.TempDir(), "absent.yml"), "--global", "--offline-scan", "-p", "ignored-by-us"}
	stdout := &bytes.Buffer{}
	if err := execute(args, factory, stdout, &bytes.Buffer{}); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if *calls != 1 || len(runner.scanInputs) != 1 {
		t.Fatalf("expected one scan, got factory=%d scans=%d", *calls, len(runner.scanInputs))
	}
	if diff := cmp.Diff([]string{"--offline-scan", "-p", "ignored-by-us"}, runner.scanInputs[0].GlobalOptions); diff != "" {
		t.Errorf("global options mismatch (-want +got):\n%s", diff)
	}
	if runner.scanInputs[0].Target != target {
		t.Errorf("expected target %s, got %s", target, runner.scanInputs[0].Target)
	}
	if stdout.String() != "urllib3\n" {
		t.Errorf("unexpected stdout %q", stdout.String())
	}
}

func TestReportErrorKeepsStderrVerbatim(t *testing.T) {
	err := &triage.Error{Kind: triage.KindScanFailed, Stderr: []byte("fatal\n\n\nhint\n\n")}

	stderr := &bytes.Buffer{}
	if code := ReportError(stderr, err); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if diff := cmp.Diff("fatal\n\n\nhint\n\n", stderr.String()); diff != "" {
		t.Fatalf("stderr mismatch (-want +got):\n%s", diff)
	}
}
