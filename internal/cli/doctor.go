package cli

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/example/trivy-exp-dep/internal/config"
	"github.com/example/trivy-exp-dep/internal/triage"
	"github.com/spf13/cobra"
)

type doctorCheck struct {
	Name   string
	Status string // "✓" or "✗"
	Detail string
	Error  error
}

func newDoctorCmd(loader *config.Loader, newRunner runnerFactory) *cobra.Command {
	flags := &runtimeFlagSet{}
	var timeout int

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the trivy binary, configuration, and scan directory",
		Long: `The doctor subcommand validates the trivy-exp-dep environment:
- Go runtime version
- trivy binary presence and version
- Configuration validity
- Scan directory existence`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loader.Load(flags.toOverrides(cmd))
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeout)*time.Second)
			defer cancel()

			checks := runDoctorChecks(ctx, &cfg, newRunner)
			printDoctorReport(cmd, checks)

			for _, check := range checks {
				if check.Error != nil {
					return fmt.Errorf("doctor checks failed")
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), "\n"+green("✓")+" All checks passed. System is ready.")
			return nil
		},
	}

	bindRuntimeFlags(cmd, flags)
	cmd.Flags().IntVar(&timeout, "timeout", 10, "Timeout in seconds for the trivy version probe")

	return cmd
}

func runDoctorChecks(ctx context.Context, cfg *config.RuntimeConfig, newRunner runnerFactory) []doctorCheck {
	return []doctorCheck{
		checkGoVersion(),
		checkTrivyBinary(ctx, cfg.TrivyBinary, newRunner),
		checkConfiguration(cfg),
		checkScanDirectory(cfg.Path),
	}
}

func checkGoVersion() doctorCheck {
	return doctorCheck{
		Name:   "Go Runtime",
		Status: "✓",
		Detail: fmt.Sprintf("Version %s", runtime.Version()),
	}
}

func checkTrivyBinary(ctx context.Context, binary string, newRunner runnerFactory) doctorCheck {
	runner := newRunner(binary)
	if err := runner.EnsureBinary(); err != nil {
		return doctorCheck{
			Name:   "trivy Binary",
			Status: "✗",
			Detail: "Not found in PATH",
			Error:  err,
		}
	}

	detail := "Available"
	if version, err := runner.Version(ctx); err == nil {
		detail = version
	}

	return doctorCheck{
		Name:   "trivy Binary",
		Status: "✓",
		Detail: detail,
	}
}

func checkConfiguration(cfg *config.RuntimeConfig) doctorCheck {
	if err := cfg.Validate(); err != nil {
		return doctorCheck{
			Name:   "Configuration",
			Status: "✗",
			Detail: "Invalid configuration",
			Error:  err,
		}
	}

	return doctorCheck{
		Name:   "Configuration",
		Status: "✓",
		Detail: fmt.Sprintf("binary=%s, %d global options, suffix=%s", cfg.TrivyBinary, len(cfg.GlobalOptions), cfg.ManifestSuffix),
	}
}

func checkScanDirectory(path string) doctorCheck {
	if err := triage.ValidateTarget(path); err != nil {
		return doctorCheck{
			Name:   "Scan Directory",
			Status: "✗",
			Detail: path,
			Error:  err,
		}
	}

	return doctorCheck{
		Name:   "Scan Directory",
		Status: "✓",
		Detail: path,
	}
}

func printDoctorReport(cmd *cobra.Command, checks []doctorCheck) {
	fmt.Fprintln(cmd.OutOrStdout(), "Running environment diagnostics...")

	for _, check := range checks {
		status := green(check.Status)
		if check.Error != nil {
			status = red(check.Status)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %-20s %s\n", status, check.Name+":", check.Detail)
		if check.Error != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "   Error: %v\n", check.Error)
		}
	}
}
