package cli

import (
	"fmt"

	"github.com/example/trivy-exp-dep/internal/config"
	"github.com/example/trivy-exp-dep/internal/events"
	"github.com/example/trivy-exp-dep/internal/triage"
	"github.com/spf13/cobra"
)

// runTriage is the root command: one trivy fs run, then the package line and
// manifest paths on stdout.
func runTriage(cmd *cobra.Command, loader *config.Loader, newRunner runnerFactory, flags *runtimeFlagSet) error {
	cfg, err := loader.Load(flags.toOverrides(cmd))
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	// Checked before anything touches the filesystem or spawns trivy.
	if err := triage.ValidateTarget(cfg.Path); err != nil {
		return err
	}

	pipeline := &triage.Pipeline{
		Runner: newRunner(cfg.TrivyBinary),
		Stdout: cmd.OutOrStdout(),
	}
	if cfg.Events {
		pipeline.Events = events.NewEmitter(cmd.ErrOrStderr())
	}

	_, err = pipeline.Run(cmd.Context(), triage.Options{
		Target:         cfg.Path,
		GlobalOptions:  cfg.GlobalOptions,
		ReportPath:     cfg.ReportPath,
		ManifestSuffix: cfg.ManifestSuffix,
	})
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information and quit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "trivy-exp-dep version %s\n", version)
		},
	}
}
