package cli

import (
	"io"
	"os"

	"github.com/example/trivy-exp-dep/internal/config"
	"github.com/example/trivy-exp-dep/internal/trivy"
	"github.com/spf13/cobra"
)

const version = "0.1.2"

// runnerFactory builds the scanner runner for a configured binary.
type runnerFactory func(binary string) trivy.Runner

// Execute builds the root command tree and runs the CLI against os.Args.
func Execute() error {
	return execute(os.Args[1:], trivy.NewRunner, os.Stdout, os.Stderr)
}

func execute(args []string, newRunner runnerFactory, stdout, stderr io.Writer) error {
	own, global := splitPassthrough(args)

	rootCmd := newRootCmd(&config.Loader{ConfigPath: config.DefaultConfigPath}, newRunner, global)
	rootCmd.SetArgs(own)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	return rootCmd.Execute()
}

func newRootCmd(loader *config.Loader, newRunner runnerFactory, global []string) *cobra.Command {
	rootOpts := &rootOptions{}
	flags := &runtimeFlagSet{passthrough: global}

	rootCmd := &cobra.Command{
		Use:   "trivy-exp-dep",
		Short: "Scan a directory with trivy and keep only packages with findings",
		Long: `A Trivy wrapper that scans the filesystem once and reports the packages that
actually triggered vulnerabilities, followed by any Pipfile manifests found
under the scanned directory. The package line is meant to feed a second,
narrower trivy run.

When trivy reports no results the JSON report is stored as <path>/trivy.json
and nothing is printed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTriage(cmd, loader, newRunner, flags)
		},
	}
	rootCmd.SetVersionTemplate("trivy-exp-dep version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&rootOpts.ConfigPath, "config", config.DefaultConfigPath, "Path to trivy-exp-dep.yml (optional)")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if rootOpts.ConfigPath != "" {
			loader.ConfigPath = rootOpts.ConfigPath
		}
	}

	bindRuntimeFlags(rootCmd, flags)

	rootCmd.AddCommand(
		newDoctorCmd(loader, newRunner),
		newManifestsCmd(loader),
		newVersionCmd(),
	)

	return rootCmd
}

type rootOptions struct {
	ConfigPath string
}
