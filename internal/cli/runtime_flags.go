package cli

import (
	"strings"

	"github.com/example/trivy-exp-dep/internal/config"
	"github.com/spf13/cobra"
)

const globalFlag = "global"

// runtimeFlagSet tracks shared flags before they are converted into config overrides.
type runtimeFlagSet struct {
	path           string
	global         []string
	trivyBinary    string
	reportPath     string
	manifestSuffix string
	events         bool

	// passthrough is the argv tail split off before parsing. It is not bound
	// to a flag, so pflag never resets it.
	passthrough []string
}

func bindPathFlags(cmd *cobra.Command, flags *runtimeFlagSet) {
	cmd.Flags().StringVarP(&flags.path, "path", "p", "", "Directory where to scan. Current working dir is default.")
	cmd.Flags().StringVar(&flags.manifestSuffix, "manifest-suffix", "", "Case-insensitive file name suffix identifying dependency manifests (default \"pipfile\")")
}

func bindRuntimeFlags(cmd *cobra.Command, flags *runtimeFlagSet) {
	bindPathFlags(cmd, flags)
	cmd.Flags().StringVar(&flags.trivyBinary, "trivy", "", "trivy binary name or path (default \"trivy\")")
	cmd.Flags().StringVar(&flags.reportPath, "report-path", "", "Location of the intermediate report (default: a private temp dir)")
	cmd.Flags().BoolVar(&flags.events, "events", false, "Emit NDJSON progress events on stderr")
	cmd.Flags().StringArrayVar(&flags.global, globalFlag, nil, "Indicate that all flags after will be passed as trivy global/fs options.\nPositional, should be after \"-p/-h/--\" options.")
}

func (f runtimeFlagSet) toOverrides(cmd *cobra.Command) config.Overrides {
	ov := config.Overrides{}
	if cmd.Flags().Changed("path") {
		ov.Path = f.path
	}

	if global := append(append([]string(nil), f.global...), f.passthrough...); len(global) > 0 {
		ov.GlobalOptions = global
	}

	if flag := cmd.Flags().Lookup("trivy"); flag != nil && flag.Changed {
		ov.TrivyBinary = f.trivyBinary
	}

	if flag := cmd.Flags().Lookup("report-path"); flag != nil && flag.Changed {
		ov.ReportPath = f.reportPath
	}

	if cmd.Flags().Changed("manifest-suffix") {
		ov.ManifestSuffix = f.manifestSuffix
	}

	if flag := cmd.Flags().Lookup("events"); flag != nil && flag.Changed {
		ov.Events = &f.events
	}

	return ov
}

// splitPassthrough separates the tool's own arguments from trivy options.
// Everything after the first --global is forwarded verbatim, hyphen-led
// values included; --global=<v> contributes v as the first option.
func splitPassthrough(args []string) (own, global []string) {
	for i, arg := range args {
		if arg == "--"+globalFlag {
			return args[:i], append([]string(nil), args[i+1:]...)
		}
		if value, ok := strings.CutPrefix(arg, "--"+globalFlag+"="); ok {
			return args[:i], append([]string{value}, args[i+1:]...)
		}
	}
	return args, nil
}
