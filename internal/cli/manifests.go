package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/example/trivy-exp-dep/internal/config"
	"github.com/example/trivy-exp-dep/internal/manifest"
	"github.com/example/trivy-exp-dep/internal/triage"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

type manifestRow struct {
	Path string
	Deps []manifest.Dependency
	Err  error
}

func newManifestsCmd(loader *config.Loader) *cobra.Command {
	flags := &runtimeFlagSet{}

	cmd := &cobra.Command{
		Use:   "manifests",
		Short: "List dependency manifests under the scan path and the packages they declare",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loader.Load(flags.toOverrides(cmd))
			if err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := triage.ValidateTarget(cfg.Path); err != nil {
				return err
			}

			rows, err := collectManifests(cfg.Path, cfg.ManifestSuffix)
			if err != nil {
				return err
			}

			if len(rows) == 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "No manifests matching %q under %s\n", cfg.ManifestSuffix, cfg.Path)
				return nil
			}

			renderManifests(cmd.OutOrStdout(), rows)
			return nil
		},
	}

	bindPathFlags(cmd, flags)

	return cmd
}

// collectManifests parses every regular file the locator yields. A file that
// fails to parse is kept with its error so one bad manifest does not hide the rest.
func collectManifests(root, suffix string) ([]manifestRow, error) {
	var rows []manifestRow
	err := manifest.Locate(root, suffix, func(path string) error {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			return nil
		}

		deps, err := manifest.ReadPipfile(path)
		rows = append(rows, manifestRow{Path: path, Deps: deps, Err: err})
		return nil
	})
	return rows, err
}

func renderManifests(w io.Writer, rows []manifestRow) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Manifest", "Group", "Package", "Constraint"})
	table.SetAutoWrapText(false)
	table.SetAutoMergeCells(true)

	for _, row := range rows {
		switch {
		case row.Err != nil:
			table.Append([]string{row.Path, "-", "-", fmt.Sprintf("parse error: %v", row.Err)})
		case len(row.Deps) == 0:
			table.Append([]string{row.Path, "-", "-", "-"})
		default:
			for _, dep := range row.Deps {
				table.Append([]string{row.Path, dep.Group, dep.Name, dep.Constraint})
			}
		}
	}

	table.Render()
}
