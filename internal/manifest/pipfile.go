package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
)

// Dependency groups as named in a Pipfile.
const (
	GroupDefault = "packages"
	GroupDev     = "dev-packages"
)

// Dependency is a single package declared in a manifest.
type Dependency struct {
	Name       string
	Group      string
	Constraint string
}

type pipfile struct {
	Packages    map[string]toml.Primitive `toml:"packages"`
	DevPackages map[string]toml.Primitive `toml:"dev-packages"`
}

// pipfileDetail is the table form, e.g. requests = {version = ">=2", extras = ["socks"]}.
type pipfileDetail struct {
	Version string `toml:"version"`
	Git     string `toml:"git"`
	Ref     string `toml:"ref"`
	Path    string `toml:"path"`
}

// ReadPipfile decodes the packages declared in a Pipfile. Results are
// ordered default group first, then by name.
func ReadPipfile(path string) ([]Dependency, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var parsed pipfile
	md, err := toml.Decode(string(data), &parsed)
	if err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", path, err)
	}

	deps, err := collect(md, GroupDefault, parsed.Packages)
	if err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", path, err)
	}
	dev, err := collect(md, GroupDev, parsed.DevPackages)
	if err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", path, err)
	}

	return append(deps, dev...), nil
}

func collect(md toml.MetaData, group string, section map[string]toml.Primitive) ([]Dependency, error) {
	names := make([]string, 0, len(section))
	for name := range section {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make([]Dependency, 0, len(names))
	for _, name := range names {
		constraint, err := constraintOf(md, section[name])
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", group, name, err)
		}
		deps = append(deps, Dependency{Name: name, Group: group, Constraint: constraint})
	}
	return deps, nil
}

func constraintOf(md toml.MetaData, prim toml.Primitive) (string, error) {
	var version string
	if err := md.PrimitiveDecode(prim, &version); err == nil {
		return version, nil
	}

	var detail pipfileDetail
	if err := md.PrimitiveDecode(prim, &detail); err != nil {
		return "", err
	}

	switch {
	case detail.Version != "":
		return detail.Version, nil
	case detail.Git != "" && detail.Ref != "":
		return detail.Git + "@" + detail.Ref, nil
	case detail.Git != "":
		return detail.Git, nil
	case detail.Path != "":
		return detail.Path, nil
	default:
		return "*", nil
	}
}
