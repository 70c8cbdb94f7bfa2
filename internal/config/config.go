package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath     = "trivy-exp-dep.yml"
	DefaultTrivyBinary    = "trivy"
	DefaultManifestSuffix = "pipfile"

	envPath           = "EXPDEP_PATH"
	envGlobal         = "EXPDEP_GLOBAL"
	envTrivyBinary    = "EXPDEP_TRIVY_BINARY"
	envReportPath     = "EXPDEP_REPORT_PATH"
	envManifestSuffix = "EXPDEP_MANIFEST_SUFFIX"
)

// Loader merges configuration coming from files, environment variables, and CLI flags.
type Loader struct {
	ConfigPath string
}

// RuntimeConfig contains the fully merged settings for a triage run.
type RuntimeConfig struct {
	Path           string
	GlobalOptions  []string
	TrivyBinary    string
	ReportPath     string
	ManifestSuffix string
	Events         bool
}

// Overrides captures values coming from env vars or CLI flags.
type Overrides struct {
	Path           string
	GlobalOptions  []string
	TrivyBinary    string
	ReportPath     string
	ManifestSuffix string
	Events         *bool
}

// DefaultRuntimeConfig returns the baseline configuration when no overrides
// are provided. The scan path defaults to the working directory.
func DefaultRuntimeConfig() RuntimeConfig {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return RuntimeConfig{
		Path:           cwd,
		TrivyBinary:    DefaultTrivyBinary,
		ManifestSuffix: DefaultManifestSuffix,
	}
}

// Load resolves the final runtime configuration.
func (l Loader) Load(override Overrides) (RuntimeConfig, error) {
	cfg := DefaultRuntimeConfig()
	path := l.ConfigPath
	if path == "" {
		path = DefaultConfigPath
	}

	if fileExists(path) {
		fileOv, err := loadFromFile(path)
		if err != nil {
			return cfg, fmt.Errorf("load %s: %w", path, err)
		}
		cfg.apply(fileOv)
	}

	cfg.apply(overridesFromEnv())
	cfg.apply(override)

	return cfg, nil
}

// Validate ensures the config carries everything a triage run needs. Whether
// Path is an existing directory is checked by the pipeline itself.
func (c RuntimeConfig) Validate() error {
	if c.Path == "" {
		return errors.New("scan path cannot be empty")
	}

	if c.TrivyBinary == "" {
		return errors.New("trivy binary cannot be empty")
	}

	if c.ManifestSuffix == "" {
		return errors.New("manifest suffix cannot be empty")
	}

	return nil
}

func (c *RuntimeConfig) apply(src Overrides) {
	if src.Path != "" {
		c.Path = src.Path
	}

	// Global options replace rather than accumulate: the last layer that
	// sets them wins, keeping their order intact.
	if len(src.GlobalOptions) > 0 {
		c.GlobalOptions = append([]string(nil), src.GlobalOptions...)
	}

	if src.TrivyBinary != "" {
		c.TrivyBinary = src.TrivyBinary
	}

	if src.ReportPath != "" {
		c.ReportPath = src.ReportPath
	}

	if src.ManifestSuffix != "" {
		c.ManifestSuffix = src.ManifestSuffix
	}

	if src.Events != nil {
		c.Events = *src.Events
	}
}

func loadFromFile(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Overrides{}, err
	}

	type rawConfig struct {
		Path           string     `yaml:"path"`
		Global         optionList `yaml:"global"`
		TrivyBinary    string     `yaml:"trivyBinary"`
		ReportPath     string     `yaml:"reportPath"`
		ManifestSuffix string     `yaml:"manifestSuffix"`
		Events         *bool      `yaml:"events"`
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Overrides{}, err
	}

	return Overrides{
		Path:           raw.Path,
		GlobalOptions:  raw.Global,
		TrivyBinary:    raw.TrivyBinary,
		ReportPath:     raw.ReportPath,
		ManifestSuffix: raw.ManifestSuffix,
		Events:         raw.Events,
	}, nil
}

func overridesFromEnv() Overrides {
	ov := Overrides{}

	if value := os.Getenv(envPath); value != "" {
		ov.Path = value
	}

	if value := os.Getenv(envGlobal); value != "" {
		ov.GlobalOptions = ParseGlobalOptions(value)
	}

	if value := os.Getenv(envTrivyBinary); value != "" {
		ov.TrivyBinary = value
	}

	if value := os.Getenv(envReportPath); value != "" {
		ov.ReportPath = value
	}

	if value := os.Getenv(envManifestSuffix); value != "" {
		ov.ManifestSuffix = value
	}

	return ov
}

// ParseGlobalOptions splits a whitespace separated option string, e.g.
// "--skip-dirs vendor --severity HIGH".
func ParseGlobalOptions(input string) []string {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// optionList enables YAML fields that can be specified as a scalar or sequence.
type optionList []string

func (o *optionList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var out []string
		for _, node := range value.Content {
			if v := strings.TrimSpace(node.Value); v != "" {
				out = append(out, v)
			}
		}
		*o = out
	case yaml.ScalarNode:
		*o = ParseGlobalOptions(value.Value)
	default:
		return fmt.Errorf("unsupported YAML type for global options")
	}
	return nil
}
