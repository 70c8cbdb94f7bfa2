// Package report decodes the JSON report written by `trivy fs -f json` and
// extracts the package names that carry vulnerabilities.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
)

// ErrMissing is returned by Read when the report file does not exist.
var ErrMissing = errors.New("report file not found")

// Report is the subset of the trivy JSON report this tool relies on.
type Report struct {
	// Results is nil when the key is absent from the document.
	Results *[]Result `json:"Results"`
}

// ErrNullResults is returned when the document carries "Results": null.
var ErrNullResults = errors.New("null Results, expected an array")

// UnmarshalJSON keeps an absent Results key apart from an explicit null.
func (r *Report) UnmarshalJSON(data []byte) error {
	var raw struct {
		Results json.RawMessage `json:"Results"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Results = nil
	if raw.Results == nil {
		return nil
	}
	if string(raw.Results) == "null" {
		return ErrNullResults
	}

	var results []Result
	if err := json.Unmarshal(raw.Results, &results); err != nil {
		return err
	}
	r.Results = &results
	return nil
}

// Result is one scanned target inside a report.
type Result struct {
	Target          string          `json:"Target"`
	Vulnerabilities []Vulnerability `json:"Vulnerabilities"`
}

// Vulnerability is a single finding against a package.
type Vulnerability struct {
	VulnerabilityID string  `json:"VulnerabilityID"`
	PkgName         *string `json:"PkgName"`
}

// MalformedError describes a report that decoded but does not have the expected shape.
type MalformedError struct {
	Result        int
	Vulnerability int
	Reason        string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("Results[%d].Vulnerabilities[%d]: %s", e.Result, e.Vulnerability, e.Reason)
}

// Read loads and decodes the report at path.
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, path)
		}
		return nil, err
	}
	return Decode(data)
}

// Decode parses a report document and validates every vulnerability entry.
func Decode(data []byte) (*Report, error) {
	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	if err := rep.validate(); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &rep, nil
}

func (r *Report) validate() error {
	if r.Results == nil {
		return nil
	}
	for i, res := range *r.Results {
		for j, vuln := range res.Vulnerabilities {
			if vuln.PkgName == nil {
				return &MalformedError{Result: i, Vulnerability: j, Reason: "missing PkgName"}
			}
		}
	}
	return nil
}

// HasResults reports whether the document carried a Results array. A report
// without one means trivy found nothing to report.
func (r *Report) HasResults() bool {
	return r.Results != nil
}

// Packages walks every vulnerability in document order and returns the
// package names with consecutive repeats collapsed. Non-adjacent repeats are
// kept: "a b a" stays "a b a".
func (r *Report) Packages() []string {
	if r.Results == nil {
		return nil
	}

	pkgs := []string{}
	for _, res := range *r.Results {
		for _, vuln := range res.Vulnerabilities {
			pkgs = append(pkgs, *vuln.PkgName)
		}
	}
	return slices.Compact(pkgs)
}
