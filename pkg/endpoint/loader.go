package endpoint

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type endpointsFile struct {
	Endpoints []Spec `yaml:"endpoints"`
}

// LoadFromFile reads the endpoints.yaml document and validates every
// definition in it. A single malformed endpoint fails the load; silently
// dropping definitions would hide typos until a scheduled run.
func LoadFromFile(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("empty endpoints file")
	}

	var doc endpointsFile
	if unmarshalErr := yaml.Unmarshal(data, &doc); unmarshalErr != nil {
		return nil, unmarshalErr
	}

	for i := range doc.Endpoints {
		if err := Validate(&doc.Endpoints[i]); err != nil {
			return nil, err
		}
	}

	return doc.Endpoints, nil
}

// Enabled filters a loaded spec list down to the endpoints that should run.
func Enabled(specs []Spec) []Spec {
	out := make([]Spec, 0, len(specs))
	for _, s := range specs {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks structural invariants that must hold before any task is
// planned for the endpoint.
func Validate(s *Spec) error {
	if s.Name == "" {
		return &ConfigError{Reason: "endpoint name is required"}
	}
	if s.Path == "" {
		return &ConfigError{Endpoint: s.Name, Reason: "endpoint path is required"}
	}

	switch s.Mode {
	case "", ModeOnetime:
		s.Mode = ModeOnetime
	case ModeBatch, ModeStreaming:
	default:
		return &ConfigError{Endpoint: s.Name, Reason: fmt.Sprintf("unknown execution_mode %q", s.Mode)}
	}

	if s.Mode == ModeBatch {
		if s.Batch == nil {
			return &ConfigError{Endpoint: s.Name, Reason: "batch endpoints require batch_config"}
		}
		if s.Batch.IterateBy == "" {
			return &ConfigError{Endpoint: s.Name, Reason: "batch_config.iterate_by is required"}
		}
		if !placeholderBound(s, s.Batch.IterateBy) {
			return &ConfigError{
				Endpoint: s.Name,
				Reason:   fmt.Sprintf("iterate_by %q has no {%s} placeholder in path or params", s.Batch.IterateBy, s.Batch.IterateBy),
			}
		}
		if len(s.Batch.Values) == 0 && (s.Batch.SourceTable == "" || s.Batch.SourceColumn == "") {
			return &ConfigError{Endpoint: s.Name, Reason: "batch_config needs either values or source_table+source_column"}
		}
	}

	if s.DateEnabled() {
		di := s.Batch.DateIteration
		if (di.StartDate == "") != (di.EndDate == "") {
			return &ConfigError{Endpoint: s.Name, Reason: "date_iteration needs both start_date and end_date, or neither"}
		}
	}

	return nil
}

// placeholderBound reports whether {name} occurs in the endpoint path or in
// any static query parameter value.
func placeholderBound(s *Spec, name string) bool {
	ph := "{" + name + "}"
	if strings.Contains(s.Path, ph) {
		return true
	}
	for _, v := range s.Params {
		if strings.Contains(v, ph) {
			return true
		}
	}
	return false
}
