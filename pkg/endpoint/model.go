package endpoint

import "fmt"

// Execution modes supported by the pipeline.
const (
	ModeOnetime   = "onetime"
	ModeBatch     = "batch"
	ModeStreaming = "streaming"
)

// Spec is one declarative endpoint definition from endpoints.yaml.
type Spec struct {
	Name          string            `yaml:"name"`
	Description   string            `yaml:"description,omitempty"`
	Path          string            `yaml:"path"`
	Mode          string            `yaml:"execution_mode"`
	Table         string            `yaml:"table,omitempty"` // defaults to Name
	Params        map[string]string `yaml:"params,omitempty"`
	PathVariables map[string]string `yaml:"path_variables,omitempty"`
	Batch         *BatchConfig      `yaml:"batch_config,omitempty"`
	PartitionKey  []string          `yaml:"partition_key,omitempty"`
	InjectColumns map[string]string `yaml:"inject_columns,omitempty"`
	Enabled       *bool             `yaml:"enabled,omitempty"` // nil means enabled
}

// BatchConfig drives value iteration for batch endpoints. Values wins over
// the table source when both are present.
type BatchConfig struct {
	IterateBy     string         `yaml:"iterate_by"`
	Values        []string       `yaml:"values,omitempty"`
	SourceTable   string         `yaml:"source_table,omitempty"`
	SourceColumn  string         `yaml:"source_column,omitempty"`
	SourceFilter  string         `yaml:"source_filter,omitempty"`
	DateIteration *DateIteration `yaml:"date_iteration,omitempty"`
}

// DateIteration expands a date span into one fetch per calendar day.
type DateIteration struct {
	Enabled    bool   `yaml:"enabled"`
	StartDate  string `yaml:"start_date,omitempty"`
	EndDate    string `yaml:"end_date,omitempty"`
	DateColumn string `yaml:"date_column,omitempty"`
}

// IsEnabled reports whether the endpoint should run. Endpoints are enabled
// unless explicitly switched off.
func (s *Spec) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// TableName returns the destination table, falling back to the endpoint name.
func (s *Spec) TableName() string {
	if s.Table != "" {
		return s.Table
	}
	return s.Name
}

// DateEnabled reports whether date iteration is configured and switched on.
func (s *Spec) DateEnabled() bool {
	return s.Batch != nil && s.Batch.DateIteration != nil && s.Batch.DateIteration.Enabled
}

// ConfigError marks an endpoint definition (or a runtime date argument set)
// the pipeline refuses to plan.
type ConfigError struct {
	Endpoint string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Endpoint == "" {
		return "config error: " + e.Reason
	}
	return fmt.Sprintf("endpoint %s: %s", e.Endpoint, e.Reason)
}
