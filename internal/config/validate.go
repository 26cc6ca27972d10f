package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/simulate"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

// ValidationSeverity indicates whether a validation issue is an error or warning.
type ValidationSeverity string

const (
	// SeverityError indicates a fatal validation issue; the configuration is unusable.
	SeverityError ValidationSeverity = "error"
	// SeverityWarning indicates an informational validation issue; the configuration works
	// but may have problems.
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue represents a single validation finding.
type ValidationIssue struct {
	Severity ValidationSeverity
	Field    string // dotted path, e.g., "engine.step_timeout"
	Message  string
}

// ValidationResult holds all validation findings.
type ValidationResult struct {
	Issues []ValidationIssue
}

// HasErrors returns true if any issue has error severity.
func (vr *ValidationResult) HasErrors() bool {
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// HasWarnings returns true if any issue has warning severity.
func (vr *ValidationResult) HasWarnings() bool {
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// Errors returns only error-severity issues.
func (vr *ValidationResult) Errors() []ValidationIssue {
	var errs []ValidationIssue
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityError {
			errs = append(errs, issue)
		}
	}
	return errs
}

// Warnings returns only warning-severity issues.
func (vr *ValidationResult) Warnings() []ValidationIssue {
	var warns []ValidationIssue
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityWarning {
			warns = append(warns, issue)
		}
	}
	return warns
}

// Validate checks the configuration for correctness and completeness.
// It performs structural validation, semantic validation, and unknown key detection.
//
// Parameters:
//   - cfg: the configuration to validate
//   - meta: TOML metadata from BurntSushi/toml (may be nil if no file was loaded)
//
// Returns validation results. Check HasErrors() to determine if the config is usable.
func Validate(cfg *Config, meta *toml.MetaData) *ValidationResult {
	vr := &ValidationResult{}

	if cfg == nil {
		addError(vr, "", "configuration is nil")
		return vr
	}

	validateEngine(vr, &cfg.Engine)
	validateSimulation(vr, cfg)
	validateWorkflows(vr, cfg)
	validateServer(vr, &cfg.Server)
	validateUnknownKeys(vr, meta)

	return vr
}

// validateEngine checks the [engine] section.
func validateEngine(vr *ValidationResult, e *EngineConfig) {
	if e.MaxConcurrentRuns < 0 {
		addError(vr, "engine.max_concurrent_runs", "must be >= 0 (0 means unbounded)")
	}
	if e.RetentionPerTarget < 1 {
		addError(vr, "engine.retention_per_target", "must be >= 1")
	}
	if e.StepTimeout.Duration <= 0 {
		addError(vr, "engine.step_timeout", "must be a positive duration")
	}
	if e.StartRetries < 0 {
		addError(vr, "engine.start_retries", "must be >= 0")
	}
	if e.StartBackoff.Duration < 0 {
		addError(vr, "engine.start_backoff", "must not be negative")
	}
}

// validateSimulation checks [simulation.<kind>] profiles and failure rules.
func validateSimulation(vr *ValidationResult, cfg *Config) {
	for _, k := range workflow.BuiltinKinds() {
		p, _ := cfg.Simulation.Profile(k)
		prefix := "simulation." + string(k)
		if p.MinDelay.Duration < 0 {
			addError(vr, prefix+".min_delay", "must not be negative")
		}
		if p.Jitter.Duration < 0 {
			addError(vr, prefix+".jitter", "must not be negative")
		}
		if p.MinDelay.Duration+p.Jitter.Duration > cfg.Engine.StepTimeout.Duration && cfg.Engine.StepTimeout.Duration > 0 {
			addWarning(vr, prefix,
				fmt.Sprintf("min_delay + jitter exceeds engine.step_timeout (%s); steps may time out", cfg.Engine.StepTimeout.Duration))
		}
	}

	for i, f := range cfg.Simulation.Failures {
		prefix := fmt.Sprintf("simulation.failures[%d]", i)

		switch {
		case f.Target == "":
			addError(vr, prefix+".target", "must not be empty")
		case !doublestar.ValidatePattern(f.Target):
			addError(vr, prefix+".target", fmt.Sprintf("invalid glob pattern %q", f.Target))
		}

		var kind workflow.Kind
		if f.Kind != "" {
			k := workflow.Kind(f.Kind)
			if workflow.BuiltinSteps(k) == nil {
				addError(vr, prefix+".kind",
					fmt.Sprintf("unrecognized kind %q; must be one of: %s, or empty", f.Kind, kindList()))
				continue
			}
			kind = k
		}

		if f.Step != nil {
			if *f.Step < simulate.AnyStep {
				addError(vr, prefix+".step", "must be >= -1 (-1 matches any step)")
			} else if kind != "" && *f.Step >= stepCount(cfg, kind) {
				addError(vr, prefix+".step",
					fmt.Sprintf("step %d is out of range for %s (%d steps)", *f.Step, kind, stepCount(cfg, kind)))
			}
		}
	}
}

// validateWorkflows checks all [workflows.*] overrides.
func validateWorkflows(vr *ValidationResult, cfg *Config) {
	result := workflow.ValidateOverrides(cfg.StepOverrides())
	for _, issue := range result.Errors {
		addError(vr, workflowField(issue), issue.Message)
	}
	for _, issue := range result.Warnings {
		addWarning(vr, workflowField(issue), issue.Message)
	}
}

// validateServer checks the [server] section.
func validateServer(vr *ValidationResult, s *ServerConfig) {
	if s.Addr == "" {
		addWarning(vr, "server.addr", fmt.Sprintf("empty; serve will listen on %s", DefaultAddr))
	}
	if s.ShutdownTimeout.Duration < 0 {
		addError(vr, "server.shutdown_timeout", "must not be negative")
	}
}

func workflowField(issue workflow.ValidationIssue) string {
	field := "workflows." + string(issue.Kind)
	if issue.Step >= 0 {
		field += fmt.Sprintf(".steps[%d]", issue.Step)
	}
	return field
}

// stepCount returns the number of steps kind will run with this config.
func stepCount(cfg *Config, kind workflow.Kind) int {
	if wf, ok := cfg.Workflows[string(kind)]; ok && len(wf.Steps) > 0 {
		return len(wf.Steps)
	}
	return len(workflow.BuiltinSteps(kind))
}

func kindList() string {
	kinds := workflow.BuiltinKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// validateUnknownKeys checks for TOML keys that did not map to any config struct field.
func validateUnknownKeys(vr *ValidationResult, meta *toml.MetaData) {
	if meta == nil {
		return
	}

	for _, key := range meta.Undecoded() {
		path := strings.Join(key, ".")
		addWarning(vr, path, "unknown configuration key")
	}
}

// addError appends an error-severity issue to the validation result.
func addError(vr *ValidationResult, field, message string) {
	vr.Issues = append(vr.Issues, ValidationIssue{
		Severity: SeverityError,
		Field:    field,
		Message:  message,
	})
}

// addWarning appends a warning-severity issue to the validation result.
func addWarning(vr *ValidationResult, field, message string) {
	vr.Issues = append(vr.Issues, ValidationIssue{
		Severity: SeverityWarning,
		Field:    field,
		Message:  message,
	})
}
