package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/simulate"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

// Config is the top-level configuration structure mapping to sentinel.toml.
type Config struct {
	Engine     EngineConfig              `toml:"engine"`
	Simulation SimulationConfig          `toml:"simulation"`
	Workflows  map[string]WorkflowConfig `toml:"workflows"`
	Server     ServerConfig              `toml:"server"`
}

// EngineConfig maps to the [engine] section in sentinel.toml.
type EngineConfig struct {
	// MaxConcurrentRuns bounds active runs across all targets; 0 is unbounded.
	MaxConcurrentRuns  int      `toml:"max_concurrent_runs"`
	RetentionPerTarget int      `toml:"retention_per_target"`
	StepTimeout        Duration `toml:"step_timeout"`
	StartRetries       int      `toml:"start_retries"`
	StartBackoff       Duration `toml:"start_backoff"`
}

// SimulationConfig maps to the [simulation] section in sentinel.toml.
type SimulationConfig struct {
	Verification ProfileConfig   `toml:"verification"`
	Remediation  ProfileConfig   `toml:"remediation"`
	Suppression  ProfileConfig   `toml:"suppression"`
	Failures     []FailureConfig `toml:"failures"`
}

// ProfileConfig maps to a [simulation.<kind>] section.
type ProfileConfig struct {
	MinDelay Duration `toml:"min_delay"`
	Jitter   Duration `toml:"jitter"`
}

// FailureConfig maps to a [[simulation.failures]] entry. Step is optional;
// when omitted every step of the matching runs fails.
type FailureConfig struct {
	Target string `toml:"target"`
	Kind   string `toml:"kind"`
	Step   *int   `toml:"step"`
	Code   string `toml:"code"`
	Detail string `toml:"detail"`
}

// WorkflowConfig maps to a [workflows.<kind>] section; it replaces the
// built-in step list for that kind.
type WorkflowConfig struct {
	Steps []StepConfig `toml:"steps"`
}

// StepConfig maps to a [[workflows.<kind>.steps]] entry.
type StepConfig struct {
	Label       string `toml:"label"`
	Description string `toml:"description"`
}

// ServerConfig maps to the [server] section in sentinel.toml.
type ServerConfig struct {
	Addr            string   `toml:"addr"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// Duration is a time.Duration that decodes from TOML strings such as "750ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Dur wraps a time.Duration.
func Dur(d time.Duration) Duration { return Duration{Duration: d} }

// Profile returns the simulation profile configured for kind.
func (s SimulationConfig) Profile(kind workflow.Kind) (ProfileConfig, bool) {
	switch kind {
	case workflow.KindVerification:
		return s.Verification, true
	case workflow.KindRemediation:
		return s.Remediation, true
	case workflow.KindSuppression:
		return s.Suppression, true
	default:
		return ProfileConfig{}, false
	}
}

// StepOverrides converts [workflows.*] sections into registry overrides.
func (c *Config) StepOverrides() map[workflow.Kind][]workflow.StepDefinition {
	if len(c.Workflows) == 0 {
		return nil
	}
	out := make(map[workflow.Kind][]workflow.StepDefinition, len(c.Workflows))
	for name, wf := range c.Workflows {
		defs := make([]workflow.StepDefinition, len(wf.Steps))
		for i, s := range wf.Steps {
			defs[i] = workflow.StepDefinition{Label: s.Label, Description: s.Description}
		}
		out[workflow.Kind(name)] = defs
	}
	return out
}

// SimulatorOptions converts [simulation] into simulator options.
func (c *Config) SimulatorOptions() []simulate.Option {
	var opts []simulate.Option
	for _, k := range workflow.BuiltinKinds() {
		p, _ := c.Simulation.Profile(k)
		opts = append(opts, simulate.WithProfile(k, simulate.Profile{
			MinDelay: p.MinDelay.Duration,
			Jitter:   p.Jitter.Duration,
		}))
	}
	if len(c.Simulation.Failures) > 0 {
		fs := make([]simulate.Failure, len(c.Simulation.Failures))
		for i, f := range c.Simulation.Failures {
			step := simulate.AnyStep
			if f.Step != nil {
				step = *f.Step
			}
			fs[i] = simulate.Failure{
				Target: f.Target,
				Kind:   workflow.Kind(f.Kind),
				Step:   step,
				Code:   f.Code,
				Detail: f.Detail,
			}
		}
		opts = append(opts, simulate.WithFailures(fs...))
	}
	return opts
}

// RetryPolicy returns the start retry policy from [engine].
func (c *Config) RetryPolicy() workflow.RetryPolicy {
	return workflow.RetryPolicy{
		MaxAttempts: c.Engine.StartRetries,
		Backoff:     c.Engine.StartBackoff.Duration,
	}
}

// WorkflowNames returns the [workflows.*] keys in sorted order.
func (c *Config) WorkflowNames() []string {
	names := make([]string, 0, len(c.Workflows))
	for n := range c.Workflows {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
