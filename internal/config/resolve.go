package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

// ConfigSource identifies where a configuration value came from.
type ConfigSource string

const (
	// SourceDefault indicates the value came from built-in defaults.
	SourceDefault ConfigSource = "default"
	// SourceFile indicates the value came from the sentinel.toml config file.
	SourceFile ConfigSource = "file"
	// SourceEnv indicates the value came from an environment variable.
	SourceEnv ConfigSource = "env"
	// SourceCLI indicates the value came from a CLI flag.
	SourceCLI ConfigSource = "cli"
)

// ResolvedConfig holds the fully-resolved configuration with source tracking.
// The Config field contains the merged values; Sources tracks where each came from.
type ResolvedConfig struct {
	Config  *Config
	Sources map[string]ConfigSource // key is dotted path, e.g., "engine.step_timeout"
	Path    string                  // path to the config file used (empty if none)
}

// CLIOverrides captures flag values that can override configuration.
// A nil field means "not set".
type CLIOverrides struct {
	MaxConcurrentRuns *int
	StepTimeout       *time.Duration
	Addr              *string
}

// EnvFunc is a function that looks up environment variables.
// Default implementation is os.LookupEnv. Injected for testability.
type EnvFunc func(key string) (string, bool)

// Environment variable names read by Resolve.
const (
	EnvMaxConcurrentRuns  = "SENTINEL_MAX_CONCURRENT_RUNS"
	EnvRetentionPerTarget = "SENTINEL_RETENTION_PER_TARGET"
	EnvStepTimeout        = "SENTINEL_STEP_TIMEOUT"
	EnvAddr               = "SENTINEL_ADDR"
)

// Resolve merges configuration from all sources in priority order:
// CLI flags > environment variables > config file > defaults.
//
// File values are applied when meta reports the key as defined, so an
// explicit zero (for example max_concurrent_runs = 0) overrides a default.
// When meta is nil, only non-zero file values are applied.
func Resolve(defaults, fileConfig *Config, meta *toml.MetaData, envFn EnvFunc, overrides *CLIOverrides) (*ResolvedConfig, error) {
	if defaults == nil {
		defaults = NewDefaults()
	}
	if envFn == nil {
		envFn = func(string) (string, bool) { return "", false }
	}
	if overrides == nil {
		overrides = &CLIOverrides{}
	}

	rc := &ResolvedConfig{
		Config:  copyConfig(defaults),
		Sources: make(map[string]ConfigSource),
	}
	for _, key := range trackedKeys() {
		rc.Sources[key] = SourceDefault
	}

	if fileConfig != nil {
		resolveFromFile(rc, fileConfig, meta)
	}
	if err := resolveFromEnv(rc, envFn); err != nil {
		return nil, err
	}
	resolveFromCLI(rc, overrides)
	return rc, nil
}

// trackedKeys lists every scalar key that carries a source annotation.
func trackedKeys() []string {
	keys := []string{
		"engine.max_concurrent_runs",
		"engine.retention_per_target",
		"engine.step_timeout",
		"engine.start_retries",
		"engine.start_backoff",
		"server.addr",
		"server.shutdown_timeout",
		"simulation.failures",
	}
	for _, k := range workflow.BuiltinKinds() {
		keys = append(keys,
			"simulation."+string(k)+".min_delay",
			"simulation."+string(k)+".jitter",
			"workflows."+string(k),
		)
	}
	return keys
}

// --- Layer 2: File ---

func resolveFromFile(rc *ResolvedConfig, file *Config, meta *toml.MetaData) {
	c := rc.Config
	set := func(path string, zero bool, apply func()) {
		if isDefined(meta, path, zero) {
			apply()
			rc.Sources[path] = SourceFile
		}
	}

	e, fe := &c.Engine, file.Engine
	set("engine.max_concurrent_runs", fe.MaxConcurrentRuns == 0, func() { e.MaxConcurrentRuns = fe.MaxConcurrentRuns })
	set("engine.retention_per_target", fe.RetentionPerTarget == 0, func() { e.RetentionPerTarget = fe.RetentionPerTarget })
	set("engine.step_timeout", fe.StepTimeout.Duration == 0, func() { e.StepTimeout = fe.StepTimeout })
	set("engine.start_retries", fe.StartRetries == 0, func() { e.StartRetries = fe.StartRetries })
	set("engine.start_backoff", fe.StartBackoff.Duration == 0, func() { e.StartBackoff = fe.StartBackoff })

	s, fs := &c.Server, file.Server
	set("server.addr", fs.Addr == "", func() { s.Addr = fs.Addr })
	set("server.shutdown_timeout", fs.ShutdownTimeout.Duration == 0, func() { s.ShutdownTimeout = fs.ShutdownTimeout })

	for _, k := range workflow.BuiltinKinds() {
		dst := profilePtr(&c.Simulation, k)
		src, _ := file.Simulation.Profile(k)
		prefix := "simulation." + string(k)
		set(prefix+".min_delay", src.MinDelay.Duration == 0, func() { dst.MinDelay = src.MinDelay })
		set(prefix+".jitter", src.Jitter.Duration == 0, func() { dst.Jitter = src.Jitter })
	}

	if len(file.Simulation.Failures) > 0 {
		c.Simulation.Failures = append([]FailureConfig(nil), file.Simulation.Failures...)
		rc.Sources["simulation.failures"] = SourceFile
	}

	for name, wf := range file.Workflows {
		c.Workflows[name] = WorkflowConfig{Steps: append([]StepConfig(nil), wf.Steps...)}
		rc.Sources["workflows."+name] = SourceFile
	}
}

// isDefined reports whether a file value at the dotted path should be applied.
func isDefined(meta *toml.MetaData, path string, zero bool) bool {
	if meta != nil {
		return meta.IsDefined(splitPath(path)...)
	}
	return !zero
}

// --- Layer 3: Environment ---

// Environment variable mapping:
//
//	SENTINEL_MAX_CONCURRENT_RUNS   -> engine.max_concurrent_runs
//	SENTINEL_RETENTION_PER_TARGET  -> engine.retention_per_target
//	SENTINEL_STEP_TIMEOUT          -> engine.step_timeout
//	SENTINEL_ADDR                  -> server.addr
func resolveFromEnv(rc *ResolvedConfig, envFn EnvFunc) error {
	e := &rc.Config.Engine

	if val, ok := envFn(EnvMaxConcurrentRuns); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxConcurrentRuns, err)
		}
		e.MaxConcurrentRuns = n
		rc.Sources["engine.max_concurrent_runs"] = SourceEnv
	}
	if val, ok := envFn(EnvRetentionPerTarget); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRetentionPerTarget, err)
		}
		e.RetentionPerTarget = n
		rc.Sources["engine.retention_per_target"] = SourceEnv
	}
	if val, ok := envFn(EnvStepTimeout); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvStepTimeout, err)
		}
		e.StepTimeout = Dur(d)
		rc.Sources["engine.step_timeout"] = SourceEnv
	}
	if val, ok := envFn(EnvAddr); ok {
		rc.Config.Server.Addr = val
		rc.Sources["server.addr"] = SourceEnv
	}
	return nil
}

// --- Layer 4: CLI overrides ---

func resolveFromCLI(rc *ResolvedConfig, overrides *CLIOverrides) {
	if overrides.MaxConcurrentRuns != nil {
		rc.Config.Engine.MaxConcurrentRuns = *overrides.MaxConcurrentRuns
		rc.Sources["engine.max_concurrent_runs"] = SourceCLI
	}
	if overrides.StepTimeout != nil {
		rc.Config.Engine.StepTimeout = Dur(*overrides.StepTimeout)
		rc.Sources["engine.step_timeout"] = SourceCLI
	}
	if overrides.Addr != nil {
		rc.Config.Server.Addr = *overrides.Addr
		rc.Sources["server.addr"] = SourceCLI
	}
}

// --- Helpers ---

func profilePtr(s *SimulationConfig, k workflow.Kind) *ProfileConfig {
	switch k {
	case workflow.KindVerification:
		return &s.Verification
	case workflow.KindRemediation:
		return &s.Remediation
	default:
		return &s.Suppression
	}
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	return append(parts, path[start:])
}

// copyConfig returns a deep copy of a Config.
func copyConfig(src *Config) *Config {
	dst := *src
	dst.Simulation.Failures = append([]FailureConfig(nil), src.Simulation.Failures...)
	dst.Workflows = make(map[string]WorkflowConfig, len(src.Workflows))
	for name, wf := range src.Workflows {
		dst.Workflows[name] = WorkflowConfig{Steps: append([]StepConfig(nil), wf.Steps...)}
	}
	return &dst
}
