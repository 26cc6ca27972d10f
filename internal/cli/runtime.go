package cli

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/config"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/finding"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/logging"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/metrics"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/simulate"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

// loadAndResolveConfig loads and resolves the configuration from all sources
// (file, env, CLI flags). It returns the resolved config, the TOML metadata
// (nil when no file was found), and any loading error.
//
// When flagConfig is set, that path is used directly. Otherwise,
// config.FindConfigFile searches upward from the current directory.
func loadAndResolveConfig(cmd *cobra.Command, extra func(*config.CLIOverrides)) (*config.ResolvedConfig, *toml.MetaData, error) {
	var (
		fileCfg *config.Config
		meta    *toml.MetaData
		cfgPath string
	)

	if flagConfig != "" {
		cfgPath = flagConfig
	} else {
		found, err := config.FindConfigFile(".")
		if err != nil {
			return nil, nil, fmt.Errorf("finding config file: %w", err)
		}
		cfgPath = found
	}
	if cfgPath != "" {
		fc, md, err := config.LoadFromFile(cfgPath)
		if err != nil {
			return nil, nil, err
		}
		fileCfg = fc
		meta = &md
	}

	overrides := cliOverrides(cmd)
	if extra != nil {
		extra(overrides)
	}
	resolved, err := config.Resolve(config.NewDefaults(), fileCfg, meta, os.LookupEnv, overrides)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving config: %w", err)
	}
	resolved.Path = cfgPath
	return resolved, meta, nil
}

// loadValidConfig resolves the configuration and rejects it when validation
// reports errors. Warnings are logged.
func loadValidConfig(cmd *cobra.Command, extra func(*config.CLIOverrides)) (*config.ResolvedConfig, error) {
	resolved, meta, err := loadAndResolveConfig(cmd, extra)
	if err != nil {
		return nil, err
	}
	result := config.Validate(resolved.Config, meta)
	logger := logging.New(logging.ComponentCLI)
	for _, w := range result.Warnings() {
		logger.Warn("config", "field", w.Field, "issue", w.Message)
	}
	if result.HasErrors() {
		for _, e := range result.Errors() {
			logger.Error("config", "field", e.Field, "issue", e.Message)
		}
		return nil, fmt.Errorf("configuration has %d error(s); run 'sentinel config validate' for details", len(result.Errors()))
	}
	return resolved, nil
}

// runtime is the in-process wiring shared by the run and serve commands.
type runtime struct {
	cfg      *config.Config
	engine   *workflow.Engine
	findings *finding.Store
	conns    *finding.Connections
	metrics  *prometheus.Registry
	logger   *log.Logger
	sub      *workflow.Subscription
}

// newRuntime builds the registry, simulator, projector, engine, and metrics
// recorder from cfg. Close must be called to stop in-flight runs.
func newRuntime(cfg *config.Config) *runtime {
	registry := workflow.NewRegistry()
	workflow.RegisterBuiltinKinds(registry, cfg.StepOverrides())

	findings := finding.NewStore(finding.DefaultFindings()...)
	conns := finding.NewConnections(finding.DefaultConnections()...)

	sim := simulate.New(append(cfg.SimulatorOptions(),
		simulate.WithLogger(logging.New(logging.ComponentSimulate)))...)

	engine := workflow.NewEngine(registry, sim,
		workflow.WithLogger(logging.New(logging.ComponentEngine)),
		workflow.WithProjector(finding.NewProjector(findings, conns, logging.New(logging.ComponentProjector))),
		workflow.WithMaxConcurrentRuns(cfg.Engine.MaxConcurrentRuns),
		workflow.WithRetention(cfg.Engine.RetentionPerTarget),
		workflow.WithStepTimeout(cfg.Engine.StepTimeout.Duration),
	)

	promReg := prometheus.NewRegistry()
	rec := metrics.New(promReg, metrics.WithLogger(logging.New(logging.ComponentMetrics)))

	return &runtime{
		cfg:      cfg,
		engine:   engine,
		findings: findings,
		conns:    conns,
		metrics:  promReg,
		logger:   logging.New(logging.ComponentCLI),
		sub:      rec.Attach(engine),
	}
}

// Close cancels in-flight runs, waits for them to conclude, and closes the
// hub so event channels drain and close.
func (rt *runtime) Close() {
	rt.engine.Close()
	rt.sub.Unsubscribe()
	rt.engine.Hub().Close()
}
