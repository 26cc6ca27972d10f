package config

import (
	"time"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/simulate"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

// Default values for settings that have no natural zero.
const (
	DefaultRetentionPerTarget = 5
	DefaultStepTimeout        = 30 * time.Second
	DefaultStartRetries       = 5
	DefaultStartBackoff       = 200 * time.Millisecond
	DefaultAddr               = "127.0.0.1:8088"
	DefaultShutdownTimeout    = 10 * time.Second
)

// NewDefaults returns a Config populated with all default values.
func NewDefaults() *Config {
	profiles := simulate.DefaultProfiles()
	profile := func(k workflow.Kind) ProfileConfig {
		p := profiles[k]
		return ProfileConfig{MinDelay: Dur(p.MinDelay), Jitter: Dur(p.Jitter)}
	}
	return &Config{
		Engine: EngineConfig{
			RetentionPerTarget: DefaultRetentionPerTarget,
			StepTimeout:        Dur(DefaultStepTimeout),
			StartRetries:       DefaultStartRetries,
			StartBackoff:       Dur(DefaultStartBackoff),
		},
		Simulation: SimulationConfig{
			Verification: profile(workflow.KindVerification),
			Remediation:  profile(workflow.KindRemediation),
			Suppression:  profile(workflow.KindSuppression),
		},
		Workflows: map[string]WorkflowConfig{},
		Server: ServerConfig{
			Addr:            DefaultAddr,
			ShutdownTimeout: Dur(DefaultShutdownTimeout),
		},
	}
}
