package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures process level settings for the simulator host. Library
// packages never read the environment; the host passes these values in.
type Config struct {
	TickInterval time.Duration `env:"AGENTSIM_TICK_INTERVAL" envDefault:"100ms"`
	Speed        int           `env:"AGENTSIM_SPEED" envDefault:"1"`
	LogLevel     string        `env:"AGENTSIM_LOG_LEVEL" envDefault:"info"`
	LogFormat    string        `env:"AGENTSIM_LOG_FORMAT" envDefault:"text"`
	AuditDBPath  string        `env:"AGENTSIM_AUDIT_DB"`
	ScenarioDir  string        `env:"AGENTSIM_SCENARIO_DIR"`
	RunTimeout   time.Duration `env:"AGENTSIM_RUN_TIMEOUT" envDefault:"2m"`
	ApprovalMode string        `env:"AGENTSIM_APPROVAL_MODE" envDefault:"approve"`
}

// Approval modes understood by the CLI host.
const (
	ApprovalModeApprove = "approve"
	ApprovalModeReject  = "reject"
	ApprovalModeLowRisk = "low-risk"
)

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the simulator cannot run with.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	switch c.Speed {
	case 1, 2, 5, 10:
	default:
		return fmt.Errorf("speed must be one of 1, 2, 5, 10, got %d", c.Speed)
	}
	switch c.ApprovalMode {
	case ApprovalModeApprove, ApprovalModeReject, ApprovalModeLowRisk:
	default:
		return fmt.Errorf("unknown approval mode %q", c.ApprovalMode)
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("run timeout must be positive, got %s", c.RunTimeout)
	}
	return nil
}
