package app

import (
	"errors"
	"fmt"
)

// Commands the application can run.
const (
	CommandSynth    = "synth"
	CommandValidate = "validate"
	CommandServe    = "serve"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Command        string
	DefinitionPath string // .hcl definition file or directory

	OutPath string // synth output file; empty writes to stdout
	Format  string // "json" or "yaml"
	Port    int    // serve mode listen port
	Stub    bool   // serve mode: offline stub backends instead of AWS
	Watch   bool   // synth mode: re-render on definition changes

	LogFormat string
	LogLevel  string
}

// NewConfig validates a Config and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.DefinitionPath == "" {
		return nil, errors.New("DefinitionPath is a required configuration field and cannot be empty")
	}
	switch cfg.Command {
	case CommandSynth, CommandValidate, CommandServe:
	default:
		return nil, fmt.Errorf("unknown command %q: must be %s, %s, or %s", cfg.Command, CommandSynth, CommandValidate, CommandServe)
	}
	switch cfg.Format {
	case "json", "yaml":
	default:
		return nil, fmt.Errorf("unknown output format %q: must be 'json' or 'yaml'", cfg.Format)
	}
	if cfg.Command == CommandServe && cfg.Port <= 0 {
		return nil, fmt.Errorf("serve requires a positive port, got %d", cfg.Port)
	}

	return &cfg, nil
}
