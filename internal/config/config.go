// Package config reads the daemon's configuration from the
// environment. The miner runs headless next to a node process, so
// everything is an environment variable with a working default; there
// are no required settings.
package config

import (
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/nholt/zkminer/internal/mining"
)

// Environment variable names.
const (
	EnvMetricsAddr = "ZKMINER_METRICS_ADDR"
	EnvProgram     = "ZKMINER_PROGRAM"
	EnvTraceLog    = "ZKMINER_TRACE_LOG"
	EnvLogLevel    = "ZKMINER_LOG_LEVEL"
)

// DefaultMetricsAddr is where the operational HTTP endpoint listens.
const DefaultMetricsAddr = ":9090"

// Config is the daemon configuration.
type Config struct {
	// Mining holds the dispatcher settings, including the thread budget
	// from MINING_THREADS.
	Mining mining.Config
	// MetricsAddr is the listen address for the metrics endpoint. Empty
	// disables the endpoint.
	MetricsAddr string
	// ProgramPath points at the proving program image. Empty selects
	// the built-in program.
	ProgramPath string
	// TraceLog overrides the prover's trace size exponent when positive.
	TraceLog int
	// LogLevel is the zerolog level for the process.
	LogLevel zerolog.Level
}

// FromEnv assembles the configuration from the environment.
func FromEnv() Config {
	cfg := Config{
		Mining:      mining.FromEnv(),
		MetricsAddr: DefaultMetricsAddr,
		ProgramPath: os.Getenv(EnvProgram),
		LogLevel:    zerolog.InfoLevel,
	}
	if addr, ok := os.LookupEnv(EnvMetricsAddr); ok {
		cfg.MetricsAddr = addr
	}
	if raw := os.Getenv(EnvTraceLog); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.TraceLog = n
		}
	}
	if raw := os.Getenv(EnvLogLevel); raw != "" {
		if level, err := zerolog.ParseLevel(raw); err == nil {
			cfg.LogLevel = level
		}
	}
	return cfg
}
