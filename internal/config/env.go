package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable, e.g. TABPRUNE_LISTEN_ADDR.
const EnvPrefix = "tabprune"

// DefaultListenAddr is where the daemon serves its API and placeholder page.
const DefaultListenAddr = "127.0.0.1:7878"

// Env is the process configuration read from the environment. Command-line
// flags override it.
type Env struct {
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:"127.0.0.1:7878"`
	DebuggerURL string `envconfig:"DEBUGGER_URL"`
	BrowserBin  string `envconfig:"BROWSER_BIN"`
	Headless    bool   `envconfig:"HEADLESS" default:"false"`
	DataDir     string `envconfig:"DATA_DIR"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogDev      bool   `envconfig:"LOG_DEV" default:"false"`
}

// LoadEnv reads the TABPRUNE_* environment variables.
func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}
	return &env, nil
}

// DefaultEnv returns the configuration used when the environment is empty.
func DefaultEnv() *Env {
	return &Env{
		ListenAddr: DefaultListenAddr,
		LogLevel:   "info",
	}
}
