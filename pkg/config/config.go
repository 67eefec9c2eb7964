package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds all configuration for the editor tool
type Config struct {
	Schema      string `koanf:"schema"`      // path to the JSON Schema document to load
	Serve       bool   `koanf:"serve"`       // start the editor API server instead of printing
	Port        int    `koanf:"port"`        // server port (only used with --serve)
	Watch       bool   `koanf:"watch"`       // re-import the schema file when it changes on disk
	Debounce    int    `koanf:"debounce"`    // regeneration quiet period in milliseconds
	MaxWait     int    `koanf:"maxwait"`     // regeneration max wait in milliseconds
	JSONLogs    bool   `koanf:"jsonlogs"`    // emit JSON logs instead of the compact console format
	Verbosity   string `koanf:"verbosity"`   // explicit slog level name
	PrettyPrint bool   `koanf:"pretty"`      // indent printed documents
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"schema":    "",
		"serve":     false,
		"port":      8080,
		"watch":     false,
		"debounce":  150,
		"maxwait":   1000,
		"jsonlogs":  false,
		"verbosity": "",
		"pretty":    true,
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional) - formgraph.toml
	// The file might not exist; that is fine
	_ = k.Load(file.Provider("formgraph.toml"), toml.Parser())

	// 3. Environment Variables
	// Prefix: FORMGRAPH_ (e.g., FORMGRAPH_PORT=9090)
	if err := k.Load(env.Provider("FORMGRAPH_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, "FORMGRAPH_")), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
