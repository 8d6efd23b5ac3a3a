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

// Config holds all configuration for the application
type Config struct {
	StorePath string `koanf:"store"`
	Port      int    `koanf:"port"`
	// MaxCacheSize bounds the graph cache by approximate byte size.
	MaxCacheSize uint64 `koanf:"max-cache-size"`
	// MaxConcurrency bounds the traversal fan-out per request.
	MaxConcurrency int `koanf:"max-concurrency"`
	// MaxDepth is the traversal depth used when a request gives none.
	MaxDepth  int    `koanf:"max-depth"`
	Verbosity string `koanf:"verbosity"`
	JSONLogs  bool   `koanf:"json-logs"`
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"store":           "./sbom-analyzer.db",
		"port":            8080,
		"max-cache-size":  uint64(200 * 1024 * 1024),
		"max-concurrency": 8,
		"max-depth":       1 << 20,
		"verbosity":       "",
		"json-logs":       false,
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional) - sbom-analyzer.toml
	// We ignore errors here as the file might not exist
	_ = k.Load(file.Provider("sbom-analyzer.toml"), toml.Parser())

	// 3. Environment Variables
	// Prefix: SBOM_ANALYZER_ (e.g., SBOM_ANALYZER_PORT=9090)
	if err := k.Load(env.Provider("SBOM_ANALYZER_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, "SBOM_ANALYZER_")), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// Unmarshal into struct
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
