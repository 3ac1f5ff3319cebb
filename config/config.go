package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/docker/go-units"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Strategy names accepted in the strategies list
const (
	StrategyChrome   = "chrome"
	StrategyPrettier = "prettier"
	StrategyDocker   = "docker"
	StrategyESBuild  = "esbuild"
	StrategyReindent = "reindent"
)

// KnownStrategies lists every strategy in the default order. The
// parse-and-regenerate tier always precedes the heuristic re-indenter.
var KnownStrategies = []string{
	StrategyChrome,
	StrategyPrettier,
	StrategyDocker,
	StrategyESBuild,
	StrategyReindent,
}

// FileName is the name of the configuration file searched for
const FileName = ".jsprettify.yaml"

// Config represents the complete .jsprettify.yaml file structure
type Config struct {
	// Version of the configuration format
	Version string `yaml:"version"`

	// Strategies in the order they are attempted
	Strategies []string `yaml:"strategies"`

	// Timeout for a single strategy attempt (e.g., "60s")
	Timeout string `yaml:"timeout,omitempty"`

	// Log level (debug, info, warn, error) and optional log file
	LogLevel string `yaml:"log_level,omitempty"`
	LogFile  string `yaml:"log_file,omitempty"`

	// Whether to syntax-check the written output
	ValidateOutput bool `yaml:"validate"`

	Prettier PrettierConfig `yaml:"prettier"`
	Chrome   ChromeConfig   `yaml:"chrome"`
	Docker   DockerConfig   `yaml:"docker"`
	Reindent ReindentConfig `yaml:"reindent"`
	Cache    CacheConfig    `yaml:"cache"`
}

// PrettierConfig holds the prettier options shared by the chrome, prettier
// and docker strategies
type PrettierConfig struct {
	Parser      string `yaml:"parser"`
	Semi        bool   `yaml:"semi"`
	SingleQuote bool   `yaml:"single_quote"`
	TabWidth    int    `yaml:"tab_width"`
	PrintWidth  int    `yaml:"print_width"`

	// NodeVersion is the semver constraint the local node must satisfy
	NodeVersion string `yaml:"node_version"`
}

// ChromeConfig configures the browser strategy
type ChromeConfig struct {
	// ExecPath overrides browser discovery
	ExecPath string `yaml:"exec_path,omitempty"`

	// Scripts are loaded into the page, in order, before formatting
	Scripts []string `yaml:"scripts"`

	Headless bool `yaml:"headless"`
}

// DockerConfig configures the container strategy
type DockerConfig struct {
	Image   string `yaml:"image"`
	Package string `yaml:"package"`

	// Memory limit (e.g., "512m", "1g")
	Memory string `yaml:"memory,omitempty"`

	// CPU limit (e.g., "1.0" for one full CPU, "0.5" for half)
	CPULimit string `yaml:"cpu_limit,omitempty"`

	// Network mode (e.g., "bridge", "host", "none")
	NetworkMode string `yaml:"network_mode,omitempty"`
}

// ReindentConfig configures the heuristic re-indenter
type ReindentConfig struct {
	Indent string `yaml:"indent"`
}

// CacheConfig configures the result cache and run history
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
	Size    int    `yaml:"size"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Version:        "1.0",
		Strategies:     append([]string(nil), KnownStrategies...),
		Timeout:        "60s",
		LogLevel:       "warn",
		ValidateOutput: true,
		Prettier: PrettierConfig{
			Parser:      "babel",
			Semi:        false,
			SingleQuote: false,
			TabWidth:    4,
			PrintWidth:  120,
			NodeVersion: ">= 14.0.0",
		},
		Chrome: ChromeConfig{
			Scripts: []string{
				"https://unpkg.com/prettier@3/standalone.js",
				"https://unpkg.com/prettier@3/plugins/babel.js",
				"https://unpkg.com/prettier@3/plugins/estree.js",
			},
			Headless: true,
		},
		Docker: DockerConfig{
			Image:       "node:20-alpine",
			Package:     "prettier@3",
			Memory:      "512m",
			NetworkMode: "bridge",
		},
		Reindent: ReindentConfig{
			Indent: "    ",
		},
		Cache: CacheConfig{
			Enabled: true,
			Size:    256,
		},
	}
}

// StrategyTimeout returns the per-strategy timeout, zero meaning none
func (c *Config) StrategyTimeout() time.Duration {
	if c.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// HasStrategy reports whether name is in the configured strategy list
func (c *Config) HasStrategy(name string) bool {
	for _, s := range c.Strategies {
		if s == name {
			return true
		}
	}
	return false
}

// CachePath returns the configured database path or the default location
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return DefaultCachePath()
}

// DefaultCachePath returns <user cache dir>/jsprettify/history.db
func DefaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "jsprettify", "history.db")
}

// Fingerprint identifies every setting that can change formatted output.
// It is part of the cache key.
func (c *Config) Fingerprint() string {
	relevant := struct {
		Strategies []string       `yaml:"strategies"`
		Prettier   PrettierConfig `yaml:"prettier"`
		Scripts    []string       `yaml:"scripts"`
		Package    string         `yaml:"package"`
		Indent     string         `yaml:"indent"`
	}{c.Strategies, c.Prettier, c.Chrome.Scripts, c.Docker.Package, c.Reindent.Indent}

	data, err := yaml.Marshal(relevant)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", relevant))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("configuration version is required")
	}

	if len(c.Strategies) == 0 {
		return fmt.Errorf("at least one strategy is required")
	}
	seen := make(map[string]bool)
	for _, name := range c.Strategies {
		if !isKnownStrategy(name) {
			return fmt.Errorf("unknown strategy %q (known: %s)", name, strings.Join(KnownStrategies, ", "))
		}
		if seen[name] {
			return fmt.Errorf("strategy %q listed twice", name)
		}
		seen[name] = true
	}

	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout format: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("timeout cannot be negative")
		}
	}

	if c.LogLevel != "" {
		switch strings.ToLower(c.LogLevel) {
		case "debug", "info", "warn", "warning", "error":
		default:
			return fmt.Errorf("invalid log level: %s", c.LogLevel)
		}
	}

	if err := c.Prettier.Validate(); err != nil {
		return fmt.Errorf("invalid prettier configuration: %w", err)
	}

	if c.HasStrategy(StrategyChrome) && len(c.Chrome.Scripts) == 0 {
		return fmt.Errorf("invalid chrome configuration: at least one script is required")
	}

	if c.HasStrategy(StrategyDocker) {
		if err := c.Docker.Validate(); err != nil {
			return fmt.Errorf("invalid docker configuration: %w", err)
		}
	}

	if c.Cache.Enabled && c.Cache.Size <= 0 {
		return fmt.Errorf("cache size must be positive")
	}

	return nil
}

// Validate checks if the prettier options are valid
func (p *PrettierConfig) Validate() error {
	switch p.Parser {
	case "babel", "babel-flow", "flow", "acorn", "espree", "meriyah":
	default:
		return fmt.Errorf("unsupported parser: %s", p.Parser)
	}
	if p.TabWidth <= 0 {
		return fmt.Errorf("tab width must be positive")
	}
	if p.PrintWidth <= 0 {
		return fmt.Errorf("print width must be positive")
	}
	if p.NodeVersion != "" {
		if _, err := semver.NewConstraint(p.NodeVersion); err != nil {
			return fmt.Errorf("invalid node version constraint: %w", err)
		}
	}
	return nil
}

// Validate checks if the docker options are valid
func (d *DockerConfig) Validate() error {
	if d.Image == "" {
		return fmt.Errorf("image is required")
	}
	if d.Package == "" {
		return fmt.Errorf("package is required")
	}
	if d.Memory != "" {
		if _, err := units.RAMInBytes(d.Memory); err != nil {
			return fmt.Errorf("invalid memory format: %w", err)
		}
	}
	if d.CPULimit != "" {
		cpus, err := strconv.ParseFloat(d.CPULimit, 64)
		if err != nil || cpus <= 0 {
			return fmt.Errorf("invalid CPU limit: %s", d.CPULimit)
		}
	}
	switch d.NetworkMode {
	case "", "bridge", "host", "none":
	default:
		return fmt.Errorf("invalid network mode: %s", d.NetworkMode)
	}
	return nil
}

func isKnownStrategy(name string) bool {
	for _, known := range KnownStrategies {
		if name == known {
			return true
		}
	}
	return false
}

// FindConfigFile returns the first existing config file in the working
// directory or the home directory, or "" when there is none
func FindConfigFile() string {
	candidates := []string{FileName}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, FileName))
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// Load reads the configuration. An explicit path must exist; otherwise the
// search locations are tried and the defaults used when nothing is found.
// A .env file is loaded before environment overrides are applied. The
// returned path is the file actually read, "" for defaults. The result is
// not validated; callers apply their own overrides and then call Validate.
func Load(path string) (*Config, string, error) {
	if path == "" {
		path = FindConfigFile()
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, path, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, path, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	_ = godotenv.Load()
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, path, err
	}

	return cfg, path, nil
}

// ApplyEnv applies JSPRETTIFY_* overrides read through getenv
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv("JSPRETTIFY_STRATEGIES")); v != "" {
		c.Strategies = ParseStrategyList(v)
	}
	if v := strings.TrimSpace(getenv("JSPRETTIFY_CHROME_PATH")); v != "" {
		c.Chrome.ExecPath = v
	}
	if v := strings.TrimSpace(getenv("JSPRETTIFY_DOCKER_IMAGE")); v != "" {
		c.Docker.Image = v
	}
	if v := strings.TrimSpace(getenv("JSPRETTIFY_CACHE_DB")); v != "" {
		c.Cache.Path = v
	}
	if v := strings.TrimSpace(getenv("JSPRETTIFY_TIMEOUT")); v != "" {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid JSPRETTIFY_TIMEOUT: %w", err)
		}
		c.Timeout = v
	}
	return nil
}

// ParseStrategyList splits a comma separated strategy list
func ParseStrategyList(list string) []string {
	var names []string
	for _, part := range strings.Split(list, ",") {
		if name := strings.ToLower(strings.TrimSpace(part)); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Save writes the configuration to path
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
