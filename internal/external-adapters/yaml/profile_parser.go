// Package yaml provides YAML-based repair profile parsing and repository implementations.
package yaml

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ochairo/jnirepair/internal/domain/entities"
	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"
)

// yamlProfile represents the raw YAML structure
type yamlProfile struct {
	Name         string      `yaml:"name"`
	Description  string      `yaml:"description"`
	Library      string      `yaml:"library"`
	Dependency   string      `yaml:"dependency"`
	Version      string      `yaml:"version"`
	Architecture string      `yaml:"architecture"`
	Container    string      `yaml:"container"`
	Executable   string      `yaml:"executable"`
	WorkDir      string      `yaml:"work_dir"`
	Acquire      yamlAcquire `yaml:"acquire"`
	Strip        yamlStrip   `yaml:"strip"`
	Shim         yamlShim    `yaml:"shim"`
}

type yamlAcquire struct {
	Enabled              *bool             `yaml:"enabled"`
	URLTemplate          string            `yaml:"url_template"`
	TimeoutSeconds       int               `yaml:"timeout_seconds"`
	SHA256               map[string]string `yaml:"sha256"`
	SignatureURLTemplate string            `yaml:"signature_url_template"`
	SigningKey           string            `yaml:"signing_key"`
}

type yamlStrip struct {
	Strategies     []string `yaml:"strategies"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

type yamlShim struct {
	Enabled        *bool    `yaml:"enabled"`
	StubDir        string   `yaml:"stub_dir"`
	Compilers      []string `yaml:"compilers"`
	SearchDirs     []string `yaml:"search_dirs"`
	Shell          string   `yaml:"shell"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// ProfileParser parses YAML repair profiles
type ProfileParser struct {
	platform Platform
}

// NewProfileParser creates a new YAML parser that fills unset host paths
// from platform
func NewProfileParser(platform Platform) *ProfileParser {
	return &ProfileParser{platform: platform}
}

// ParseFile parses a YAML profile file into a Profile entity
func (p *ProfileParser) ParseFile(filePath string) (*entities.Profile, error) {
	//nolint:gosec // G304: filePath is a profile definition path from the repository
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	return p.Parse(data)
}

// Parse parses YAML bytes into a Profile entity
func (p *ProfileParser) Parse(data []byte) (*entities.Profile, error) {
	var raw yamlProfile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	env.Load()

	// Validate required fields
	if raw.Name == "" {
		return nil, fmt.Errorf("profile must have a name")
	}
	if raw.Library == "" {
		return nil, fmt.Errorf("profile %s must name a library", raw.Name)
	}
	if raw.Dependency == "" {
		return nil, fmt.Errorf("profile %s must name a dependency", raw.Name)
	}
	if raw.Architecture != "" && entities.ParseArchitecture(raw.Architecture) == entities.UnknownArch {
		return nil, fmt.Errorf("profile %s: unknown architecture %q", raw.Name, raw.Architecture)
	}

	strip, err := convertStrip(raw.Strip)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", raw.Name, err)
	}

	return &entities.Profile{
		Name:         raw.Name,
		Description:  raw.Description,
		Library:      raw.Library,
		Dependency:   raw.Dependency,
		Version:      raw.Version,
		Architecture: raw.Architecture,
		Container:    expand(raw.Container),
		Executable:   expand(raw.Executable),
		WorkDir:      expand(raw.WorkDir),
		Acquire:      convertAcquire(raw.Acquire),
		Strip:        strip,
		Shim:         p.convertShim(raw.Shim),
	}, nil
}

func convertAcquire(ya yamlAcquire) entities.AcquireConfig {
	enabled := ya.URLTemplate != ""
	if ya.Enabled != nil {
		enabled = *ya.Enabled
	}
	sums := make(map[string]string, len(ya.SHA256))
	for version, sum := range ya.SHA256 {
		sums[version] = strings.TrimSpace(sum)
	}
	return entities.AcquireConfig{
		Enabled:              enabled,
		URLTemplate:          ya.URLTemplate,
		Timeout:              seconds(ya.TimeoutSeconds),
		SHA256:               sums,
		SignatureURLTemplate: ya.SignatureURLTemplate,
		SigningKey:           expand(ya.SigningKey),
	}
}

func convertStrip(ys yamlStrip) (entities.StripConfig, error) {
	strategies := make([]entities.Strategy, 0, len(ys.Strategies))
	for _, s := range ys.Strategies {
		switch st := entities.Strategy(strings.TrimSpace(s)); st {
		case entities.StrategyPatchelf, entities.StrategyElfCleaner, entities.StrategyBuiltin:
			strategies = append(strategies, st)
		default:
			return entities.StripConfig{}, fmt.Errorf("unknown strip strategy %q", s)
		}
	}
	return entities.StripConfig{
		Strategies: strategies,
		Timeout:    seconds(ys.TimeoutSeconds),
	}, nil
}

func (p *ProfileParser) convertShim(ys yamlShim) entities.ShimConfig {
	enabled := true
	if ys.Enabled != nil {
		enabled = *ys.Enabled
	}

	cfg := entities.ShimConfig{
		Enabled:    enabled,
		StubDir:    expand(ys.StubDir),
		Compilers:  ys.Compilers,
		Shell:      expand(ys.Shell),
		Timeout:    seconds(ys.TimeoutSeconds),
		SearchDirs: make([]string, 0, len(ys.SearchDirs)),
	}
	for _, dir := range ys.SearchDirs {
		cfg.SearchDirs = append(cfg.SearchDirs, expand(dir))
	}

	if cfg.StubDir == "" {
		cfg.StubDir = p.platform.StubDir
	}
	if cfg.Shell == "" {
		cfg.Shell = p.platform.Shell
	}
	if len(cfg.SearchDirs) == 0 {
		cfg.SearchDirs = p.platform.SearchDirs
	}
	return cfg
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
