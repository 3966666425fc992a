package yaml

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ochairo/jnirepair/internal/domain/entities"
	"github.com/ochairo/jnirepair/internal/domain/failures"
	"github.com/ochairo/jnirepair/internal/domain/interfaces"
)

//go:embed profiles/*.yml
var builtinProfiles embed.FS

// ProfileRepository implements repositories.ProfileRepository using YAML
// files. Profiles in profilesDir take precedence over the built-in ones.
type ProfileRepository struct {
	profilesDir string
	parser      *ProfileParser
	logger      interfaces.Logger
}

// NewProfileRepository creates a new YAML-based profile repository.
// profilesDir may be empty, in which case only built-in profiles exist.
func NewProfileRepository(profilesDir string, parser *ProfileParser, logger interfaces.Logger) *ProfileRepository {
	return &ProfileRepository{
		profilesDir: profilesDir,
		parser:      parser,
		logger:      interfaces.OrNoOp(logger),
	}
}

// GetProfile retrieves a repair profile by name
func (r *ProfileRepository) GetProfile(_ context.Context, name string) (*entities.Profile, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, failures.New(failures.NotFound, fmt.Sprintf("invalid profile name %q", name), nil)
	}

	if r.profilesDir != "" {
		for _, ext := range []string{".yml", ".yaml"} {
			filePath := filepath.Join(r.profilesDir, name+ext)
			if _, err := os.Stat(filePath); err == nil {
				return r.parser.ParseFile(filePath)
			}
		}
	}

	data, err := builtinProfiles.ReadFile("profiles/" + name + ".yml")
	if err != nil {
		return nil, failures.New(failures.NotFound, "profile not found: "+name, nil)
	}
	return r.parser.Parse(data)
}

// ListProfiles returns all available repair profiles sorted by name
func (r *ProfileRepository) ListProfiles(_ context.Context) ([]*entities.Profile, error) {
	byName := make(map[string]*entities.Profile)

	builtin, err := builtinProfiles.ReadDir("profiles")
	if err != nil {
		return nil, fmt.Errorf("failed to read built-in profiles: %w", err)
	}
	for _, entry := range builtin {
		data, err := builtinProfiles.ReadFile("profiles/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read built-in profile %s: %w", entry.Name(), err)
		}
		profile, err := r.parser.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("built-in profile %s: %w", entry.Name(), err)
		}
		byName[profile.Name] = profile
	}

	if r.profilesDir != "" {
		entries, err := os.ReadDir(r.profilesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read profiles directory: %w", err)
		}
		for _, entry := range entries {
			// Skip non-YAML files
			if entry.IsDir() || !isYAML(entry.Name()) {
				continue
			}

			profile, err := r.parser.ParseFile(filepath.Join(r.profilesDir, entry.Name()))
			if err != nil {
				// Log warning but continue processing other files
				r.logger.Warn("skipping unparsable profile",
					interfaces.F("file", entry.Name()),
					interfaces.F("error", err))
				continue
			}
			byName[profile.Name] = profile
		}
	}

	profiles := make([]*entities.Profile, 0, len(byName))
	for _, p := range byName {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yml") || strings.HasSuffix(name, ".yaml")
}
