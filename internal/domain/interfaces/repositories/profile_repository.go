// Package repositories defines interfaces for data access layers.
package repositories

import (
	"context"

	"github.com/ochairo/jnirepair/internal/domain/entities"
)

// ProfileRepository defines the interface for accessing repair profiles
type ProfileRepository interface {
	// GetProfile retrieves a repair profile by name
	GetProfile(ctx context.Context, name string) (*entities.Profile, error)

	// ListProfiles returns all available repair profiles
	ListProfiles(ctx context.Context) ([]*entities.Profile, error)
}
