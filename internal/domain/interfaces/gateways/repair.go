// Package gateways defines interfaces for the repair pipeline's adapters.
package gateways

import (
	"context"

	"github.com/ochairo/jnirepair/internal/domain/entities"
)

// ContainerInspector locates the native library inside a container
type ContainerInspector interface {
	// FindLibrary enumerates entries and returns the first whose base name matches
	FindLibrary(ctx context.Context, containerPath, baseName string) (*entities.InspectResult, error)

	// VerifyEntry confirms an already-known internal path exists verbatim
	VerifyEntry(ctx context.Context, containerPath, internalPath string) error
}

// Acquirer fetches a prebuilt replacement library
type Acquirer interface {
	Acquire(ctx context.Context, target *entities.LibraryTarget, workDir string) (*entities.AcquiredLibrary, entities.AcquisitionAttempt, error)
}

// Extractor pulls one entry out of a container
type Extractor interface {
	Extract(ctx context.Context, containerPath, internalPath, workDir string) (string, error)
}

// DependencyStripper removes a declared dynamic dependency from a library
type DependencyStripper interface {
	Strip(ctx context.Context, libraryPath, dependency string) (*entities.StripResult, error)
}

// Repackager writes a library back into a container at a fixed internal path
type Repackager interface {
	Repackage(ctx context.Context, containerPath, internalPath, libraryPath string) error
}

// ShimRequest describes a runtime shim installation
type ShimRequest struct {
	Dependency     string
	ExecutablePath string
}

// ShimInstaller installs the stub library and wraps the launcher
type ShimInstaller interface {
	Install(ctx context.Context, req ShimRequest) (*entities.ShimInstallation, error)
}

// Locker serializes repairs per container
type Locker interface {
	Lock(path string) (Unlocker, error)
}

// Unlocker releases a lock obtained from Locker
type Unlocker interface {
	Unlock() error
}
