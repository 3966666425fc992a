// Package gateways provides adapter implementations for external services and tools.
package gateways

import (
	"context"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/ochairo/jnirepair/internal/domain/entities"
	"github.com/ochairo/jnirepair/internal/domain/failures"
)

// ArchiveInspector finds native libraries inside zip-based containers.
// Entries are enumerated rather than assumed: depending on the release the
// library sits at the container root or under an architecture directory.
type ArchiveInspector struct{}

// NewArchiveInspector creates a new archive inspector
func NewArchiveInspector() *ArchiveInspector {
	return &ArchiveInspector{}
}

// FindLibrary returns the first entry whose base name is baseName, plus every
// matching candidate so callers can surface ambiguity.
func (a *ArchiveInspector) FindLibrary(_ context.Context, containerPath, baseName string) (*entities.InspectResult, error) {
	r, err := openContainer(containerPath)
	if err != nil {
		return nil, err
	}
	//nolint:errcheck // Defer close on read-only archive
	defer r.Close()

	result := &entities.InspectResult{}
	for _, f := range r.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		if path.Base(f.Name) != baseName {
			continue
		}
		result.Candidates = append(result.Candidates, f.Name)
	}

	if len(result.Candidates) == 0 {
		return nil, failures.New(failures.NotFound, "no entry named "+baseName+" in "+containerPath, nil)
	}
	result.InternalPath = result.Candidates[0]
	return result, nil
}

// VerifyEntry confirms internalPath names an entry, compared verbatim
func (a *ArchiveInspector) VerifyEntry(_ context.Context, containerPath, internalPath string) error {
	r, err := openContainer(containerPath)
	if err != nil {
		return err
	}
	//nolint:errcheck // Defer close on read-only archive
	defer r.Close()

	if findEntry(&r.Reader, internalPath) == nil {
		return failures.New(failures.NotFound, "entry "+internalPath+" not found in "+containerPath, nil)
	}
	return nil
}

// openContainer opens a zip container, classifying failures
func openContainer(containerPath string) (*zip.ReadCloser, error) {
	r, err := zip.OpenReader(containerPath)
	if err != nil {
		if isNotExist(err) {
			return nil, failures.New(failures.NotFound, "container "+containerPath+" does not exist", err)
		}
		return nil, failures.New(failures.CorruptContainer, "cannot read container "+containerPath, err)
	}
	return r, nil
}

func findEntry(r *zip.Reader, internalPath string) *zip.File {
	for _, f := range r.File {
		if f.Name == internalPath {
			return f
		}
	}
	return nil
}
