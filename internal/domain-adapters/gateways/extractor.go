package gateways

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/ochairo/jnirepair/internal/domain/failures"
)

// maxLibrarySize bounds extraction of a single library (decompression bombs)
const maxLibrarySize = 512 << 20

// Extractor copies a single container entry into a working directory
type Extractor struct{}

// NewExtractor creates a new extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract writes exactly the entry at internalPath to workDir and returns
// the extracted file's path
func (e *Extractor) Extract(_ context.Context, containerPath, internalPath, workDir string) (string, error) {
	r, err := openContainer(containerPath)
	if err != nil {
		return "", err
	}
	//nolint:errcheck // Defer close on read-only archive
	defer r.Close()

	entry := findEntry(&r.Reader, internalPath)
	if entry == nil {
		return "", failures.New(failures.NotFound, "entry "+internalPath+" not found in "+containerPath, nil)
	}

	if err := os.MkdirAll(workDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}
	dest := filepath.Join(workDir, path.Base(internalPath))

	rc, err := entry.Open()
	if err != nil {
		return "", failures.New(failures.CorruptContainer, "cannot open entry "+internalPath, err)
	}
	//nolint:errcheck // Defer close on entry reader
	defer rc.Close()

	//nolint:gosec // G304: dest is inside the caller's work directory
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0755)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dest, err)
	}

	n, err := io.Copy(out, io.LimitReader(rc, maxLibrarySize+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// checksum or inflate errors surface here
		return "", failures.New(failures.CorruptContainer, "cannot read entry "+internalPath, err)
	}
	if n > maxLibrarySize {
		return "", failures.New(failures.CorruptContainer, "entry "+internalPath+" exceeds size limit", nil)
	}

	return dest, nil
}
