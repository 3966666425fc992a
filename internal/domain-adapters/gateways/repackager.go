package gateways

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"github.com/ochairo/jnirepair/internal/domain/failures"
)

// Repackager writes a library back into its container
type Repackager struct{}

// NewRepackager creates a new repackager
func NewRepackager() *Repackager {
	return &Repackager{}
}

// Repackage replaces the entry at internalPath with the contents of
// libraryPath. Every other entry is copied raw, in order. The new container
// is assembled in a temporary file next to the original and renamed over it
// only once complete, so a failure leaves the original untouched.
func (p *Repackager) Repackage(_ context.Context, containerPath, internalPath, libraryPath string) (err error) {
	r, err := openContainer(containerPath)
	if err != nil {
		return err
	}
	//nolint:errcheck // Defer close on read-only archive
	defer r.Close()

	if findEntry(&r.Reader, internalPath) == nil {
		return failures.New(failures.NotFound, "entry "+internalPath+" not found in "+containerPath, nil)
	}

	info, err := os.Stat(containerPath)
	if err != nil {
		return fmt.Errorf("failed to stat container: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(containerPath), "."+filepath.Base(containerPath)+".repack-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary container: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	zw := zip.NewWriter(tmp)
	for _, f := range r.File {
		if f.Name != internalPath {
			if err = zw.Copy(f); err != nil {
				return failures.New(failures.CorruptContainer, "failed to copy entry "+f.Name, err)
			}
			continue
		}
		if err = writeReplacement(zw, f, libraryPath); err != nil {
			return err
		}
	}
	if r.Comment != "" {
		if err = zw.SetComment(r.Comment); err != nil {
			return fmt.Errorf("failed to set container comment: %w", err)
		}
	}
	if err = zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize container: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync container: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close container: %w", err)
	}
	if err = os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set container mode: %w", err)
	}
	if err = os.Rename(tmpPath, containerPath); err != nil {
		return fmt.Errorf("failed to replace container: %w", err)
	}
	return nil
}

// writeReplacement adds libraryPath under the original entry's name, keeping
// its compression method and timestamps
func writeReplacement(zw *zip.Writer, orig *zip.File, libraryPath string) error {
	//nolint:gosec // G304: libraryPath is produced by the pipeline's own stages
	lib, err := os.Open(libraryPath)
	if err != nil {
		return fmt.Errorf("failed to open library: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer lib.Close()

	fh := &zip.FileHeader{
		Name:           orig.Name,
		Comment:        orig.Comment,
		Method:         orig.Method,
		Modified:       orig.Modified,
		ModifiedTime:   orig.ModifiedTime,
		ModifiedDate:   orig.ModifiedDate,
		CreatorVersion: orig.CreatorVersion,
		ExternalAttrs:  orig.ExternalAttrs,
	}
	w, err := zw.CreateHeader(fh)
	if err != nil {
		return fmt.Errorf("failed to create entry %s: %w", orig.Name, err)
	}
	if _, err := io.Copy(w, lib); err != nil {
		return fmt.Errorf("failed to write entry %s: %w", orig.Name, err)
	}
	return nil
}
