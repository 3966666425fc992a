package gateways

import (
	"debug/elf"
	"fmt"

	"github.com/ochairo/jnirepair/internal/domain/entities"
)

// ELFInspector reads the dynamic section of shared libraries using debug/elf.
// It is the authoritative post-check for every patching strategy: tool exit
// codes are advisory, the declared DT_NEEDED list is not.
type ELFInspector struct{}

// NewELFInspector creates a new ELF inspector
func NewELFInspector() *ELFInspector {
	return &ELFInspector{}
}

// Inspect returns soname, declared dependencies and machine of a library
func (i *ELFInspector) Inspect(path string) (*entities.LibraryInfo, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	needed, err := f.ImportedLibraries()
	if err != nil {
		return nil, fmt.Errorf("failed to read dynamic dependencies: %w", err)
	}
	sonames, err := f.DynString(elf.DT_SONAME)
	if err != nil {
		return nil, fmt.Errorf("failed to read soname: %w", err)
	}

	info := &entities.LibraryInfo{
		Path:    path,
		Needed:  needed,
		Machine: f.Machine,
		Class:   f.Class,
	}
	if len(sonames) > 0 {
		info.Soname = sonames[0]
	}
	return info, nil
}

// HasDependency reports whether the library declares dep in DT_NEEDED
func (i *ELFInspector) HasDependency(path, dep string) (bool, error) {
	info, err := i.Inspect(path)
	if err != nil {
		return false, err
	}
	return info.Declares(dep), nil
}
