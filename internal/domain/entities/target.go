// Package entities defines core domain models and data structures.
package entities

import (
	"debug/elf"
	"strings"
)

// Architecture identifies the CPU/ABI a native library was built for
type Architecture uint32

// Supported architectures
const (
	UnknownArch Architecture = iota
	AArch64
	ARMv7
	X86_64
	X86
)

// ParseArchitecture accepts the usual spellings (uname -m, GOARCH, triples)
func ParseArchitecture(s string) Architecture {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexByte(s, '-'); i > 0 {
		// triple: aarch64-unknown-linux-gnu
		s = s[:i]
	}
	switch s {
	case "aarch64", "arm64":
		return AArch64
	case "armv7", "armv7l", "armv7a", "arm", "armhf":
		return ARMv7
	case "x86_64", "amd64":
		return X86_64
	case "i386", "i686", "386", "x86":
		return X86
	default:
		return UnknownArch
	}
}

func (a Architecture) String() string {
	switch a {
	case AArch64:
		return "aarch64"
	case ARMv7:
		return "armv7"
	case X86_64:
		return "x86_64"
	case X86:
		return "i686"
	default:
		return "unknown"
	}
}

// MarshalText renders the architecture by name in reports
func (a Architecture) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses any spelling ParseArchitecture accepts
func (a *Architecture) UnmarshalText(text []byte) error {
	*a = ParseArchitecture(string(text))
	return nil
}

// Triple returns the target triple prebuilt libraries are published under
func (a Architecture) Triple() string {
	switch a {
	case AArch64:
		return "aarch64-unknown-linux-gnu"
	case ARMv7:
		return "armv7-unknown-linux-gnueabihf"
	case X86_64:
		return "x86_64-unknown-linux-gnu"
	case X86:
		return "i686-unknown-linux-gnu"
	default:
		return ""
	}
}

// Machine returns the ELF e_machine value a library for this architecture carries
func (a Architecture) Machine() elf.Machine {
	switch a {
	case AArch64:
		return elf.EM_AARCH64
	case ARMv7:
		return elf.EM_ARM
	case X86_64:
		return elf.EM_X86_64
	case X86:
		return elf.EM_386
	default:
		return elf.EM_NONE
	}
}

// LibraryTarget identifies the native library being repaired
type LibraryTarget struct {
	Name           string       `json:"name"` // base file name inside the container, e.g. libsignal_jni.so
	Version        string       `json:"version,omitempty"`
	Architecture   Architecture `json:"architecture"`
	ContainerPath  string       `json:"container"`
	InternalPath   string       `json:"internal_path,omitempty"` // opaque; empty until resolved, then reused verbatim
	Dependency     string       `json:"dependency"`              // dynamic dependency to get rid of, e.g. libgcc_s.so.1
	ExecutablePath string       `json:"executable,omitempty"`
}

// HasInternalPath reports whether the entry location has been resolved
func (t *LibraryTarget) HasInternalPath() bool {
	return t.InternalPath != ""
}

// InspectResult is what the archive inspector found
type InspectResult struct {
	InternalPath string
	Candidates   []string
}

// Ambiguous reports whether more than one entry matched the base name
func (r *InspectResult) Ambiguous() bool {
	return len(r.Candidates) > 1
}
