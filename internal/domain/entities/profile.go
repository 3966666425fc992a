package entities

import "time"

// Profile describes how to repair one kind of native library
type Profile struct {
	Name         string
	Description  string
	Library      string
	Dependency   string
	Version      string
	Architecture string
	Container    string
	Executable   string
	WorkDir      string
	Acquire      AcquireConfig
	Strip        StripConfig
	Shim         ShimConfig
}

// AcquireConfig configures the acquisition resolver
type AcquireConfig struct {
	Enabled              bool
	URLTemplate          string
	Timeout              time.Duration
	SHA256               map[string]string // version -> expected digest
	SignatureURLTemplate string
	SigningKey           string // armored public key file
}

// StripConfig configures the dependency stripper
type StripConfig struct {
	Strategies []Strategy
	Timeout    time.Duration
}

// ShimConfig configures the runtime shim installer
type ShimConfig struct {
	Enabled    bool
	StubDir    string
	Compilers  []string
	SearchDirs []string
	Shell      string
	Timeout    time.Duration
}
