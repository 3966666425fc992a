package entities

// WrapState is the state of the launcher path. Unwrapped -> Wrapped is the
// only transition; it is derived from the filesystem, never stored.
type WrapState string

// Launcher states
const (
	Unwrapped WrapState = "unwrapped"
	Wrapped   WrapState = "wrapped"
)

// StubMethod records how the stand-in library came to exist
type StubMethod string

// Stub methods
const (
	StubCompiled  StubMethod = "compiled"
	StubSymlinked StubMethod = "symlinked"
	StubExisting  StubMethod = "existing"
)

// RealSuffix is appended to the original launcher when it is wrapped
const RealSuffix = ".real"

// ShimInstallation is the state of the runtime safety net
type ShimInstallation struct {
	StubPath       string     `json:"stub_path"`
	StubMethod     StubMethod `json:"stub_method"`
	StubSource     string     `json:"stub_source,omitempty"` // symlink target when StubMethod is symlinked
	WrapperPath    string     `json:"wrapper_path,omitempty"`
	RealBinaryPath string     `json:"real_binary_path,omitempty"`
	AlreadyWrapped bool       `json:"already_wrapped"`
	State          WrapState  `json:"state"`
}
