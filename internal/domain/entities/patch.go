package entities

// Strategy identifies a dependency-stripping approach
type Strategy string

// Stripping strategies, in their default order
const (
	StrategyPatchelf   Strategy = "patchelf"
	StrategyElfCleaner Strategy = "termux-elf-cleaner"
	StrategyBuiltin    Strategy = "builtin"
)

// DefaultStrategies is the chain used when a profile does not name one
var DefaultStrategies = []Strategy{StrategyPatchelf, StrategyElfCleaner}

// PatchAttempt records one application of a stripping strategy
type PatchAttempt struct {
	Strategy                Strategy `json:"strategy"`
	DependencyPresentBefore bool     `json:"present_before"`
	Applied                 bool     `json:"applied"` // tool ran without an unrecoverable error
	DependencyPresentAfter  bool     `json:"present_after"`
	Detail                  string   `json:"detail,omitempty"`
}

// StripResult is the outcome of running the strategy chain over one library
type StripResult struct {
	LibraryPath   string
	Dependency    string
	AlreadyAbsent bool
	Removed       bool
	Attempts      []PatchAttempt
}

// Clean reports whether the library no longer declares the dependency
func (r *StripResult) Clean() bool {
	return r != nil && (r.AlreadyAbsent || r.Removed)
}
