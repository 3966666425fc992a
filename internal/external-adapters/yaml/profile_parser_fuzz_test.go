package yaml

import (
	"testing"
)

// FuzzProfileParser tests the YAML parser against random/malformed inputs
// to detect crashes, panics, or unexpected behavior.
//
// Run with: go test -fuzz=FuzzProfileParser -fuzztime=30s
func FuzzProfileParser(f *testing.F) {
	f.Add([]byte(`name: libsignal
library: libsignal_jni.so
dependency: libgcc_s.so.1
version: 0.65.3
architecture: aarch64
acquire:
  url_template: https://example.org/{name}-v{version}-{triple}.tar.gz
  sha256:
    0.65.3: abc
strip:
  strategies: [patchelf, termux-elf-cleaner]
shim:
  search_dirs: [$PREFIX/lib]
`))

	// Seed with edge cases
	f.Add([]byte(``))                            // Empty input
	f.Add([]byte(`name: ""` + "\n"))             // Empty name
	f.Add([]byte(`{}`))                          // Empty JSON-style YAML
	f.Add([]byte(`[]`))                          // Array instead of object
	f.Add([]byte(`name: test\n  bad`))           // Invalid indentation
	f.Add([]byte(`name: test\nname: duplicate`)) // Duplicate keys
	f.Add([]byte("name: x\nlibrary: a\ndependency: b\ncontainer: ${\n"))

	parser := NewProfileParser(Platform{})

	f.Fuzz(func(_ *testing.T, data []byte) {
		_, _ = parser.Parse(data)
	})
}
