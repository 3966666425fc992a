package yaml

import (
	"os"
	"path/filepath"

	"github.com/xyproto/env/v2"
)

// Platform holds host-dependent defaults. On Termux, $PREFIX points at the
// userland root and there is no /usr.
type Platform struct {
	Prefix     string
	StubDir    string
	Shell      string
	SearchDirs []string
}

// DetectPlatform derives defaults from the current environment. env caches
// os.Environ on first use, so the cache is reloaded on every call.
func DetectPlatform() Platform {
	env.Load()
	prefix := env.Str("PREFIX")
	if prefix == "" {
		return Platform{
			StubDir:    "/usr/local/lib",
			Shell:      "/bin/sh",
			SearchDirs: []string{"/usr/lib", "/lib", "/usr/lib64", "/lib64"},
		}
	}
	return Platform{
		Prefix:     prefix,
		StubDir:    filepath.Join(prefix, "lib"),
		Shell:      filepath.Join(prefix, "bin", "sh"),
		SearchDirs: []string{"/system/lib64", "/system/lib", "/apex/com.android.runtime/lib64"},
	}
}

// expand substitutes $VAR and ${VAR} from the environment
func expand(s string) string {
	if s == "" {
		return s
	}
	return os.Expand(s, func(name string) string {
		return env.Str(name)
	})
}
