package yaml

import (
	"strings"
	"testing"
	"time"

	"github.com/ochairo/jnirepair/internal/domain/entities"
)

var testPlatform = Platform{
	StubDir:    "/usr/local/lib",
	Shell:      "/bin/sh",
	SearchDirs: []string{"/usr/lib"},
}

func TestProfileParser_Parse_Valid(t *testing.T) {
	t.Setenv("PREFIX", "/data/data/com.termux/files/usr")

	parser := NewProfileParser(testPlatform)
	yamlData := []byte(`name: libsignal
description: signal-cli JNI bridge
library: libsignal_jni.so
dependency: libgcc_s.so.1
version: 0.65.3
architecture: aarch64
container: $PREFIX/opt/signal-cli/lib/libsignal-client-{version}.jar
executable: ${PREFIX}/opt/signal-cli/bin/signal-cli
acquire:
  url_template: https://example.org/{name}-v{version}-{triple}.tar.gz
  timeout_seconds: 30
  sha256:
    0.65.3: " abc123 "
strip:
  strategies: [builtin, patchelf]
  timeout_seconds: 10
shim:
  stub_dir: $PREFIX/lib
  search_dirs: [/system/lib64]
`)

	profile, err := parser.Parse(yamlData)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if profile.Name != "libsignal" {
		t.Errorf("Name = %v, want libsignal", profile.Name)
	}
	if want := "/data/data/com.termux/files/usr/opt/signal-cli/lib/libsignal-client-{version}.jar"; profile.Container != want {
		t.Errorf("Container = %v, want %v", profile.Container, want)
	}
	if want := "/data/data/com.termux/files/usr/opt/signal-cli/bin/signal-cli"; profile.Executable != want {
		t.Errorf("Executable = %v, want %v", profile.Executable, want)
	}
	if !profile.Acquire.Enabled {
		t.Error("Acquire.Enabled should default to true when a URL template is set")
	}
	if profile.Acquire.Timeout != 30*time.Second {
		t.Errorf("Acquire.Timeout = %v, want 30s", profile.Acquire.Timeout)
	}
	if profile.Acquire.SHA256["0.65.3"] != "abc123" {
		t.Errorf("SHA256 = %v, want trimmed digest", profile.Acquire.SHA256)
	}
	if len(profile.Strip.Strategies) != 2 || profile.Strip.Strategies[0] != entities.StrategyBuiltin {
		t.Errorf("Strategies = %v, want [builtin patchelf]", profile.Strip.Strategies)
	}
	if !profile.Shim.Enabled {
		t.Error("Shim.Enabled should default to true")
	}
	if profile.Shim.StubDir != "/data/data/com.termux/files/usr/lib" {
		t.Errorf("Shim.StubDir = %v", profile.Shim.StubDir)
	}
	if profile.Shim.Shell != "/bin/sh" {
		t.Errorf("Shim.Shell = %v, want platform default", profile.Shim.Shell)
	}
	if len(profile.Shim.SearchDirs) != 1 || profile.Shim.SearchDirs[0] != "/system/lib64" {
		t.Errorf("Shim.SearchDirs = %v", profile.Shim.SearchDirs)
	}
}

func TestProfileParser_Parse_Defaults(t *testing.T) {
	parser := NewProfileParser(testPlatform)
	profile, err := parser.Parse([]byte(`name: minimal
library: libfoo.so
dependency: libbar.so
shim:
  enabled: false
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if profile.Acquire.Enabled {
		t.Error("Acquire.Enabled should be false without a URL template")
	}
	if profile.Shim.Enabled {
		t.Error("Shim.Enabled should honour an explicit false")
	}
	if profile.Shim.StubDir != "/usr/local/lib" {
		t.Errorf("Shim.StubDir = %v, want platform default", profile.Shim.StubDir)
	}
	if len(profile.Strip.Strategies) != 0 {
		t.Errorf("Strategies = %v, want none", profile.Strip.Strategies)
	}
}

func TestProfileParser_Parse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"missing name", "library: libfoo.so\ndependency: libbar.so\n", "profile must have a name"},
		{"missing library", "name: x\ndependency: libbar.so\n", "must name a library"},
		{"missing dependency", "name: x\nlibrary: libfoo.so\n", "must name a dependency"},
		{"bad architecture", "name: x\nlibrary: a\ndependency: b\narchitecture: sparc\n", "unknown architecture"},
		{"bad strategy", "name: x\nlibrary: a\ndependency: b\nstrip:\n  strategies: [hexedit]\n", "unknown strip strategy"},
		{"invalid yaml", "name: test\n  invalid: [broken yaml\n", "failed to parse YAML"},
	}

	parser := NewProfileParser(testPlatform)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() should return an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestDetectPlatform(t *testing.T) {
	t.Setenv("PREFIX", "")
	if p := DetectPlatform(); p.StubDir != "/usr/local/lib" || p.Shell != "/bin/sh" {
		t.Errorf("DetectPlatform() without PREFIX = %+v", p)
	}

	t.Setenv("PREFIX", "/data/data/com.termux/files/usr")
	p := DetectPlatform()
	if p.StubDir != "/data/data/com.termux/files/usr/lib" {
		t.Errorf("StubDir = %v", p.StubDir)
	}
	if p.Shell != "/data/data/com.termux/files/usr/bin/sh" {
		t.Errorf("Shell = %v", p.Shell)
	}
}

func TestDetectPlatform_FollowsEnvironmentChanges(t *testing.T) {
	t.Setenv("PREFIX", "")
	if p := DetectPlatform(); p.Prefix != "" {
		t.Fatalf("Prefix = %q, want empty", p.Prefix)
	}

	t.Setenv("PREFIX", "/data/data/com.termux/files/usr")
	p := DetectPlatform()
	if p.StubDir != "/data/data/com.termux/files/usr/lib" {
		t.Errorf("StubDir after PREFIX change = %v", p.StubDir)
	}

	profile, err := NewProfileParser(p).Parse([]byte("name: x\nlibrary: a.so\ndependency: b.so\ncontainer: $PREFIX/x.jar\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if profile.Container != "/data/data/com.termux/files/usr/x.jar" {
		t.Errorf("Container = %q", profile.Container)
	}

	t.Setenv("PREFIX", "/opt/other")
	profile, err = NewProfileParser(p).Parse([]byte("name: x\nlibrary: a.so\ndependency: b.so\ncontainer: $PREFIX/x.jar\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if profile.Container != "/opt/other/x.jar" {
		t.Errorf("Container after second change = %q", profile.Container)
	}
}
