package gateways

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/jnirepair/internal/domain/entities"
	"github.com/ochairo/jnirepair/internal/domain/failures"
	"github.com/ochairo/jnirepair/internal/domain/interfaces/gateways"
	"github.com/ochairo/jnirepair/internal/testutil"
)

type shimFixture struct {
	bin     string
	stubDir string
	exe     string
	marker  string
}

// newShimFixture installs a fake compiler "fakecc" that emits a library with
// the requested soname and touches marker when invoked.
func newShimFixture(t *testing.T) *shimFixture {
	t.Helper()
	f := &shimFixture{
		bin:     fakeToolPath(t, false),
		stubDir: filepath.Join(t.TempDir(), "stubs"),
		marker:  filepath.Join(t.TempDir(), "compiled"),
	}
	stub := testutil.SharedObject{Soname: testDep}.Write(t, t.TempDir(), "stub.so")
	// args: -shared -fPIC -nostdlib -Wl,-soname,<dep> -o <out> <src>
	testutil.WriteScript(t, f.bin, "fakecc", `touch "`+f.marker+`"; cp "`+stub+`" "$6"`)

	f.exe = testutil.WriteScript(t, t.TempDir(), "signal-cli", `echo "preload=$LD_PRELOAD"; echo "args=$*"`)
	return f
}

func (f *shimFixture) installer(compilers []string, searchDirs ...string) *ShimInstaller {
	stubs := NewStubBuilder(NewToolRunner(nil), NewELFInspector(), StubConfig{
		StubDir:    f.stubDir,
		Compilers:  compilers,
		SearchDirs: searchDirs,
	}, nil)
	return NewShimInstaller(stubs, "/bin/sh", nil)
}

func TestShimInstaller_InstallWrapsLauncher(t *testing.T) {
	f := newShimFixture(t)
	original, err := os.ReadFile(f.exe)
	require.NoError(t, err)

	inst, err := f.installer([]string{"fakecc"}).Install(context.Background(), gateways.ShimRequest{
		Dependency:     testDep,
		ExecutablePath: f.exe,
	})
	require.NoError(t, err)

	stubPath := filepath.Join(f.stubDir, testDep)
	assert.Equal(t, &entities.ShimInstallation{
		StubPath:       stubPath,
		StubMethod:     entities.StubCompiled,
		WrapperPath:    f.exe,
		RealBinaryPath: f.exe + entities.RealSuffix,
		State:          entities.Wrapped,
	}, inst)
	assert.FileExists(t, f.marker)

	real, err := os.ReadFile(f.exe + entities.RealSuffix)
	require.NoError(t, err)
	assert.Equal(t, original, real, "real launcher bytes are untouched")

	info, err := os.Stat(f.exe)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	cmd := exec.Command(f.exe, "-a", "+15551234567", "receive")
	cmd.Env = append(os.Environ(), "LD_PRELOAD=")
	out, err := cmd.Output()
	require.NoError(t, err)
	assert.Equal(t, "preload="+stubPath+"\nargs=-a +15551234567 receive\n", string(out))
}

func TestShimInstaller_Idempotent(t *testing.T) {
	f := newShimFixture(t)
	installer := f.installer([]string{"fakecc"})
	req := gateways.ShimRequest{Dependency: testDep, ExecutablePath: f.exe}

	_, err := installer.Install(context.Background(), req)
	require.NoError(t, err)
	wrapper, err := os.ReadFile(f.exe)
	require.NoError(t, err)
	real, err := os.ReadFile(f.exe + entities.RealSuffix)
	require.NoError(t, err)
	require.NoError(t, os.Remove(f.marker))

	inst, err := installer.Install(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, inst.AlreadyWrapped)
	assert.Equal(t, entities.Wrapped, inst.State)
	assert.Equal(t, entities.StubExisting, inst.StubMethod)
	assert.NoFileExists(t, f.marker, "existing stub is reused")

	wrapperAfter, err := os.ReadFile(f.exe)
	require.NoError(t, err)
	realAfter, err := os.ReadFile(f.exe + entities.RealSuffix)
	require.NoError(t, err)
	assert.Equal(t, wrapper, wrapperAfter)
	assert.Equal(t, real, realAfter)
	assert.NoFileExists(t, f.exe+entities.RealSuffix+entities.RealSuffix)
}

func TestShimInstaller_ChainsExistingPreload(t *testing.T) {
	f := newShimFixture(t)
	_, err := f.installer([]string{"fakecc"}).Install(context.Background(), gateways.ShimRequest{
		Dependency:     testDep,
		ExecutablePath: f.exe,
	})
	require.NoError(t, err)

	other := filepath.Join(t.TempDir(), "libother.so")
	cmd := exec.Command(f.exe)
	cmd.Env = append(os.Environ(), "LD_PRELOAD="+other)
	out, err := cmd.Output()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "preload="+filepath.Join(f.stubDir, testDep)+":"+other+"\n"), "got %q", out)
}

func TestShimInstaller_SymlinkFallback(t *testing.T) {
	f := newShimFixture(t)
	libDir := t.TempDir()
	system := testutil.SharedObject{Soname: testDep}.Write(t, libDir, testDep)

	inst, err := f.installer([]string{"no-such-cc"}, filepath.Join(t.TempDir(), "empty"), libDir).Install(context.Background(), gateways.ShimRequest{
		Dependency:     testDep,
		ExecutablePath: f.exe,
	})
	require.NoError(t, err)
	assert.Equal(t, entities.StubSymlinked, inst.StubMethod)
	assert.Equal(t, system, inst.StubSource)

	target, err := os.Readlink(inst.StubPath)
	require.NoError(t, err)
	assert.Equal(t, system, target)
	assert.Equal(t, entities.Wrapped, inst.State)
}

func TestShimInstaller_NoCompilerNoLibrary(t *testing.T) {
	f := newShimFixture(t)
	original, err := os.ReadFile(f.exe)
	require.NoError(t, err)

	inst, err := f.installer([]string{"no-such-cc"}, t.TempDir()).Install(context.Background(), gateways.ShimRequest{
		Dependency:     testDep,
		ExecutablePath: f.exe,
	})
	require.Error(t, err)
	assert.Nil(t, inst)
	assert.True(t, failures.Is(err, failures.ToolUnavailable), "got %v", err)

	assert.NoFileExists(t, f.exe+entities.RealSuffix, "no wrapping without a stub")
	after, err := os.ReadFile(f.exe)
	require.NoError(t, err)
	assert.Equal(t, original, after)
}

func TestShimInstaller_CompilerProducesWrongSoname(t *testing.T) {
	f := newShimFixture(t)
	wrong := testutil.SharedObject{Soname: "libwrong.so"}.Write(t, t.TempDir(), "wrong.so")
	testutil.WriteScript(t, f.bin, "badcc", `cp "`+wrong+`" "$6"`)

	_, err := f.installer([]string{"badcc"}).Install(context.Background(), gateways.ShimRequest{Dependency: testDep})
	require.Error(t, err)
	assert.True(t, failures.Is(err, failures.ToolUnavailable), "got %v", err)
	assert.NoFileExists(t, filepath.Join(f.stubDir, testDep))
}

func TestShimInstaller_StubOnly(t *testing.T) {
	f := newShimFixture(t)
	inst, err := f.installer([]string{"fakecc"}).Install(context.Background(), gateways.ShimRequest{Dependency: testDep})
	require.NoError(t, err)
	assert.Equal(t, entities.Unwrapped, inst.State)
	assert.Empty(t, inst.WrapperPath)
	assert.FileExists(t, inst.StubPath)
}

func TestShimInstaller_MissingExecutable(t *testing.T) {
	f := newShimFixture(t)
	missing := filepath.Join(t.TempDir(), "signal-cli")

	inst, err := f.installer([]string{"fakecc"}).Install(context.Background(), gateways.ShimRequest{
		Dependency:     testDep,
		ExecutablePath: missing,
	})
	require.Error(t, err)
	assert.True(t, failures.Is(err, failures.NotFound), "got %v", err)
	assert.Equal(t, entities.Unwrapped, inst.State)
	assert.NoFileExists(t, missing+entities.RealSuffix)
}

func TestRenderWrapper(t *testing.T) {
	got := RenderWrapper("/data/data/com.termux/files/usr/bin/sh", "/stubs/libgcc_s.so.1", "/opt/it's here/signal-cli.real")
	want := "#!/data/data/com.termux/files/usr/bin/sh\n" +
		"# generated by jnirepair; original launcher is signal-cli.real\n" +
		"LD_PRELOAD='/stubs/libgcc_s.so.1'\"${LD_PRELOAD:+:$LD_PRELOAD}\"\n" +
		"export LD_PRELOAD\n" +
		"exec '/opt/it'\\''s here/signal-cli.real' \"$@\"\n"
	assert.Equal(t, want, got)
}
