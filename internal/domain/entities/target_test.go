package entities

import (
	"debug/elf"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArchitecture(t *testing.T) {
	tests := map[string]Architecture{
		"aarch64":                   AArch64,
		"arm64":                     AArch64,
		"aarch64-unknown-linux-gnu": AArch64,
		" ARMv7l ":                  ARMv7,
		"amd64":                     X86_64,
		"i686":                      X86,
		"riscv64":                   UnknownArch,
		"":                          UnknownArch,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseArchitecture(in), in)
	}
}

func TestArchitecture_Properties(t *testing.T) {
	assert.Equal(t, "aarch64-unknown-linux-gnu", AArch64.Triple())
	assert.Equal(t, elf.EM_AARCH64, AArch64.Machine())
	assert.Equal(t, elf.EM_NONE, UnknownArch.Machine())
	assert.Equal(t, "", UnknownArch.Triple())
}

func TestLibraryTarget_JSON(t *testing.T) {
	target := LibraryTarget{Name: "libsignal_jni.so", Architecture: AArch64, Dependency: "libgcc_s.so.1"}
	data, err := json.Marshal(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"architecture":"aarch64"`)

	var back LibraryTarget
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, target, back)
}

func TestStageResult_Label(t *testing.T) {
	assert.Equal(t, "ok", StageResult{Status: StatusSucceeded}.Label())
	assert.Equal(t, "skipped", StageResult{Status: StatusSkipped}.Label())
	assert.Equal(t, "skipped (disabled)", StageResult{Status: StatusSkipped, Detail: "disabled"}.Label())
	assert.Equal(t, "networkError", StageResult{Status: StatusFailed, Kind: "networkError"}.Label())
	assert.Equal(t, "failed", StageResult{Status: StatusFailed}.Label())
}
