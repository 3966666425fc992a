package gateways

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ochairo/jnirepair/internal/domain/failures"
)

// TestVerifyChecksum tests SHA256 checksum verification
func TestVerifyChecksum(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "payload.tar.gz")

	content := []byte("Hello, World! This is a test file for checksum verification.")
	if err := os.WriteFile(testFile, content, 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	verifier := NewChecksumVerifier()

	actualSum, err := verifier.CalculateChecksum(testFile)
	if err != nil {
		t.Fatalf("CalculateChecksum() error = %v", err)
	}
	if len(actualSum) != 64 {
		t.Errorf("CalculateChecksum() returned checksum length = %d, want 64 (SHA256 hex)", len(actualSum))
	}

	t.Run("valid checksum", func(t *testing.T) {
		if err := verifier.VerifyChecksum(testFile, actualSum); err != nil {
			t.Errorf("VerifyChecksum() with valid checksum error = %v", err)
		}
	})

	t.Run("prefixed upper case checksum", func(t *testing.T) {
		if err := verifier.VerifyChecksum(testFile, "sha256:"+strings.ToUpper(actualSum)); err != nil {
			t.Errorf("VerifyChecksum() with prefixed checksum error = %v", err)
		}
	})

	t.Run("invalid checksum", func(t *testing.T) {
		invalidSum := strings.Repeat("0", 64)
		err := verifier.VerifyChecksum(testFile, invalidSum)
		if err == nil {
			t.Fatal("VerifyChecksum() with invalid checksum should return error")
		}
		if !failures.Is(err, failures.NotFound) {
			t.Errorf("VerifyChecksum() kind = %v, want %v", failures.KindOf(err), failures.NotFound)
		}
	})

	t.Run("non-existent file", func(t *testing.T) {
		if err := verifier.VerifyChecksum("/nonexistent/file.txt", actualSum); err == nil {
			t.Error("VerifyChecksum() with non-existent file should return error")
		}
	})
}

// TestCalculateChecksum tests SHA256 checksum calculation
func TestCalculateChecksum(t *testing.T) {
	tests := []struct {
		name         string
		content      []byte
		wantChecksum string
	}{
		{
			name:         "empty file",
			content:      []byte(""),
			wantChecksum: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:         "simple content",
			content:      []byte("Hello, World!"),
			wantChecksum: "dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986f",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testFile := filepath.Join(t.TempDir(), "test.txt")
			if err := os.WriteFile(testFile, tt.content, 0600); err != nil {
				t.Fatalf("Failed to create test file: %v", err)
			}

			checksum, err := NewChecksumVerifier().CalculateChecksum(testFile)
			if err != nil {
				t.Fatalf("CalculateChecksum() error = %v", err)
			}
			if checksum != tt.wantChecksum {
				t.Errorf("CalculateChecksum() = %v, want %v", checksum, tt.wantChecksum)
			}
		})
	}
}
