package gateways

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ochairo/jnirepair/internal/domain/failures"
)

// ChecksumVerifier checks downloaded payloads against pinned SHA-256 digests
type ChecksumVerifier struct{}

// NewChecksumVerifier creates a new checksum verifier
func NewChecksumVerifier() *ChecksumVerifier {
	return &ChecksumVerifier{}
}

// VerifyChecksum compares the file's SHA-256 with expected. expected may
// carry a "sha256:" prefix and any letter case. A mismatch means the payload
// is not the artifact that was asked for, so it is classified NotFound.
func (v *ChecksumVerifier) VerifyChecksum(filePath, expected string) error {
	actual, err := v.CalculateChecksum(filePath)
	if err != nil {
		return err
	}

	expected = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(expected, "sha256:")))
	if actual != expected {
		return failures.New(failures.NotFound,
			fmt.Sprintf("checksum mismatch: expected %s, got %s", expected, actual), nil)
	}
	return nil
}

// CalculateChecksum calculates the SHA256 checksum of a file
func (v *ChecksumVerifier) CalculateChecksum(filePath string) (string, error) {
	//nolint:gosec // G304: File path is a payload this process downloaded
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
