package gpg

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/jnirepair/internal/domain/failures"
)

type signingFixture struct {
	keyPath  string
	payload  string
	armored  []byte
	binary   []byte
	entity   *openpgp.Entity
	otherKey string
}

func newSigningFixture(t *testing.T) *signingFixture {
	t.Helper()
	dir := t.TempDir()

	entity, err := openpgp.NewEntity("jnirepair test", "", "test@example.org", nil)
	require.NoError(t, err)
	other, err := openpgp.NewEntity("someone else", "", "other@example.org", nil)
	require.NoError(t, err)

	f := &signingFixture{
		keyPath:  writePublicKey(t, dir, "signer.asc", entity),
		otherKey: writePublicKey(t, dir, "other.asc", other),
		payload:  filepath.Join(dir, "libsignal_jni.so-v0.65.3-aarch64-unknown-linux-gnu.tar.gz"),
		entity:   entity,
	}
	require.NoError(t, os.WriteFile(f.payload, []byte("payload bytes"), 0600))

	var armored bytes.Buffer
	require.NoError(t, openpgp.ArmoredDetachSign(&armored, entity, bytes.NewReader([]byte("payload bytes")), nil))
	f.armored = armored.Bytes()

	var binary bytes.Buffer
	require.NoError(t, openpgp.DetachSign(&binary, entity, bytes.NewReader([]byte("payload bytes")), nil))
	f.binary = binary.Bytes()
	return f
}

func writePublicKey(t *testing.T, dir, name string, e *openpgp.Entity) string {
	t.Helper()
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, e.Serialize(w))
	require.NoError(t, w.Close())

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
	return path
}

func TestVerifier_ImportKeyFromFile(t *testing.T) {
	f := newSigningFixture(t)

	v := NewVerifier(0)
	require.NoError(t, v.ImportKeyFromFile(f.keyPath))
	assert.Equal(t, 1, v.KeyringSize())

	err := v.ImportKeyFromFile("/nonexistent/key.asc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open key file")

	garbage := filepath.Join(t.TempDir(), "garbage.asc")
	require.NoError(t, os.WriteFile(garbage, []byte("-----BEGIN PGP PUBLIC KEY BLOCK-----\n\nmQENBGPexAMBCAC1kLz...\n-----END PGP PUBLIC KEY BLOCK-----"), 0600))
	err = v.ImportKeyFromFile(garbage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read key")
}

func TestVerifier_VerifySignature(t *testing.T) {
	f := newSigningFixture(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, ".asc"):
			_, _ = w.Write(f.armored)
		case strings.HasSuffix(r.URL.Path, ".sig"):
			_, _ = w.Write(f.binary)
		case strings.HasSuffix(r.URL.Path, ".tiny"):
			_, _ = w.Write([]byte("x"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	v := NewVerifier(0)
	require.NoError(t, v.ImportKeyFromFile(f.keyPath))
	ctx := context.Background()

	assert.NoError(t, v.VerifySignature(ctx, f.payload, srv.URL+"/payload.asc"))
	assert.NoError(t, v.VerifySignature(ctx, f.payload, srv.URL+"/payload.sig"))

	err := v.VerifySignature(ctx, f.payload, srv.URL+"/payload.missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	err = v.VerifySignature(ctx, f.payload, srv.URL+"/payload.tiny")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")

	// tampered payload
	require.NoError(t, os.WriteFile(f.payload, []byte("payload bytes, modified"), 0600))
	err = v.VerifySignature(ctx, f.payload, srv.URL+"/payload.asc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature verification failed")
}

func serveSignature(t *testing.T, sig []byte) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(sig)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/payload.asc"
}

func TestVerifier_WrongKey(t *testing.T) {
	f := newSigningFixture(t)
	sigURL := serveSignature(t, f.armored)

	v := NewVerifier(0)
	require.NoError(t, v.ImportKeyFromFile(f.otherKey))
	assert.Error(t, v.VerifySignature(context.Background(), f.payload, sigURL))

	require.NoError(t, v.ImportKeyFromFile(f.keyPath))
	assert.Equal(t, 2, v.KeyringSize())
	assert.NoError(t, v.VerifySignature(context.Background(), f.payload, sigURL))
}

func TestVerifier_NoKeys(t *testing.T) {
	v := NewVerifier(0)
	err := v.VerifySignature(context.Background(), "/nonexistent", "http://127.0.0.1:1/payload.asc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no GPG keys imported")
}

func TestVerifier_FetchFailuresAreNetworkErrors(t *testing.T) {
	f := newSigningFixture(t)
	v := NewVerifier(0)
	require.NoError(t, v.ImportKeyFromFile(f.keyPath))
	ctx := context.Background()

	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()
	err := v.VerifySignature(ctx, f.payload, url+"/payload.asc")
	require.Error(t, err)
	assert.True(t, failures.Is(err, failures.NetworkError), err.Error())

	unavailable := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(unavailable.Close)
	err = v.VerifySignature(ctx, f.payload, unavailable.URL+"/payload.asc")
	require.Error(t, err)
	assert.True(t, failures.Is(err, failures.NetworkError), err.Error())

	// a bad signature is not a transport problem
	err = v.VerifySignature(ctx, f.payload, serveSignature(t, []byte("not a signature at all")))
	require.Error(t, err)
	assert.False(t, failures.Is(err, failures.NetworkError))
}
