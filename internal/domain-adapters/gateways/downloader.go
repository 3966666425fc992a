package gateways

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/ochairo/jnirepair/internal/domain/entities"
	"github.com/ochairo/jnirepair/internal/domain/failures"
	"github.com/ochairo/jnirepair/internal/domain/interfaces"
)

// maxPayloadSize bounds a downloaded replacement payload
const maxPayloadSize = 256 << 20

// SignatureVerifier checks a detached signature published next to a payload
type SignatureVerifier interface {
	VerifySignature(ctx context.Context, filePath, sigURL string) error
}

// DownloaderConfig configures the acquisition resolver
type DownloaderConfig struct {
	URLTemplate          string
	Timeout              time.Duration
	UserAgent            string
	Checksums            map[string]string // version -> sha256
	SignatureURLTemplate string
	Signatures           SignatureVerifier
}

// Downloader fetches prebuilt replacement libraries. It makes exactly one
// timed GET per call; falling back is the orchestrator's decision.
type Downloader struct {
	httpClient *http.Client
	config     DownloaderConfig
	inspector  *ELFInspector
	checksums  *ChecksumVerifier
	logger     interfaces.Logger
}

// NewDownloader creates a new downloader
func NewDownloader(config DownloaderConfig, inspector *ELFInspector, logger interfaces.Logger) *Downloader {
	if config.Timeout == 0 {
		config.Timeout = time.Minute
	}
	if config.UserAgent == "" {
		config.UserAgent = "jnirepair/1.0"
	}
	return &Downloader{
		httpClient: &http.Client{},
		config:     config,
		inspector:  inspector,
		checksums:  NewChecksumVerifier(),
		logger:     interfaces.OrNoOp(logger),
	}
}

// Acquire downloads the replacement for target into workDir and verifies the
// payload really contains the expected library for the target architecture.
func (d *Downloader) Acquire(ctx context.Context, target *entities.LibraryTarget, workDir string) (*entities.AcquiredLibrary, entities.AcquisitionAttempt, error) {
	url := d.BuildDownloadURL(d.config.URLTemplate, target)
	attempt := entities.AcquisitionAttempt{SourceURL: url}

	fail := func(err error) (*entities.AcquiredLibrary, entities.AcquisitionAttempt, error) {
		if failures.Is(err, failures.NetworkError) {
			attempt.Outcome = entities.AcquisitionNetworkError
		} else {
			attempt.Outcome = entities.AcquisitionNotFound
		}
		attempt.Detail = err.Error()
		return nil, attempt, err
	}

	if url == "" {
		return fail(failures.New(failures.NotFound, "no download location configured", nil))
	}

	downloadDir := filepath.Join(workDir, "acquire")
	if err := os.MkdirAll(downloadDir, 0750); err != nil {
		return fail(fmt.Errorf("failed to create download directory: %w", err))
	}

	filename := path.Base(strings.SplitN(url, "?", 2)[0])
	if filename == "" || filename == "." || filename == "/" {
		filename = target.Name
	}
	payloadPath := filepath.Join(downloadDir, filename)

	if err := d.downloadFile(ctx, url, payloadPath); err != nil {
		return fail(err)
	}

	if sum, ok := d.config.Checksums[target.Version]; ok && sum != "" {
		if err := d.checksums.VerifyChecksum(payloadPath, sum); err != nil {
			return fail(err)
		}
	}

	if d.config.SignatureURLTemplate != "" && d.config.Signatures != nil {
		sigURL := d.BuildDownloadURL(d.config.SignatureURLTemplate, target)
		if err := d.config.Signatures.VerifySignature(ctx, payloadPath, sigURL); err != nil {
			kind := failures.NotFound
			if failures.Is(err, failures.NetworkError) {
				kind = failures.NetworkError
			}
			return fail(failures.New(kind, "signature verification failed", err))
		}
	}

	libPath, err := d.locateLibrary(ctx, payloadPath, downloadDir, target.Name)
	if err != nil {
		return fail(err)
	}

	info, err := os.Stat(libPath)
	if err != nil {
		return fail(fmt.Errorf("failed to stat library: %w", err))
	}
	if info.Size() == 0 {
		return fail(failures.New(failures.NotFound, target.Name+" in payload is empty", nil))
	}

	lib, err := d.inspector.Inspect(libPath)
	if err != nil {
		return fail(failures.New(failures.NotFound, "payload entry "+target.Name+" is not an ELF library", err))
	}
	if want := target.Architecture.Machine(); want != 0 && lib.Machine != want {
		return fail(failures.New(failures.NotFound,
			fmt.Sprintf("payload library is built for %v, want %v", lib.Machine, want), nil))
	}

	attempt.Outcome = entities.AcquisitionSuccess
	d.logger.Info("replacement acquired",
		interfaces.F("url", url),
		interfaces.F("path", libPath),
		interfaces.F("bytes", info.Size()))

	return &entities.AcquiredLibrary{
		Path:      libPath,
		SourceURL: url,
		Size:      info.Size(),
	}, attempt, nil
}

// BuildDownloadURL performs template substitution (exported for testing).
// Placeholders: {name}, {version}, {arch}, {triple}.
func (d *Downloader) BuildDownloadURL(template string, target *entities.LibraryTarget) string {
	if template == "" {
		return ""
	}
	url := template
	url = strings.ReplaceAll(url, "{name}", target.Name)
	url = strings.ReplaceAll(url, "{version}", target.Version)
	url = strings.ReplaceAll(url, "{arch}", target.Architecture.String())
	url = strings.ReplaceAll(url, "{triple}", target.Architecture.Triple())
	return url
}

// downloadFile downloads a file from URL to destination
func (d *Downloader) downloadFile(ctx context.Context, url, dest string) error {
	reqCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return failures.New(failures.NotFound, "invalid download URL", err)
	}
	req.Header.Set("User-Agent", d.config.UserAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return failures.New(failures.NetworkError, "HTTP request failed", err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return failures.New(failures.NotFound, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status), nil)
	default:
		return failures.New(failures.NetworkError, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status), nil)
	}

	//nolint:gosec // G304: dest is inside the pipeline's work directory
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	//nolint:errcheck // Defer close on file being written
	defer out.Close()

	written, err := io.Copy(out, io.LimitReader(resp.Body, maxPayloadSize+1))
	if err != nil {
		return failures.New(failures.NetworkError, "failed to read response body", err)
	}
	if written == 0 {
		return failures.New(failures.NotFound, "server returned an empty payload", nil)
	}
	if written > maxPayloadSize {
		return failures.New(failures.NotFound, "payload exceeds size limit", nil)
	}

	d.logger.Debug("downloaded payload", interfaces.F("file", filepath.Base(dest)), interfaces.F("bytes", written))
	return nil
}

// locateLibrary finds the library named baseName inside the payload
func (d *Downloader) locateLibrary(ctx context.Context, payloadPath, dir, baseName string) (string, error) {
	name := filepath.Base(payloadPath)
	switch {
	case strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz"),
		strings.HasSuffix(name, ".tar.zst"):
		extractDir := filepath.Join(dir, "extracted")
		if err := d.extractTarball(payloadPath, extractDir); err != nil {
			return "", failures.New(failures.NotFound, "payload is not a readable tarball", err)
		}
		return findFile(extractDir, baseName)

	case strings.HasSuffix(name, ".zip") || strings.HasSuffix(name, ".jar"):
		res, err := NewArchiveInspector().FindLibrary(ctx, payloadPath, baseName)
		if err != nil {
			return "", failures.New(failures.NotFound, "payload does not contain "+baseName, err)
		}
		return NewExtractor().Extract(ctx, payloadPath, res.InternalPath, filepath.Join(dir, "extracted"))

	default:
		// a bare shared object
		if name == baseName {
			return payloadPath, nil
		}
		dest := filepath.Join(dir, baseName)
		if err := os.Rename(payloadPath, dest); err != nil {
			return "", fmt.Errorf("failed to rename payload: %w", err)
		}
		return dest, nil
	}
}

// findFile walks root for a regular file named baseName
func findFile(root, baseName string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.Type().IsRegular() && entry.Name() == baseName {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to search payload: %w", err)
	}
	if found == "" {
		return "", failures.New(failures.NotFound, "payload does not contain "+baseName, nil)
	}
	return found, nil
}

// extractTarball extracts regular files of a .tar.gz or .tar.zst file to
// destination directory
func (d *Downloader) extractTarball(tarPath, destDir string) error {
	//nolint:gosec // G304: File path tarPath is the payload this process downloaded
	file, err := os.Open(tarPath)
	if err != nil {
		return fmt.Errorf("failed to open tarball: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer file.Close()

	var stream io.Reader
	if strings.HasSuffix(tarPath, ".zst") {
		zr, err := zstd.NewReader(file)
		if err != nil {
			return fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer zr.Close()
		stream = zr
	} else {
		gzr, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		//nolint:errcheck // Defer close on gzip reader
		defer gzr.Close()
		stream = gzr
	}

	tr := tar.NewReader(stream)

	if err := os.MkdirAll(destDir, 0750); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	root := filepath.Clean(destDir) + string(os.PathSeparator)

	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("tar read error: %w", err)
		}

		//nolint:gosec // G305: Path traversal validated by HasPrefix check below
		target := filepath.Join(destDir, header.Name)
		if !strings.HasPrefix(filepath.Clean(target)+string(os.PathSeparator), root) {
			return fmt.Errorf("invalid file path in archive: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0750); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
				return fmt.Errorf("failed to create parent directory: %w", err)
			}

			//nolint:gosec // G304: target validated above
			outFile, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0755)
			if err != nil {
				return fmt.Errorf("failed to create file: %w", err)
			}
			if _, err := io.Copy(outFile, io.LimitReader(tr, maxPayloadSize)); err != nil {
				_ = outFile.Close()
				return fmt.Errorf("failed to write file: %w", err)
			}
			if err := outFile.Close(); err != nil {
				return fmt.Errorf("failed to close file: %w", err)
			}

		default:
			d.logger.Debug("ignoring tar entry", interfaces.F("name", header.Name), interfaces.F("type", string(header.Typeflag)))
		}
	}

	return nil
}
