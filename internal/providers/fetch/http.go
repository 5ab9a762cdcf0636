package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/partloader/internal/domain/descriptor"
	"github.com/GriffinCanCode/partloader/internal/providers/http/client"
	"github.com/GriffinCanCode/partloader/internal/shared/utils"
)

// HTTP downloads artifacts into a cache directory. An artifact already in
// the cache (and matching its digest, if any) is not downloaded again.
type HTTP struct {
	client        *client.Client
	cacheDir      string
	verifyContent bool
	logger        *zap.Logger
}

// HTTPOptions configures an HTTP fetcher
type HTTPOptions struct {
	// CacheDir defaults to <user cache dir>/partloader
	CacheDir      string
	VerifyContent bool
	Logger        *zap.Logger
}

// NewHTTP creates an HTTP fetcher on c
func NewHTTP(c *client.Client, opts HTTPOptions) (*HTTP, error) {
	if c == nil {
		return nil, errors.New("fetch: http client is required")
	}
	if opts.CacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("locate cache dir: %w", err)
		}
		opts.CacheDir = filepath.Join(base, "partloader")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &HTTP{
		client:        c,
		cacheDir:      opts.CacheDir,
		verifyContent: opts.VerifyContent,
		logger:        opts.Logger,
	}, nil
}

// CacheDir returns the root of the download cache
func (h *HTTP) CacheDir() string {
	return h.cacheDir
}

// Fetch implements resolver.Fetcher
func (h *HTTP) Fetch(ctx context.Context, a descriptor.Artifact) (string, error) {
	dest, enc, err := h.cachePath(a)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(dest); err == nil {
		if err := verifyFileDigest(dest, a.Digest); err == nil {
			h.logger.Debug("Artifact cached", zap.String("artifact", a.String()), zap.String("path", dest))
			return dest, nil
		}
		h.logger.Warn("Cached artifact is stale, downloading again", zap.String("path", dest))
	}

	start := time.Now()
	if err := h.download(ctx, a, dest, enc); err != nil {
		return "", err
	}

	h.logger.Debug("Artifact downloaded",
		zap.String("artifact", a.String()),
		zap.String("path", dest),
		zap.Duration("elapsed", time.Since(start)))
	return dest, nil
}

// encoding is the compression a location is served with
type encoding string

const (
	encodingNone encoding = ""
	encodingGzip encoding = ".gz"
	encodingZstd encoding = ".zst"
)

// cachePath maps an artifact to <cache>/<k[:2]>/<k>/<base>, k being the
// hex sha256 of location@version. A compression suffix is dropped from base.
func (h *HTTP) cachePath(a descriptor.Artifact) (string, encoding, error) {
	u, err := url.Parse(a.Location)
	if err != nil {
		return "", encodingNone, fmt.Errorf("parse location: %w", err)
	}

	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		base = "artifact"
	}
	enc := encodingNone
	for _, e := range []encoding{encodingGzip, encodingZstd} {
		suffix := string(e)
		if strings.HasSuffix(strings.ToLower(base), suffix) && len(base) > len(suffix) {
			enc = e
			base = base[:len(base)-len(suffix)]
			break
		}
	}

	key := utils.HashKey(a.String())
	return filepath.Join(h.cacheDir, key[:2], key, base), enc, nil
}

// decoder inflates r according to enc. The returned close releases the
// decoder's resources.
func decoder(r io.Reader, enc encoding) (io.Reader, func(), error) {
	switch enc {
	case encodingGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { zr.Close() }, nil
	case encodingZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	default:
		return r, func() {}, nil
	}
}

func (h *HTTP) download(ctx context.Context, a descriptor.Artifact, dest string, enc encoding) (err error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(dest)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	body, err := h.client.Open(ctx, a.Location)
	if err != nil {
		return err
	}
	defer body.Close()

	r, release, err := decoder(body, enc)
	if err != nil {
		return fmt.Errorf("inflate %s: %w", a.Location, err)
	}
	defer release()

	r, verifier, err := verifyingReader(r, a.Digest)
	if err != nil {
		return err
	}

	n, err := io.Copy(tmp, r)
	if err != nil {
		return fmt.Errorf("download %s: %w", a.Location, err)
	}
	if enc == encodingNone && a.Size > 0 && n != a.Size {
		return fmt.Errorf("%w: %s is %d bytes, expected %d", ErrVerification, a.Location, n, a.Size)
	}
	if verifier != nil && !verifier.Verified() {
		return fmt.Errorf("%w: %s does not match digest %s", ErrVerification, a.Location, a.Digest)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if h.verifyContent && a.Kind == descriptor.KindCodeArchive {
		if err := verifyArchive(tmp.Name()); err != nil {
			return err
		}
	}

	return os.Rename(tmp.Name(), dest)
}
