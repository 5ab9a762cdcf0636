package fetch

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/GriffinCanCode/partloader/internal/domain/descriptor"
)

// File serves artifacts that already live on the local filesystem. The
// returned path is the artifact itself; nothing is copied.
type File struct {
	// VerifyContent sniffs code archives
	VerifyContent bool
}

// Fetch implements resolver.Fetcher
func (f File) Fetch(ctx context.Context, a descriptor.Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := localPath(a.Location)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", path)
	}

	if err := verifyFileDigest(path, a.Digest); err != nil {
		return "", err
	}
	if f.VerifyContent && a.Kind == descriptor.KindCodeArchive {
		if err := verifyArchive(path); err != nil {
			return "", err
		}
	}
	return path, nil
}

func localPath(location string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(location), "file:") {
		return filepath.Clean(location), nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parse location: %w", err)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("%w: remote file host %q", ErrUnsupportedScheme, u.Host)
	}
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	return filepath.FromSlash(path), nil
}
