package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/partloader/internal/domain/descriptor"
)

// ErrFormat is returned for files whose extension names no known format
var ErrFormat = errors.New("unsupported descriptor format")

// Loader reads descriptor files and their extensions. Every file is read
// at most once per Loader, so a shared extension yields one Descriptor.
type Loader struct {
	logger *zap.Logger
	loaded map[string]*descriptor.Descriptor
}

// NewLoader creates a loader. A nil logger disables logging.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		logger: logger,
		loaded: make(map[string]*descriptor.Descriptor),
	}
}

// Load reads one descriptor file with a fresh Loader
func Load(path string) (*descriptor.Descriptor, error) {
	return NewLoader(nil).Load(path)
}

// Load reads the descriptor at path and, recursively, its extensions.
// A reference back to a file still being loaded is linked to the same
// Descriptor, leaving cycle reporting to the bundle builder.
func (l *Loader) Load(path string) (*descriptor.Descriptor, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if d, ok := l.loaded[abs]; ok {
		return d, nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	doc, err := Decode(abs, data)
	if err != nil {
		return nil, err
	}

	d := &descriptor.Descriptor{Location: abs}
	dir := filepath.Dir(abs)
	if err := doc.convert(d, dir); err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}
	l.loaded[abs] = d

	l.logger.Debug("Descriptor loaded",
		zap.String("path", abs),
		zap.String("id", string(d.ID)),
		zap.Int("bundles", len(d.Bundles)),
		zap.Int("extensions", len(doc.Extensions)))

	for _, ref := range doc.Extensions {
		if ref.Href == "" {
			return nil, fmt.Errorf("%s: %w: extension without href", abs, descriptor.ErrInvalid)
		}
		href := filepath.FromSlash(ref.Href)
		if !filepath.IsAbs(href) {
			href = filepath.Join(dir, href)
		}
		ext, err := l.Load(href)
		if err != nil {
			return nil, err
		}
		d.Extensions = append(d.Extensions, ext)
	}

	return d, nil
}

// Decode parses a descriptor document, choosing the format from the file
// extension of path. Errors carry path.
func Decode(path string, data []byte) (*Document, error) {
	var doc Document

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.UnmarshalWithOptions(data, &doc, yaml.DisallowUnknownField()); err != nil {
			return nil, fmt.Errorf("%s: failed to parse YAML: %w", path, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrFormat, path)
	}

	return &doc, nil
}
