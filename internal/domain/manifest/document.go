package manifest

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/GriffinCanCode/partloader/internal/domain/descriptor"
)

// Document is the on-disk shape of one descriptor
type Document struct {
	ID         string        `yaml:"id" toml:"id"`
	Codebase   string        `yaml:"codebase,omitempty" toml:"codebase,omitempty"`
	Extensions []Reference   `yaml:"extensions,omitempty" toml:"extensions,omitempty"`
	Artifacts  []ArtifactDoc `yaml:"artifacts,omitempty" toml:"artifacts,omitempty"`
	Bundles    []BundleDoc   `yaml:"bundles,omitempty" toml:"bundles,omitempty"`
	Rules      []RuleDoc     `yaml:"rules,omitempty" toml:"rules,omitempty"`
}

// Reference points at an extension descriptor, relative to the referencing file
type Reference struct {
	Href string `yaml:"href" toml:"href"`
}

// ArtifactDoc describes one artifact and where it applies
type ArtifactDoc struct {
	Href    string   `yaml:"href" toml:"href"`
	Kind    string   `yaml:"kind,omitempty" toml:"kind,omitempty"`
	Main    bool     `yaml:"main,omitempty" toml:"main,omitempty"`
	Version string   `yaml:"version,omitempty" toml:"version,omitempty"`
	Digest  string   `yaml:"digest,omitempty" toml:"digest,omitempty"`
	Size    int64    `yaml:"size,omitempty" toml:"size,omitempty"`
	OS      []string `yaml:"os,omitempty" toml:"os,omitempty"`
	Arch    []string `yaml:"arch,omitempty" toml:"arch,omitempty"`
	Locale  []string `yaml:"locale,omitempty" toml:"locale,omitempty"`
	Runtime string   `yaml:"runtime,omitempty" toml:"runtime,omitempty"`
}

// BundleDoc declares a named bundle. Download is "eager" or "lazy" (default).
type BundleDoc struct {
	Name      string        `yaml:"name" toml:"name"`
	Download  string        `yaml:"download,omitempty" toml:"download,omitempty"`
	Artifacts []ArtifactDoc `yaml:"artifacts" toml:"artifacts"`
}

// RuleDoc maps a code unit or package pattern to a bundle
type RuleDoc struct {
	Pattern   string `yaml:"pattern" toml:"pattern"`
	Bundle    string `yaml:"bundle" toml:"bundle"`
	Recursive bool   `yaml:"recursive,omitempty" toml:"recursive,omitempty"`
}

// convert fills d from doc. Extensions are left to the loader.
func (doc *Document) convert(d *descriptor.Descriptor, dir string) error {
	d.ID = descriptor.ID(doc.ID)
	if d.ID == "" {
		d.ID = descriptor.ID(d.Location)
	}

	var base *url.URL
	if doc.Codebase != "" {
		u, err := url.Parse(doc.Codebase)
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("%w: codebase %q must be an absolute URL", descriptor.ErrInvalid, doc.Codebase)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		base = u
	}

	var err error
	if d.Artifacts, err = convertArtifacts(doc.Artifacts, base, dir); err != nil {
		return err
	}

	for _, b := range doc.Bundles {
		eager, err := parseDownload(b.Download)
		if err != nil {
			return fmt.Errorf("bundle %q: %w", b.Name, err)
		}
		artifacts, err := convertArtifacts(b.Artifacts, base, dir)
		if err != nil {
			return fmt.Errorf("bundle %q: %w", b.Name, err)
		}
		d.Bundles = append(d.Bundles, descriptor.BundleDecl{Name: b.Name, Eager: eager, Artifacts: artifacts})
	}

	for _, r := range doc.Rules {
		d.Rules = append(d.Rules, descriptor.CodeRule{Pattern: r.Pattern, Bundle: r.Bundle, Recursive: r.Recursive})
	}

	return nil
}

func convertArtifacts(docs []ArtifactDoc, base *url.URL, dir string) ([]descriptor.Artifact, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	out := make([]descriptor.Artifact, 0, len(docs))
	for _, a := range docs {
		kind, err := descriptor.ParseKind(a.Kind)
		if err != nil {
			return nil, err
		}

		constraint := descriptor.PlatformConstraint{OS: a.OS, Arch: a.Arch}
		for _, l := range a.Locale {
			constraint.Locales = append(constraint.Locales, descriptor.ParseLocale(l))
		}
		if constraint.Runtime, err = descriptor.ParseVersionRange(a.Runtime); err != nil {
			return nil, fmt.Errorf("artifact %q: %w", a.Href, err)
		}

		location, err := resolveLocation(a.Href, base, dir)
		if err != nil {
			return nil, err
		}

		out = append(out, descriptor.Artifact{
			Location:   location,
			Kind:       kind,
			Main:       a.Main,
			Version:    a.Version,
			Digest:     a.Digest,
			Size:       a.Size,
			Constraint: constraint,
		})
	}
	return out, nil
}

// resolveLocation makes href absolute: against the codebase when one is
// set, otherwise against the descriptor's directory unless it is a URL
func resolveLocation(href string, base *url.URL, dir string) (string, error) {
	if href == "" {
		return "", fmt.Errorf("%w: artifact without href", descriptor.ErrInvalid)
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: artifact href %q: %v", descriptor.ErrInvalid, href, err)
	}
	if base != nil {
		return base.ResolveReference(ref).String(), nil
	}
	if ref.IsAbs() || filepath.IsAbs(href) {
		return href, nil
	}
	return filepath.Join(dir, filepath.FromSlash(href)), nil
}

func parseDownload(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lazy":
		return false, nil
	case "eager":
		return true, nil
	default:
		return false, fmt.Errorf("%w: download must be eager or lazy, got %q", descriptor.ErrInvalid, s)
	}
}
