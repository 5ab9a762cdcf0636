package descriptor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid marks configuration errors in descriptor content
var ErrInvalid = errors.New("invalid descriptor")

// DefaultBundle names the implicit eager bundle formed by a descriptor's
// un-parted artifacts. It cannot be declared explicitly.
const DefaultBundle = "<default>"

// PackageWildcard is the suffix that turns a rule pattern into a package prefix
const PackageWildcard = ".*"

// ID identifies a descriptor within one launch
type ID string

func (id ID) String() string { return string(id) }

// BundleDecl declares a named group of artifacts fetched together
type BundleDecl struct {
	Name      string
	Eager     bool
	Artifacts []Artifact
}

// CodeRule assigns code units to a bundle. Pattern is either an exact
// code-unit id ("a.b.C") or a package prefix ("a.b.*").
type CodeRule struct {
	Pattern   string
	Bundle    string
	Recursive bool
}

// IsPackage reports whether the rule names a package rather than one code unit
func (r CodeRule) IsPackage() bool {
	return strings.HasSuffix(r.Pattern, PackageWildcard) || r.Pattern == "*"
}

// Prefix returns the package named by a package rule, or the exact id
// otherwise. The root package is the empty string.
func (r CodeRule) Prefix() string {
	if r.Pattern == "*" {
		return ""
	}
	return strings.TrimSuffix(r.Pattern, PackageWildcard)
}

// Descriptor is one parsed deployment file
type Descriptor struct {
	ID         ID
	Location   string
	Artifacts  []Artifact
	Bundles    []BundleDecl
	Rules      []CodeRule
	Extensions []*Descriptor
}

// Bundle returns the declaration with the given name
func (d *Descriptor) Bundle(name string) (BundleDecl, bool) {
	for _, b := range d.Bundles {
		if b.Name == name {
			return b, true
		}
	}
	return BundleDecl{}, false
}

// Validate checks the descriptor's own content. Extensions are validated
// when they are composed.
func (d *Descriptor) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil descriptor", ErrInvalid)
	}
	if d.ID == "" {
		return fmt.Errorf("%w: descriptor id is required", ErrInvalid)
	}

	mains := 0
	check := func(where string, a Artifact) error {
		if strings.TrimSpace(a.Location) == "" {
			return fmt.Errorf("%w: %s: %s: artifact location is required", ErrInvalid, d.ID, where)
		}
		if a.Main {
			if a.Kind != KindCodeArchive {
				return fmt.Errorf("%w: %s: %s: main artifact %s must be a code archive", ErrInvalid, d.ID, where, a.Location)
			}
			mains++
		}
		return nil
	}

	for _, a := range d.Artifacts {
		if err := check(DefaultBundle, a); err != nil {
			return err
		}
	}

	names := make(map[string]struct{}, len(d.Bundles))
	for _, b := range d.Bundles {
		if b.Name == "" || b.Name == DefaultBundle {
			return fmt.Errorf("%w: %s: bundle name %q is not allowed", ErrInvalid, d.ID, b.Name)
		}
		if _, dup := names[b.Name]; dup {
			return fmt.Errorf("%w: %s: duplicate bundle %q", ErrInvalid, d.ID, b.Name)
		}
		names[b.Name] = struct{}{}

		for _, a := range b.Artifacts {
			if err := check(b.Name, a); err != nil {
				return err
			}
		}
	}

	if mains > 1 {
		return fmt.Errorf("%w: %s: %d main code archives declared, at most one allowed", ErrInvalid, d.ID, mains)
	}

	for _, r := range d.Rules {
		if r.Pattern == "" {
			return fmt.Errorf("%w: %s: rule for bundle %q has no pattern", ErrInvalid, d.ID, r.Bundle)
		}
		if _, ok := names[r.Bundle]; !ok {
			return fmt.Errorf("%w: %s: rule %q references undeclared bundle %q", ErrInvalid, d.ID, r.Pattern, r.Bundle)
		}
	}

	return nil
}
