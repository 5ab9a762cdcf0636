package bundle

import (
	"github.com/GriffinCanCode/partloader/internal/domain/descriptor"
)

// Ref is the identity of a bundle: names are only unique within their
// owning descriptor.
type Ref struct {
	Descriptor descriptor.ID
	Name       string
}

func (r Ref) String() string {
	return string(r.Descriptor) + "#" + r.Name
}

// Bundle is a platform-filtered group of artifacts fetched together
type Bundle struct {
	ref       Ref
	eager     bool
	artifacts []descriptor.Artifact
}

func newBundle(ref Ref, eager bool, artifacts []descriptor.Artifact) *Bundle {
	return &Bundle{
		ref:       ref,
		eager:     eager,
		artifacts: append([]descriptor.Artifact(nil), artifacts...),
	}
}

// Ref returns the bundle identity
func (b *Bundle) Ref() Ref { return b.ref }

// Eager reports whether the bundle is fetched at startup
func (b *Bundle) Eager() bool { return b.eager }

// Len returns the number of member artifacts
func (b *Bundle) Len() int { return len(b.artifacts) }

// Artifacts returns a copy of the member artifacts
func (b *Bundle) Artifacts() []descriptor.Artifact {
	return append([]descriptor.Artifact(nil), b.artifacts...)
}

// HasNative reports whether any member is a native library
func (b *Bundle) HasNative() bool {
	for _, a := range b.artifacts {
		if a.Kind == descriptor.KindNativeLibrary {
			return true
		}
	}
	return false
}

// Contains reports whether the bundle holds an artifact at location. An
// empty version matches any artifact version.
func (b *Bundle) Contains(location, version string) bool {
	for _, a := range b.artifacts {
		if a.Location == location && (version == "" || a.Version == version) {
			return true
		}
	}
	return false
}
