package bundle

import (
	"github.com/GriffinCanCode/partloader/internal/domain/descriptor"
)

// Set is the flat registry of live bundles across composed descriptors.
// It is read-only once built.
type Set struct {
	bundles     []*Bundle
	byRef       map[Ref]*Bundle
	descriptors []descriptor.ID
	rules       map[descriptor.ID][]descriptor.CodeRule
}

func newSet() *Set {
	return &Set{
		byRef: make(map[Ref]*Bundle),
		rules: make(map[descriptor.ID][]descriptor.CodeRule),
	}
}

func (s *Set) add(b *Bundle) {
	s.bundles = append(s.bundles, b)
	s.byRef[b.ref] = b
}

// Get returns the bundle for ref
func (s *Set) Get(ref Ref) (*Bundle, bool) {
	b, ok := s.byRef[ref]
	return b, ok
}

// Lookup returns a bundle by owning descriptor and name
func (s *Set) Lookup(id descriptor.ID, name string) (*Bundle, bool) {
	return s.Get(Ref{Descriptor: id, Name: name})
}

// All returns every live bundle in composition order
func (s *Set) All() []*Bundle {
	return append([]*Bundle(nil), s.bundles...)
}

// Eager returns the bundles fetched at startup
func (s *Set) Eager() []*Bundle {
	var out []*Bundle
	for _, b := range s.bundles {
		if b.eager {
			out = append(out, b)
		}
	}
	return out
}

// Len returns the number of live bundles
func (s *Set) Len() int { return len(s.bundles) }

// Descriptors returns the composed descriptor ids in walk order
func (s *Set) Descriptors() []descriptor.ID {
	return append([]descriptor.ID(nil), s.descriptors...)
}

// Main returns the first root descriptor id, the one bare bundle names refer to
func (s *Set) Main() descriptor.ID {
	if len(s.descriptors) == 0 {
		return ""
	}
	return s.descriptors[0]
}

// Rules returns the code rules of a descriptor whose bundles survived filtering
func (s *Set) Rules(id descriptor.ID) []descriptor.CodeRule {
	return append([]descriptor.CodeRule(nil), s.rules[id]...)
}

// ContainingArtifact returns the bundles that hold an artifact at location
func (s *Set) ContainingArtifact(location, version string) []*Bundle {
	var out []*Bundle
	for _, b := range s.bundles {
		if b.Contains(location, version) {
			out = append(out, b)
		}
	}
	return out
}
