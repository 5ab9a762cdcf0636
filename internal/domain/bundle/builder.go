package bundle

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/partloader/internal/domain/descriptor"
	"github.com/GriffinCanCode/partloader/internal/domain/platform"
)

var (
	// ErrCycle is returned when a descriptor includes itself through extensions
	ErrCycle = errors.New("descriptor extension cycle")
	// ErrDuplicateDescriptor is returned when two different descriptors share an id
	ErrDuplicateDescriptor = errors.New("duplicate descriptor id")
)

// Builder composes descriptors into a Set for one platform profile
type Builder struct {
	profile platform.Profile
	logger  *zap.Logger
}

// NewBuilder creates a builder. A nil logger disables logging.
func NewBuilder(profile platform.Profile, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{profile: profile, logger: logger}
}

// Build composes descriptors without logging
func Build(roots []*descriptor.Descriptor, profile platform.Profile) (*Set, error) {
	return NewBuilder(profile, nil).Build(roots...)
}

// walk tracks the depth-first descent through extensions
type walk struct {
	set     *Set
	seen    map[descriptor.ID]*descriptor.Descriptor
	onStack map[*descriptor.Descriptor]bool
	path    []descriptor.ID
}

// Build validates, filters and registers every root and, recursively, its
// extensions. A descriptor reachable along several paths is included once.
func (b *Builder) Build(roots ...*descriptor.Descriptor) (*Set, error) {
	w := &walk{
		set:     newSet(),
		seen:    make(map[descriptor.ID]*descriptor.Descriptor),
		onStack: make(map[*descriptor.Descriptor]bool),
	}

	for _, root := range roots {
		if err := b.visit(w, root); err != nil {
			return nil, err
		}
	}

	b.logger.Debug("Bundle set built",
		zap.Int("descriptors", len(w.set.descriptors)),
		zap.Int("bundles", w.set.Len()),
		zap.Int("eager", len(w.set.Eager())),
		zap.Stringer("profile", b.profile))

	return w.set, nil
}

func (b *Builder) visit(w *walk, d *descriptor.Descriptor) error {
	if d == nil {
		return fmt.Errorf("%w: nil extension in %s", descriptor.ErrInvalid, pathString(w.path))
	}

	if w.onStack[d] {
		return fmt.Errorf("%w: %s -> %s", ErrCycle, pathString(w.path), d.ID)
	}
	if prev, ok := w.seen[d.ID]; ok {
		if prev == d {
			return nil
		}
		return fmt.Errorf("%w: %q (%s and %s)", ErrDuplicateDescriptor, d.ID, prev.Location, d.Location)
	}

	if err := d.Validate(); err != nil {
		return err
	}

	w.seen[d.ID] = d
	w.onStack[d] = true
	w.path = append(w.path, d.ID)
	defer func() {
		w.onStack[d] = false
		w.path = w.path[:len(w.path)-1]
	}()

	b.register(w.set, d)

	for _, ext := range d.Extensions {
		if err := b.visit(w, ext); err != nil {
			return err
		}
	}

	return nil
}

// register adds the live bundles and their rules for one descriptor
func (b *Builder) register(set *Set, d *descriptor.Descriptor) {
	set.descriptors = append(set.descriptors, d.ID)

	if artifacts := platform.Filter(d.Artifacts, b.profile); len(artifacts) > 0 {
		set.add(newBundle(Ref{Descriptor: d.ID, Name: descriptor.DefaultBundle}, true, artifacts))
	}

	live := make(map[string]bool, len(d.Bundles))
	for _, decl := range d.Bundles {
		artifacts := platform.Filter(decl.Artifacts, b.profile)
		if len(artifacts) == 0 {
			b.logger.Debug("Dropping bundle with no applicable artifacts",
				zap.String("descriptor", string(d.ID)),
				zap.String("bundle", decl.Name),
				zap.Int("declared", len(decl.Artifacts)))
			continue
		}
		live[decl.Name] = true
		set.add(newBundle(Ref{Descriptor: d.ID, Name: decl.Name}, decl.Eager, artifacts))
	}

	for _, rule := range d.Rules {
		if live[rule.Bundle] {
			set.rules[d.ID] = append(set.rules[d.ID], rule)
		}
	}
}

func pathString(path []descriptor.ID) string {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = string(id)
	}
	return strings.Join(parts, " -> ")
}
