package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/partloader/internal/domain/descriptor"
	"github.com/GriffinCanCode/partloader/internal/domain/platform"
)

var linux = platform.Profile{OS: "Linux", Arch: "amd64", Locale: descriptor.Locale{Language: "en"}}

func jar(loc string) descriptor.Artifact {
	return descriptor.Artifact{Location: loc}
}

func windowsOnly(loc string) descriptor.Artifact {
	return descriptor.Artifact{Location: loc, Constraint: descriptor.PlatformConstraint{OS: []string{"Windows"}}}
}

func TestBuildSingleDescriptor(t *testing.T) {
	d := &descriptor.Descriptor{
		ID:        "app",
		Artifacts: []descriptor.Artifact{{Location: "main.jar", Main: true}},
		Bundles: []descriptor.BundleDecl{
			{Name: "B1", Artifacts: []descriptor.Artifact{jar("j1")}},
			{Name: "B2", Eager: true, Artifacts: []descriptor.Artifact{jar("j2")}},
		},
		Rules: []descriptor.CodeRule{{Pattern: "pkg.a.*", Bundle: "B1"}},
	}

	set, err := Build([]*descriptor.Descriptor{d}, linux)
	require.NoError(t, err)

	assert.Equal(t, 3, set.Len())
	assert.Equal(t, descriptor.ID("app"), set.Main())

	def, ok := set.Lookup("app", descriptor.DefaultBundle)
	require.True(t, ok)
	assert.True(t, def.Eager())

	b1, ok := set.Lookup("app", "B1")
	require.True(t, ok)
	assert.False(t, b1.Eager())
	assert.Equal(t, []descriptor.Artifact{jar("j1")}, b1.Artifacts())

	var eager []string
	for _, b := range set.Eager() {
		eager = append(eager, b.Ref().Name)
	}
	assert.Equal(t, []string{descriptor.DefaultBundle, "B2"}, eager)

	assert.Len(t, set.Rules("app"), 1)
}

func TestBuildDropsEmptyBundles(t *testing.T) {
	d := &descriptor.Descriptor{
		ID: "app",
		Bundles: []descriptor.BundleDecl{
			{Name: "win", Eager: true, Artifacts: []descriptor.Artifact{windowsOnly("win.jar")}},
			{Name: "mixed", Artifacts: []descriptor.Artifact{windowsOnly("w.jar"), jar("all.jar")}},
		},
		Rules: []descriptor.CodeRule{
			{Pattern: "win.*", Bundle: "win"},
			{Pattern: "mixed.*", Bundle: "mixed"},
		},
	}

	set, err := Build([]*descriptor.Descriptor{d}, linux)
	require.NoError(t, err)

	_, ok := set.Lookup("app", "win")
	assert.False(t, ok, "bundle with no applicable artifacts must be dropped")
	assert.Empty(t, set.Eager())

	mixed, ok := set.Lookup("app", "mixed")
	require.True(t, ok)
	assert.Equal(t, 1, mixed.Len())

	rules := set.Rules("app")
	require.Len(t, rules, 1)
	assert.Equal(t, "mixed", rules[0].Bundle)

	_, ok = set.Lookup("app", descriptor.DefaultBundle)
	assert.False(t, ok)
}

func TestBuildKeepsSameNamedBundlesDistinct(t *testing.T) {
	ext := &descriptor.Descriptor{
		ID:      "ext",
		Bundles: []descriptor.BundleDecl{{Name: "X", Artifacts: []descriptor.Artifact{jar("ext-x.jar")}}},
	}
	main := &descriptor.Descriptor{
		ID:         "main",
		Bundles:    []descriptor.BundleDecl{{Name: "X", Artifacts: []descriptor.Artifact{jar("main-x.jar")}}},
		Extensions: []*descriptor.Descriptor{ext},
	}

	set, err := Build([]*descriptor.Descriptor{main}, linux)
	require.NoError(t, err)

	mainX, ok := set.Lookup("main", "X")
	require.True(t, ok)
	extX, ok := set.Lookup("ext", "X")
	require.True(t, ok)

	assert.NotEqual(t, mainX.Ref(), extX.Ref())
	assert.True(t, mainX.Contains("main-x.jar", ""))
	assert.False(t, mainX.Contains("ext-x.jar", ""))
	assert.Equal(t, []descriptor.ID{"main", "ext"}, set.Descriptors())
}

func TestBuildDetectsCycles(t *testing.T) {
	self := &descriptor.Descriptor{ID: "self"}
	self.Extensions = []*descriptor.Descriptor{self}

	_, err := Build([]*descriptor.Descriptor{self}, linux)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycle)

	a := &descriptor.Descriptor{ID: "a"}
	b := &descriptor.Descriptor{ID: "b"}
	c := &descriptor.Descriptor{ID: "c"}
	a.Extensions = []*descriptor.Descriptor{b}
	b.Extensions = []*descriptor.Descriptor{c}
	c.Extensions = []*descriptor.Descriptor{a}

	_, err = Build([]*descriptor.Descriptor{a}, linux)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycle)
	assert.Contains(t, err.Error(), "a -> b -> c -> a")
}

func TestBuildSharedExtensionIncludedOnce(t *testing.T) {
	shared := &descriptor.Descriptor{
		ID:      "shared",
		Bundles: []descriptor.BundleDecl{{Name: "lib", Artifacts: []descriptor.Artifact{jar("lib.jar")}}},
	}
	left := &descriptor.Descriptor{ID: "left", Extensions: []*descriptor.Descriptor{shared}}
	right := &descriptor.Descriptor{ID: "right", Extensions: []*descriptor.Descriptor{shared}}
	root := &descriptor.Descriptor{ID: "root", Extensions: []*descriptor.Descriptor{left, right}}

	set, err := Build([]*descriptor.Descriptor{root}, linux)
	require.NoError(t, err)
	assert.Equal(t, []descriptor.ID{"root", "left", "shared", "right"}, set.Descriptors())
	assert.Equal(t, 1, set.Len())
}

func TestBuildRejectsDuplicateIDs(t *testing.T) {
	one := &descriptor.Descriptor{ID: "dup", Location: "one.yaml"}
	two := &descriptor.Descriptor{ID: "dup", Location: "two.yaml"}

	_, err := Build([]*descriptor.Descriptor{one, two}, linux)
	assert.ErrorIs(t, err, ErrDuplicateDescriptor)
}

func TestBuildValidatesDescriptors(t *testing.T) {
	bad := &descriptor.Descriptor{ID: "bad", Rules: []descriptor.CodeRule{{Pattern: "x.*", Bundle: "missing"}}}
	root := &descriptor.Descriptor{ID: "root", Extensions: []*descriptor.Descriptor{bad}}

	_, err := Build([]*descriptor.Descriptor{root}, linux)
	assert.ErrorIs(t, err, descriptor.ErrInvalid)
}

func TestBundleArtifactsAreCopies(t *testing.T) {
	artifacts := []descriptor.Artifact{jar("a.jar")}
	d := &descriptor.Descriptor{ID: "app", Bundles: []descriptor.BundleDecl{{Name: "b", Artifacts: artifacts}}}

	set, err := Build([]*descriptor.Descriptor{d}, linux)
	require.NoError(t, err)

	b, _ := set.Lookup("app", "b")
	got := b.Artifacts()
	got[0].Location = "mutated"
	artifacts[0].Location = "mutated too"

	assert.Equal(t, "a.jar", b.Artifacts()[0].Location)
}

func TestContainingArtifact(t *testing.T) {
	d := &descriptor.Descriptor{
		ID: "app",
		Bundles: []descriptor.BundleDecl{
			{Name: "v1", Artifacts: []descriptor.Artifact{{Location: "lib.jar", Version: "1.0"}}},
			{Name: "v2", Artifacts: []descriptor.Artifact{{Location: "lib.jar", Version: "2.0"}}},
		},
	}

	set, err := Build([]*descriptor.Descriptor{d}, linux)
	require.NoError(t, err)

	assert.Len(t, set.ContainingArtifact("lib.jar", ""), 2)
	got := set.ContainingArtifact("lib.jar", "2.0")
	require.Len(t, got, 1)
	assert.Equal(t, "v2", got[0].Ref().Name)
	assert.Empty(t, set.ContainingArtifact("other.jar", ""))
}
