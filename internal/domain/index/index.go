package index

import (
	"path"
	"strings"

	"github.com/GriffinCanCode/partloader/internal/domain/bundle"
	"github.com/GriffinCanCode/partloader/internal/domain/descriptor"
)

// prefixRule is a package rule bound to its bundle
type prefixRule struct {
	pkg       string
	recursive bool
	ref       bundle.Ref
}

// table holds the rules of one descriptor
type table struct {
	exact    map[string][]bundle.Ref
	prefixes []prefixRule
}

// Index maps code-unit ids to owning bundles. It is read-only once built.
type Index struct {
	order  []descriptor.ID
	tables map[descriptor.ID]*table
}

// New builds the index from the rules that survived bundle filtering
func New(set *bundle.Set) *Index {
	idx := &Index{tables: make(map[descriptor.ID]*table)}

	for _, id := range set.Descriptors() {
		t := &table{exact: make(map[string][]bundle.Ref)}
		for _, rule := range set.Rules(id) {
			ref := bundle.Ref{Descriptor: id, Name: rule.Bundle}
			if rule.IsPackage() {
				t.prefixes = append(t.prefixes, prefixRule{pkg: rule.Prefix(), recursive: rule.Recursive, ref: ref})
				continue
			}
			t.exact[rule.Pattern] = appendUnique(t.exact[rule.Pattern], ref)
		}
		idx.order = append(idx.order, id)
		idx.tables[id] = t
	}

	return idx
}

// Resolve returns the bundles owning codeUnitID, unioned across descriptors
// in composition order. An empty result means no bundle owns it.
func (idx *Index) Resolve(codeUnitID string) []bundle.Ref {
	return idx.resolve(codeUnitID, PackageOf(codeUnitID))
}

// ResolveResource resolves a slash-separated resource path. "a/b/C.class"
// is looked up as code unit "a.b.C"; any other resource is owned through the
// package of its directory.
func (idx *Index) ResolveResource(resource string) []bundle.Ref {
	clean := strings.TrimPrefix(path.Clean("/"+resource), "/")
	dir := path.Dir(clean)
	if dir == "." {
		dir = ""
	}
	return idx.resolve(CodeUnitFromPath(clean), strings.ReplaceAll(dir, "/", "."))
}

func (idx *Index) resolve(codeUnitID, pkg string) []bundle.Ref {
	var out []bundle.Ref
	for _, id := range idx.order {
		for _, ref := range idx.tables[id].resolve(codeUnitID, pkg) {
			out = appendUnique(out, ref)
		}
	}
	return out
}

// CodeUnitFromPath converts a resource path into a dotted code-unit id
func CodeUnitFromPath(resource string) string {
	resource = strings.TrimPrefix(path.Clean("/"+resource), "/")
	resource = strings.TrimSuffix(resource, ".class")
	return strings.ReplaceAll(resource, "/", ".")
}

// PackageOf returns the package part of a dotted code-unit id
func PackageOf(codeUnitID string) string {
	if i := strings.LastIndexByte(codeUnitID, '.'); i >= 0 {
		return codeUnitID[:i]
	}
	return ""
}

// resolve applies exact rules first, then the longest matching package rule
func (t *table) resolve(codeUnitID, pkg string) []bundle.Ref {
	if refs, ok := t.exact[codeUnitID]; ok {
		return refs
	}

	best := -1
	var out []bundle.Ref
	for _, r := range t.prefixes {
		if !r.matches(pkg) {
			continue
		}
		switch l := len(r.pkg); {
		case l > best:
			best = l
			out = []bundle.Ref{r.ref}
		case l == best:
			out = appendUnique(out, r.ref)
		}
	}
	return out
}

// matches reports whether a code unit in pkg falls under the rule
func (r prefixRule) matches(pkg string) bool {
	if pkg == r.pkg {
		return true
	}
	if !r.recursive {
		return false
	}
	return r.pkg == "" || strings.HasPrefix(pkg, r.pkg+".")
}

func appendUnique(refs []bundle.Ref, ref bundle.Ref) []bundle.Ref {
	for _, r := range refs {
		if r == ref {
			return refs
		}
	}
	return append(refs, ref)
}
