// Package bundle composes descriptors into the set of live bundles for one
// launch.
//
// Bundles are identified by Ref, the pair (descriptor id, bundle name). Two
// descriptors may both declare a bundle "X"; they stay two bundles.
//
// Building:
//   - Each descriptor's artifacts are filtered against the platform profile
//   - Un-parted artifacts form the eager DefaultBundle of their descriptor
//   - Bundles left without artifacts are dropped, with their code rules
//   - Extensions are walked depth-first; shared extensions are included
//     once and self-inclusion fails with ErrCycle
//
// Example Usage:
//
//	set, err := bundle.Build([]*descriptor.Descriptor{main}, profile)
//	for _, b := range set.Eager() {
//		fmt.Println(b.Ref(), b.Len())
//	}
package bundle
