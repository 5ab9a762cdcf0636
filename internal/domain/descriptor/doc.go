// Package descriptor holds the parsed deployment descriptor model.
//
// A Descriptor is one deployment file (the main application or an extension)
// after parsing. It declares:
//   - Artifacts: downloadable code archives and native libraries
//   - Bundles: named groups of artifacts fetched together, eager or lazy
//   - Rules: code-unit ids and package prefixes owned by a bundle
//   - Extensions: further descriptors composed into the same launch
//
// Everything in this package is plain data. Values are built once and never
// mutated afterwards; platform filtering and download state live elsewhere.
//
// Example Usage:
//
//	d := &descriptor.Descriptor{
//		ID: "app",
//		Bundles: []descriptor.BundleDecl{
//			{Name: "reports", Artifacts: []descriptor.Artifact{{Location: "https://x/reports.jar"}}},
//		},
//		Rules: []descriptor.CodeRule{{Pattern: "com.acme.reports.*", Bundle: "reports", Recursive: true}},
//	}
//	if err := d.Validate(); err != nil {
//		return err
//	}
package descriptor
