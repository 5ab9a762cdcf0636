// Package platform describes the running environment and filters artifacts
// against it.
//
// A Profile carries the OS name, CPU architecture, locale and runtime
// version. Detect fills it from the host and configuration; Filter keeps the
// artifacts whose PlatformConstraint accepts the profile.
//
// Matching Rules:
//   - OS and architecture tags match by case-insensitive prefix
//   - A locale constraint matches on the parts it sets (language only accepts
//     every country and variant of that language)
//   - Runtime ranges use the semver total order; a profile without a runtime
//     version fails any runtime constraint
//   - An absent predicate always matches
package platform
