package platform

import (
	"strings"

	"github.com/GriffinCanCode/partloader/internal/domain/descriptor"
)

// archAliases lists names that denote the same CPU architecture
var archAliases = map[string][]string{
	"amd64":   {"x86_64"},
	"x86_64":  {"amd64"},
	"x86":     {"i386", "i686"},
	"aarch64": {"arm64"},
	"arm64":   {"aarch64"},
}

// Filter returns the artifacts whose constraint matches the profile, in order.
func Filter(artifacts []descriptor.Artifact, p Profile) []descriptor.Artifact {
	out := make([]descriptor.Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		if Matches(a.Constraint, p) {
			out = append(out, a)
		}
	}
	return out
}

// Matches reports whether every present predicate of c accepts the profile
func Matches(c descriptor.PlatformConstraint, p Profile) bool {
	if len(c.OS) > 0 && !anyPrefix(c.OS, p.OS) {
		return false
	}
	if len(c.Arch) > 0 && !anyPrefix(c.Arch, p.Arch) && !anyAlias(c.Arch, p.Arch) {
		return false
	}
	if len(c.Locales) > 0 && !anyLocale(c.Locales, p.Locale) {
		return false
	}
	if c.Runtime != nil && !c.Runtime.Contains(p.Runtime) {
		return false
	}
	return true
}

// LocaleMatches applies the locale rule: unset parts of the constraint
// accept anything, set parts must be equal.
func LocaleMatches(constraint, actual descriptor.Locale) bool {
	if constraint.Language != "" && !strings.EqualFold(constraint.Language, actual.Language) {
		return false
	}
	if constraint.Country != "" && !strings.EqualFold(constraint.Country, actual.Country) {
		return false
	}
	if constraint.Variant != "" && constraint.Variant != actual.Variant {
		return false
	}
	return true
}

func anyLocale(constraints []descriptor.Locale, actual descriptor.Locale) bool {
	for _, c := range constraints {
		if LocaleMatches(c, actual) {
			return true
		}
	}
	return false
}

// anyPrefix reports whether some tag starts with value, ignoring case.
// A "Mac OS X 10.15" tag accepts the profile "Mac OS X", while an "x86"
// tag rejects the profile "x86_64".
func anyPrefix(tags []string, value string) bool {
	value = strings.ToLower(value)
	for _, tag := range tags {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(tag)), value) {
			return true
		}
	}
	return false
}

// anyAlias accepts a tag equal to one of the profile arch's aliases, so an
// "x86_64" tag accepts the profile "amd64". Aliases compare exactly.
func anyAlias(tags []string, arch string) bool {
	for _, alias := range archAliases[strings.ToLower(arch)] {
		for _, tag := range tags {
			if strings.EqualFold(strings.TrimSpace(tag), alias) {
				return true
			}
		}
	}
	return false
}
