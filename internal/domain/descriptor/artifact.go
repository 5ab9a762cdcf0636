package descriptor

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Kind tells code archives from native libraries
type Kind int

const (
	KindCodeArchive Kind = iota
	KindNativeLibrary
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindCodeArchive:
		return "code-archive"
	case KindNativeLibrary:
		return "native-library"
	default:
		return "unknown"
	}
}

// ParseKind converts a kind name into a Kind. Empty means code archive.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "code-archive", "jar", "code":
		return KindCodeArchive, nil
	case "native-library", "nativelib", "native":
		return KindNativeLibrary, nil
	default:
		return KindCodeArchive, fmt.Errorf("%w: unknown artifact kind %q", ErrInvalid, s)
	}
}

// Artifact is one downloadable unit
type Artifact struct {
	Location   string
	Kind       Kind
	Main       bool
	Version    string
	Digest     string
	Size       int64
	Constraint PlatformConstraint
}

func (a Artifact) String() string {
	if a.Version != "" {
		return a.Location + "@" + a.Version
	}
	return a.Location
}

// PlatformConstraint restricts where an artifact applies. Nil or empty
// predicates match any platform; several values of one predicate are
// alternatives.
type PlatformConstraint struct {
	OS      []string
	Arch    []string
	Locales []Locale
	Runtime *VersionRange
}

// IsZero reports whether the constraint has no predicate at all
func (c PlatformConstraint) IsZero() bool {
	return len(c.OS) == 0 && len(c.Arch) == 0 && len(c.Locales) == 0 && c.Runtime == nil
}

// Locale is a language/country/variant triple; empty parts are unset.
type Locale struct {
	Language string
	Country  string
	Variant  string
}

// ParseLocale accepts "de", "de_DE", "de-DE", "de_DE_POSIX" and POSIX
// environment values such as "de_DE.UTF-8@euro". "C" and "POSIX" yield the
// empty locale.
func ParseLocale(s string) Locale {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	if s == "" || s == "C" || s == "POSIX" {
		return Locale{}
	}

	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' })
	var l Locale
	if len(parts) > 0 {
		l.Language = strings.ToLower(parts[0])
	}
	if len(parts) > 1 {
		l.Country = strings.ToUpper(parts[1])
	}
	if len(parts) > 2 {
		l.Variant = strings.Join(parts[2:], "_")
	}
	return l
}

// IsZero reports whether no part of the locale is set
func (l Locale) IsZero() bool {
	return l.Language == "" && l.Country == "" && l.Variant == ""
}

func (l Locale) String() string {
	parts := []string{l.Language}
	if l.Country != "" || l.Variant != "" {
		parts = append(parts, l.Country)
	}
	if l.Variant != "" {
		parts = append(parts, l.Variant)
	}
	return strings.Join(parts, "_")
}

// VersionRange is a runtime-version interval with an inclusive lower bound.
// A nil Max means unbounded. MaxExclusive turns Max into an open bound.
type VersionRange struct {
	Min          *semver.Version
	Max          *semver.Version
	MaxExclusive bool
}

// Contains reports whether v falls inside the range
func (r VersionRange) Contains(v *semver.Version) bool {
	if v == nil {
		return false
	}
	if r.Min != nil && v.LessThan(r.Min) {
		return false
	}
	if r.Max == nil {
		return true
	}
	if r.MaxExclusive {
		return v.LessThan(r.Max)
	}
	return !v.GreaterThan(r.Max)
}

func (r VersionRange) String() string {
	switch {
	case r.Min == nil && r.Max == nil:
		return "*"
	case r.Max == nil:
		return r.Min.Original() + "+"
	case r.Min != nil && r.Min.Equal(r.Max) && !r.MaxExclusive:
		return r.Min.Original()
	}
	lower := "0"
	if r.Min != nil {
		lower = r.Min.Original()
	}
	if r.MaxExclusive {
		return fmt.Sprintf("[%s,%s)", lower, r.Max.Original())
	}
	return fmt.Sprintf("[%s,%s]", lower, r.Max.Original())
}

// ParseVersion parses a runtime version identifier. Java update suffixes
// ("1.8.0_202") are kept as build metadata so they do not affect ordering.
func ParseVersion(s string) (*semver.Version, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '_'); i >= 0 && !strings.ContainsRune(s, '+') {
		s = s[:i] + "+" + s[i+1:]
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("%w: bad version %q: %v", ErrInvalid, s, err)
	}
	return v, nil
}

// ParseVersionRange parses the range notations used by descriptors:
//
//	1.8        exactly 1.8
//	1.8+       1.8 and above
//	1.8*       any 1.8.x
//	1.6-1.8    1.6 up to and including 1.8
func ParseVersionRange(s string) (*VersionRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	switch {
	case strings.HasSuffix(s, "+"):
		minV, err := ParseVersion(strings.TrimSuffix(s, "+"))
		if err != nil {
			return nil, err
		}
		return &VersionRange{Min: minV}, nil

	case strings.HasSuffix(s, "*"):
		prefix := strings.TrimSuffix(strings.TrimSuffix(s, "*"), ".")
		minV, err := ParseVersion(prefix)
		if err != nil {
			return nil, err
		}
		return &VersionRange{Min: minV, Max: nextPrefix(minV, strings.Count(prefix, ".")+1), MaxExclusive: true}, nil
	}

	// "17-ea" is a pre-release, "1.6-1.8" is a range
	if lo, hi, ok := strings.Cut(s, "-"); ok && isNumericVersion(lo) && isNumericVersion(hi) {
		minV, err := ParseVersion(lo)
		if err != nil {
			return nil, err
		}
		maxV, err := ParseVersion(hi)
		if err != nil {
			return nil, err
		}
		if maxV.LessThan(minV) {
			return nil, fmt.Errorf("%w: empty version range %q", ErrInvalid, s)
		}
		return &VersionRange{Min: minV, Max: maxV}, nil
	}

	v, err := ParseVersion(s)
	if err != nil {
		return nil, err
	}
	return &VersionRange{Min: v, Max: v}, nil
}

func isNumericVersion(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != '_' {
			return false
		}
	}
	return true
}

// nextPrefix returns the smallest version past every version sharing the
// first n components of v.
func nextPrefix(v *semver.Version, n int) *semver.Version {
	switch n {
	case 1:
		return semver.New(v.Major()+1, 0, 0, "", "")
	case 2:
		return semver.New(v.Major(), v.Minor()+1, 0, "", "")
	default:
		return semver.New(v.Major(), v.Minor(), v.Patch()+1, "", "")
	}
}
