package platform

import (
	"os"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/GriffinCanCode/partloader/internal/domain/descriptor"
)

// Profile describes the running environment artifacts are filtered against
type Profile struct {
	OS      string
	Arch    string
	Locale  descriptor.Locale
	Runtime *semver.Version
}

// Overrides replace detected values; empty fields keep detection.
type Overrides struct {
	OS      string
	Arch    string
	Locale  string
	Runtime string
}

// osNames maps GOOS to the names descriptors use
var osNames = map[string]string{
	"linux":   "Linux",
	"darwin":  "Mac OS X",
	"windows": "Windows",
	"freebsd": "FreeBSD",
	"openbsd": "OpenBSD",
	"netbsd":  "NetBSD",
	"solaris": "SunOS",
	"aix":     "AIX",
}

// archNames maps GOARCH to the names descriptors use
var archNames = map[string]string{
	"amd64":   "amd64",
	"386":     "x86",
	"arm64":   "aarch64",
	"arm":     "arm",
	"ppc64le": "ppc64le",
	"s390x":   "s390x",
}

// Detect builds a profile for the current process. The runtime version has
// no host equivalent and is only taken from overrides.
func Detect(o Overrides) (Profile, error) {
	p := Profile{
		OS:     osName(runtime.GOOS),
		Arch:   archName(runtime.GOARCH),
		Locale: descriptor.ParseLocale(envLocale()),
	}

	if o.OS != "" {
		p.OS = o.OS
	}
	if o.Arch != "" {
		p.Arch = o.Arch
	}
	if o.Locale != "" {
		p.Locale = descriptor.ParseLocale(o.Locale)
	}
	if o.Runtime != "" {
		v, err := descriptor.ParseVersion(o.Runtime)
		if err != nil {
			return Profile{}, err
		}
		p.Runtime = v
	}

	return p, nil
}

func (p Profile) String() string {
	var sb strings.Builder
	sb.WriteString(p.OS)
	sb.WriteString("/")
	sb.WriteString(p.Arch)
	if !p.Locale.IsZero() {
		sb.WriteString(" ")
		sb.WriteString(p.Locale.String())
	}
	if p.Runtime != nil {
		sb.WriteString(" runtime ")
		sb.WriteString(p.Runtime.Original())
	}
	return sb.String()
}

func osName(goos string) string {
	if name, ok := osNames[goos]; ok {
		return name
	}
	return goos
}

func archName(goarch string) string {
	if name, ok := archNames[goarch]; ok {
		return name
	}
	return goarch
}

// envLocale follows the POSIX precedence for message locales
func envLocale() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
