package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/GriffinCanCode/partloader/internal/domain/descriptor"
	"github.com/GriffinCanCode/partloader/internal/domain/resolver"
)

var (
	// ErrUnsupportedScheme is returned by Mux for locations nobody handles
	ErrUnsupportedScheme = errors.New("unsupported location scheme")
	// ErrVerification is returned when fetched content fails a check
	ErrVerification = errors.New("artifact verification failed")
)

// Func adapts a function to resolver.Fetcher
type Func func(ctx context.Context, a descriptor.Artifact) (string, error)

// Fetch calls f
func (f Func) Fetch(ctx context.Context, a descriptor.Artifact) (string, error) {
	return f(ctx, a)
}

// Mux dispatches artifacts to fetchers by location scheme. Locations
// without a scheme are served by the "file" fetcher.
type Mux struct {
	fetchers map[string]resolver.Fetcher
}

// NewMux creates an empty mux
func NewMux() *Mux {
	return &Mux{fetchers: make(map[string]resolver.Fetcher)}
}

// Handle registers f for scheme, replacing any previous fetcher
func (m *Mux) Handle(scheme string, f resolver.Fetcher) *Mux {
	m.fetchers[strings.ToLower(scheme)] = f
	return m
}

// Fetch implements resolver.Fetcher
func (m *Mux) Fetch(ctx context.Context, a descriptor.Artifact) (string, error) {
	scheme := schemeOf(a.Location)
	f, ok := m.fetchers[scheme]
	if !ok {
		return "", fmt.Errorf("%w: %q in %s", ErrUnsupportedScheme, scheme, a.Location)
	}
	return f.Fetch(ctx, a)
}

func schemeOf(location string) string {
	u, err := url.Parse(location)
	// one-letter schemes are drive letters
	if err != nil || len(u.Scheme) <= 1 {
		return "file"
	}
	return strings.ToLower(u.Scheme)
}
