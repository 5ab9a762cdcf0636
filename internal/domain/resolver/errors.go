package resolver

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/partloader/internal/domain/bundle"
)

var (
	// ErrNotFound means no bundle owns the requested code unit. Callers fall
	// back to their default code source.
	ErrNotFound = errors.New("no bundle owns code unit")
	// ErrUnknownBundle is returned for bundle names that are not live in the set
	ErrUnknownBundle = errors.New("unknown bundle")
	// ErrNoTrustContext is the fatal activation failure for native libraries
	ErrNoTrustContext = errors.New("native library requires an established trust context")
	// ErrDraining is returned once Drain has been called and the bundle
	// would need a new fetch attempt
	ErrDraining = errors.New("coordinator is draining")
	// ErrFetch wraps fetcher failures
	ErrFetch = errors.New("artifact fetch failed")
)

// BundleError ties a failure to the bundle it happened in
type BundleError struct {
	Ref bundle.Ref
	Err error
}

func (e *BundleError) Error() string {
	return fmt.Sprintf("bundle %s: %v", e.Ref, e.Err)
}

func (e *BundleError) Unwrap() error {
	return e.Err
}

// Fatal reports whether retrying the bundle can never succeed
func (e *BundleError) Fatal() bool {
	return errors.Is(e.Err, ErrNoTrustContext)
}
