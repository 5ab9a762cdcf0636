package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/GriffinCanCode/partloader/internal/domain/bundle"
	"github.com/GriffinCanCode/partloader/internal/domain/descriptor"
	"github.com/GriffinCanCode/partloader/internal/domain/index"
)

// Fetcher retrieves one artifact and returns a locally usable path. It must
// be safe for concurrent use and safe to call again after a failure.
type Fetcher interface {
	Fetch(ctx context.Context, a descriptor.Artifact) (string, error)
}

// Coordinator resolves code units to bundles and fetches each bundle at
// most once per successful attempt. One Coordinator lives for one launch.
type Coordinator struct {
	set         *bundle.Set
	index       *index.Index
	fetcher     Fetcher
	trust       TrustContext
	logger      *zap.Logger
	metrics     Metrics
	timeout     time.Duration
	concurrency int

	shared   singleflight.Group
	inflight sync.WaitGroup

	mu       sync.Mutex
	records  map[bundle.Ref]*record
	draining bool
}

// Status describes one bundle's download record
type Status struct {
	Ref       bundle.Ref
	Eager     bool
	State     State
	Attempts  int
	Locations []LocalLocation
	Err       error
}

// New creates a coordinator and preloads the eager bundles. The returned
// error aggregates eager failures; the coordinator is usable either way.
// A nil idx is built from set.
func New(ctx context.Context, set *bundle.Set, idx *index.Index, fetcher Fetcher, opts ...Option) (*Coordinator, error) {
	if set == nil {
		return nil, errors.New("resolver: bundle set is required")
	}
	if fetcher == nil {
		return nil, errors.New("resolver: fetcher is required")
	}
	if idx == nil {
		idx = index.New(set)
	}

	c := &Coordinator{
		set:         set,
		index:       idx,
		fetcher:     fetcher,
		logger:      zap.NewNop(),
		metrics:     noopMetrics{},
		timeout:     DefaultFetchTimeout,
		concurrency: DefaultConcurrency,
		records:     make(map[bundle.Ref]*record),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, c.Preload(ctx)
}

// Preload fetches every eager bundle and waits until each is Done or
// Failed. Done bundles are skipped and failed ones retried, so calling it
// again is safe. It returns early only when ctx ends.
func (c *Coordinator) Preload(ctx context.Context) error {
	start := time.Now()
	eager := c.set.Eager()

	_, err := c.fetchAll(ctx, eager)

	c.logger.Info("Eager bundles preloaded",
		zap.Int("bundles", len(eager)),
		zap.Int("failed", len(multierr.Errors(err))),
		zap.Duration("elapsed", time.Since(start)))

	return err
}

// ResolveAndFetch fetches the bundles owning codeUnitID and returns the
// union of their local locations. When no bundle owns it the error wraps
// ErrNotFound and the caller uses its default code source.
func (c *Coordinator) ResolveAndFetch(ctx context.Context, codeUnitID string) ([]LocalLocation, error) {
	return c.resolveRefs(ctx, codeUnitID, c.index.Resolve(codeUnitID))
}

// ResolveResource is ResolveAndFetch for a slash-separated resource path
func (c *Coordinator) ResolveResource(ctx context.Context, resource string) ([]LocalLocation, error) {
	return c.resolveRefs(ctx, resource, c.index.ResolveResource(resource))
}

// IsBundleDownloaded reports whether the main descriptor's bundle name is Done
func (c *Coordinator) IsBundleDownloaded(name string) bool {
	return c.IsDownloaded(c.mainRef(name))
}

// DownloadBundle fetches the main descriptor's bundle name
func (c *Coordinator) DownloadBundle(ctx context.Context, name string) ([]LocalLocation, error) {
	return c.Download(ctx, c.mainRef(name))
}

// IsDownloaded reports whether the bundle ref is Done
func (c *Coordinator) IsDownloaded(ref bundle.Ref) bool {
	c.mu.Lock()
	r, ok := c.records[ref]
	c.mu.Unlock()
	if !ok {
		return false
	}

	state, _, _ := r.status()
	return state == Done
}

// Download fetches the bundle ref from any composed descriptor
func (c *Coordinator) Download(ctx context.Context, ref bundle.Ref) ([]LocalLocation, error) {
	b, ok := c.set.Get(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBundle, ref)
	}
	return c.ensure(ctx, b)
}

// DownloadBundleContaining fetches every bundle holding the artifact at
// location. An empty version matches any artifact version.
func (c *Coordinator) DownloadBundleContaining(ctx context.Context, location, version string) ([]LocalLocation, error) {
	bundles := c.set.ContainingArtifact(location, version)
	if len(bundles) == 0 {
		return nil, fmt.Errorf("%w: no bundle contains %s", ErrUnknownBundle, location)
	}
	return c.fetchAll(ctx, bundles)
}

// Snapshot reports the record of every live bundle in set order. Bundles
// never referenced are NotStarted.
func (c *Coordinator) Snapshot() []Status {
	all := c.set.All()
	out := make([]Status, 0, len(all))

	for _, b := range all {
		s := Status{Ref: b.Ref(), Eager: b.Eager(), State: NotStarted}

		c.mu.Lock()
		r := c.records[b.Ref()]
		c.mu.Unlock()

		if r != nil {
			state, attempts, a := r.status()
			s.State, s.Attempts = state, attempts
			switch state {
			case Done:
				s.Locations = append([]LocalLocation(nil), a.locations...)
			case Failed:
				s.Err = a.err
			}
		}
		out = append(out, s)
	}

	return out
}

// StateCounts returns the number of live bundles per state name
func (c *Coordinator) StateCounts() map[string]int {
	counts := map[string]int{
		NotStarted.String(): 0,
		InFlight.String():   0,
		Done.String():       0,
		Failed.String():     0,
	}
	for _, s := range c.Snapshot() {
		counts[s.State.String()]++
	}
	return counts
}

// Set returns the bundle set the coordinator serves
func (c *Coordinator) Set() *bundle.Set { return c.set }

// Drain waits for fetches that are still running, including those whose
// callers stopped waiting. From the first call on no new attempt starts:
// requests join running or finished attempts and otherwise fail with
// ErrDraining.
func (c *Coordinator) Drain(ctx context.Context) error {
	c.mu.Lock()
	c.draining = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) mainRef(name string) bundle.Ref {
	return bundle.Ref{Descriptor: c.set.Main(), Name: name}
}

func (c *Coordinator) resolveRefs(ctx context.Context, subject string, refs []bundle.Ref) ([]LocalLocation, error) {
	if len(refs) == 0 {
		c.metrics.ObserveResolution(OutcomeMiss)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, subject)
	}

	bundles := make([]*bundle.Bundle, 0, len(refs))
	for _, ref := range refs {
		b, ok := c.set.Get(ref)
		if !ok {
			c.metrics.ObserveResolution(OutcomeError)
			return nil, fmt.Errorf("%w: %s", ErrUnknownBundle, ref)
		}
		bundles = append(bundles, b)
	}

	locations, err := c.fetchAll(ctx, bundles)
	if err != nil {
		c.metrics.ObserveResolution(OutcomeError)
		return nil, fmt.Errorf("resolve %s: %w", subject, err)
	}

	c.metrics.ObserveResolution(OutcomeHit)
	return locations, nil
}

// fetchAll ensures every bundle concurrently and returns the locations in
// bundle order. Failures of some bundles never stop the others.
func (c *Coordinator) fetchAll(ctx context.Context, bundles []*bundle.Bundle) ([]LocalLocation, error) {
	results := make([][]LocalLocation, len(bundles))
	errs := make([]error, len(bundles))

	var g errgroup.Group
	for i, b := range bundles {
		g.Go(func() error {
			results[i], errs[i] = c.ensure(ctx, b)
			return nil
		})
	}
	_ = g.Wait()

	if err := multierr.Combine(errs...); err != nil {
		return nil, err
	}

	var out []LocalLocation
	for _, locs := range results {
		out = append(out, locs...)
	}
	return out, nil
}

// ensure returns the bundle's locations, starting an attempt when the
// record is NotStarted or retryably Failed and joining it when InFlight
func (c *Coordinator) ensure(ctx context.Context, b *bundle.Bundle) ([]LocalLocation, error) {
	r, a, started, err := c.begin(b.Ref())
	if err != nil {
		return nil, err
	}
	if started {
		go c.run(context.WithoutCancel(ctx), b, r, a)
	}

	select {
	case <-a.done:
	default:
		if !started {
			c.metrics.ObserveSharedWait()
		}
		select {
		case <-a.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if a.err != nil {
		return nil, a.err
	}
	return append([]LocalLocation(nil), a.locations...), nil
}

// begin returns the record of ref with the attempt to wait on. A started
// attempt is counted in inflight under c.mu so that Drain never races an Add.
func (c *Coordinator) begin(ref bundle.Ref) (*record, *attempt, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.records[ref]
	if !ok {
		r = &record{ref: ref}
		c.records[ref] = r
	}

	if c.draining {
		if a := r.joinable(); a != nil {
			return r, a, false, nil
		}
		return nil, nil, false, fmt.Errorf("%w: %s", ErrDraining, ref)
	}

	a, started := r.begin()
	if started {
		c.inflight.Add(1)
	}
	return r, a, started, nil
}

// run performs one attempt on a context detached from the caller
func (c *Coordinator) run(ctx context.Context, b *bundle.Bundle, r *record, a *attempt) {
	defer c.inflight.Done()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	c.logger.Debug("Bundle fetch started",
		zap.Stringer("bundle", b.Ref()),
		zap.Int("artifacts", b.Len()))

	locations, err := c.fetchBundle(ctx, b)

	var fatal bool
	if err != nil {
		bundleErr := &BundleError{Ref: b.Ref(), Err: err}
		fatal = bundleErr.Fatal()
		err = bundleErr
	}

	state := r.settle(a, locations, err, fatal)

	if err != nil {
		c.logger.Warn("Bundle fetch failed",
			zap.Stringer("bundle", b.Ref()),
			zap.Bool("fatal", fatal),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return
	}
	c.logger.Debug("Bundle fetch finished",
		zap.Stringer("bundle", b.Ref()),
		zap.Stringer("state", state),
		zap.Duration("elapsed", time.Since(start)))
}

func (c *Coordinator) fetchBundle(ctx context.Context, b *bundle.Bundle) ([]LocalLocation, error) {
	artifacts := b.Artifacts()
	locations := make([]LocalLocation, len(artifacts))
	errs := make([]error, len(artifacts))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, art := range artifacts {
		g.Go(func() error {
			loc, err := c.fetchArtifact(ctx, art)
			if err == nil {
				err = c.activate(art, loc)
			}
			locations[i], errs[i] = loc, err
			return nil
		})
	}
	_ = g.Wait()

	if err := multierr.Combine(errs...); err != nil {
		return nil, err
	}
	return locations, nil
}

// fetchArtifact collapses concurrent fetches of the same artifact made on
// behalf of different bundles
func (c *Coordinator) fetchArtifact(ctx context.Context, a descriptor.Artifact) (LocalLocation, error) {
	v, err, shared := c.shared.Do(a.String(), func() (any, error) {
		start := time.Now()
		path, err := c.fetcher.Fetch(ctx, a)
		if err == nil && path == "" {
			err = errors.New("fetcher returned no location")
		}
		c.metrics.ObserveFetch(a.Kind.String(), err, time.Since(start))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrFetch, a, err)
		}
		return LocalLocation(path), nil
	})
	if shared {
		c.logger.Debug("Artifact fetch shared", zap.Stringer("artifact", a))
	}
	if err != nil {
		return "", err
	}
	return v.(LocalLocation), nil
}
