package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/GriffinCanCode/partloader/internal/domain/bundle"
	"github.com/GriffinCanCode/partloader/internal/domain/descriptor"
	"github.com/GriffinCanCode/partloader/internal/domain/platform"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errReset = errors.New("connection reset")

// fakeFetcher counts calls per location. Gated locations block until gate
// is closed; failing locations fail the given number of times.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   map[string]int
	fail    map[string]int
	gated   map[string]bool
	gate    chan struct{}
	started chan string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		calls:   make(map[string]int),
		fail:    make(map[string]int),
		gated:   make(map[string]bool),
		gate:    make(chan struct{}),
		started: make(chan string, 64),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, a descriptor.Artifact) (string, error) {
	f.mu.Lock()
	f.calls[a.Location]++
	failing := f.fail[a.Location] > 0
	if failing {
		f.fail[a.Location]--
	}
	gated := f.gated[a.Location]
	f.mu.Unlock()

	if gated {
		f.started <- a.Location
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if failing {
		return "", errReset
	}
	return "/cache/" + a.Location, nil
}

func (f *fakeFetcher) count(location string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[location]
}

func artifacts(locations ...string) []descriptor.Artifact {
	out := make([]descriptor.Artifact, len(locations))
	for i, loc := range locations {
		out[i] = descriptor.Artifact{Location: loc}
	}
	return out
}

// scenario is the two-bundle descriptor: lazy B1 owns pkg.a, eager B2
func scenario() *descriptor.Descriptor {
	return &descriptor.Descriptor{
		ID: "app",
		Bundles: []descriptor.BundleDecl{
			{Name: "B1", Artifacts: artifacts("j1")},
			{Name: "B2", Eager: true, Artifacts: artifacts("j2")},
		},
		Rules: []descriptor.CodeRule{{Pattern: "pkg.a.*", Bundle: "B1"}},
	}
}

func newCoordinator(t *testing.T, f Fetcher, roots []*descriptor.Descriptor, opts ...Option) (*Coordinator, error) {
	t.Helper()
	set, err := bundle.Build(roots, platform.Profile{OS: "Linux", Arch: "amd64"})
	require.NoError(t, err)

	c, err := New(context.Background(), set, nil, f, opts...)
	require.NotNil(t, c)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, c.Drain(ctx))
	})
	return c, err
}

func TestEndToEndScenario(t *testing.T) {
	f := newFakeFetcher()
	c, err := newCoordinator(t, f, []*descriptor.Descriptor{scenario()})
	require.NoError(t, err)

	assert.Equal(t, 1, f.count("j2"))
	assert.Equal(t, 0, f.count("j1"))
	assert.True(t, c.IsBundleDownloaded("B2"))
	assert.False(t, c.IsBundleDownloaded("B1"))

	locs, err := c.ResolveAndFetch(context.Background(), "pkg.a.Widget")
	require.NoError(t, err)
	assert.Equal(t, []LocalLocation{"/cache/j1"}, locs)
	assert.Equal(t, 1, f.count("j1"))

	locs, err = c.ResolveAndFetch(context.Background(), "pkg.a.Widget")
	require.NoError(t, err)
	assert.Equal(t, []LocalLocation{"/cache/j1"}, locs)
	assert.Equal(t, 1, f.count("j1"))
	assert.True(t, c.IsBundleDownloaded("B1"))
}

func TestFetchAtMostOnceUnderConcurrency(t *testing.T) {
	f := newFakeFetcher()
	f.gated["j1"] = true
	c, err := newCoordinator(t, f, []*descriptor.Descriptor{scenario()})
	require.NoError(t, err)

	const callers = 32
	var wg sync.WaitGroup
	results := make([][]LocalLocation, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.ResolveAndFetch(context.Background(), "pkg.a.Widget")
		}()
	}

	<-f.started
	close(f.gate)
	wg.Wait()

	assert.Equal(t, 1, f.count("j1"))
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, []LocalLocation{"/cache/j1"}, results[i])
	}
}

func TestLazyBundlesNotFetchedAtConstruction(t *testing.T) {
	f := newFakeFetcher()
	c, err := newCoordinator(t, f, []*descriptor.Descriptor{scenario()})
	require.NoError(t, err)

	for _, s := range c.Snapshot() {
		if s.Eager {
			assert.Equal(t, Done, s.State, s.Ref.String())
			continue
		}
		assert.Equal(t, NotStarted, s.State, s.Ref.String())
		assert.Zero(t, s.Attempts)
	}
}

func TestPreloadReportsEagerFailuresWithoutBlockingOthers(t *testing.T) {
	f := newFakeFetcher()
	f.fail["bad.jar"] = 1

	ext := &descriptor.Descriptor{
		ID:      "ext",
		Bundles: []descriptor.BundleDecl{{Name: "core", Eager: true, Artifacts: artifacts("ext-core.jar")}},
	}
	main := &descriptor.Descriptor{
		ID:         "main",
		Artifacts:  artifacts("main.jar"),
		Bundles:    []descriptor.BundleDecl{{Name: "broken", Eager: true, Artifacts: artifacts("bad.jar")}},
		Extensions: []*descriptor.Descriptor{ext},
	}

	c, err := newCoordinator(t, f, []*descriptor.Descriptor{main})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
	assert.ErrorIs(t, err, errReset)

	var bundleErr *BundleError
	require.ErrorAs(t, err, &bundleErr)
	assert.Equal(t, bundle.Ref{Descriptor: "main", Name: "broken"}, bundleErr.Ref)
	assert.False(t, bundleErr.Fatal())

	for _, s := range c.Snapshot() {
		assert.Contains(t, []State{Done, Failed}, s.State, s.Ref.String())
	}
	assert.True(t, c.IsDownloaded(bundle.Ref{Descriptor: "ext", Name: "core"}))
	assert.True(t, c.IsBundleDownloaded(descriptor.DefaultBundle))

	require.NoError(t, c.Preload(context.Background()))
	assert.Equal(t, 2, f.count("bad.jar"))
	assert.Equal(t, 1, f.count("main.jar"))
}

func TestSameNamedBundlesHaveIndependentRecords(t *testing.T) {
	f := newFakeFetcher()
	ext := &descriptor.Descriptor{
		ID:      "ext",
		Bundles: []descriptor.BundleDecl{{Name: "X", Artifacts: artifacts("ext-x.jar")}},
	}
	main := &descriptor.Descriptor{
		ID:         "main",
		Bundles:    []descriptor.BundleDecl{{Name: "X", Artifacts: artifacts("main-x.jar")}},
		Extensions: []*descriptor.Descriptor{ext},
	}
	c, err := newCoordinator(t, f, []*descriptor.Descriptor{main})
	require.NoError(t, err)

	locs, err := c.DownloadBundle(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, []LocalLocation{"/cache/main-x.jar"}, locs)

	assert.True(t, c.IsDownloaded(bundle.Ref{Descriptor: "main", Name: "X"}))
	assert.False(t, c.IsDownloaded(bundle.Ref{Descriptor: "ext", Name: "X"}))
	assert.Equal(t, 0, f.count("ext-x.jar"))

	locs, err = c.Download(context.Background(), bundle.Ref{Descriptor: "ext", Name: "X"})
	require.NoError(t, err)
	assert.Equal(t, []LocalLocation{"/cache/ext-x.jar"}, locs)
}

func TestRetryAfterFailure(t *testing.T) {
	f := newFakeFetcher()
	f.fail["j1"] = 1
	c, err := newCoordinator(t, f, []*descriptor.Descriptor{scenario()})
	require.NoError(t, err)

	_, err = c.ResolveAndFetch(context.Background(), "pkg.a.Widget")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
	assert.False(t, c.IsBundleDownloaded("B1"))

	locs, err := c.ResolveAndFetch(context.Background(), "pkg.a.Widget")
	require.NoError(t, err)
	assert.Equal(t, []LocalLocation{"/cache/j1"}, locs)
	assert.Equal(t, 2, f.count("j1"))

	for _, s := range c.Snapshot() {
		if s.Ref.Name == "B1" {
			assert.Equal(t, Done, s.State)
			assert.Equal(t, 2, s.Attempts)
		}
	}
}

func TestPartialMultiBundleFailure(t *testing.T) {
	f := newFakeFetcher()
	f.fail["two.jar"] = 1
	d := &descriptor.Descriptor{
		ID: "app",
		Bundles: []descriptor.BundleDecl{
			{Name: "One", Artifacts: artifacts("one.jar")},
			{Name: "Two", Artifacts: artifacts("two.jar")},
		},
		Rules: []descriptor.CodeRule{
			{Pattern: "p.*", Bundle: "One"},
			{Pattern: "p.*", Bundle: "Two"},
		},
	}
	c, err := newCoordinator(t, f, []*descriptor.Descriptor{d})
	require.NoError(t, err)

	_, err = c.ResolveAndFetch(context.Background(), "p.K")
	require.Error(t, err)
	var bundleErr *BundleError
	require.ErrorAs(t, err, &bundleErr)
	assert.Equal(t, "Two", bundleErr.Ref.Name)
	assert.True(t, c.IsBundleDownloaded("One"))
	assert.False(t, c.IsBundleDownloaded("Two"))

	locs, err := c.ResolveAndFetch(context.Background(), "p.K")
	require.NoError(t, err)
	assert.Equal(t, []LocalLocation{"/cache/one.jar", "/cache/two.jar"}, locs)
	assert.Equal(t, 1, f.count("one.jar"))
	assert.Equal(t, 2, f.count("two.jar"))
}

func TestNativeLibraryRequiresTrust(t *testing.T) {
	native := func() *descriptor.Descriptor {
		return &descriptor.Descriptor{
			ID: "app",
			Bundles: []descriptor.BundleDecl{{
				Name:      "gl",
				Artifacts: []descriptor.Artifact{{Location: "gl.so", Kind: descriptor.KindNativeLibrary}},
			}},
		}
	}

	t.Run("without trust is fatal", func(t *testing.T) {
		f := newFakeFetcher()
		c, err := newCoordinator(t, f, []*descriptor.Descriptor{native()})
		require.NoError(t, err)

		_, err = c.DownloadBundle(context.Background(), "gl")
		require.ErrorIs(t, err, ErrNoTrustContext)

		_, err = c.DownloadBundle(context.Background(), "gl")
		require.ErrorIs(t, err, ErrNoTrustContext)
		assert.Equal(t, 1, f.count("gl.so"))

		var bundleErr *BundleError
		require.ErrorAs(t, err, &bundleErr)
		assert.True(t, bundleErr.Fatal())
	})

	t.Run("with trust", func(t *testing.T) {
		f := newFakeFetcher()
		c, err := newCoordinator(t, f, []*descriptor.Descriptor{native()}, WithTrust(Trust(true)))
		require.NoError(t, err)

		locs, err := c.DownloadBundle(context.Background(), "gl")
		require.NoError(t, err)
		assert.Equal(t, []LocalLocation{"/cache/gl.so"}, locs)
	})
}

func TestSharedArtifactFetchedOnce(t *testing.T) {
	f := newFakeFetcher()
	f.gated["common.jar"] = true
	d := &descriptor.Descriptor{
		ID: "app",
		Bundles: []descriptor.BundleDecl{
			{Name: "left", Artifacts: artifacts("common.jar", "left.jar")},
			{Name: "right", Artifacts: artifacts("common.jar", "right.jar")},
		},
	}
	c, err := newCoordinator(t, f, []*descriptor.Descriptor{d})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, name := range []string{"left", "right"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.DownloadBundle(context.Background(), name)
			assert.NoError(t, err)
		}()
	}

	<-f.started
	// Give the second bundle time to join the running fetch.
	time.Sleep(50 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.Equal(t, 1, f.count("common.jar"))
	assert.True(t, c.IsBundleDownloaded("left"))
	assert.True(t, c.IsBundleDownloaded("right"))
}

func TestCallerCancelDoesNotFailSharedFetch(t *testing.T) {
	f := newFakeFetcher()
	f.gated["j1"] = true
	c, err := newCoordinator(t, f, []*descriptor.Descriptor{scenario()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.DownloadBundle(ctx, "B1")
		first <- err
	}()
	<-f.started

	second := make(chan []LocalLocation, 1)
	go func() {
		locs, err := c.DownloadBundle(context.Background(), "B1")
		assert.NoError(t, err)
		second <- locs
	}()

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(f.gate)
	assert.Equal(t, []LocalLocation{"/cache/j1"}, <-second)
	assert.Equal(t, 1, f.count("j1"))
	assert.True(t, c.IsBundleDownloaded("B1"))
}

func stateOf(c *Coordinator, name string) State {
	for _, s := range c.Snapshot() {
		if s.Ref.Name == name {
			return s.State
		}
	}
	return NotStarted
}

func TestDifferentBundlesFetchInParallel(t *testing.T) {
	f := newFakeFetcher()
	f.gated["slow.jar"] = true
	d := &descriptor.Descriptor{
		ID: "app",
		Bundles: []descriptor.BundleDecl{
			{Name: "Slow", Artifacts: artifacts("slow.jar")},
			{Name: "Fast", Artifacts: artifacts("fast.jar")},
		},
	}
	c, err := newCoordinator(t, f, []*descriptor.Descriptor{d})
	require.NoError(t, err)

	slow := make(chan error, 1)
	go func() {
		_, err := c.DownloadBundle(context.Background(), "Slow")
		slow <- err
	}()
	assert.Equal(t, "slow.jar", <-f.started)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	locs, err := c.DownloadBundle(ctx, "Fast")
	require.NoError(t, err)
	assert.Equal(t, []LocalLocation{"/cache/fast.jar"}, locs)
	assert.Equal(t, InFlight, stateOf(c, "Slow"))

	close(f.gate)
	require.NoError(t, <-slow)
	assert.True(t, c.IsBundleDownloaded("Slow"))
}

func TestDrainRefusesNewAttempts(t *testing.T) {
	f := newFakeFetcher()
	c, err := newCoordinator(t, f, []*descriptor.Descriptor{scenario()})
	require.NoError(t, err)
	require.NoError(t, c.Drain(context.Background()))

	_, err = c.DownloadBundle(context.Background(), "B1")
	require.ErrorIs(t, err, ErrDraining)
	assert.Equal(t, 0, f.count("j1"))
	assert.Equal(t, NotStarted, stateOf(c, "B1"))

	locs, err := c.DownloadBundle(context.Background(), "B2")
	require.NoError(t, err)
	assert.Equal(t, []LocalLocation{"/cache/j2"}, locs)
}

func TestDrainConcurrentWithRequests(t *testing.T) {
	const bundles = 16

	d := &descriptor.Descriptor{ID: "app"}
	for i := range bundles {
		d.Bundles = append(d.Bundles, descriptor.BundleDecl{
			Name:      fmt.Sprintf("N%d", i),
			Artifacts: artifacts(fmt.Sprintf("n%d.jar", i)),
		})
	}
	f := newFakeFetcher()
	c, err := newCoordinator(t, f, []*descriptor.Descriptor{d})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range bundles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.DownloadBundle(context.Background(), fmt.Sprintf("N%d", i)); err != nil {
				assert.ErrorIs(t, err, ErrDraining)
			}
		}()
	}

	require.NoError(t, c.Drain(context.Background()))
	for _, s := range c.Snapshot() {
		assert.NotEqual(t, InFlight, s.State, s.Ref.String())
	}
	wg.Wait()
}

func TestFetchTimeoutFailsAttempt(t *testing.T) {
	f := newFakeFetcher()
	f.gated["j1"] = true
	c, err := newCoordinator(t, f, []*descriptor.Descriptor{scenario()}, WithFetchTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = c.DownloadBundle(context.Background(), "B1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, c.IsBundleDownloaded("B1"))

	close(f.gate)
	locs, err := c.DownloadBundle(context.Background(), "B1")
	require.NoError(t, err)
	assert.Equal(t, []LocalLocation{"/cache/j1"}, locs)
}

func TestLookupErrors(t *testing.T) {
	f := newFakeFetcher()
	c, err := newCoordinator(t, f, []*descriptor.Descriptor{scenario()})
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"unknown bundle name", func() error {
			_, err := c.DownloadBundle(context.Background(), "nope")
			return err
		}, ErrUnknownBundle},
		{"unknown descriptor", func() error {
			_, err := c.Download(context.Background(), bundle.Ref{Descriptor: "other", Name: "B1"})
			return err
		}, ErrUnknownBundle},
		{"no bundle contains artifact", func() error {
			_, err := c.DownloadBundleContaining(context.Background(), "missing.jar", "")
			return err
		}, ErrUnknownBundle},
		{"code unit without owner", func() error {
			_, err := c.ResolveAndFetch(context.Background(), "other.pkg.Thing")
			return err
		}, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), tt.want)
		})
	}
	assert.False(t, c.IsBundleDownloaded("nope"))
}

func TestDownloadBundleContaining(t *testing.T) {
	f := newFakeFetcher()
	c, err := newCoordinator(t, f, []*descriptor.Descriptor{scenario()})
	require.NoError(t, err)

	locs, err := c.DownloadBundleContaining(context.Background(), "j1", "")
	require.NoError(t, err)
	assert.Equal(t, []LocalLocation{"/cache/j1"}, locs)
	assert.True(t, c.IsBundleDownloaded("B1"))
}

func TestResolveResource(t *testing.T) {
	f := newFakeFetcher()
	c, err := newCoordinator(t, f, []*descriptor.Descriptor{scenario()})
	require.NoError(t, err)

	locs, err := c.ResolveResource(context.Background(), "pkg/a/icons/../Widget.class")
	require.NoError(t, err)
	assert.Equal(t, []LocalLocation{"/cache/j1"}, locs)

	locs, err = c.ResolveResource(context.Background(), "pkg/a/strings.properties")
	require.NoError(t, err)
	assert.Equal(t, []LocalLocation{"/cache/j1"}, locs)
	assert.Equal(t, 1, f.count("j1"))
}

type recordingMetrics struct {
	mu          sync.Mutex
	fetches     map[string]int
	resolutions map[string]int
	shared      int
}

func (m *recordingMetrics) ObserveFetch(kind string, err error, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.fetches[kind+"/"+outcome]++
}

func (m *recordingMetrics) ObserveResolution(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolutions[outcome]++
}

func (m *recordingMetrics) ObserveSharedWait() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shared++
}

func TestMetricsAndStateCounts(t *testing.T) {
	f := newFakeFetcher()
	f.fail["j1"] = 1
	m := &recordingMetrics{fetches: map[string]int{}, resolutions: map[string]int{}}
	c, err := newCoordinator(t, f, []*descriptor.Descriptor{scenario()}, WithMetrics(m))
	require.NoError(t, err)

	_, _ = c.ResolveAndFetch(context.Background(), "pkg.a.Widget")
	_, _ = c.ResolveAndFetch(context.Background(), "pkg.a.Widget")
	_, _ = c.ResolveAndFetch(context.Background(), "elsewhere.Thing")

	m.mu.Lock()
	assert.Equal(t, map[string]int{"code-archive/ok": 2, "code-archive/error": 1}, m.fetches)
	assert.Equal(t, map[string]int{OutcomeHit: 1, OutcomeError: 1, OutcomeMiss: 1}, m.resolutions)
	m.mu.Unlock()

	assert.Equal(t, map[string]int{"not_started": 0, "in_flight": 0, "done": 2, "failed": 0}, c.StateCounts())
}

func TestNewRequiresCollaborators(t *testing.T) {
	set, err := bundle.Build([]*descriptor.Descriptor{scenario()}, platform.Profile{})
	require.NoError(t, err)

	_, err = New(context.Background(), nil, nil, newFakeFetcher())
	assert.Error(t, err)
	_, err = New(context.Background(), set, nil, nil)
	assert.Error(t, err)
}
