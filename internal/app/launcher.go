package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/partloader/internal/domain/bundle"
	"github.com/GriffinCanCode/partloader/internal/domain/descriptor"
	"github.com/GriffinCanCode/partloader/internal/domain/index"
	"github.com/GriffinCanCode/partloader/internal/domain/manifest"
	"github.com/GriffinCanCode/partloader/internal/domain/platform"
	"github.com/GriffinCanCode/partloader/internal/domain/resolver"
	"github.com/GriffinCanCode/partloader/internal/infrastructure/config"
	"github.com/GriffinCanCode/partloader/internal/infrastructure/logging"
	"github.com/GriffinCanCode/partloader/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/partloader/internal/infrastructure/server"
	"github.com/GriffinCanCode/partloader/internal/providers/fetch"
	"github.com/GriffinCanCode/partloader/internal/providers/http/client"
	"github.com/GriffinCanCode/partloader/internal/shared/id"
)

// Options configures Open. Zero values are built from Config.
type Options struct {
	Config  *config.Config
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
	Fetcher resolver.Fetcher
}

// Launcher is one launch of a descriptor: its bundles, its code index and
// the coordinator fetching them
type Launcher struct {
	id      id.LaunchID
	cfg     *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	profile platform.Profile
	root    *descriptor.Descriptor
	coord   *resolver.Coordinator
}

// Open loads the descriptor at path and starts the eager downloads. A
// non-nil launcher returned with an error is usable; the error reports
// eager bundles that failed.
func Open(ctx context.Context, path string, opts Options) (*Launcher, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.LoadOrDefault()
	}

	launchID := id.NewLaunchID()
	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
		})
		if err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
	}
	logger = logger.WithLaunch(launchID)

	metrics := opts.Metrics
	if metrics == nil {
		metrics = monitoring.NewMetrics(nil)
	}

	profile, err := platform.Detect(platform.Overrides{
		OS:      cfg.Platform.OS,
		Arch:    cfg.Platform.Arch,
		Locale:  cfg.Platform.Locale,
		Runtime: cfg.Platform.Runtime,
	})
	if err != nil {
		return nil, fmt.Errorf("detect platform: %w", err)
	}

	root, err := manifest.NewLoader(logger.Component("manifest")).Load(path)
	if err != nil {
		return nil, err
	}

	set, err := bundle.NewBuilder(profile, logger.Component("bundle")).Build(root)
	if err != nil {
		return nil, err
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher, err = DefaultFetcher(cfg.Fetch, logger)
		if err != nil {
			return nil, err
		}
	}

	logger.Info("Launching",
		zap.String("descriptor", string(root.ID)),
		zap.Stringer("platform", profile),
		zap.Int("bundles", set.Len()))

	coord, preloadErr := resolver.New(ctx, set, index.New(set), fetcher,
		resolver.WithLogger(logger.Component("resolver")),
		resolver.WithMetrics(metrics),
		resolver.WithTrust(resolver.Trust(cfg.Trust.NativeAllowed)),
		resolver.WithFetchTimeout(cfg.Fetch.Timeout),
		resolver.WithConcurrency(cfg.Fetch.Concurrency),
	)
	if coord == nil {
		return nil, preloadErr
	}
	if err := metrics.TrackBundles(coord.StateCounts); err != nil {
		return nil, errors.Join(err, coord.Drain(ctx))
	}

	return &Launcher{
		id:      launchID,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		profile: profile,
		root:    root,
		coord:   coord,
	}, preloadErr
}

// DefaultFetcher serves http and https locations from the download cache
// and file locations in place
func DefaultFetcher(cfg config.FetchConfig, logger *logging.Logger) (*fetch.Mux, error) {
	httpLog := logger.Component("http")
	c := client.New(client.FromConfig(cfg, httpLog))
	web, err := fetch.NewHTTP(c, fetch.HTTPOptions{
		CacheDir:      cfg.CacheDir,
		VerifyContent: cfg.VerifyContent,
		Logger:        logger.Component("fetch"),
	})
	if err != nil {
		return nil, err
	}

	return fetch.NewMux().
		Handle("http", web).
		Handle("https", web).
		Handle("file", fetch.File{VerifyContent: cfg.VerifyContent}), nil
}

// ID identifies this launch in logs
func (l *Launcher) ID() id.LaunchID { return l.id }

// Descriptor returns the main descriptor
func (l *Launcher) Descriptor() *descriptor.Descriptor { return l.root }

// Profile returns the platform bundles were filtered for
func (l *Launcher) Profile() platform.Profile { return l.profile }

// Coordinator returns the resolver for this launch
func (l *Launcher) Coordinator() *resolver.Coordinator { return l.coord }

// Metrics returns the launch metrics
func (l *Launcher) Metrics() *monitoring.Metrics { return l.metrics }

// Logger returns the launch logger
func (l *Launcher) Logger() *logging.Logger { return l.logger }

// Server builds the status server for this launch
func (l *Launcher) Server() *server.Server {
	return server.New(server.Options{
		Addr:              l.cfg.Server.Addr,
		Development:       l.cfg.Logging.Development,
		RequestsPerSecond: l.cfg.Server.RequestsPerSecond,
		Burst:             l.cfg.Server.Burst,
	}, l.coord, l.metrics, l.logger.Component("server"))
}

// Close waits for in-flight downloads, bounded by ctx. No new download
// starts afterwards.
func (l *Launcher) Close(ctx context.Context) error {
	start := time.Now()
	err := l.coord.Drain(ctx)
	l.logger.Info("Launcher closed", zap.Duration("drain", time.Since(start)), zap.Error(err))
	_ = l.logger.Sync()
	return err
}
