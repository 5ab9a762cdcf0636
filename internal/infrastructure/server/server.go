package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/partloader/internal/domain/resolver"
	"github.com/GriffinCanCode/partloader/internal/infrastructure/monitoring"
)

// Coordinator is the part of the resolver the server exposes
type Coordinator interface {
	Snapshot() []resolver.Status
	ResolveAndFetch(ctx context.Context, codeUnitID string) ([]resolver.LocalLocation, error)
	DownloadBundle(ctx context.Context, name string) ([]resolver.LocalLocation, error)
}

// Options configures a Server
type Options struct {
	Addr        string
	Development bool
	// RequestsPerSecond limits all requests together; zero disables it
	RequestsPerSecond int
	Burst             int
}

// Server serves launcher status over HTTP
type Server struct {
	router  *gin.Engine
	coord   Coordinator
	metrics *monitoring.Metrics
	logger  *zap.Logger
	addr    string
}

// New creates a server. A nil metrics gets a fresh registry.
func New(opts Options, coord Coordinator, metrics *monitoring.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics(nil)
	}

	if !opts.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(CORS(DefaultCORSConfig()))
	if opts.RequestsPerSecond > 0 {
		router.Use(GlobalRateLimit(RateLimitConfig{
			RequestsPerSecond: opts.RequestsPerSecond,
			Burst:             opts.Burst,
		}))
	}

	s := &Server{
		router:  router,
		coord:   coord,
		metrics: metrics,
		logger:  logger,
		addr:    opts.Addr,
	}

	router.GET("/healthz", s.health)
	router.GET("/bundles", s.listBundles)
	router.POST("/bundles/:name/download", s.downloadBundle)
	router.GET("/resolve/:unit", s.resolve)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))

	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting status server", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down status server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type bundleView struct {
	Descriptor string   `json:"descriptor"`
	Name       string   `json:"name"`
	Eager      bool     `json:"eager"`
	State      string   `json:"state"`
	Attempts   int      `json:"attempts"`
	Locations  []string `json:"locations,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func viewOf(st resolver.Status) bundleView {
	v := bundleView{
		Descriptor: string(st.Ref.Descriptor),
		Name:       st.Ref.Name,
		Eager:      st.Eager,
		State:      st.State.String(),
		Attempts:   st.Attempts,
		Locations:  locationStrings(st.Locations),
	}
	if st.Err != nil {
		v.Error = st.Err.Error()
	}
	return v
}

func locationStrings(locs []resolver.LocalLocation) []string {
	out := make([]string, len(locs))
	for i, l := range locs {
		out[i] = string(l)
	}
	return out
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listBundles(c *gin.Context) {
	snapshot := s.coord.Snapshot()
	views := make([]bundleView, len(snapshot))
	for i, st := range snapshot {
		views[i] = viewOf(st)
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].Descriptor != views[j].Descriptor {
			return views[i].Descriptor < views[j].Descriptor
		}
		return views[i].Name < views[j].Name
	})
	c.JSON(http.StatusOK, gin.H{"bundles": views})
}

func (s *Server) downloadBundle(c *gin.Context) {
	name := c.Param("name")
	locs, err := s.coord.DownloadBundle(c.Request.Context(), name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bundle": name, "locations": locationStrings(locs)})
}

func (s *Server) resolve(c *gin.Context) {
	unit := c.Param("unit")
	locs, err := s.coord.ResolveAndFetch(c.Request.Context(), unit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unit": unit, "locations": locationStrings(locs)})
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, resolver.ErrNotFound), errors.Is(err, resolver.ErrUnknownBundle):
		status = http.StatusNotFound
	case errors.Is(err, resolver.ErrNoTrustContext):
		status = http.StatusForbidden
	case errors.Is(err, resolver.ErrDraining):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	s.logger.Debug("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(status, gin.H{"error": err.Error()})
}
