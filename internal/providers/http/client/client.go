package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/partloader/internal/infrastructure/config"
	"github.com/GriffinCanCode/partloader/internal/infrastructure/resilience"
)

// StatusError is returned for non-2xx responses
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Options configures a Client
type Options struct {
	// Timeout bounds one request including its body; zero leaves it to ctx
	Timeout      time.Duration
	Retries      int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RateLimit is requests per second across hosts; zero or less is unlimited
	RateLimit float64
	RateBurst int
	UserAgent string
	// Breakers defaults to one breaker per host tripping on server errors
	Breakers *resilience.Set
	Logger   *zap.Logger
}

// FromConfig builds options from the fetch configuration
func FromConfig(cfg config.FetchConfig, logger *zap.Logger) Options {
	return Options{
		Retries:      cfg.Retries,
		RetryWaitMin: cfg.RetryWaitMin,
		RetryWaitMax: cfg.RetryWaitMax,
		RateLimit:    cfg.RateLimit,
		RateBurst:    cfg.RateBurst,
		UserAgent:    cfg.UserAgent,
		Breakers:     DefaultBreakers(cfg.BreakerFailures, cfg.BreakerTimeout, logger),
		Logger:       logger,
	}
}

// DefaultBreakers trips a host after consecutive failures. Client errors
// such as 404 are the request's fault and do not count.
func DefaultBreakers(failures uint32, timeout time.Duration, logger *zap.Logger) *resilience.Set {
	if failures == 0 {
		failures = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return resilience.NewSet(resilience.Settings{
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		IsFailure: func(err error) bool {
			var status *StatusError
			if errors.As(err, &status) {
				return status.Code >= 500 || status.Code == http.StatusTooManyRequests
			}
			return true
		},
		OnStateChange: func(host string, from, to resilience.State) {
			logger.Warn("Host circuit changed",
				zap.String("host", host),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})
}

// Client downloads over HTTP with retries, a rate limit and per-host
// circuit breakers
type Client struct {
	resty    *resty.Client
	limiter  *rate.Limiter
	breakers *resilience.Set
	logger   *zap.Logger
}

// New creates a client
func New(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Breakers == nil {
		opts.Breakers = DefaultBreakers(5, 30*time.Second, opts.Logger)
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "partloader/1.0"
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.Retries
	if opts.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = opts.RetryWaitMax
	}
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	restyClient := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", opts.UserAgent).
		SetTransport(&retryablehttp.RoundTripper{Client: retryClient})

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		resty:    restyClient,
		limiter:  limiter,
		breakers: opts.Breakers,
		logger:   opts.Logger,
	}
}

// Open issues a GET and returns the response body, which the caller closes
func (c *Client) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	var body io.ReadCloser
	err = c.breakers.Execute(ctx, u.Host, func(ctx context.Context) error {
		resp, err := c.resty.R().
			SetContext(ctx).
			SetDoNotParseResponse(true).
			Get(rawURL)
		if err != nil {
			return err
		}
		if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
			resp.RawBody().Close()
			return &StatusError{URL: rawURL, Code: resp.StatusCode()}
		}
		body = resp.RawBody()
		return nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return nil, fmt.Errorf("host %s unavailable: %w", u.Host, err)
	}
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Download opened", zap.String("url", rawURL))
	return body, nil
}

// BreakerStates reports the circuit state per host contacted so far
func (c *Client) BreakerStates() map[string]resilience.State {
	return c.breakers.States()
}
