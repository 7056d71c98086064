// Package github implements the SessionClient port against the GitHub REST API
// using the go-github library. A session is a verified personal access token;
// its health is the result of periodically re-reading the authenticated user.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"
	"github.com/jonboulle/clockwork"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/tokenlink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SessionClient = (*Client)(nil)

// Client implements driven.SessionClient. Each Connect builds a fresh
// go-github client for the submitted token and starts one probe loop.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL // nil means api.github.com.
	interval   time.Duration
	clock      clockwork.Clock
	logger     *slog.Logger

	mu    sync.Mutex
	stop  context.CancelFunc
	login string
}

// NewClient creates a Client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching of the probe)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
//
// enterpriseURL may be empty for github.com.
func NewClient(enterpriseURL string, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)

	c := &Client{
		httpClient: rateLimitClient,
		interval:   interval,
		clock:      clock,
		logger:     logger,
	}
	if enterpriseURL != "" {
		u, err := parseBaseURL(enterpriseURL)
		if err != nil {
			return nil, err
		}
		c.baseURL = u
	}
	return c, nil
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) (*Client, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    u,
		interval:   interval,
		clock:      clock,
		logger:     logger,
	}, nil
}

// Connect verifies token by reading the authenticated user. On success it
// emits ready to listener and starts probing the API every interval. The
// probe loop of any previous Connect is stopped silently.
func (c *Client) Connect(ctx context.Context, token string, listener driven.SessionListener) error {
	client := gh.NewClient(c.httpClient).WithAuthToken(token)
	if c.baseURL != nil {
		client.BaseURL = c.baseURL
	}

	user, resp, err := client.Users.Get(ctx, "")
	if err != nil {
		return fmt.Errorf("verify github token: %w", err)
	}
	c.logRateLimit(resp)

	probeCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.stop != nil {
		c.stop()
	}
	c.stop = cancel
	c.login = user.GetLogin()
	c.mu.Unlock()

	c.logger.Info("github session established", "login", user.GetLogin())

	go c.probe(probeCtx, client, listener)

	if listener != nil {
		listener.OnSessionReady()
	}
	return nil
}

// Login returns the login of the authenticated user, or "" before the first
// successful Connect.
func (c *Client) Login() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.login
}

// Close stops the probe loop without emitting a disconnect.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	return nil
}

// probe re-reads the authenticated user on every tick. Rate limiting is
// reported as an error event; any other failure ends the session.
func (c *Client) probe(ctx context.Context, client *gh.Client, listener driven.SessionListener) {
	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		_, resp, err := client.Users.Get(ctx, "")
		if err == nil {
			c.logRateLimit(resp)
			continue
		}
		if ctx.Err() != nil {
			return
		}

		if isRateLimited(err) {
			c.logger.Warn("github probe rate limited", "error", err)
			if listener != nil {
				listener.OnSessionError(err)
			}
			continue
		}

		c.logger.Warn("github probe failed, session lost", "error", err)
		if listener != nil {
			listener.OnSessionDisconnected()
		}
		return
	}
}

func (c *Client) logRateLimit(resp *gh.Response) {
	if resp == nil {
		return
	}

	c.logger.Debug("github api call",
		"endpoint", "/user",
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		c.logger.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

func isRateLimited(err error) bool {
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	return errors.As(err, &rateErr) || errors.As(err, &abuseErr)
}

func parseBaseURL(raw string) (*url.URL, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	return u, nil
}
