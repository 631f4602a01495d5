package portal

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cargo_ingest/internal/domain"
	"cargo_ingest/internal/retry"
)

const (
	SourceID   = "portal"
	SourceName = "Cargo Portal"
)

// Config holds portal connection settings.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
	// AllowEmpty skips the required-settings check (test environment).
	AllowEmpty bool
}

// Client talks to the logistics portal. Every FetchListings call performs a
// fresh login handshake; no session state outlives a call.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	retry      *retry.Executor
	logger     *slog.Logger
}

// New creates a portal client. Redirects are never followed because the
// handshake inspects 302 responses directly.
func New(cfg Config, exec *retry.Executor, logger *slog.Logger) (*Client, error) {
	if !cfg.AllowEmpty {
		for _, s := range []struct{ name, value string }{
			{"portal.base_url", cfg.BaseURL},
			{"portal.username", cfg.Username},
			{"portal.password", cfg.Password},
		} {
			if s.value == "" {
				return nil, &domain.ConfigurationError{Setting: s.name}
			}
		}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		retry:    exec,
		logger:   logger.With("source", SourceID),
	}, nil
}

// ID returns the source identifier.
func (c *Client) ID() string {
	return SourceID
}

// Name returns human-readable name.
func (c *Client) Name() string {
	return SourceName
}

// FetchListings logs in, downloads the listings page and parses it.
// Handshake errors are returned unchanged.
func (c *Client) FetchListings(ctx context.Context) ([]domain.ScrapedListing, error) {
	anon := c.NewSession()

	withCookie, err := anon.ObtainCookie(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("obtained session cookie")

	authed, err := withCookie.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("authenticated")

	page, err := authed.FetchListingsPage(ctx)
	if err != nil {
		return nil, err
	}

	listings, err := page.Listings()
	if err != nil {
		return nil, fmt.Errorf("parse listings page: %w", err)
	}

	c.logger.Info("fetched listings page",
		"bytes", len(page.Markup),
		"listings", len(listings),
	)

	return listings, nil
}
