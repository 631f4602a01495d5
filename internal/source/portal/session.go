package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"cargo_ingest/internal/domain"
	"cargo_ingest/internal/retry"
)

const (
	loginPath    = "/Login"
	listingsPath = "/Cargas/Disponiveis"

	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	acceptHTML       = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

	maxPageBytes = 5 * 1024 * 1024
)

// postLoginPaths are the Location fragments the portal redirects to after a
// successful login. Anything else (usually the login page again) is a rejection.
var postLoginPaths = []string{"/Home", "/Cargas/Painel"}

// State is the position of a session in the login handshake.
type State int

const (
	StateAnonymous State = iota
	StateCookieObtained
	StateAuthenticated
	StateListingsFetched
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateCookieObtained:
		return "cookie_obtained"
	case StateAuthenticated:
		return "authenticated"
	case StateListingsFetched:
		return "listings_fetched"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Each handshake state is its own type, so a step can only be called on the
// value returned by the step before it.

// AnonymousSession has no cookie yet.
type AnonymousSession struct {
	client *Client
}

// CookieSession holds the anonymous cookie handed out by the login page.
type CookieSession struct {
	client *Client
	cookie string
}

// AuthenticatedSession holds a cookie accepted by the portal.
type AuthenticatedSession struct {
	client *Client
	cookie string
}

// ListingsPage is the raw markup of the listings page.
type ListingsPage struct {
	Markup string
}

// NewSession starts a handshake from scratch.
func (c *Client) NewSession() *AnonymousSession {
	return &AnonymousSession{client: c}
}

func (s *AnonymousSession) State() State { return StateAnonymous }

func (s *CookieSession) State() State { return StateCookieObtained }

func (s *AuthenticatedSession) State() State { return StateAuthenticated }

func (p *ListingsPage) State() State { return StateListingsFetched }

// Cookie returns the name=value pair currently used for the session.
func (s *CookieSession) Cookie() string { return s.cookie }

// Cookie returns the name=value pair currently used for the session.
func (s *AuthenticatedSession) Cookie() string { return s.cookie }

// Listings parses the page markup.
func (p *ListingsPage) Listings() ([]domain.ScrapedListing, error) {
	return Parse(p.Markup)
}

// ObtainCookie loads the login page and keeps the name=value part of its Set-Cookie.
func (s *AnonymousSession) ObtainCookie(ctx context.Context) (*CookieSession, error) {
	cookie, err := retry.Do(ctx, s.client.retry, "portal.obtain_cookie", s.client.obtainCookie)
	if err != nil {
		return nil, err
	}
	return &CookieSession{client: s.client, cookie: cookie}, nil
}

// Authenticate submits the credentials. Only a 302 to a known post-login page
// counts as success.
func (s *CookieSession) Authenticate(ctx context.Context) (*AuthenticatedSession, error) {
	cookie, err := retry.Do(ctx, s.client.retry, "portal.authenticate", func(ctx context.Context) (string, error) {
		return s.client.authenticate(ctx, s.cookie)
	})
	if err != nil {
		return nil, err
	}
	return &AuthenticatedSession{client: s.client, cookie: cookie}, nil
}

// FetchListingsPage downloads the listings page with the authenticated cookie.
func (s *AuthenticatedSession) FetchListingsPage(ctx context.Context) (*ListingsPage, error) {
	markup, err := retry.Do(ctx, s.client.retry, "portal.fetch_listings", func(ctx context.Context) (string, error) {
		return s.client.fetchListingsPage(ctx, s.cookie)
	})
	if err != nil {
		return nil, err
	}
	return &ListingsPage{Markup: markup}, nil
}

func (c *Client) obtainCookie(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+loginPath, nil)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", acceptHTML)
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer drain(resp)

	setCookie := resp.Header.Get("Set-Cookie")
	if setCookie == "" {
		return "", &domain.ProtocolError{
			Step:   "obtain cookie",
			Reason: fmt.Sprintf("login page returned status %d without Set-Cookie", resp.StatusCode),
		}
	}

	return cookieValue(setCookie), nil
}

func (c *Client) authenticate(ctx context.Context, cookie string) (string, error) {
	form := url.Values{}
	form.Set("Usuario", c.username)
	form.Set("Senha", c.password)
	form.Set("Lembrar", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cookie", c.sessionCookie(cookie))
	req.Header.Set("Accept", acceptHTML)
	req.Header.Set("Referer", c.baseURL+loginPath)
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer drain(resp)

	location := resp.Header.Get("Location")
	if resp.StatusCode != http.StatusFound || !isPostLoginLocation(location) {
		authErr := &domain.AuthenticationError{Status: resp.StatusCode, Location: location}
		if resp.StatusCode >= http.StatusInternalServerError {
			return "", authErr
		}
		return "", retry.Permanent(authErr)
	}

	if setCookie := resp.Header.Get("Set-Cookie"); setCookie != "" {
		return cookieValue(setCookie), nil
	}
	return cookie, nil
}

func (c *Client) fetchListingsPage(ctx context.Context, cookie string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+listingsPath, nil)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Cookie", c.sessionCookie(cookie))
	req.Header.Set("Accept", acceptHTML)
	req.Header.Set("Referer", c.baseURL+loginPath)
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &domain.FetchError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// sessionCookie appends the credentials to the cookie the way the portal's
// own login form does.
func (c *Client) sessionCookie(cookie string) string {
	return fmt.Sprintf("%s; Usuario=%s; Senha=%s", cookie, c.username, c.password)
}

func cookieValue(setCookie string) string {
	value, _, _ := strings.Cut(setCookie, ";")
	return strings.TrimSpace(value)
}

func isPostLoginLocation(location string) bool {
	for _, p := range postLoginPaths {
		if strings.Contains(location, p) {
			return true
		}
	}
	return false
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPageBytes))
	_ = resp.Body.Close()
}
