package bgg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/shelf/internal/shared"
	"golang.org/x/time/rate"
)

// ThingType selects which BGG record family a /thing call targets.
type ThingType string

const (
	TypeBoardGame ThingType = "boardgame"
	TypeExpansion ThingType = "boardgameexpansion"
)

// Suffix returns the single-letter cache file discriminator for the type.
func (t ThingType) Suffix() string {
	if t == TypeExpansion {
		return "e"
	}
	return "b"
}

// GetOptions control the shape of a /thing response.
type GetOptions struct {
	WithVersions bool
	WithStats    bool
	Type         ThingType
}

// ClientOptions configures a Client. Zero values fall back to defaults.
type ClientOptions struct {
	BaseURL    string
	Retries    int
	Delay      DelayFunc
	Limiter    *rate.Limiter
	HTTPClient *http.Client

	// Sleep is called between retries. Injected so tests run without timers.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client issues raw requests against the BGG XML API.
//
// Every call passes through retry middleware: network errors, HTTP 429 and
// retryable statuses (408, 5xx) back off exponentially; anything else fails
// immediately. Calls are paced by a shared rate limiter so at most one request
// is in flight and requests keep a minimum spacing.
type Client struct {
	baseURL    string
	retries    int
	delay      DelayFunc
	limiter    *rate.Limiter
	httpClient *http.Client
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *log.Logger
}

// NewClient creates a Client from the application configuration.
func NewClient(cfg *shared.Config, logger *log.Logger) *Client {
	var limiter *rate.Limiter
	if every := cfg.API.RateEvery(); every > 0 {
		limiter = rate.NewLimiter(rate.Every(every), 1)
	}

	return NewClientWithOptions(ClientOptions{
		BaseURL:    cfg.API.Root,
		Retries:    cfg.API.Retries,
		Delay:      ExponentialDelay(cfg.API.BaseRetry()),
		Limiter:    limiter,
		HTTPClient: &http.Client{Timeout: cfg.API.Timeout()},
	}, logger)
}

// NewClientWithOptions creates a Client with explicit options.
func NewClientWithOptions(opts ClientOptions, logger *log.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://boardgamegeek.com/xmlapi2"
	}
	if opts.Delay == nil {
		opts.Delay = ExponentialDelay(time.Second)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		retries:    opts.Retries,
		delay:      opts.Delay,
		limiter:    opts.Limiter,
		httpClient: opts.HTTPClient,
		sleep:      opts.Sleep,
		logger:     logger,
	}
}

// Search queries /search for candidate matches by name and returns the raw XML.
func (c *Client) Search(ctx context.Context, name string) (string, error) {
	query := url.Values{}
	query.Set("query", buildSearchTerm(name))
	query.Set("type", string(TypeBoardGame))

	return c.do(ctx, "/search", query)
}

// Get queries /thing for a single record by id and returns the raw XML.
func (c *Client) Get(ctx context.Context, bggID int, opts GetOptions) (string, error) {
	thingType := opts.Type
	if thingType == "" {
		thingType = TypeBoardGame
	}

	query := url.Values{}
	query.Set("id", strconv.Itoa(bggID))
	query.Set("versions", toAPIBoolean(opts.WithVersions))
	query.Set("stats", toAPIBoolean(opts.WithStats))
	query.Set("type", string(thingType))

	return c.do(ctx, "/thing", query)
}

func (c *Client) do(ctx context.Context, path string, query url.Values) (string, error) {
	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		body, err := c.once(ctx, path, query)
		if err == nil {
			return body, nil
		}

		if !isRetryable(err) || attempt >= c.retries {
			return "", err
		}

		delay := c.delay(attempt)
		if isRateLimited(err) {
			c.logger.Warn("rate limited by BGG", "path", path, "attempt", attempt+1, "delay", delay)
		} else {
			c.logger.Debug("retrying BGG request", "path", path, "attempt", attempt+1, "err", err)
		}

		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
}

func (c *Client) once(ctx context.Context, path string, query url.Values) (string, error) {
	requestURL := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &networkError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &statusError{status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &networkError{err: err}
	}

	// A non-XML 2xx body means the API contract changed; retrying will not fix it.
	if trimmed := strings.TrimSpace(string(body)); trimmed == "" || !strings.HasPrefix(trimmed, "<") {
		return "", fmt.Errorf("%w: unexpected non-XML response from %s", shared.ErrProtocol, path)
	}

	return string(body), nil
}

type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: status %d", shared.ErrAPIRequest, e.status)
}

func (e *statusError) Unwrap() error { return shared.ErrAPIRequest }

type networkError struct {
	err error
}

func (e *networkError) Error() string { return fmt.Sprintf("request failed: %v", e.err) }

func (e *networkError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var netErr *networkError
	if errors.As(err, &netErr) {
		return true
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.status == http.StatusTooManyRequests ||
			statusErr.status == http.StatusRequestTimeout ||
			statusErr.status >= 500
	}

	return false
}

func isRateLimited(err error) bool {
	var statusErr *statusError
	return errors.As(err, &statusErr) && statusErr.status == http.StatusTooManyRequests
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// buildSearchTerm strips characters the BGG search endpoint mishandles.
func buildSearchTerm(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func toAPIBoolean(value bool) string {
	if value {
		return "1"
	}
	return "0"
}
