package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"starlit.dev/newsflow/internal/feed"
)

const (
	// DefaultTimeout bounds one upstream fetch.
	DefaultTimeout = 5 * time.Second

	// DefaultBaseURL is the provider's latest-news endpoint.
	DefaultBaseURL = "https://newsdata.io/api/1/latest"

	errorBodyByteLimit = 64 * 1024
	feedBodyByteLimit  = 4 * 1024 * 1024
)

// ErrTimeout marks a fetch that was aborted because the provider did not
// respond within the configured timeout. Distinguish it from generic
// transport failure with errors.Is.
var ErrTimeout = errors.New("feed request timed out")

// Error is a transport failure talking to the feed provider: a non-2xx
// status or a malformed response body. StatusCode is 0 when no HTTP status
// was received.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("feed provider error %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("feed provider error: %s", e.Detail)
}

// FeedPage is one page of the upstream feed.
type FeedPage struct {
	Results  []feed.RawArticle `json:"results"`
	NextPage string            `json:"nextPage,omitempty"`
}

// Params parameterize one fetch. PageToken is the opaque provider-issued
// cursor, passed back verbatim.
type Params struct {
	Query     string
	PageToken string
}

// Options configure a Client. HTTPClient is injectable for tests.
type Options struct {
	BaseURL    string
	APIKey     string
	Language   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client fetches pages from the upstream feed provider. It performs no
// retries; retry policy belongs to callers.
type Client struct {
	baseURL    string
	apiKey     string
	language   string
	timeout    time.Duration
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(logger zerolog.Logger, opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("feed API key is required")
	}

	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if parsed, err := url.Parse(baseURL); err != nil || !parsed.IsAbs() {
		return nil, fmt.Errorf("feed base URL %q is not an absolute URL", baseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		language:   strings.TrimSpace(strings.ToLower(opts.Language)),
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Fetch retrieves one feed page. Failures map onto the caller-visible
// taxonomy: ErrTimeout when the deadline expires, *Error for non-2xx
// statuses and malformed bodies.
func (c *Client) Fetch(ctx context.Context, params Params) (*FeedPage, error) {
	requestURL, err := c.buildURL(params)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && fetchCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("fetch feed page: %w", ErrTimeout)
		}
		// A caller abort is not a provider failure.
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("fetch feed page: %w", err)
		}
		return nil, &Error{Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := readErrorDetail(resp.Body)
		if detail == "" {
			detail = resp.Status
		}
		return nil, &Error{StatusCode: resp.StatusCode, Detail: detail}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, feedBodyByteLimit))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("read feed body: %w", ErrTimeout)
		}
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("read feed body: %w", err)
		}
		return nil, &Error{StatusCode: resp.StatusCode, Detail: fmt.Sprintf("read body: %v", err)}
	}

	page, err := DecodeFeedPage(body)
	if err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Detail: err.Error()}
	}

	c.logger.Debug().
		Int("results", len(page.Results)).
		Bool("has_next_page", page.NextPage != "").
		Dur("elapsed", time.Since(started)).
		Msg("fetched feed page")

	return page, nil
}

func (c *Client) buildURL(params Params) (string, error) {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse feed base URL: %w", err)
	}

	values := parsed.Query()
	values.Set("apikey", c.apiKey)
	if c.language != "" {
		values.Set("language", c.language)
	}
	if q := strings.TrimSpace(params.Query); q != "" {
		values.Set("q", q)
	}
	if token := strings.TrimSpace(params.PageToken); token != "" {
		values.Set("page", token)
	}
	parsed.RawQuery = values.Encode()

	return parsed.String(), nil
}

func readErrorDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, errorBodyByteLimit))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
