// SPDX-License-Identifier: MPL-2.0

// Package forge creates release records and uploads build artifacts on a
// source-hosting service speaking the GitHub Releases API. All network
// operations share one retry discipline: client-side statuses fail
// immediately, anything else is retried with exponential backoff.
package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

const (
	// maxJSONResponseBytes bounds API response size (10 MB) so a malformed
	// response cannot exhaust memory.
	maxJSONResponseBytes = 10 << 20

	// extraRetries is the number of retries after the first attempt for
	// transient failures (3 attempts total).
	extraRetries = 2

	// uploadConcurrency bounds parallel asset uploads. Uploads are
	// independent idempotent calls, so order does not matter.
	uploadConcurrency = 4
)

// ErrAlreadyReleased is returned when CreateRelease is invoked on a client
// that has already created its release. One release per client instance.
var ErrAlreadyReleased = errors.New("release already created")

type (
	// APIError carries the parsed status and message of a failed API call.
	APIError struct {
		StatusCode int
		Message    string
	}

	// ReleaseParams describes the release record to create.
	ReleaseParams struct {
		TagName    string
		Name       string
		Body       string
		Prerelease bool
		Draft      bool
	}

	// Release is the result record of a successful creation. It is owned by
	// the pipeline once returned; the client only flips its released flag.
	Release struct {
		TagName   string
		Name      string
		HTMLURL   string
		UploadURL string
		Released  bool
	}

	// releaseRequest is the JSON wire format for the create-release call.
	releaseRequest struct {
		TagName    string `json:"tag_name"`
		Name       string `json:"name"`
		Body       string `json:"body"`
		Prerelease bool   `json:"prerelease"`
		Draft      bool   `json:"draft"`
	}

	// releaseResponse is the JSON wire format of the created release.
	releaseResponse struct {
		TagName   string `json:"tag_name"`
		Name      string `json:"name"`
		HTMLURL   string `json:"html_url"`
		UploadURL string `json:"upload_url"`
	}

	// apiErrorBody is the JSON wire format of an API error response.
	apiErrorBody struct {
		Message string `json:"message"`
	}

	// Client talks to one repository's releases endpoint.
	Client struct {
		httpClient *http.Client
		owner      string
		repo       string
		baseURL    string
		token      string
		userAgent  string
		dryRun     bool
		logger     *log.Logger

		// newBackOff builds the retry policy; replaced in tests to avoid
		// real backoff waits.
		newBackOff func() backoff.BackOff

		released bool
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)
)

// Error formats the status and message of a failed API call.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("release API returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("release API returned %d", e.StatusCode)
}

// Permanent reports whether the status must never be retried: client-side
// validation and authentication failures.
func (e *APIError) Permanent() bool {
	switch e.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusUnprocessableEntity:
		return true
	default:
		return false
	}
}

// WithHTTPClient sets a custom HTTP client, useful for tests.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(f *Client) { f.httpClient = c }
}

// WithBaseURL overrides the API base URL, primarily for test servers.
func WithBaseURL(base string) ClientOption {
	return func(f *Client) { f.baseURL = strings.TrimRight(base, "/") }
}

// WithToken sets the bearer token attached to every request.
func WithToken(token string) ClientOption {
	return func(f *Client) { f.token = token }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(f *Client) { f.userAgent = ua }
}

// WithDryRun short-circuits network calls to no-op successes that still
// mark state, so downstream link printing behaves consistently.
func WithDryRun(dryRun bool) ClientOption {
	return func(f *Client) { f.dryRun = dryRun }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(logger *log.Logger) ClientOption {
	return func(f *Client) { f.logger = logger }
}

// NewClient creates a Client for owner/repo with sensible defaults.
func NewClient(owner, repo string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		owner:      owner,
		repo:       repo,
		baseURL:    "https://api.github.com",
		userAgent:  "castoff",
		logger:     log.Default(),
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateRelease creates the release record. It may be called at most once
// per client instance; a second call is a caller error, never re-attempted.
func (c *Client) CreateRelease(ctx context.Context, p ReleaseParams) (*Release, error) {
	if c.released {
		return nil, ErrAlreadyReleased
	}

	if c.dryRun {
		c.released = true
		return &Release{
			TagName:  p.TagName,
			Name:     p.Name,
			HTMLURL:  fmt.Sprintf("https://github.com/%s/%s/releases/tag/%s", c.owner, c.repo, p.TagName),
			Released: true,
		}, nil
	}

	body, err := json.Marshal(releaseRequest{
		TagName:    p.TagName,
		Name:       p.Name,
		Body:       p.Body,
		Prerelease: p.Prerelease,
		Draft:      p.Draft,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding release: %w", err)
	}

	reqURL := fmt.Sprintf("%s/repos/%s/%s/releases", c.baseURL, c.owner, c.repo)

	var parsed releaseResponse
	err = c.withRetry(ctx, "create release", func() error {
		return c.doJSON(ctx, http.MethodPost, reqURL, body, http.StatusCreated, &parsed)
	})
	if err != nil {
		return nil, err
	}

	c.released = true
	return &Release{
		TagName:   parsed.TagName,
		Name:      parsed.Name,
		HTMLURL:   parsed.HTMLURL,
		UploadURL: trimURLTemplate(parsed.UploadURL),
		Released:  true,
	}, nil
}

// UploadAssets uploads the given files to the release's upload endpoint.
// Uploads run concurrently; each individual upload follows the shared retry
// policy.
func (c *Client) UploadAssets(ctx context.Context, rel *Release, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	if c.dryRun {
		return nil
	}
	if rel == nil || rel.UploadURL == "" {
		return errors.New("release has no upload endpoint")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for _, path := range paths {
		g.Go(func() error {
			return c.withRetry(gctx, "upload "+filepath.Base(path), func() error {
				return c.uploadAsset(gctx, rel.UploadURL, path)
			})
		})
	}
	return g.Wait()
}

// uploadAsset performs one asset upload call.
func (c *Client) uploadAsset(ctx context.Context, uploadURL, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("reading asset %s: %w", path, err))
	}

	reqURL := fmt.Sprintf("%s?name=%s", uploadURL, url.QueryEscape(filepath.Base(path)))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("creating upload request: %w", err))
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("uploading asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return classify(resp)
	}
	return nil
}

// doJSON executes one JSON API call, decoding the response into out on the
// expected status and classifying everything else.
func (c *Client) doJSON(ctx context.Context, method, reqURL string, body []byte, wantStatus int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return classify(resp)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// withRetry runs op under the shared retry policy: permanent API errors
// abort immediately, transient failures retry up to extraRetries times with
// exponential backoff, warning before each retry.
func (c *Client) withRetry(ctx context.Context, what string, op func() error) error {
	wrapped := func() error {
		err := op()
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Permanent() {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), extraRetries), ctx)
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("retrying", "operation", what, "in", wait.Round(time.Millisecond), "err", err)
	}

	if err := backoff.RetryNotify(wrapped, policy, notify); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

// setHeaders applies the common API headers.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// classify turns a non-success response into an APIError with the parsed
// message.
func classify(resp *http.Response) error {
	var body apiErrorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&body) //nolint:errcheck // Best-effort message extraction.
	return &APIError{StatusCode: resp.StatusCode, Message: body.Message}
}

// trimURLTemplate strips the RFC 6570 template suffix GitHub appends to
// upload URLs ("...{?name,label}").
func trimURLTemplate(u string) string {
	if i := strings.Index(u, "{"); i >= 0 {
		return u[:i]
	}
	return u
}
