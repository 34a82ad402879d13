package util

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/zc310/headers"
)

const maxBodySize = 16 << 20

// Fetcher performs HTTP requests with browser-like headers, a small retry
// budget and challenge page detection
type Fetcher struct {
	Client     *http.Client
	UserAgent  string
	MaxRetries int
	RetryDelay time.Duration
}

// NewFetcher creates a fetcher around client, or a fresh cookie-aware client when nil
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &Fetcher{
		Client:     client,
		UserAgent:  UserAgent,
		MaxRetries: 2,
		RetryDelay: 350 * time.Millisecond,
	}
}

// Response is a fully read HTTP response
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Text returns the body as a string
func (r *Response) Text() string {
	return string(r.Body)
}

// Document parses the body as HTML
func (r *Response) Document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse HTML")
	}
	return doc, nil
}

// JSON decodes the body into v
func (r *Response) JSON(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Wrapf(err, "failed to decode JSON from %s", r.URL)
	}
	return nil
}

// Get runs a gjson path against the body
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

// RequestOption customizes a single request
type RequestOption func(*http.Request)

// WithReferer sets the Referer header
func WithReferer(referer string) RequestOption {
	return func(req *http.Request) {
		if referer != "" {
			req.Header.Set(headers.Referer, referer)
		}
	}
}

// WithHeader sets an arbitrary header
func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

// WithHeaders sets every header in h
func WithHeaders(h map[string]string) RequestOption {
	return func(req *http.Request) {
		for k, v := range h {
			req.Header.Set(k, v)
		}
	}
}

// WithXHR marks the request as an XMLHttpRequest
func WithXHR() RequestOption {
	return func(req *http.Request) {
		req.Header.Set(headers.XRequestedWith, "XMLHttpRequest")
		req.Header.Set(headers.Accept, "application/json, text/javascript, */*; q=0.01")
	}
}

// Get fetches rawURL
func (f *Fetcher) Get(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	return f.Do(ctx, http.MethodGet, rawURL, nil, opts...)
}

// Head issues a HEAD request, following redirects; Response.URL is the final location
func (f *Fetcher) Head(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	return f.Do(ctx, http.MethodHead, rawURL, nil, opts...)
}

// PostForm posts form as application/x-www-form-urlencoded
func (f *Fetcher) PostForm(ctx context.Context, rawURL string, form url.Values, opts ...RequestOption) (*Response, error) {
	opts = append([]RequestOption{WithHeader(headers.ContentType, "application/x-www-form-urlencoded; charset=UTF-8")}, opts...)
	return f.Do(ctx, http.MethodPost, rawURL, []byte(form.Encode()), opts...)
}

// Document fetches rawURL and parses it as HTML
func (f *Fetcher) Document(ctx context.Context, rawURL string, opts ...RequestOption) (*goquery.Document, *Response, error) {
	resp, err := f.Get(ctx, rawURL, opts...)
	if err != nil {
		return nil, nil, err
	}
	doc, err := resp.Document()
	if err != nil {
		return nil, resp, err
	}
	return doc, resp, nil
}

func (f *Fetcher) decorateRequest(req *http.Request) {
	ua := f.UserAgent
	if ua == "" {
		ua = UserAgent
	}
	req.Header.Set(headers.UserAgent, ua)
	req.Header.Set(headers.Accept, "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set(headers.AcceptLanguage, "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7")
}

func (f *Fetcher) shouldRetry(attempt int) bool {
	return attempt < f.MaxRetries
}

func (f *Fetcher) sleep(ctx context.Context) {
	if f.RetryDelay <= 0 {
		return
	}
	t := time.NewTimer(f.RetryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Do performs the request. Transport errors and 5xx/429 answers are retried up
// to MaxRetries times; challenge pages and other 4xx answers are returned at once.
func (f *Fetcher) Do(ctx context.Context, method, rawURL string, body []byte, opts ...RequestOption) (*Response, error) {
	var lastErr error
	attempts := f.MaxRetries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, errors.WithStack(fmt.Errorf("retry of %s interrupted: %w (last error: %w)", rawURL, err, lastErr))
			}
			return nil, err
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create request")
		}
		f.decorateRequest(req)
		for _, opt := range opts {
			opt(req)
		}

		resp, err := f.Client.Do(req)
		if err != nil {
			lastErr = errors.Wrapf(err, "failed to make request to %s", rawURL)
			if ctx.Err() == nil && f.shouldRetry(attempt) {
				f.sleep(ctx)
				continue
			}
			return nil, lastErr
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		_ = resp.Body.Close()
		if err != nil {
			lastErr = errors.Wrap(err, "failed to read response body")
			if f.shouldRetry(attempt) {
				f.sleep(ctx)
				continue
			}
			return nil, lastErr
		}

		out := &Response{
			URL:        resp.Request.URL.String(),
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       data,
		}

		if IsChallengePage(resp.StatusCode, data) {
			Debug("challenge page", "url", rawURL, "status", resp.StatusCode)
			return nil, errors.Wrapf(ErrChallenge, "%s", rawURL)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			lastErr = &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Status: resp.Status}
			retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
			if retryable && f.shouldRetry(attempt) {
				f.sleep(ctx)
				continue
			}
			return nil, errors.WithStack(lastErr)
		}

		return out, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.Errorf("failed to retrieve %s", rawURL)
}

// IsChallengePage detects Cloudflare style interstitials
func IsChallengePage(status int, body []byte) bool {
	if status != http.StatusForbidden && status != http.StatusServiceUnavailable && status != http.StatusOK {
		return false
	}
	head := body
	if len(head) > 8192 {
		head = head[:8192]
	}
	lower := strings.ToLower(string(head))
	if strings.Contains(lower, "<title>just a moment") || strings.Contains(lower, "<title>um momento") {
		return true
	}
	if strings.Contains(lower, `id="challenge-form"`) || strings.Contains(lower, `id="cf-wrapper"`) ||
		strings.Contains(lower, "cf-browser-verification") {
		return true
	}
	return status != http.StatusOK &&
		(strings.Contains(lower, "cloudflare") || strings.Contains(lower, "/cdn-cgi/challenge-platform/"))
}
