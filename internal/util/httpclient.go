// Package util provides the shared HTTP stack, logging and small helpers used by every provider
package util

import (
	"compress/flate"
	"compress/gzip"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/zc310/headers"
	"golang.org/x/net/publicsuffix"
)

// UserAgent is the desktop browser identity sent by default
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// httpClientConfig holds configuration for creating HTTP clients
type httpClientConfig struct {
	timeout             time.Duration
	maxIdleConns        int
	maxIdleConnsPerHost int
	maxConnsPerHost     int
	idleConnTimeout     time.Duration
	tlsHandshakeTimeout time.Duration
	expectContinue      time.Duration
	keepAlive           time.Duration
	dialTimeout         time.Duration
}

func defaultConfig() httpClientConfig {
	return httpClientConfig{
		timeout:             30 * time.Second,
		maxIdleConns:        100,
		maxIdleConnsPerHost: 10,
		maxConnsPerHost:     20,
		idleConnTimeout:     90 * time.Second,
		tlsHandshakeTimeout: 10 * time.Second,
		expectContinue:      1 * time.Second,
		keepAlive:           30 * time.Second,
		dialTimeout:         10 * time.Second,
	}
}

func createTransport(cfg httpClientConfig) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.dialTimeout,
			KeepAlive: cfg.keepAlive,
		}).DialContext,
		MaxIdleConns:          cfg.maxIdleConns,
		MaxIdleConnsPerHost:   cfg.maxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.maxConnsPerHost,
		IdleConnTimeout:       cfg.idleConnTimeout,
		TLSHandshakeTimeout:   cfg.tlsHandshakeTimeout,
		ExpectContinueTimeout: cfg.expectContinue,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
}

// NewHTTPClient returns a client with its own cookie jar and transparent
// gzip/deflate/brotli decoding. A zero timeout keeps the default.
func NewHTTPClient(timeout time.Duration) *http.Client {
	cfg := defaultConfig()
	if timeout > 0 {
		cfg.timeout = timeout
	}
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &http.Client{
		Transport: &decodingTransport{base: createTransport(cfg)},
		Timeout:   cfg.timeout,
		Jar:       jar,
	}
}

// decodingTransport advertises compressed encodings and decodes the body
// so callers always read plain bytes
type decodingTransport struct {
	base http.RoundTripper
}

func (t *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(headers.AcceptEncoding) == "" {
		req = req.Clone(req.Context())
		req.Header.Set(headers.AcceptEncoding, "gzip, deflate, br")
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	body, err := decodeBody(resp.Header.Get(headers.ContentEncoding), resp.Body)
	if err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	if body != resp.Body {
		resp.Body = body
		resp.Header.Del(headers.ContentEncoding)
		resp.Header.Del(headers.ContentLength)
		resp.ContentLength = -1
		resp.Uncompressed = true
	}
	return resp, nil
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func decodeBody(encoding string, body io.ReadCloser) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "br":
		return &readCloser{Reader: brotli.NewReader(body), closers: []io.Closer{body}}, nil
	case "gzip":
		gr, err := gzip.NewReader(body)
		if err != nil {
			return nil, err
		}
		return &readCloser{Reader: gr, closers: []io.Closer{gr, body}}, nil
	case "deflate":
		fr := flate.NewReader(body)
		return &readCloser{Reader: fr, closers: []io.Closer{fr, body}}, nil
	default:
		return body, nil
	}
}

// ParallelExecute executes multiple functions in parallel with a worker limit.
// Returns when all functions complete.
func ParallelExecute(maxWorkers int, tasks ...func()) {
	if len(tasks) == 0 {
		return
	}

	workers := maxWorkers
	if workers <= 0 || len(tasks) < workers {
		workers = len(tasks)
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, workers)

	for _, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			task()
		}()
	}

	wg.Wait()
}
