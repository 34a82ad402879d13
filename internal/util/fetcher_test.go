package util

import (
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher() *Fetcher {
	f := NewFetcher(nil)
	f.RetryDelay = 0
	return f
}

func TestFetcherRetriesOnServerError(t *testing.T) {
	t.Parallel()

	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = fmt.Fprint(w, "<html><body>ok</body></html>")
	}))
	defer server.Close()

	f := newTestFetcher()
	resp, err := f.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Text(), "ok")
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestFetcherKeepsLastErrorWhenRetryIsCancelled(t *testing.T) {
	t.Parallel()

	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := NewFetcher(nil)
	f.MaxRetries = 3
	f.RetryDelay = 5 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := f.Get(ctx, server.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, IsStatus(err, http.StatusServiceUnavailable))
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestFetcherDoesNotRetryNotFound(t *testing.T) {
	t.Parallel()

	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := newTestFetcher()
	_, err := f.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestFetcherDetectsChallengePage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprint(w, `<html><head><title>Just a moment...</title></head><body><div id="cf-wrapper"></div></body></html>`)
	}))
	defer server.Close()

	f := newTestFetcher()
	_, err := f.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChallenge))
	assert.Contains(t, err.Error(), "challenge")
}

func TestFetcherSendsBrowserHeaders(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		assert.Contains(t, r.Header.Get("Accept-Language"), "pt-BR")
		assert.Equal(t, "https://example.org/", r.Header.Get("Referer"))
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		_, _ = fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	f := newTestFetcher()
	resp, err := f.Get(context.Background(), server.URL, WithReferer("https://example.org/"), WithXHR())
	require.NoError(t, err)
	assert.True(t, resp.Get("ok").Bool())
}

func TestFetcherPostForm(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "naruto", r.PostForm.Get("keyword"))
		_, _ = fmt.Fprintf(w, `{"keyword":%q}`, r.PostForm.Get("keyword"))
	}))
	defer server.Close()

	f := newTestFetcher()
	resp, err := f.PostForm(context.Background(), server.URL, url.Values{"keyword": {"naruto"}})
	require.NoError(t, err)

	var out struct {
		Keyword string `json:"keyword"`
	}
	require.NoError(t, resp.JSON(&out))
	assert.Equal(t, "naruto", out.Keyword)
}

func TestFetcherDecodesCompressedBodies(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gzip":
			w.Header().Set("Content-Encoding", "gzip")
			gw := gzip.NewWriter(w)
			_, _ = fmt.Fprint(gw, "gzip body")
			_ = gw.Close()
		case "/br":
			w.Header().Set("Content-Encoding", "br")
			bw := brotli.NewWriter(w)
			_, _ = fmt.Fprint(bw, "brotli body")
			_ = bw.Close()
		}
	}))
	defer server.Close()

	f := newTestFetcher()

	resp, err := f.Get(context.Background(), server.URL+"/gzip")
	require.NoError(t, err)
	assert.Equal(t, "gzip body", resp.Text())

	resp, err = f.Get(context.Background(), server.URL+"/br")
	require.NoError(t, err)
	assert.Equal(t, "brotli body", resp.Text())
}

func TestFetcherKeepsCookiesAcrossRequests(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/set" {
			http.SetCookie(w, &http.Cookie{Name: "gate", Value: "passed", Path: "/"})
			return
		}
		c, err := r.Cookie("gate")
		if err != nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = fmt.Fprint(w, c.Value)
	}))
	defer server.Close()

	f := newTestFetcher()
	_, err := f.Get(context.Background(), server.URL+"/set")
	require.NoError(t, err)

	resp, err := f.Get(context.Background(), server.URL+"/check")
	require.NoError(t, err)
	assert.Equal(t, "passed", resp.Text())
}

func TestFetcherHeadFollowsRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final?itag=22", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := newTestFetcher()
	resp, err := f.Head(context.Background(), server.URL+"/start")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/final?itag=22", resp.URL)
}
