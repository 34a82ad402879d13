// Package extractor resolves embed and player URLs into playable links.
//
// Each Extractor handles a family of hosts. The Registry dispatches a URL to
// the extractors that claim it and, when none succeeds, falls back to a
// generic page scan (packed JavaScript, JW Player setup, <source> tags and
// bare media URLs).
package extractor

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/alvarorichard/provedores/internal/models"
	"github.com/alvarorichard/provedores/internal/util"
)

var (
	// ErrNoLinks is returned when an extractor ran but found nothing playable
	ErrNoLinks = errors.New("no playable links found")
	// ErrUnsupported is returned when no extractor accepts a URL
	ErrUnsupported = errors.New("no extractor for url")
)

// Extractor resolves URLs of one host family
type Extractor interface {
	Name() string
	Matches(rawURL string) bool
	Extract(ctx context.Context, rawURL, referer string, subtitles models.SubtitleCallback, links models.LinkCallback) error
}

// Registry holds the known extractors in registration order
type Registry struct {
	mu         sync.RWMutex
	extractors []Extractor
	fetch      *util.Fetcher
}

// NewRegistry creates a registry; fetch is used by the generic fallback
func NewRegistry(fetch *util.Fetcher, extractors ...Extractor) *Registry {
	if fetch == nil {
		fetch = util.NewFetcher(nil)
	}
	return &Registry{extractors: extractors, fetch: fetch}
}

// NewDefaultRegistry returns a registry with every built-in host extractor
func NewDefaultRegistry(fetch *util.Fetcher) *Registry {
	if fetch == nil {
		fetch = util.NewFetcher(nil)
	}
	return NewRegistry(fetch,
		NewBlogger(fetch),
		NewGoogleVideo(fetch),
		NewStreamtape(fetch),
		NewFilemoon(fetch),
		NewMixdrop(fetch),
		NewDirect(fetch),
	)
}

// Register adds e. Later registrations are tried after earlier ones.
func (r *Registry) Register(e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors = append(r.extractors, e)
}

// ByName returns the extractor called name, case-insensitively
func (r *Registry) ByName(name string) Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.extractors {
		if strings.EqualFold(e.Name(), name) {
			return e
		}
	}
	return nil
}

// Names lists the registered extractors
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.extractors))
	for _, e := range r.extractors {
		names = append(names, e.Name())
	}
	return names
}

// Claims reports whether a registered extractor accepts rawURL
func (r *Registry) Claims(rawURL string) bool {
	return len(r.matching(rawURL)) > 0
}

func (r *Registry) matching(rawURL string) []Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Extractor
	for _, e := range r.extractors {
		if e.Matches(rawURL) {
			out = append(out, e)
		}
	}
	return out
}

// Load resolves rawURL with the matching extractors, then the generic page
// scan. It returns true when at least one link was emitted.
func (r *Registry) Load(ctx context.Context, rawURL, referer string, subtitles models.SubtitleCallback, links models.LinkCallback) (bool, error) {
	if found, err := r.loadKnown(ctx, rawURL, referer, subtitles, links); found || ctx.Err() != nil {
		return found, err
	}

	subtitles = safeSubtitles(subtitles)
	counted, count := countLinks(links)
	if err := r.generic(ctx, rawURL, referer, subtitles, counted); err != nil {
		util.Debug("generic extraction failed", "url", rawURL, "error", err)
		if atomic.LoadInt32(count) == 0 {
			return false, err
		}
	}
	if atomic.LoadInt32(count) == 0 {
		return false, errors.Wrap(ErrNoLinks, rawURL)
	}
	return true, nil
}

// loadKnown only tries extractors that claim rawURL
func (r *Registry) loadKnown(ctx context.Context, rawURL, referer string, subtitles models.SubtitleCallback, links models.LinkCallback) (bool, error) {
	subtitles = safeSubtitles(subtitles)
	var lastErr error = ErrUnsupported

	for _, e := range r.matching(rawURL) {
		counted, count := countLinks(links)
		err := e.Extract(ctx, rawURL, referer, subtitles, counted)
		if n := atomic.LoadInt32(count); n > 0 {
			util.Debug("extractor resolved links", "extractor", e.Name(), "count", n)
			return true, nil
		}
		if err == nil {
			err = ErrNoLinks
		}
		util.Debug("extractor failed", "extractor", e.Name(), "url", rawURL, "error", err)
		lastErr = errors.Wrapf(err, "%s", e.Name())
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
	}
	return false, lastErr
}

func countLinks(links models.LinkCallback) (models.LinkCallback, *int32) {
	var n int32
	return func(l models.ExtractorLink) {
		if l.URL == "" {
			return
		}
		atomic.AddInt32(&n, 1)
		if links != nil {
			links(l)
		}
	}, &n
}

func safeSubtitles(subs models.SubtitleCallback) models.SubtitleCallback {
	if subs == nil {
		return func(models.SubtitleFile) {}
	}
	return subs
}
