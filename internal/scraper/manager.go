// Package scraper is the host side of the providers: it loads every provider
// plugin into one registrar and fans calls out to them
package scraper

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/alvarorichard/provedores/internal/config"
	"github.com/alvarorichard/provedores/internal/extractor"
	"github.com/alvarorichard/provedores/internal/models"
	"github.com/alvarorichard/provedores/internal/plugin"
	"github.com/alvarorichard/provedores/internal/scraper/animefire"
	"github.com/alvarorichard/provedores/internal/scraper/animesdrive"
	"github.com/alvarorichard/provedores/internal/scraper/goyabu"
	"github.com/alvarorichard/provedores/internal/scraper/netcine"
	"github.com/alvarorichard/provedores/internal/scraper/pobreflix"
	"github.com/alvarorichard/provedores/internal/scraper/reidoscanais"
	"github.com/alvarorichard/provedores/internal/scraper/vizer"
	"github.com/alvarorichard/provedores/internal/util"
)

// defaultSearchTimeout is the maximum time to wait for all providers
const defaultSearchTimeout = 15 * time.Second

// ErrNoMainPage is returned for providers without main page sections
var ErrNoMainPage = errors.New("provider has no main page")

// Plugins returns every provider module in display order
func Plugins() []plugin.Plugin {
	return []plugin.Plugin{
		animefire.Plugin{},
		animesdrive.Plugin{},
		goyabu.Plugin{},
		vizer.Plugin{},
		netcine.Plugin{},
		pobreflix.Plugin{},
		reidoscanais.Plugin{},
	}
}

// SourceError records a provider that failed during a fan-out call
type SourceError struct {
	Provider string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Manager owns the loaded providers
type Manager struct {
	registrar     *plugin.Registrar
	searchTimeout time.Duration
}

// NewManager builds the shared fetcher from cfg and loads every enabled plugin
func NewManager(cfg *config.Config) *Manager {
	if cfg == nil {
		cfg = config.Default()
	}
	r := plugin.NewRegistrar(NewFetcher(cfg), cfg)
	r.LoadAll(Plugins()...)
	return NewManagerFromRegistrar(r, cfg.SearchTimeout)
}

// NewManagerFromRegistrar wraps an already populated registrar
func NewManagerFromRegistrar(r *plugin.Registrar, searchTimeout time.Duration) *Manager {
	if searchTimeout <= 0 {
		searchTimeout = defaultSearchTimeout
	}
	return &Manager{registrar: r, searchTimeout: searchTimeout}
}

// NewFetcher applies the http section of cfg to a fresh fetcher
func NewFetcher(cfg *config.Config) *util.Fetcher {
	f := util.NewFetcher(util.NewHTTPClient(cfg.HTTP.Timeout))
	if cfg.HTTP.UserAgent != "" {
		f.UserAgent = cfg.HTTP.UserAgent
	}
	if cfg.HTTP.MaxRetries >= 0 {
		f.MaxRetries = cfg.HTTP.MaxRetries
	}
	if cfg.HTTP.RetryDelay >= 0 {
		f.RetryDelay = cfg.HTTP.RetryDelay
	}
	return f
}

// Providers lists the loaded providers in registration order
func (m *Manager) Providers() []models.MainAPI {
	return m.registrar.APIs()
}

// Provider finds a provider by name, case-insensitively
func (m *Manager) Provider(name string) (models.MainAPI, error) {
	api, ok := m.registrar.API(strings.TrimSpace(name))
	if !ok {
		return nil, errors.Wrapf(util.ErrNotFound, "provider %q", name)
	}
	return api, nil
}

// Extractors is the extractor registry shared by the providers
func (m *Manager) Extractors() *extractor.Registry {
	return m.registrar.Extractors()
}

// Search queries one provider when name is set, otherwise every provider
// concurrently. Results keep provider order and carry the provider in APIName.
// Failing providers are reported as warnings unless nothing was found.
func (m *Manager) Search(ctx context.Context, query string, name *string) ([]models.SearchResponse, error) {
	if name != nil {
		api, err := m.Provider(*name)
		if err != nil {
			return nil, err
		}
		util.Debug("Searching specific provider", "provider", api.Name(), "query", query)
		results, err := api.Search(ctx, query)
		if err != nil {
			return nil, errors.Wrapf(err, "search failed in %s", api.Name())
		}
		return tagSource(results, api.Name()), nil
	}

	apis := m.Providers()
	util.Debug("Starting concurrent search across all providers", "query", query, "providers", len(apis))

	ctx, cancel := context.WithTimeout(ctx, m.searchTimeout)
	defer cancel()

	perProvider := make([][]models.SearchResponse, len(apis))
	var (
		mu     sync.Mutex
		failed []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for i, api := range apis {
		g.Go(func() error {
			results, err := api.Search(gctx, query)
			if err != nil {
				if gctx.Err() != nil {
					err = errors.Wrapf(err, "search timed out after %v", m.searchTimeout)
				}
				util.Debug("Search error", "provider", api.Name(), "error", err)
				mu.Lock()
				failed = append(failed, &SourceError{Provider: api.Name(), Err: err})
				mu.Unlock()
				return nil
			}
			util.Debug("Search results", "provider", api.Name(), "count", len(results))
			perProvider[i] = tagSource(results, api.Name())
			return nil
		})
	}
	_ = g.Wait()

	var all []models.SearchResponse
	for _, results := range perProvider {
		all = append(all, results...)
	}

	var details []string
	for _, err := range failed {
		util.Warn("Search source unavailable", "details", err.Error())
		details = append(details, err.Error())
	}
	sort.Strings(details)

	if len(all) == 0 {
		if len(details) > 0 {
			return nil, errors.Wrapf(util.ErrNotFound, "nothing found for %q (some sources failed: %s)", query, strings.Join(details, "; "))
		}
		return nil, errors.Wrapf(util.ErrNotFound, "nothing found for %q", query)
	}
	return all, nil
}

func tagSource(results []models.SearchResponse, source string) []models.SearchResponse {
	for i := range results {
		if results[i].APIName == "" {
			results[i].APIName = source
		}
	}
	return results
}

// MainPage renders every section of a provider's main page. Sections that
// fail are skipped; the call fails only when all of them do.
func (m *Manager) MainPage(ctx context.Context, name string, page int) (*models.HomePageResponse, error) {
	api, err := m.Provider(name)
	if err != nil {
		return nil, err
	}
	sections := api.MainPage()
	if len(sections) == 0 {
		return nil, errors.Wrap(ErrNoMainPage, api.Name())
	}

	responses := make([]*models.HomePageResponse, len(sections))
	errs := make([]error, len(sections))
	g, gctx := errgroup.WithContext(ctx)
	for i, section := range sections {
		g.Go(func() error {
			responses[i], errs[i] = api.GetMainPage(gctx, page, section)
			return nil
		})
	}
	_ = g.Wait()

	home := &models.HomePageResponse{}
	var lastErr error
	for i, resp := range responses {
		if errs[i] != nil {
			util.Debug("Main page section failed", "provider", api.Name(), "section", sections[i].Name, "error", errs[i])
			lastErr = errs[i]
			continue
		}
		if resp == nil {
			continue
		}
		home.Items = append(home.Items, resp.Items...)
		home.HasNext = home.HasNext || resp.HasNext
	}
	if len(home.Items) == 0 && lastErr != nil {
		return nil, errors.Wrapf(lastErr, "main page of %s", api.Name())
	}
	return home, nil
}

// Load fetches the details of a title
func (m *Manager) Load(ctx context.Context, name, rawURL string) (*models.LoadResponse, error) {
	api, err := m.Provider(name)
	if err != nil {
		return nil, err
	}
	load, err := api.Load(ctx, rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "load failed in %s", api.Name())
	}
	if load.APIName == "" {
		load.APIName = api.Name()
	}
	return load, nil
}

// LoadLinks collects the links of a movie or episode, deduplicated by URL and
// ordered by quality, best first
func (m *Manager) LoadLinks(ctx context.Context, name, data string) ([]models.ExtractorLink, []models.SubtitleFile, error) {
	api, err := m.Provider(name)
	if err != nil {
		return nil, nil, err
	}

	var (
		mu        sync.Mutex
		links     []models.ExtractorLink
		subtitles []models.SubtitleFile
		seen      = make(map[string]bool)
	)
	onLink := func(l models.ExtractorLink) {
		mu.Lock()
		defer mu.Unlock()
		if l.URL == "" || seen[l.URL] {
			return
		}
		seen[l.URL] = true
		links = append(links, l)
	}
	onSubtitle := func(s models.SubtitleFile) {
		mu.Lock()
		defer mu.Unlock()
		if s.URL == "" || seen["sub:"+s.URL] {
			return
		}
		seen["sub:"+s.URL] = true
		subtitles = append(subtitles, s)
	}

	_, err = api.LoadLinks(ctx, data, onSubtitle, onLink)

	mu.Lock()
	defer mu.Unlock()
	if len(links) == 0 {
		if err == nil {
			err = extractor.ErrNoLinks
		}
		return nil, subtitles, errors.Wrapf(err, "links failed in %s", api.Name())
	}
	if err != nil {
		util.Debug("LoadLinks returned an error after emitting links", "provider", api.Name(), "error", err)
	}
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].Quality > links[j].Quality
	})
	return links, subtitles, nil
}
