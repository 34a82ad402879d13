// Package plugin is the registration surface the host hands to provider modules.
package plugin

import (
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/alvarorichard/provedores/internal/config"
	"github.com/alvarorichard/provedores/internal/extractor"
	"github.com/alvarorichard/provedores/internal/models"
	"github.com/alvarorichard/provedores/internal/util"
)

// Plugin is implemented by every provider module
type Plugin interface {
	Name() string
	Load(r *Registrar) error
}

// Registrar collects the APIs and extractors registered by plugins
type Registrar struct {
	mu     sync.RWMutex
	fetch  *util.Fetcher
	reg    *extractor.Registry
	cfg    *config.Config
	apis   []models.MainAPI
	byName map[string]models.MainAPI
}

// NewRegistrar creates a registrar sharing fetch and the default extractor set
func NewRegistrar(fetch *util.Fetcher, cfg *config.Config) *Registrar {
	if fetch == nil {
		fetch = util.NewFetcher(nil)
	}
	return &Registrar{
		fetch:  fetch,
		reg:    extractor.NewDefaultRegistry(fetch),
		cfg:    cfg,
		byName: make(map[string]models.MainAPI),
	}
}

// Fetcher is the HTTP client shared by every provider
func (r *Registrar) Fetcher() *util.Fetcher { return r.fetch }

// Extractors is the shared extractor registry
func (r *Registrar) Extractors() *extractor.Registry { return r.reg }

// MainURL returns the configured mirror for a provider, or fallback
func (r *Registrar) MainURL(name, fallback string) string {
	return r.cfg.ProviderURL(name, fallback)
}

// RegisterMainAPI adds api. Names are unique case-insensitively.
func (r *Registrar) RegisterMainAPI(api models.MainAPI) error {
	key := strings.ToLower(api.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[key]; dup {
		return errors.Errorf("provider %s already registered", api.Name())
	}
	r.byName[key] = api
	r.apis = append(r.apis, api)
	return nil
}

// RegisterExtractor makes e available to every provider
func (r *Registrar) RegisterExtractor(e extractor.Extractor) {
	r.reg.Register(e)
}

// APIs returns the registered providers in registration order
func (r *Registrar) APIs() []models.MainAPI {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.MainAPI, len(r.apis))
	copy(out, r.apis)
	return out
}

// API looks up a provider by name
func (r *Registrar) API(name string) (models.MainAPI, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	api, ok := r.byName[strings.ToLower(name)]
	return api, ok
}

// LoadAll loads every enabled plugin. A failing plugin is logged and skipped.
func (r *Registrar) LoadAll(plugins ...Plugin) {
	for _, p := range plugins {
		if !r.cfg.ProviderEnabled(p.Name()) {
			util.Debug("provider disabled", "provider", p.Name())
			continue
		}
		if err := p.Load(r); err != nil {
			util.Warn("failed to load provider", "provider", p.Name(), "error", err)
		}
	}
}
