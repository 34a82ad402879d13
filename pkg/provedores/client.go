// Package provedores provides a public API over the Portuguese streaming
// providers. This package can be used as a library in other Go projects.
package provedores

import (
	"context"
	"strings"

	"github.com/alvarorichard/provedores/internal/config"
	"github.com/alvarorichard/provedores/internal/models"
	"github.com/alvarorichard/provedores/internal/scraper"
)

// Client is the main client for interacting with the providers
type Client struct {
	manager *scraper.Manager
}

// NewClient creates a client with every provider and default settings
func NewClient() *Client {
	return NewClientWithConfig(config.Default())
}

// NewClientWithConfig creates a client using cfg for HTTP tuning, mirror
// overrides and disabled providers
func NewClientWithConfig(cfg *Config) *Client {
	return &Client{manager: scraper.NewManager(cfg)}
}

// NewClientFromFile loads a provedores.toml file. An empty path searches the
// default locations.
func NewClientFromFile(path string) (*Client, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return NewClientWithConfig(cfg), nil
}

// Providers lists the loaded providers
func (c *Client) Providers() []ProviderInfo {
	apis := c.manager.Providers()
	out := make([]ProviderInfo, 0, len(apis))
	for _, api := range apis {
		out = append(out, ProviderInfo{
			Name:        api.Name(),
			URL:         api.MainURL(),
			Lang:        api.Lang(),
			Types:       api.SupportedTypes(),
			HasMainPage: models.HasMainPage(api),
		})
	}
	return out
}

// Extractors names the video hosts the client can resolve, including the ones
// providers register for their own embeds
func (c *Client) Extractors() []string {
	return c.manager.Extractors().Names()
}

// Search queries one provider, or all of them when provider is empty.
// Each result's APIName tells which provider to pass to Load.
func (c *Client) Search(ctx context.Context, query, provider string) ([]SearchResult, error) {
	if provider = strings.TrimSpace(provider); provider != "" {
		return c.manager.Search(ctx, query, &provider)
	}
	return c.manager.Search(ctx, query, nil)
}

// MainPage renders every section of a provider's main page
func (c *Client) MainPage(ctx context.Context, provider string, page int) (*HomePage, error) {
	return c.manager.MainPage(ctx, provider, page)
}

// Load fetches the details of a title found by Search or MainPage
func (c *Client) Load(ctx context.Context, provider, url string) (*Title, error) {
	return c.manager.Load(ctx, provider, url)
}

// Links resolves a movie's DataURL or an episode's Data into playable links,
// best quality first
func (c *Client) Links(ctx context.Context, provider, data string) ([]Link, []Subtitle, error) {
	return c.manager.LoadLinks(ctx, provider, data)
}
