package provedores

import (
	"github.com/alvarorichard/provedores/internal/config"
	"github.com/alvarorichard/provedores/internal/models"
)

// Content model re-exported for library users
type (
	Config          = config.Config
	ProviderConfig  = config.ProviderConfig
	TvType          = models.TvType
	Quality         = models.Quality
	SearchResult    = models.SearchResponse
	HomePage        = models.HomePageResponse
	HomePageSection = models.HomePageList
	Title           = models.LoadResponse
	Episode         = models.Episode
	Link            = models.ExtractorLink
	Subtitle        = models.SubtitleFile
)

const (
	TypeMovie      = models.TvTypeMovie
	TypeAnimeMovie = models.TvTypeAnimeMovie
	TypeTvSeries   = models.TvTypeTvSeries
	TypeAnime      = models.TvTypeAnime
	TypeLive       = models.TvTypeLive
)

// ProviderInfo describes one loaded provider
type ProviderInfo struct {
	Name        string
	URL         string
	Lang        string
	Types       []TvType
	HasMainPage bool
}

// DefaultConfig returns the settings used when no config file is present
func DefaultConfig() *Config {
	return config.Default()
}
