package models

import "context"

// MainAPI is the surface every provider exposes to the host
type MainAPI interface {
	Name() string
	MainURL() string
	Lang() string
	SupportedTypes() []TvType
	// MainPage lists the sections GetMainPage can render. Empty means no main page.
	MainPage() []MainPageData
	GetMainPage(ctx context.Context, page int, request MainPageData) (*HomePageResponse, error)
	Search(ctx context.Context, query string) ([]SearchResponse, error)
	Load(ctx context.Context, url string) (*LoadResponse, error)
	// LoadLinks resolves the data of a movie or episode into playable links.
	// It returns true when at least one link was emitted.
	LoadLinks(ctx context.Context, data string, subtitles SubtitleCallback, links LinkCallback) (bool, error)
}

// HasMainPage reports whether api renders a main page
func HasMainPage(api MainAPI) bool {
	return len(api.MainPage()) > 0
}

// Supports reports whether api lists content of type t
func Supports(api MainAPI, t TvType) bool {
	for _, st := range api.SupportedTypes() {
		if st == t {
			return true
		}
	}
	return false
}
