// Package models contains the content model shared by every provider
package models

import (
	"fmt"
	"strings"
)

// TvType represents the kind of content a listing points to
type TvType string

const (
	TvTypeMovie      TvType = "movie"
	TvTypeAnimeMovie TvType = "anime_movie"
	TvTypeTvSeries   TvType = "tv_series"
	TvTypeAnime      TvType = "anime"
	TvTypeOVA        TvType = "ova"
	TvTypeLive       TvType = "live"
	TvTypeOthers     TvType = "others"
)

// IsMovie reports whether the type is played from a single data URL
func (t TvType) IsMovie() bool {
	return t == TvTypeMovie || t == TvTypeAnimeMovie
}

// IsSeries reports whether the type carries an episode list
func (t TvType) IsSeries() bool {
	return t == TvTypeTvSeries || t == TvTypeAnime || t == TvTypeOVA
}

// IsLive reports whether the type is a live channel
func (t TvType) IsLive() bool {
	return t == TvTypeLive
}

// DubStatus tells whether a listing is dubbed or subtitled
type DubStatus int

const (
	Subbed DubStatus = iota
	Dubbed
)

func (d DubStatus) String() string {
	if d == Dubbed {
		return "Dublado"
	}
	return "Legendado"
}

// SearchResponse is a single listing returned by search or the main page
type SearchResponse struct {
	Name      string
	URL       string
	APIName   string
	Type      TvType
	PosterURL string
	Year      int
	Quality   Quality
	Dub       DubStatus
}

// GetDisplayName returns a formatted display name with year and dub indicator
func (s *SearchResponse) GetDisplayName() string {
	name := s.Name
	if s.Year > 0 {
		name += fmt.Sprintf(" (%d)", s.Year)
	}
	if s.Dub == Dubbed && !strings.Contains(strings.ToLower(name), "dublado") {
		name += " [Dublado]"
	}
	return name
}

// MainPageData names a main page section and the data used to request it
type MainPageData struct {
	Name string
	Data string
}

// HomePageList is one rendered main page section
type HomePageList struct {
	Name         string
	List         []SearchResponse
	IsHorizontal bool
}

// HomePageResponse is the result of one main page request
type HomePageResponse struct {
	Items   []HomePageList
	HasNext bool
}

// Episode represents a single playable episode of a series
type Episode struct {
	Data        string
	Name        string
	Season      int
	Episode     int
	PosterURL   string
	Description string
}

// GetDisplayName returns "T1:E3 - Name" style labels
func (e *Episode) GetDisplayName() string {
	label := ""
	switch {
	case e.Season > 0 && e.Episode > 0:
		label = fmt.Sprintf("T%d:E%d", e.Season, e.Episode)
	case e.Episode > 0:
		label = fmt.Sprintf("Episódio %d", e.Episode)
	}
	if e.Name == "" {
		return label
	}
	if label == "" {
		return e.Name
	}
	return label + " - " + e.Name
}

// LoadResponse holds the details of a title. Movies and live channels carry
// DataURL, series carry Episodes and optionally DubEpisodes.
type LoadResponse struct {
	Name            string
	URL             string
	APIName         string
	Type            TvType
	PosterURL       string
	Plot            string
	Year            int
	Tags            []string
	Duration        int
	Rating          float64
	DataURL         string
	Episodes        []Episode
	DubEpisodes     []Episode
	Recommendations []SearchResponse
}

// AllEpisodes returns subbed episodes followed by dubbed ones
func (l *LoadResponse) AllEpisodes() []Episode {
	if len(l.DubEpisodes) == 0 {
		return l.Episodes
	}
	all := make([]Episode, 0, len(l.Episodes)+len(l.DubEpisodes))
	all = append(all, l.Episodes...)
	return append(all, l.DubEpisodes...)
}

// GetRatingDisplay returns a formatted rating string
func (l *LoadResponse) GetRatingDisplay() string {
	if l.Rating > 0 {
		return fmt.Sprintf("★ %.1f", l.Rating)
	}
	return ""
}

// GetGenresDisplay returns up to three tags as a comma-separated string
func (l *LoadResponse) GetGenresDisplay() string {
	if len(l.Tags) == 0 {
		return ""
	}
	maxTags := 3
	if len(l.Tags) < maxTags {
		maxTags = len(l.Tags)
	}
	return strings.Join(l.Tags[:maxTags], ", ")
}

// GetRuntimeDisplay returns runtime in human-readable format
func (l *LoadResponse) GetRuntimeDisplay() string {
	if l.Duration <= 0 {
		return ""
	}
	hours := l.Duration / 60
	mins := l.Duration % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

// LinkType describes how a player should open an ExtractorLink
type LinkType string

const (
	LinkTypeVideo LinkType = "video"
	LinkTypeM3U8  LinkType = "m3u8"
	LinkTypeDash  LinkType = "dash"
)

// ExtractorLink is a resolved playable URL
type ExtractorLink struct {
	Source  string
	Name    string
	URL     string
	Referer string
	Quality Quality
	Type    LinkType
	Headers map[string]string
}

// IsM3U8 reports whether the link is an HLS playlist
func (l *ExtractorLink) IsM3U8() bool {
	return l.Type == LinkTypeM3U8
}

// SubtitleFile is an external subtitle track
type SubtitleFile struct {
	Lang string
	URL  string
}

// LinkCallback receives resolved links. It may be called from several goroutines.
type LinkCallback func(ExtractorLink)

// SubtitleCallback receives subtitle tracks. It may be called from several goroutines.
type SubtitleCallback func(SubtitleFile)
