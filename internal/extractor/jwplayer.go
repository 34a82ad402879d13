package extractor

import (
	"context"
	"regexp"
	"strings"

	"github.com/titanous/json5"

	"github.com/alvarorichard/provedores/internal/models"
	"github.com/alvarorichard/provedores/internal/util"
)

// JWSource is one entry of a JW Player sources array
type JWSource struct {
	File  string `json:"file"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// JWTrack is a caption or thumbnail track
type JWTrack struct {
	File  string `json:"file"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

// JWSetup is the subset of a jwplayer().setup() call we read
type JWSetup struct {
	Sources []JWSource
	Tracks  []JWTrack
}

var (
	jwSourcesRe = regexp.MustCompile(`(?s)sources\s*:\s*(\[.*?\])\s*[,}]`)
	jwTracksRe  = regexp.MustCompile(`(?s)tracks\s*:\s*(\[.*?\])\s*[,}]`)
	jwFileRe    = regexp.MustCompile(`(?:file|src)\s*:\s*["']([^"']+\.(?:m3u8|mp4)[^"']*)["'](?:\s*,\s*label\s*:\s*["']([^"']*)["'])?`)
)

// ParseJWPlayer reads the sources and tracks of a JW Player setup in script.
// Literals are decoded as JSON5; when that fails bare file: entries are used.
func ParseJWPlayer(script string) JWSetup {
	var setup JWSetup

	for _, m := range jwSourcesRe.FindAllStringSubmatch(script, -1) {
		var srcs []JWSource
		if err := json5.Unmarshal([]byte(m[1]), &srcs); err != nil {
			util.Debug("jwplayer sources are not json5", "error", err)
			continue
		}
		for _, s := range srcs {
			if s.File != "" {
				setup.Sources = append(setup.Sources, s)
			}
		}
	}
	if m := jwTracksRe.FindStringSubmatch(script); m != nil {
		var tracks []JWTrack
		if err := json5.Unmarshal([]byte(m[1]), &tracks); err == nil {
			setup.Tracks = tracks
		}
	}

	if len(setup.Sources) == 0 {
		seen := make(map[string]bool)
		for _, m := range jwFileRe.FindAllStringSubmatch(script, -1) {
			if seen[m[1]] {
				continue
			}
			seen[m[1]] = true
			setup.Sources = append(setup.Sources, JWSource{File: m[1], Label: m[2]})
		}
	}
	return setup
}

// EmitJWPlayer turns a parsed setup into links and subtitles. HLS sources are
// expanded into their variants.
func EmitJWPlayer(ctx context.Context, fetch *util.Fetcher, name string, setup JWSetup, pageURL, referer string, subtitles models.SubtitleCallback, links models.LinkCallback) {
	for _, s := range setup.Sources {
		file := util.ResolveURL(pageURL, s.File)
		if IsM3U8(file) || strings.Contains(strings.ToLower(s.Type), "hls") {
			M3u8Links(ctx, fetch, name, file, referer, nil, links)
			continue
		}
		q := models.QualityFromName(s.Label)
		links(models.ExtractorLink{
			Source:  name,
			Name:    strings.TrimSpace(name + " " + s.Label),
			URL:     file,
			Referer: referer,
			Quality: q,
			Type:    models.LinkTypeVideo,
		})
	}

	if subtitles == nil {
		return
	}
	for _, t := range setup.Tracks {
		kind := strings.ToLower(t.Kind)
		if t.File == "" || (kind != "" && kind != "captions" && kind != "subtitles") {
			continue
		}
		subtitles(models.SubtitleFile{Lang: t.Label, URL: util.ResolveURL(pageURL, t.File)})
	}
}

// IsM3U8 reports whether the URL path names an HLS playlist
func IsM3U8(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	return strings.Contains(lower, ".m3u8")
}

// IsMP4 reports whether the URL path names an MP4 file
func IsMP4(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	return strings.HasSuffix(lower, ".mp4")
}
