package extractor

import (
	"context"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/alvarorichard/provedores/internal/models"
	"github.com/alvarorichard/provedores/internal/util"
)

var (
	wurlRe      = regexp.MustCompile(`wurl\s*=\s*["']([^"']+)["']`)
	mediaSrcRe  = regexp.MustCompile(`(?:source|src|file)\s*[=:]\s*["']([^"']+\.(?:mp4|m3u8)[^"']*)["']`)
	mixdropRepl = strings.NewReplacer("mixdrp.to", "mixdrop.co", "mixdrp.co", "mixdrop.co", "mixdrop.to", "mixdrop.co", "mixdrop.sx", "mixdrop.co")
)

// Mixdrop reads MDCore.wurl from the unpacked /e/ page
type Mixdrop struct {
	fetch *util.Fetcher
}

func NewMixdrop(fetch *util.Fetcher) *Mixdrop {
	return &Mixdrop{fetch: fetch}
}

func (m *Mixdrop) Name() string { return "Mixdrop" }

func (m *Mixdrop) Matches(rawURL string) bool {
	host := util.Host(rawURL)
	return strings.Contains(host, "mixdrop.") || strings.Contains(host, "mixdrp.")
}

// normalizeMixdrop points mirrors at mixdrop.co and /f/ pages at the embed
func normalizeMixdrop(rawURL string) string {
	return strings.Replace(mixdropRepl.Replace(rawURL), "/f/", "/e/", 1)
}

func (m *Mixdrop) Extract(ctx context.Context, rawURL, referer string, _ models.SubtitleCallback, links models.LinkCallback) error {
	if util.HostMatches(rawURL, "mixdrp.to", "mixdrp.co", "mixdrop.to", "mixdrop.sx", "mixdrop.co") {
		rawURL = normalizeMixdrop(rawURL)
	}
	resp, err := m.fetch.Get(ctx, rawURL, util.WithReferer(referer))
	if err != nil {
		return errors.Wrap(err, "failed to load mixdrop page")
	}

	page := UnpackAll(resp.Text())
	match := wurlRe.FindStringSubmatch(page)
	if match == nil {
		match = mediaSrcRe.FindStringSubmatch(page)
	}
	if match == nil {
		return errors.Wrap(ErrNoLinks, "mixdrop stream url not found")
	}

	stream := util.ResolveURL(resp.URL, match[1])
	ref := util.Origin(resp.URL) + "/"
	if IsM3U8(stream) {
		M3u8Links(ctx, m.fetch, m.Name(), stream, ref, nil, links)
		return nil
	}
	links(models.ExtractorLink{
		Source:  m.Name(),
		Name:    m.Name(),
		URL:     stream,
		Referer: ref,
		Type:    models.LinkTypeVideo,
	})
	return nil
}
