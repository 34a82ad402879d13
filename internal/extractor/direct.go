package extractor

import (
	"context"

	"github.com/alvarorichard/provedores/internal/models"
	"github.com/alvarorichard/provedores/internal/util"
)

// Direct passes through URLs that already point at a media file
type Direct struct {
	fetch *util.Fetcher
}

func NewDirect(fetch *util.Fetcher) *Direct {
	return &Direct{fetch: fetch}
}

func (d *Direct) Name() string { return "Direct" }

func (d *Direct) Matches(rawURL string) bool {
	return IsMP4(rawURL) || IsM3U8(rawURL)
}

func (d *Direct) Extract(ctx context.Context, rawURL, referer string, _ models.SubtitleCallback, links models.LinkCallback) error {
	if IsM3U8(rawURL) {
		M3u8Links(ctx, d.fetch, d.Name(), rawURL, referer, nil, links)
		return nil
	}
	links(models.ExtractorLink{
		Source:  d.Name(),
		Name:    d.Name(),
		URL:     rawURL,
		Referer: referer,
		Quality: models.QualityFromName(util.LastPathSegment(rawURL)),
		Type:    models.LinkTypeVideo,
	})
	return nil
}
