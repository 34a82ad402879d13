package extractor

import (
	"context"
	"regexp"

	"github.com/pkg/errors"

	"github.com/alvarorichard/provedores/internal/models"
	"github.com/alvarorichard/provedores/internal/util"
)

var (
	iframeSrcRe  = regexp.MustCompile(`<iframe *(?:[^>]+ )?src=(?:'([^']+)'|"([^"]+)")[^>]*>`)
	moonFileRe   = regexp.MustCompile(`(?s)file:\s*"([^"]+\.m3u8[^"]*)"`)
	filemoonHost = []string{"filemoon.sx", "filemoon.to", "filemoon.in", "moonplayer.lat", "kerapoxy.cc", "bf0skv.org"}
)

// Filemoon reads the HLS master out of the packed player script, following
// the outer iframe first when the embed is wrapped
type Filemoon struct {
	fetch *util.Fetcher
}

func NewFilemoon(fetch *util.Fetcher) *Filemoon {
	return &Filemoon{fetch: fetch}
}

func (f *Filemoon) Name() string { return "Filemoon" }

func (f *Filemoon) Matches(rawURL string) bool {
	return util.HostMatches(rawURL, filemoonHost...)
}

func (f *Filemoon) Extract(ctx context.Context, rawURL, referer string, _ models.SubtitleCallback, links models.LinkCallback) error {
	resp, err := f.fetch.Get(ctx, rawURL, util.WithReferer(referer))
	if err != nil {
		return errors.Wrap(err, "failed to load filemoon page")
	}
	page, pageURL := resp.Text(), resp.URL

	if !DetectPacked(page) {
		if m := iframeSrcRe.FindStringSubmatch(page); m != nil {
			inner := m[1]
			if inner == "" {
				inner = m[2]
			}
			inner = util.ResolveURL(pageURL, inner)
			resp, err = f.fetch.Get(ctx, inner,
				util.WithReferer(pageURL),
				util.WithHeader("Sec-Fetch-Dest", "iframe"),
			)
			if err != nil {
				return errors.Wrap(err, "failed to load filemoon iframe")
			}
			page, pageURL = resp.Text(), resp.URL
		}
	}

	m := moonFileRe.FindStringSubmatch(UnpackAll(page))
	if m == nil {
		return errors.Wrap(ErrNoLinks, "filemoon playlist not found")
	}
	M3u8Links(ctx, f.fetch, f.Name(), util.ResolveURL(pageURL, m[1]), util.Origin(pageURL)+"/", nil, links)
	return nil
}
