package extractor

import (
	"context"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/alvarorichard/provedores/internal/models"
	"github.com/alvarorichard/provedores/internal/util"
)

var bareMediaRe = regexp.MustCompile(`https?:\\?/\\?/[^\s"'<>]+?\.(?:m3u8|mp4)(?:\?[^\s"'<>]*)?`)

// generic scans an unknown player page. Each stage runs only while nothing
// has been found yet; iframes are handed to host extractors but never scanned
// generically again.
func (r *Registry) generic(ctx context.Context, rawURL, referer string, subtitles models.SubtitleCallback, links models.LinkCallback) error {
	resp, err := r.fetch.Get(ctx, rawURL, util.WithReferer(referer))
	if err != nil {
		return errors.Wrap(err, "failed to load player page")
	}
	pageURL := resp.URL
	page := UnpackAll(resp.Text())
	name := util.Host(pageURL)

	counted, count := countLinks(links)
	found := func() bool { return atomic.LoadInt32(count) > 0 }

	if token := FindBloggerToken(page); token != "" {
		if b, ok := r.ByName("Blogger").(*Blogger); ok {
			if err := b.ExtractToken(ctx, token, counted); err != nil {
				util.Debug("blogger token in page failed", "url", pageURL, "error", err)
			}
		}
		if found() {
			return nil
		}
	}

	if setup := ParseJWPlayer(page); len(setup.Sources) > 0 {
		EmitJWPlayer(ctx, r.fetch, name, setup, pageURL, pageURL, subtitles, counted)
		if found() {
			return nil
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Text()))
	if err != nil {
		return errors.Wrap(err, "failed to parse player page")
	}

	doc.Find("video[src], video source[src], source[src]").Each(func(_ int, s *goquery.Selection) {
		src := util.ResolveURL(pageURL, s.AttrOr("src", ""))
		emitMedia(ctx, r.fetch, name, src, s.AttrOr("label", s.AttrOr("size", "")), pageURL, counted)
	})
	if found() {
		return nil
	}

	seen := make(map[string]bool)
	for _, raw := range bareMediaRe.FindAllString(page, -1) {
		media := strings.ReplaceAll(raw, `\/`, "/")
		if seen[media] {
			continue
		}
		seen[media] = true
		emitMedia(ctx, r.fetch, name, media, "", pageURL, counted)
	}
	if found() {
		return nil
	}

	doc.Find("iframe[src], iframe[data-src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := s.AttrOr("src", "")
		if src == "" || src == "about:blank" {
			src = s.AttrOr("data-src", "")
		}
		src = util.ResolveURL(pageURL, src)
		if src == "" || len(r.matching(src)) == 0 {
			return true
		}
		ok, err := r.loadKnown(ctx, src, pageURL, subtitles, counted)
		if err != nil {
			util.Debug("iframe extraction failed", "iframe", src, "error", err)
		}
		return !ok
	})
	if found() {
		return nil
	}
	return errors.Wrap(ErrNoLinks, rawURL)
}

func emitMedia(ctx context.Context, fetch *util.Fetcher, name, mediaURL, label, referer string, links models.LinkCallback) {
	if mediaURL == "" {
		return
	}
	if IsM3U8(mediaURL) {
		M3u8Links(ctx, fetch, name, mediaURL, referer, nil, links)
		return
	}
	if label == "" {
		label = util.LastPathSegment(mediaURL)
	}
	links(models.ExtractorLink{
		Source:  name,
		Name:    name,
		URL:     mediaURL,
		Referer: referer,
		Quality: models.QualityFromName(label),
		Type:    models.LinkTypeVideo,
	})
}
