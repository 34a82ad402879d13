package extractor

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"

	"github.com/alvarorichard/provedores/internal/models"
	"github.com/alvarorichard/provedores/internal/util"
)

// M3u8Links emits one link per variant of a master playlist, or the playlist
// itself when it is a media playlist or cannot be read. The fetch error is
// returned after the fallback link has been emitted.
func M3u8Links(ctx context.Context, fetch *util.Fetcher, name, playlistURL, referer string, headers map[string]string, links models.LinkCallback) error {
	master := models.ExtractorLink{
		Source:  name,
		Name:    name + " HLS",
		URL:     playlistURL,
		Referer: referer,
		Quality: models.QualityUnknown,
		Type:    models.LinkTypeM3U8,
		Headers: headers,
	}

	opts := []util.RequestOption{util.WithReferer(referer), util.WithHeaders(headers)}
	resp, err := fetch.Get(ctx, playlistURL, opts...)
	if err != nil {
		util.Debug("failed to fetch playlist", "url", playlistURL, "error", err)
		links(master)
		return err
	}

	playlist, listType, err := m3u8.DecodeFrom(bytes.NewReader(resp.Body), true)
	if err != nil || listType != m3u8.MASTER {
		if err != nil {
			util.Debug("failed to decode playlist", "url", playlistURL, "error", err)
		}
		links(master)
		return nil
	}

	variants := playlist.(*m3u8.MasterPlaylist).Variants
	emitted := 0
	for _, v := range variants {
		if v == nil || v.URI == "" {
			continue
		}
		q := resolutionQuality(v.Resolution)
		label := q.String()
		if q == models.QualityUnknown && v.Bandwidth > 0 {
			label = strconv.FormatUint(uint64(v.Bandwidth/1000), 10) + "kbps"
		}
		links(models.ExtractorLink{
			Source:  name,
			Name:    name + " " + label,
			URL:     util.ResolveURL(resp.URL, v.URI),
			Referer: referer,
			Quality: q,
			Type:    models.LinkTypeM3U8,
			Headers: headers,
		})
		emitted++
	}
	if emitted == 0 {
		links(master)
	}
	return nil
}

// resolutionQuality buckets the height of a WIDTHxHEIGHT resolution
func resolutionQuality(res string) models.Quality {
	_, h, ok := strings.Cut(strings.ToLower(res), "x")
	if !ok {
		return models.QualityUnknown
	}
	return models.QualityFromName(strings.TrimSpace(h))
}
