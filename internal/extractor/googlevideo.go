package extractor

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/alvarorichard/provedores/internal/models"
	"github.com/alvarorichard/provedores/internal/util"
)

var itagQualities = map[int]models.Quality{
	5:  models.QualityP240,
	18: models.QualityP360,
	43: models.QualityP360,
	59: models.QualityP480,
	22: models.QualityP720,
	37: models.QualityP1080,
}

// ItagQuality maps a Google Video itag to its resolution
func ItagQuality(itag int) models.Quality {
	return itagQualities[itag]
}

// ItagFromURL reads the itag query parameter, 0 when absent
func ItagFromURL(rawURL string) int {
	itag, err := strconv.Atoi(util.QueryParam(rawURL, "itag"))
	if err != nil {
		return 0
	}
	return itag
}

// SignedURLExpiry reads the expire parameter of a signed videoplayback URL
func SignedURLExpiry(rawURL string) (time.Time, bool) {
	secs, err := strconv.ParseInt(util.QueryParam(rawURL, "expire"), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}, false
	}
	return time.Unix(secs, 0), true
}

// IsGoogleVideoURL reports whether rawURL points at Google's video CDN or one of its redirectors
func IsGoogleVideoURL(rawURL string) bool {
	return util.HostMatches(rawURL, "googlevideo.com", "googleusercontent.com") ||
		strings.Contains(rawURL, "/videoplayback")
}

// GoogleVideo resolves googleusercontent redirectors and signed
// googlevideo.com/videoplayback URLs
type GoogleVideo struct {
	fetch *util.Fetcher
}

// NewGoogleVideo creates the extractor
func NewGoogleVideo(fetch *util.Fetcher) *GoogleVideo {
	return &GoogleVideo{fetch: fetch}
}

func (g *GoogleVideo) Name() string { return "GoogleVideo" }

func (g *GoogleVideo) Matches(rawURL string) bool {
	return IsGoogleVideoURL(rawURL)
}

// Resolve follows redirects until the signed videoplayback URL and returns it
// with the quality derived from its itag
func (g *GoogleVideo) Resolve(ctx context.Context, rawURL, referer string) (string, models.Quality, error) {
	final := rawURL
	if !strings.Contains(rawURL, "/videoplayback") {
		resp, err := g.fetch.Head(ctx, rawURL, util.WithReferer(referer))
		if err != nil {
			return "", models.QualityUnknown, errors.Wrap(err, "failed to follow google video redirect")
		}
		final = resp.URL
	}

	if exp, ok := SignedURLExpiry(final); ok {
		util.Debug("google video url", "itag", ItagFromURL(final), "expires", exp.Format(time.RFC3339))
		if time.Now().After(exp) {
			return "", models.QualityUnknown, errors.New("signed google video url already expired")
		}
	}
	return final, ItagQuality(ItagFromURL(final)), nil
}

func (g *GoogleVideo) Extract(ctx context.Context, rawURL, referer string, _ models.SubtitleCallback, links models.LinkCallback) error {
	final, quality, err := g.Resolve(ctx, rawURL, referer)
	if err != nil {
		return err
	}
	links(models.ExtractorLink{
		Source:  g.Name(),
		Name:    g.Name() + " " + quality.String(),
		URL:     final,
		Referer: referer,
		Quality: quality,
		Type:    models.LinkTypeVideo,
	})
	return nil
}
