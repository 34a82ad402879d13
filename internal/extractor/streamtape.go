package extractor

import (
	"context"
	"net/url"
	"regexp"

	"github.com/pkg/errors"

	"github.com/alvarorichard/provedores/internal/models"
	"github.com/alvarorichard/provedores/internal/util"
)

var (
	robotLinkRe = regexp.MustCompile(`<div\s*[^>]*?id="(?:robotlink|ideoooolink)"[^>]*?>[^<]*?(/get_video[^<]+?)</div>`)
	stTokenRe   = regexp.MustCompile(`&token=([^&?\s'"]+)`)

	streamtapeHosts = []string{"streamtape.com", "streamtape.net", "streamtape.xyz", "streamtape.to", "shavetape.cash"}
)

// Streamtape builds the get_video URL from the robotlink div and the last
// token written by the page's script
type Streamtape struct {
	fetch *util.Fetcher
}

func NewStreamtape(fetch *util.Fetcher) *Streamtape {
	return &Streamtape{fetch: fetch}
}

func (s *Streamtape) Name() string { return "Streamtape" }

func (s *Streamtape) Matches(rawURL string) bool {
	return util.HostMatches(rawURL, streamtapeHosts...)
}

func (s *Streamtape) Extract(ctx context.Context, rawURL, referer string, _ models.SubtitleCallback, links models.LinkCallback) error {
	resp, err := s.fetch.Get(ctx, rawURL, util.WithReferer(referer))
	if err != nil {
		return errors.Wrap(err, "failed to load streamtape page")
	}
	final, err := streamtapeURL(resp.URL, resp.Text())
	if err != nil {
		return err
	}
	links(models.ExtractorLink{
		Source:  s.Name(),
		Name:    s.Name(),
		URL:     final,
		Referer: util.Origin(resp.URL) + "/",
		Type:    models.LinkTypeVideo,
	})
	return nil
}

func streamtapeURL(pageURL, page string) (string, error) {
	robot := robotLinkRe.FindStringSubmatch(page)
	if robot == nil {
		return "", errors.Wrap(ErrNoLinks, "streamtape robotlink not found")
	}
	tokens := stTokenRe.FindAllStringSubmatch(page, -1)
	if len(tokens) == 0 {
		return "", errors.Wrap(ErrNoLinks, "streamtape token not found")
	}

	u, err := url.Parse(util.Origin(pageURL) + robot[1])
	if err != nil {
		return "", errors.Wrap(err, "invalid streamtape url")
	}
	q := u.Query()
	q.Set("token", tokens[len(tokens)-1][1])
	q.Set("stream", "1")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
