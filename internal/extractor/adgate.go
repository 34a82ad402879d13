package extractor

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/alvarorichard/provedores/internal/util"
)

// ErrAdGateLoop is returned when an intermediate page points back to one already visited
var ErrAdGateLoop = errors.New("ad gate redirect loop")

var (
	metaRefreshRe = regexp.MustCompile(`(?i)<meta[^>]+http-equiv=["']?refresh["']?[^>]*content=["']?\s*\d*\s*;\s*url=['"]?([^"'>\s]+)`)
	locationRe    = regexp.MustCompile(`(?:window\.|document\.)?location(?:\.href)?\s*=\s*["']([^"']+)["']`)
	replaceRe     = regexp.MustCompile(`location\.(?:replace|assign)\(\s*["']([^"']+)["']\s*\)`)
	atobRe        = regexp.MustCompile(`atob\(\s*["'](aHR0c[A-Za-z0-9+/=_\-]+)["']\s*\)`)

	gateParams  = []string{"url", "link", "id", "r", "u"}
	gateAnchors = "a#link, a#btn-redirect, a#skip, a.redirect, a.btn-continue"
)

// AdGate walks the interstitial pages some hosts put in front of the player.
// Cookies set along the way persist in the fetcher's jar.
type AdGate struct {
	fetch   *util.Fetcher
	MaxHops int
}

// NewAdGate creates a follower allowing six hops
func NewAdGate(fetch *util.Fetcher) *AdGate {
	return &AdGate{fetch: fetch, MaxHops: 6}
}

// Follow fetches start and keeps following the next hop until done accepts a
// response. Each hop is requested with the previous page as Referer.
func (g *AdGate) Follow(ctx context.Context, start, referer string, done func(*util.Response) bool) (*util.Response, error) {
	visited := make(map[string]bool)
	current, ref := start, referer

	for hop := 0; hop <= g.MaxHops; hop++ {
		if visited[current] {
			return nil, errors.Wrap(ErrAdGateLoop, current)
		}
		visited[current] = true

		resp, err := g.fetch.Get(ctx, current, util.WithReferer(ref))
		if err != nil {
			return nil, err
		}
		if done(resp) {
			return resp, nil
		}
		visited[resp.URL] = true

		next := NextHop(resp.URL, resp.Text())
		if next == "" {
			return nil, errors.Wrapf(ErrNoLinks, "ad gate dead end at %s", resp.URL)
		}
		util.Debug("ad gate hop", "hop", hop+1, "from", resp.URL, "to", next)
		ref, current = resp.URL, next
	}
	return nil, errors.Errorf("ad gate exceeded %d hops", g.MaxHops)
}

// NextHop finds where an intermediate page sends the browser, or "" when it
// has no recognizable redirect
func NextHop(current, body string) string {
	for _, key := range gateParams {
		v := util.QueryParam(current, key)
		if v == "" {
			continue
		}
		if util.LooksLikeBase64URL(v) {
			if decoded, err := util.DecodeBase64(v); err == nil {
				return strings.TrimSpace(decoded)
			}
		}
		if u, err := url.Parse(v); err == nil && u.IsAbs() {
			return v
		}
	}

	for _, re := range []*regexp.Regexp{metaRefreshRe, replaceRe, locationRe} {
		if m := re.FindStringSubmatch(body); m != nil {
			return util.ResolveURL(current, m[1])
		}
	}
	if m := atobRe.FindStringSubmatch(body); m != nil {
		if decoded, err := util.DecodeBase64(m[1]); err == nil {
			return strings.TrimSpace(decoded)
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	if href, ok := doc.Find(gateAnchors).First().Attr("href"); ok && href != "" && !strings.HasPrefix(href, "#") {
		return util.ResolveURL(current, href)
	}
	return ""
}
