// Package reidoscanais scrapes the live channels of reidoscanais.io.
//
// Channel pages embed a player whose markup is hidden behind a base64+offset
// cipher. Streams need a session token from /api/token, kept in the module's
// token cache until it expires.
package reidoscanais

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/alvarorichard/provedores/internal/extractor"
	"github.com/alvarorichard/provedores/internal/models"
	"github.com/alvarorichard/provedores/internal/plugin"
	"github.com/alvarorichard/provedores/internal/util"
)

const (
	// Name is the registry key
	Name       = "ReiDosCanais"
	DefaultURL = "https://reidoscanais.io"

	defaultTokenTTL = 10 * time.Minute
	channelSelector = ".channel-card, .card-channel, article.channel, .channels-grid a"
)

var streamRe = regexp.MustCompile(`(?:source|file|src)\s*[:=]\s*["']([^"']+\.m3u8[^"']*)["']`)

// Provider lists and plays the site's live channels
type Provider struct {
	baseURL string
	fetch   *util.Fetcher
	embed   *Embed
}

// New creates a provider and its embed extractor; a nil fetcher gets a default one
func New(fetch *util.Fetcher) *Provider {
	if fetch == nil {
		fetch = util.NewFetcher(nil)
	}
	p := &Provider{baseURL: DefaultURL, fetch: fetch}
	p.embed = NewEmbed(fetch, func() string { return p.baseURL })
	return p
}

// Plugin registers the provider and its Embed extractor
type Plugin struct{}

func (Plugin) Name() string { return Name }

func (Plugin) Load(r *plugin.Registrar) error {
	p := New(r.Fetcher())
	p.baseURL = r.MainURL(Name, DefaultURL)
	if err := r.RegisterMainAPI(p); err != nil {
		return err
	}
	r.RegisterExtractor(p.embed)
	return nil
}

func (p *Provider) Name() string    { return Name }
func (p *Provider) MainURL() string { return p.baseURL }
func (p *Provider) Lang() string    { return "pt-BR" }

// SupportedTypes reports live channels only
func (p *Provider) SupportedTypes() []models.TvType {
	return []models.TvType{models.TvTypeLive}
}

func (p *Provider) MainPage() []models.MainPageData {
	return []models.MainPageData{
		{Name: "Todos os Canais", Data: "/"},
		{Name: "Esportes", Data: "/categoria/esportes"},
		{Name: "Filmes e Séries", Data: "/categoria/filmes-e-series"},
		{Name: "Notícias", Data: "/categoria/noticias"},
		{Name: "Infantil", Data: "/categoria/infantil"},
		{Name: "Abertos", Data: "/categoria/abertos"},
	}
}

// GetMainPage lists one channel category. Categories are a single page.
func (p *Provider) GetMainPage(ctx context.Context, _ int, request models.MainPageData) (*models.HomePageResponse, error) {
	channels, err := p.channels(ctx, request.Data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", request.Name)
	}
	return &models.HomePageResponse{
		Items: []models.HomePageList{{Name: request.Name, List: channels, IsHorizontal: true}},
	}, nil
}

func (p *Provider) channels(ctx context.Context, path string) ([]models.SearchResponse, error) {
	doc, _, err := p.fetch.Document(ctx, util.ResolveURL(p.baseURL, path), util.WithReferer(p.baseURL+"/"))
	if err != nil {
		return nil, err
	}
	var out []models.SearchResponse
	seen := make(map[string]bool)
	doc.Find(channelSelector).Each(func(_ int, s *goquery.Selection) {
		link := s
		if goquery.NodeName(s) != "a" {
			link = s.Find("a[href]").First()
		}
		href := util.ResolveURL(p.baseURL, link.AttrOr("href", ""))
		if href == "" || seen[href] {
			return
		}
		img := s.Find("img").First()
		name := strings.TrimSpace(s.Find("h3, .title, .channel-name").First().Text())
		if name == "" {
			name = strings.TrimSpace(img.AttrOr("alt", link.AttrOr("title", "")))
		}
		if name == "" {
			return
		}
		seen[href] = true
		out = append(out, models.SearchResponse{
			Name:      name,
			URL:       href,
			APIName:   Name,
			Type:      models.TvTypeLive,
			PosterURL: util.ResolveURL(p.baseURL, img.AttrOr("data-src", img.AttrOr("src", ""))),
		})
	})
	return out, nil
}

// Search filters the full channel list by name, ignoring case and accents
func (p *Provider) Search(ctx context.Context, query string) ([]models.SearchResponse, error) {
	q := util.FoldAccents(util.NormalizeQuery(query))
	if q == "" {
		return nil, nil
	}
	all, err := p.channels(ctx, "/")
	if err != nil {
		return nil, errors.Wrap(err, "search failed")
	}
	var results []models.SearchResponse
	for _, c := range all {
		if strings.Contains(util.FoldAccents(c.Name), q) {
			results = append(results, c)
		}
	}
	return results, nil
}

// Load reads a channel page. The channel page itself is the data handed to LoadLinks.
func (p *Provider) Load(ctx context.Context, rawURL string) (*models.LoadResponse, error) {
	doc, resp, err := p.fetch.Document(ctx, util.ResolveURL(p.baseURL, rawURL), util.WithReferer(p.baseURL+"/"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load channel")
	}
	name := strings.TrimSpace(doc.Find(".channel-info h1, h1").First().Text())
	if name == "" {
		name = strings.TrimSpace(strings.Split(doc.Find("title").Text(), "|")[0])
	}
	if name == "" {
		return nil, errors.Wrap(util.ErrNotFound, "channel name not found")
	}
	img := doc.Find(".channel-logo img, .channel-info img").First()
	load := &models.LoadResponse{
		Name:      name,
		URL:       resp.URL,
		APIName:   Name,
		Type:      models.TvTypeLive,
		PosterURL: util.ResolveURL(p.baseURL, img.AttrOr("src", "")),
		Plot:      strings.TrimSpace(doc.Find(".channel-description, .channel-info p").First().Text()),
		DataURL:   resp.URL,
	}
	doc.Find(".channel-category a, .categories a").Each(func(_ int, s *goquery.Selection) {
		load.Tags = append(load.Tags, strings.TrimSpace(s.Text()))
	})
	return load, nil
}

// LoadLinks opens the channel's player iframe and decodes it
func (p *Provider) LoadLinks(ctx context.Context, data string, subtitles models.SubtitleCallback, links models.LinkCallback) (bool, error) {
	pageURL := util.ResolveURL(p.baseURL, data)
	doc, resp, err := p.fetch.Document(ctx, pageURL, util.WithReferer(p.baseURL+"/"))
	if err != nil {
		return false, errors.Wrap(err, "failed to load channel page")
	}

	if _, err := DecodeCipher(resp.Text()); err == nil {
		if err := p.embed.emit(ctx, resp, p.baseURL+"/", links); err != nil {
			return false, err
		}
		return true, nil
	}

	var embeds []string
	doc.Find("iframe#player, iframe[src*='embed'], .player iframe, iframe").Each(func(_ int, s *goquery.Selection) {
		if src := util.ResolveURL(resp.URL, s.AttrOr("src", s.AttrOr("data-src", ""))); src != "" && src != "about:blank" {
			embeds = append(embeds, src)
		}
	})
	for _, embed := range dedupe(embeds) {
		err := p.embed.Extract(ctx, embed, resp.URL, subtitles, links)
		if err == nil {
			return true, nil
		}
		util.Debug("embed failed", "provider", Name, "url", embed, "error", err)
	}
	return false, errors.Wrap(extractor.ErrNoLinks, data)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Embed resolves the ciphered player pages of the site
type Embed struct {
	fetch   *util.Fetcher
	baseURL func() string
	token   *util.TokenCache
}

// NewEmbed creates the extractor; baseURL yields the site root that serves /api/token
func NewEmbed(fetch *util.Fetcher, baseURL func() string) *Embed {
	return &Embed{fetch: fetch, baseURL: baseURL, token: util.NewTokenCache(defaultTokenTTL)}
}

func (e *Embed) Name() string { return Name }

// Matches accepts the site's own hosts and its configured mirror
func (e *Embed) Matches(rawURL string) bool {
	host := util.Host(rawURL)
	return strings.Contains(host, "reidoscanais") || strings.Contains(host, "rdcanais") ||
		util.HostMatches(rawURL, util.Host(e.baseURL()))
}

// Extract decodes the embed page and emits one link per stream variant
func (e *Embed) Extract(ctx context.Context, rawURL, referer string, _ models.SubtitleCallback, links models.LinkCallback) error {
	resp, err := e.fetch.Get(ctx, rawURL, util.WithReferer(referer))
	if err != nil {
		return errors.Wrap(err, "failed to load embed page")
	}
	return e.emit(ctx, resp, rawURL, links)
}

func (e *Embed) emit(ctx context.Context, resp *util.Response, referer string, links models.LinkCallback) error {
	page := resp.Text()
	if decoded, err := DecodeCipher(page); err == nil {
		page = decoded
	} else {
		util.Debug("embed is not ciphered", "provider", Name, "url", resp.URL)
	}

	m := streamRe.FindStringSubmatch(page)
	if m == nil {
		return errors.Wrap(extractor.ErrNoLinks, "stream url not found in embed")
	}
	stream := util.ResolveURL(resp.URL, m[1])

	origin := util.Origin(resp.URL)
	headers := map[string]string{"Origin": origin}

	token := e.session(ctx, resp.URL)
	found, err := e.variants(ctx, stream, token, origin+"/", headers)
	if err != nil && token != "" {
		util.Debug("stream rejected the session token", "provider", Name, "url", stream, "error", err)
		e.token.Invalidate()
		if fresh := e.session(ctx, resp.URL); fresh != "" && fresh != token {
			if retried, err := e.variants(ctx, stream, fresh, origin+"/", headers); err == nil {
				found = retried
			}
		}
	}
	for _, l := range found {
		links(l)
	}
	return nil
}

// session returns the cached stream token, or "" when /api/token is unavailable
func (e *Embed) session(ctx context.Context, referer string) string {
	token, err := e.token.GetOrFetch(ctx, func(ctx context.Context) (string, time.Duration, error) {
		return e.fetchToken(ctx, referer)
	})
	if err != nil {
		util.Debug("session token unavailable", "provider", Name, "error", err)
		return ""
	}
	return token
}

// variants collects the playlist links for one token; variant URIs are
// relative, so the token has to follow every one of them
func (e *Embed) variants(ctx context.Context, stream, token, referer string, headers map[string]string) ([]models.ExtractorLink, error) {
	var found []models.ExtractorLink
	err := extractor.M3u8Links(ctx, e.fetch, Name, withToken(stream, token), referer, headers, func(l models.ExtractorLink) {
		l.URL = withToken(l.URL, token)
		found = append(found, l)
	})
	return found, err
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// fetchToken asks /api/token for a stream session; expires_in is in seconds
func (e *Embed) fetchToken(ctx context.Context, referer string) (string, time.Duration, error) {
	resp, err := e.fetch.Get(ctx, strings.TrimSuffix(e.baseURL(), "/")+"/api/token",
		util.WithReferer(referer), util.WithXHR())
	if err != nil {
		return "", 0, errors.Wrap(err, "token request failed")
	}
	var body tokenResponse
	if err := resp.JSON(&body); err != nil {
		return "", 0, err
	}
	if body.Token == "" {
		return "", 0, errors.New("token response without token")
	}
	ttl := time.Duration(body.ExpiresIn) * time.Second
	util.Debug("session token refreshed", "provider", Name, "ttl", ttl)
	return body.Token, ttl, nil
}

func withToken(stream, token string) string {
	if token == "" {
		return stream
	}
	u, err := url.Parse(stream)
	if err != nil {
		return stream
	}
	q := u.Query()
	if q.Get("token") != "" {
		return stream
	}
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
