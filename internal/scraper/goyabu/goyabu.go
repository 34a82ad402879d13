// Package goyabu scrapes goyabu.io. Search goes through the WordPress
// admin-ajax endpoint guarded by a nonce; episode players are JW Player setups
// pointing at Blogger or Google Video streams.
package goyabu

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/alvarorichard/provedores/internal/extractor"
	"github.com/alvarorichard/provedores/internal/models"
	"github.com/alvarorichard/provedores/internal/plugin"
	"github.com/alvarorichard/provedores/internal/util"
)

const (
	// Name is the registry key
	Name       = "Goyabu"
	DefaultURL = "https://goyabu.io"

	nonceTTL     = 30 * time.Minute
	cardSelector = "article.boxAN, article.boxEP, .boxAN, .anime-item, .grid-item"
)

var (
	nonceRe       = regexp.MustCompile(`["']?nonce["']?\s*:\s*["']([A-Za-z0-9]+)["']`)
	allEpisodesRe = regexp.MustCompile(`(?s)allEpisodes\s*=\s*(\[.*?\])\s*;`)
	playersDataRe = regexp.MustCompile(`(?s)playersData\s*=\s*(\[.*?\])\s*;`)
)

// Provider scrapes goyabu.io. The admin-ajax nonce is cached between calls.
type Provider struct {
	baseURL    string
	fetch      *util.Fetcher
	extractors *extractor.Registry
	google     *extractor.GoogleVideo
	nonce      *util.TokenCache
}

// New creates a provider; nil arguments get defaults
func New(fetch *util.Fetcher, extractors *extractor.Registry) *Provider {
	if fetch == nil {
		fetch = util.NewFetcher(nil)
	}
	if extractors == nil {
		extractors = extractor.NewDefaultRegistry(fetch)
	}
	return &Provider{
		baseURL:    DefaultURL,
		fetch:      fetch,
		extractors: extractors,
		google:     extractor.NewGoogleVideo(fetch),
		nonce:      util.NewTokenCache(nonceTTL),
	}
}

// Plugin registers Goyabu with a Registrar
type Plugin struct{}

func (Plugin) Name() string { return Name }

func (Plugin) Load(r *plugin.Registrar) error {
	p := New(r.Fetcher(), r.Extractors())
	p.baseURL = r.MainURL(Name, DefaultURL)
	return r.RegisterMainAPI(p)
}

func (p *Provider) Name() string    { return Name }
func (p *Provider) MainURL() string { return p.baseURL }
func (p *Provider) Lang() string    { return "pt-BR" }

func (p *Provider) SupportedTypes() []models.TvType {
	return []models.TvType{models.TvTypeAnime, models.TvTypeAnimeMovie}
}

func (p *Provider) MainPage() []models.MainPageData {
	return []models.MainPageData{
		{Name: "Lançamentos", Data: "/lancamentos"},
		{Name: "Animes Dublados", Data: "/animes-dublados"},
		{Name: "Animes Legendados", Data: "/animes-legendados"},
	}
}

// GetMainPage fetches one page of a home section
func (p *Provider) GetMainPage(ctx context.Context, page int, request models.MainPageData) (*models.HomePageResponse, error) {
	pageURL := p.baseURL + request.Data
	if page > 1 {
		pageURL = fmt.Sprintf("%s/page/%d/", strings.TrimSuffix(pageURL, "/"), page)
	}
	doc, _, err := p.fetch.Document(ctx, pageURL, util.WithReferer(p.baseURL+"/"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", request.Name)
	}
	hasNext := doc.Find(fmt.Sprintf(`a[href*="/page/%d"]`, page+1)).Length() > 0 ||
		doc.Find(".pagination .next, a.next").Length() > 0
	return &models.HomePageResponse{
		Items:   []models.HomePageList{{Name: request.Name, List: p.parseCards(doc)}},
		HasNext: hasNext,
	}, nil
}

func (p *Provider) parseCards(doc *goquery.Document) []models.SearchResponse {
	var out []models.SearchResponse
	seen := make(map[string]bool)
	doc.Find(cardSelector).Each(func(_ int, s *goquery.Selection) {
		link := s.Find("a[href]").First()
		href := util.ResolveURL(p.baseURL, link.AttrOr("href", ""))
		if href == "" || seen[href] {
			return
		}
		name := strings.TrimSpace(s.Find(".title, h3, h2").First().Text())
		if name == "" {
			name = strings.TrimSpace(link.AttrOr("title", ""))
		}
		if name == "" {
			return
		}
		seen[href] = true
		img := s.Find("img").First()
		out = append(out, p.newResult(name, href, img.AttrOr("data-src", img.AttrOr("src", ""))))
	})
	return out
}

func (p *Provider) newResult(name, href, poster string) models.SearchResponse {
	r := models.SearchResponse{
		Name:      name,
		URL:       util.ResolveURL(p.baseURL, href),
		APIName:   Name,
		Type:      models.TvTypeAnime,
		PosterURL: util.ResolveURL(p.baseURL, poster),
		Year:      util.ParseYear(name),
	}
	lower := strings.ToLower(name + " " + href)
	if strings.Contains(lower, "dublado") {
		r.Dub = models.Dubbed
	}
	if strings.Contains(lower, "filme") {
		r.Type = models.TvTypeAnimeMovie
	}
	return r
}

// fetchNonce scrapes the ajax search nonce from the home page
func (p *Provider) fetchNonce(ctx context.Context) (string, time.Duration, error) {
	resp, err := p.fetch.Get(ctx, p.baseURL+"/")
	if err != nil {
		return "", 0, errors.Wrap(err, "failed to load home page")
	}
	nonce := firstGroup(nonceRe, resp.Text())
	if nonce == "" {
		return "", 0, errors.Wrap(util.ErrNotFound, "search nonce not found")
	}
	util.Debug("search nonce refreshed", "provider", Name)
	return nonce, 0, nil
}

// Search posts to admin-ajax.php. A rejected nonce is refreshed once.
func (p *Provider) Search(ctx context.Context, query string) ([]models.SearchResponse, error) {
	q := util.NormalizeQuery(query)
	if q == "" {
		return nil, nil
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		nonce, err := p.nonce.GetOrFetch(ctx, p.fetchNonce)
		if err != nil {
			return nil, errors.Wrap(err, "search failed")
		}
		results, err := p.ajaxSearch(ctx, q, nonce)
		if err == nil {
			return results, nil
		}
		util.Debug("ajax search rejected", "provider", Name, "attempt", attempt+1, "error", err)
		p.nonce.Invalidate()
		lastErr = err
	}
	return nil, errors.Wrap(lastErr, "search failed")
}

func (p *Provider) ajaxSearch(ctx context.Context, query, nonce string) ([]models.SearchResponse, error) {
	form := url.Values{
		"action":  {"ajax_search"},
		"nonce":   {nonce},
		"keyword": {query},
	}
	resp, err := p.fetch.PostForm(ctx, p.baseURL+"/wp-admin/admin-ajax.php", form,
		util.WithReferer(p.baseURL+"/"), util.WithXHR())
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(resp.Body) {
		return nil, errors.Errorf("unexpected search response: %.60s", resp.Text())
	}
	if ok := resp.Get("success"); ok.Exists() && !ok.Bool() {
		return nil, errors.New("search nonce rejected")
	}

	var results []models.SearchResponse
	resp.Get("data").ForEach(func(_, v gjson.Result) bool {
		name := v.Get("title").String()
		href := firstString(v, "url", "link", "permalink")
		if name == "" || href == "" {
			return true
		}
		results = append(results, p.newResult(name, href, firstString(v, "img", "image", "thumb")))
		return true
	})
	return results, nil
}

// Load reads an anime page and its episode list
func (p *Provider) Load(ctx context.Context, rawURL string) (*models.LoadResponse, error) {
	doc, resp, err := p.fetch.Document(ctx, util.ResolveURL(p.baseURL, rawURL), util.WithReferer(p.baseURL+"/"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load anime page")
	}

	title := strings.TrimSpace(doc.Find(".streamer-info h1, h1.title, h1").First().Text())
	if title == "" {
		return nil, errors.Wrap(util.ErrNotFound, "title not found")
	}
	img := doc.Find(".streamer-poster img, .poster img").First()
	load := &models.LoadResponse{
		Name:      title,
		URL:       resp.URL,
		APIName:   Name,
		Type:      models.TvTypeAnime,
		PosterURL: util.ResolveURL(p.baseURL, img.AttrOr("data-src", img.AttrOr("src", ""))),
		Plot:      strings.TrimSpace(doc.Find(".streamer-sinopse, .sinopse, .synopsis").First().Text()),
	}
	doc.Find(".filter-btn, .genres a, .streamer-genres a").Each(func(_ int, s *goquery.Selection) {
		if tag := strings.TrimSpace(s.Text()); tag != "" {
			load.Tags = append(load.Tags, tag)
		}
	})
	doc.Find(".streamer-info-list li, .info li").Each(func(_ int, s *goquery.Selection) {
		if text := s.Text(); strings.Contains(text, "Ano") && load.Year == 0 {
			load.Year = util.ParseYear(text)
		}
	})

	episodes := p.parseEpisodes(resp.Text())
	switch {
	case len(episodes) == 0:
		load.Type = models.TvTypeAnimeMovie
		load.DataURL = resp.URL
	case strings.Contains(strings.ToLower(title), "dublado"):
		load.DubEpisodes = episodes
	default:
		load.Episodes = episodes
	}
	return load, nil
}

// parseEpisodes reads the allEpisodes array the page embeds for its episode grid
func (p *Provider) parseEpisodes(page string) []models.Episode {
	m := allEpisodesRe.FindStringSubmatch(page)
	if m == nil {
		return nil
	}
	var episodes []models.Episode
	index := 0
	gjson.Parse(m[1]).ForEach(func(_, v gjson.Result) bool {
		index++
		href := firstString(v, "link", "url")
		if href == "" {
			if id := v.Get("id").String(); id != "" {
				href = p.baseURL + "/" + id
			}
		}
		if href == "" {
			return true
		}
		num := util.FirstNumber(firstString(v, "episodio", "episode", "ep"), index)
		episodes = append(episodes, models.Episode{
			Data:      util.ResolveURL(p.baseURL, href),
			Name:      firstString(v, "title", "episode_name", "name"),
			Episode:   num,
			PosterURL: util.ResolveURL(p.baseURL, firstString(v, "imagem", "thumb", "image")),
		})
		return true
	})
	sort.SliceStable(episodes, func(i, j int) bool { return episodes[i].Episode < episodes[j].Episode })
	return episodes
}

// LoadLinks collects player URLs from playersData, the player tabs and any JW
// Player setup, then resolves each one by kind
func (p *Provider) LoadLinks(ctx context.Context, data string, subtitles models.SubtitleCallback, links models.LinkCallback) (bool, error) {
	doc, resp, err := p.fetch.Document(ctx, util.ResolveURL(p.baseURL, data), util.WithReferer(p.baseURL+"/"))
	if err != nil {
		return false, errors.Wrap(err, "failed to load episode page")
	}
	page := extractor.UnpackAll(resp.Text())

	type candidate struct{ url, label string }
	var candidates []candidate
	seen := make(map[string]bool)
	add := func(raw, label string) {
		raw = strings.TrimSpace(raw)
		if util.LooksLikeBase64URL(raw) {
			if decoded, err := util.DecodeBase64(raw); err == nil {
				raw = decoded
			}
		}
		raw = util.ResolveURL(resp.URL, raw)
		if raw == "" || seen[raw] {
			return
		}
		seen[raw] = true
		candidates = append(candidates, candidate{url: raw, label: label})
	}

	if m := playersDataRe.FindStringSubmatch(page); m != nil {
		gjson.Parse(m[1]).ForEach(func(_, v gjson.Result) bool {
			add(firstString(v, "url", "src", "file"), firstString(v, "name", "label"))
			return true
		})
	}
	doc.Find(".player-tab[data-url], [data-player-url]").Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("data-url", s.AttrOr("data-player-url", "")), strings.TrimSpace(s.Text()))
	})
	setup := extractor.ParseJWPlayer(page)
	for _, src := range setup.Sources {
		add(src.File, src.Label)
	}
	if token := extractor.FindBloggerToken(page); token != "" {
		add("https://www.blogger.com/video.g?token="+token, "Blogger")
	}
	util.Debug("player candidates", "provider", Name, "count", len(candidates))

	if subtitles != nil {
		for _, t := range setup.Tracks {
			if t.File != "" && (t.Kind == "" || t.Kind == "captions" || t.Kind == "subtitles") {
				subtitles(models.SubtitleFile{Lang: t.Label, URL: util.ResolveURL(resp.URL, t.File)})
			}
		}
	}

	found := false
	for _, c := range candidates {
		ok, err := p.resolve(ctx, c.url, c.label, resp.URL, subtitles, links)
		if err != nil {
			util.Debug("player failed", "provider", Name, "url", c.url, "error", err)
		}
		found = found || ok
	}
	if !found {
		return false, errors.Wrap(extractor.ErrNoLinks, data)
	}
	return true, nil
}

func (p *Provider) resolve(ctx context.Context, rawURL, label, referer string, subtitles models.SubtitleCallback, links models.LinkCallback) (bool, error) {
	switch {
	case util.HostMatches(rawURL, "blogger.com"):
		return p.extractors.Load(ctx, rawURL, referer, subtitles, links)
	case extractor.IsGoogleVideoURL(rawURL):
		final, quality, err := p.google.Resolve(ctx, rawURL, referer)
		if err != nil {
			return false, err
		}
		if quality == models.QualityUnknown {
			quality = models.QualityFromName(label)
		}
		links(models.ExtractorLink{
			Source:  Name,
			Name:    strings.TrimSpace(Name + " " + quality.String()),
			URL:     final,
			Referer: p.baseURL + "/",
			Quality: quality,
			Type:    models.LinkTypeVideo,
		})
		return true, nil
	case extractor.IsM3U8(rawURL):
		extractor.M3u8Links(ctx, p.fetch, strings.TrimSpace(Name+" "+label), rawURL, p.baseURL+"/", nil, links)
		return true, nil
	case extractor.IsMP4(rawURL):
		links(models.ExtractorLink{
			Source:  Name,
			Name:    strings.TrimSpace(Name + " " + label),
			URL:     rawURL,
			Referer: p.baseURL + "/",
			Quality: models.QualityFromName(label),
			Type:    models.LinkTypeVideo,
		})
		return true, nil
	default:
		return p.extractors.Load(ctx, rawURL, referer, subtitles, links)
	}
}

func firstString(v gjson.Result, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(v.Get(k).String()); s != "" {
			return s
		}
	}
	return ""
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}
