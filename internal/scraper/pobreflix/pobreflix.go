// Package pobreflix scrapes pobreflix movies and series. Its server buttons
// carry the embed URL, sometimes base64 encoded, of a third-party host.
package pobreflix

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/alvarorichard/provedores/internal/extractor"
	"github.com/alvarorichard/provedores/internal/models"
	"github.com/alvarorichard/provedores/internal/plugin"
	"github.com/alvarorichard/provedores/internal/util"
)

const (
	Name       = "Pobreflix"
	DefaultURL = "https://pobreflix.global"

	cardSelector   = ".vbItemImage, .ml-item, article.item"
	serverSelector = ".servidores li[data-url], .server-item[data-url], button[data-url]"
)

// Provider scrapes pobreflix
type Provider struct {
	baseURL    string
	fetch      *util.Fetcher
	extractors *extractor.Registry
}

// New creates a provider; nil arguments get defaults
func New(fetch *util.Fetcher, extractors *extractor.Registry) *Provider {
	if fetch == nil {
		fetch = util.NewFetcher(nil)
	}
	if extractors == nil {
		extractors = extractor.NewDefaultRegistry(fetch)
	}
	return &Provider{baseURL: DefaultURL, fetch: fetch, extractors: extractors}
}

// Plugin registers Pobreflix with a Registrar
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
	return []models.TvType{models.TvTypeMovie, models.TvTypeTvSeries}
}

func (p *Provider) MainPage() []models.MainPageData {
	return []models.MainPageData{
		{Name: "Filmes", Data: "/filmes"},
		{Name: "Séries", Data: "/series"},
		{Name: "Lançamentos", Data: "/lancamentos"},
	}
}

func (p *Provider) GetMainPage(ctx context.Context, page int, request models.MainPageData) (*models.HomePageResponse, error) {
	if page < 1 {
		page = 1
	}
	pageURL := fmt.Sprintf("%s%s/page/%d", p.baseURL, request.Data, page)
	doc, _, err := p.fetch.Document(ctx, pageURL, util.WithReferer(p.baseURL+"/"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", request.Name)
	}
	next := fmt.Sprintf("/page/%d", page+1)
	return &models.HomePageResponse{
		Items:   []models.HomePageList{{Name: request.Name, List: p.parseCards(doc.Selection)}},
		HasNext: doc.Find(`a[href*="`+next+`"]`).Length() > 0,
	}, nil
}

func (p *Provider) Search(ctx context.Context, query string) ([]models.SearchResponse, error) {
	q := util.NormalizeQuery(query)
	if q == "" {
		return nil, nil
	}
	doc, _, err := p.fetch.Document(ctx, p.baseURL+"/?s="+url.QueryEscape(q), util.WithReferer(p.baseURL+"/"))
	if err != nil {
		return nil, errors.Wrap(err, "search failed")
	}
	return p.parseCards(doc.Selection), nil
}

func (p *Provider) parseCards(root *goquery.Selection) []models.SearchResponse {
	var out []models.SearchResponse
	root.Find(cardSelector).Each(func(_ int, s *goquery.Selection) {
		link := s.Find("a[href]").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		img := s.Find("img").First()
		name := strings.TrimSpace(s.Find(".caption .title, .title, h2").First().Text())
		if name == "" {
			name = strings.TrimSpace(link.AttrOr("title", img.AttrOr("alt", "")))
		}
		if name == "" {
			return
		}
		r := models.SearchResponse{
			Name:      name,
			URL:       util.ResolveURL(p.baseURL, href),
			APIName:   Name,
			Type:      models.TvTypeMovie,
			PosterURL: util.ResolveURL(p.baseURL, img.AttrOr("data-src", img.AttrOr("src", ""))),
			Year:      util.ParseYear(s.Find(".year, .y").Text()),
			Quality:   models.QualityFromName(s.Find(".quality, .qualidade").Text()),
		}
		if strings.Contains(href, "/serie") {
			r.Type = models.TvTypeTvSeries
		}
		out = append(out, r)
	})
	return out
}

func (p *Provider) Load(ctx context.Context, rawURL string) (*models.LoadResponse, error) {
	doc, resp, err := p.fetch.Document(ctx, util.ResolveURL(p.baseURL, rawURL), util.WithReferer(p.baseURL+"/"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load title")
	}
	title := strings.TrimSpace(doc.Find(".infos h1, h1.titulo, h1").First().Text())
	if title == "" {
		return nil, errors.Wrap(util.ErrNotFound, "title not found")
	}
	img := doc.Find(".capa img, .poster img").First()
	load := &models.LoadResponse{
		Name:      title,
		URL:       resp.URL,
		APIName:   Name,
		Type:      models.TvTypeMovie,
		PosterURL: util.ResolveURL(p.baseURL, img.AttrOr("data-src", img.AttrOr("src", ""))),
		Plot:      strings.TrimSpace(doc.Find(".sinopse, .description").First().Text()),
		Year:      util.ParseYear(doc.Find(".infos .year, .ano").First().Text()),
		Duration:  util.FirstNumber(doc.Find(".infos .duration, .duracao").Text(), 0),
	}
	doc.Find(".generos a, .genres a").Each(func(_ int, s *goquery.Selection) {
		load.Tags = append(load.Tags, strings.TrimSpace(s.Text()))
	})
	load.Recommendations = p.parseCards(doc.Find(".recomendados, .related"))

	var episodes []models.Episode
	doc.Find("[data-season-number]").Each(func(_ int, season *goquery.Selection) {
		num := util.FirstNumber(season.AttrOr("data-season-number", ""), 1)
		season.Find("li a[href]").Each(func(j int, s *goquery.Selection) {
			episodes = append(episodes, models.Episode{
				Data:    util.ResolveURL(p.baseURL, s.AttrOr("href", "")),
				Name:    strings.TrimSpace(s.Find(".titulo, .title").Text()),
				Season:  num,
				Episode: util.FirstNumber(s.AttrOr("data-episode", s.Find(".numero, .num").Text()), j+1),
			})
		})
	})
	if len(episodes) == 0 {
		load.DataURL = resp.URL
		return load, nil
	}
	sort.SliceStable(episodes, func(i, j int) bool {
		if episodes[i].Season != episodes[j].Season {
			return episodes[i].Season < episodes[j].Season
		}
		return episodes[i].Episode < episodes[j].Episode
	})
	load.Type = models.TvTypeTvSeries
	load.Episodes = episodes
	return load, nil
}

// LoadLinks decodes every server button and hands the embed to the registry
func (p *Provider) LoadLinks(ctx context.Context, data string, subtitles models.SubtitleCallback, links models.LinkCallback) (bool, error) {
	doc, resp, err := p.fetch.Document(ctx, util.ResolveURL(p.baseURL, data), util.WithReferer(p.baseURL+"/"))
	if err != nil {
		return false, errors.Wrap(err, "failed to load player page")
	}

	var embeds []string
	seen := make(map[string]bool)
	doc.Find(serverSelector).Each(func(_ int, s *goquery.Selection) {
		if embed := decodeServer(resp.URL, s.AttrOr("data-url", "")); embed != "" && !seen[embed] {
			seen[embed] = true
			embeds = append(embeds, embed)
		}
	})
	if src, ok := doc.Find("iframe#player, .player iframe").First().Attr("src"); ok {
		if embed := util.ResolveURL(resp.URL, src); embed != "" && !seen[embed] {
			embeds = append(embeds, embed)
		}
	}
	util.Debug("servers", "provider", Name, "count", len(embeds))

	found := false
	for _, embed := range embeds {
		ok, err := p.extractors.Load(ctx, embed, resp.URL, subtitles, links)
		if err != nil {
			util.Debug("server failed", "provider", Name, "url", embed, "error", err)
		}
		found = found || ok
	}
	if !found {
		return false, errors.Wrap(extractor.ErrNoLinks, data)
	}
	return true, nil
}

// decodeServer accepts plain, protocol-relative or base64 encoded embed URLs
func decodeServer(pageURL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "/") || util.LooksLikeBase64URL(raw) {
		if decoded, err := util.DecodeBase64(raw); err == nil && strings.Contains(decoded, "/") {
			raw = strings.TrimSpace(decoded)
		}
	}
	return util.ResolveURL(pageURL, raw)
}
