// Package vizer scrapes vizer.tv. Listings are HTML; seasons, episodes and
// mirrors come from the includes/ajax/publicFunctions.php JSON endpoint.
package vizer

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/alvarorichard/provedores/internal/extractor"
	"github.com/alvarorichard/provedores/internal/models"
	"github.com/alvarorichard/provedores/internal/plugin"
	"github.com/alvarorichard/provedores/internal/util"
)

const (
	// Name is the registry key; DefaultURL is used when the config names no mirror
	Name       = "Vizer"
	DefaultURL = "https://vizer.tv"

	publicFunctions = "/includes/ajax/publicFunctions.php"
	episodePrefix   = "episode:"
)

// Provider scrapes vizer.tv movies and series
type Provider struct {
	baseURL    string
	fetch      *util.Fetcher
	extractors *extractor.Registry
}

// New creates a provider on DefaultURL. A nil fetcher gets a default one and
// a nil registry the built-in extractors.
func New(fetch *util.Fetcher, extractors *extractor.Registry) *Provider {
	if fetch == nil {
		fetch = util.NewFetcher(nil)
	}
	if extractors == nil {
		extractors = extractor.NewDefaultRegistry(fetch)
	}
	return &Provider{baseURL: DefaultURL, fetch: fetch, extractors: extractors}
}

// Plugin registers Vizer with a Registrar
type Plugin struct{}

func (Plugin) Name() string { return Name }

// Load applies the configured mirror and registers the provider
func (Plugin) Load(r *plugin.Registrar) error {
	p := New(r.Fetcher(), r.Extractors())
	p.baseURL = r.MainURL(Name, DefaultURL)
	return r.RegisterMainAPI(p)
}

func (p *Provider) Name() string    { return Name }
func (p *Provider) MainURL() string { return p.baseURL }
func (p *Provider) Lang() string    { return "pt-BR" }

// SupportedTypes reports movies and series
func (p *Provider) SupportedTypes() []models.TvType {
	return []models.TvType{models.TvTypeMovie, models.TvTypeTvSeries, models.TvTypeAnime}
}

// MainPage lists the home sections GetMainPage can fetch
func (p *Provider) MainPage() []models.MainPageData {
	return []models.MainPageData{
		{Name: "Filmes", Data: "/filmes/online"},
		{Name: "Séries", Data: "/series/online"},
		{Name: "Animes", Data: "/animes/online"},
	}
}

// GetMainPage fetches one page of a home section
func (p *Provider) GetMainPage(ctx context.Context, page int, request models.MainPageData) (*models.HomePageResponse, error) {
	if page < 1 {
		page = 1
	}
	pageURL := fmt.Sprintf("%s%s?page=%d", p.baseURL, request.Data, page)
	doc, _, err := p.fetch.Document(ctx, pageURL, util.WithReferer(p.baseURL+"/"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", request.Name)
	}
	return &models.HomePageResponse{
		Items:   []models.HomePageList{{Name: request.Name, List: p.parseCards(doc)}},
		HasNext: doc.Find(fmt.Sprintf(`a[href*="page=%d"]`, page+1)).Length() > 0,
	}, nil
}

func (p *Provider) Search(ctx context.Context, query string) ([]models.SearchResponse, error) {
	q := util.NormalizeQuery(query)
	if q == "" {
		return nil, nil
	}
	doc, _, err := p.fetch.Document(ctx, p.baseURL+"/pesquisar/"+url.PathEscape(q), util.WithReferer(p.baseURL+"/"))
	if err != nil {
		return nil, errors.Wrap(err, "search failed")
	}
	return p.parseCards(doc), nil
}

func (p *Provider) parseCards(doc *goquery.Document) []models.SearchResponse {
	var out []models.SearchResponse
	doc.Find("a.gPoster").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		name := strings.TrimSpace(s.Find(".i span, .infos span").First().Text())
		if name == "" {
			name = strings.TrimSpace(s.AttrOr("title", ""))
		}
		if !ok || name == "" {
			return
		}
		img := s.Find("img").First()
		out = append(out, models.SearchResponse{
			Name:      name,
			URL:       util.ResolveURL(p.baseURL, href),
			APIName:   Name,
			Type:      typeOf(href),
			PosterURL: util.ResolveURL(p.baseURL, img.AttrOr("data-src", img.AttrOr("src", ""))),
			Year:      util.ParseYear(s.Find(".y").Text()),
		})
	})
	return out
}

func typeOf(href string) models.TvType {
	switch {
	case strings.Contains(href, "/anime/"):
		return models.TvTypeAnime
	case strings.Contains(href, "/serie/"):
		return models.TvTypeTvSeries
	default:
		return models.TvTypeMovie
	}
}

// public calls publicFunctions.php with one form field
func (p *Provider) public(ctx context.Context, key, value, referer string) (*util.Response, error) {
	resp, err := p.fetch.PostForm(ctx, p.baseURL+publicFunctions, url.Values{key: {value}},
		util.WithReferer(referer), util.WithXHR())
	if err != nil {
		return nil, errors.Wrapf(err, "%s request failed", key)
	}
	if !gjson.ValidBytes(resp.Body) {
		return nil, errors.Errorf("%s returned invalid json", key)
	}
	return resp, nil
}

// Load reads a title page. Movies carry their data URL; series fetch every
// season's episodes and return them sorted.
func (p *Provider) Load(ctx context.Context, rawURL string) (*models.LoadResponse, error) {
	doc, resp, err := p.fetch.Document(ctx, util.ResolveURL(p.baseURL, rawURL), util.WithReferer(p.baseURL+"/"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load title")
	}
	title := strings.TrimSpace(doc.Find(".infos h2, h2.tit, h1").First().Text())
	if title == "" {
		return nil, errors.Wrap(util.ErrNotFound, "title not found")
	}
	img := doc.Find(".poster img, .bg img").First()
	load := &models.LoadResponse{
		Name:      title,
		URL:       resp.URL,
		APIName:   Name,
		Type:      typeOf(resp.URL),
		PosterURL: util.ResolveURL(p.baseURL, img.AttrOr("data-src", img.AttrOr("src", ""))),
		Plot:      strings.TrimSpace(doc.Find(".desc, .infos .sinopse").First().Text()),
		Year:      util.ParseYear(doc.Find(".year, .infos .y").First().Text()),
		Duration:  util.FirstNumber(doc.Find(".tm").First().Text(), 0),
	}
	doc.Find(".gen a, .genres a").Each(func(_ int, s *goquery.Selection) {
		load.Tags = append(load.Tags, strings.TrimSpace(s.Text()))
	})
	if rating := strings.TrimSpace(doc.Find(".rating .value, .imdb").First().Text()); rating != "" {
		_, _ = fmt.Sscanf(strings.Replace(rating, ",", ".", 1), "%g", &load.Rating)
	}

	if load.Type == models.TvTypeMovie {
		load.DataURL = resp.URL
		return load, nil
	}

	var seasons []struct{ id, label string }
	doc.Find("#seasonsList .item[data-season-id], [data-season-id]").Each(func(_ int, s *goquery.Selection) {
		seasons = append(seasons, struct{ id, label string }{s.AttrOr("data-season-id", ""), s.Text()})
	})
	for i, season := range seasons {
		num := util.FirstNumber(season.label, i+1)
		episodes, err := p.episodes(ctx, season.id, num, resp.URL)
		if err != nil {
			util.Debug("season failed", "provider", Name, "season", season.id, "error", err)
			continue
		}
		load.Episodes = append(load.Episodes, episodes...)
	}
	sort.SliceStable(load.Episodes, func(i, j int) bool {
		if load.Episodes[i].Season != load.Episodes[j].Season {
			return load.Episodes[i].Season < load.Episodes[j].Season
		}
		return load.Episodes[i].Episode < load.Episodes[j].Episode
	})
	return load, nil
}

func (p *Provider) episodes(ctx context.Context, seasonID string, season int, referer string) ([]models.Episode, error) {
	resp, err := p.public(ctx, "getEpisodes", seasonID, referer)
	if err != nil {
		return nil, err
	}
	var out []models.Episode
	resp.Get("list").ForEach(func(_, v gjson.Result) bool {
		id := v.Get("id").String()
		if id == "" {
			return true
		}
		num := util.FirstNumber(v.Get("name").String(), len(out)+1)
		var poster string
		if img := v.Get("img").String(); img != "" {
			poster = util.ResolveURL(p.baseURL, "/content/episodes/"+img)
		}
		out = append(out, models.Episode{
			Data:        episodePrefix + id,
			Name:        v.Get("title").String(),
			Season:      season,
			Episode:     num,
			PosterURL:   poster,
			Description: v.Get("desc").String(),
		})
		return true
	})
	return out, nil
}

// LoadLinks accepts a movie page URL or an "episode:<id>" reference
func (p *Provider) LoadLinks(ctx context.Context, data string, subtitles models.SubtitleCallback, links models.LinkCallback) (bool, error) {
	id := strings.TrimPrefix(data, episodePrefix)
	referer := p.baseURL + "/"
	if id == data {
		doc, resp, err := p.fetch.Document(ctx, util.ResolveURL(p.baseURL, data), util.WithReferer(referer))
		if err != nil {
			return false, errors.Wrap(err, "failed to load movie page")
		}
		id = doc.Find("[data-load-player]").First().AttrOr("data-load-player", "")
		if id == "" {
			id = doc.Find("[data-item-id]").First().AttrOr("data-item-id", "")
		}
		if id == "" {
			return false, errors.Wrap(extractor.ErrNoLinks, "movie page has no player id")
		}
		referer = resp.URL
	}

	resp, err := p.public(ctx, "getVideoPlayers", id, referer)
	if err != nil {
		return false, err
	}

	type mirror struct{ id, player, lang string }
	var mirrors []mirror
	resp.Get("list").ForEach(func(_, v gjson.Result) bool {
		lang := "Legendado"
		if v.Get("lang").String() == "1" {
			lang = "Dublado"
		}
		for _, player := range strings.Split(v.Get("players").String(), ",") {
			if player = strings.TrimSpace(player); player != "" {
				mirrors = append(mirrors, mirror{id: v.Get("id").String(), player: player, lang: lang})
			}
		}
		return true
	})
	util.Debug("mirrors", "provider", Name, "id", id, "count", len(mirrors))

	found := false
	for _, m := range mirrors {
		lang := m.lang
		tagged := func(l models.ExtractorLink) {
			l.Name = strings.TrimSpace(l.Name + " (" + lang + ")")
			links(l)
		}
		ok, err := p.play(ctx, m.id, m.player, referer, subtitles, tagged)
		if err != nil {
			util.Debug("mirror failed", "provider", Name, "player", m.player, "error", err)
		}
		found = found || ok
	}
	if !found {
		return false, errors.Wrap(extractor.ErrNoLinks, data)
	}
	return true, nil
}

// play opens the mirror's play page, which redirects to the embed host
func (p *Provider) play(ctx context.Context, id, player, referer string, subtitles models.SubtitleCallback, links models.LinkCallback) (bool, error) {
	playURL := fmt.Sprintf("%s/embed/getPlay.php?id=%s&sv=%s", p.baseURL, url.QueryEscape(id), url.QueryEscape(player))
	resp, err := p.fetch.Get(ctx, playURL, util.WithReferer(referer))
	if err != nil {
		return false, err
	}
	target := resp.URL
	if next := extractor.NextHop(resp.URL, resp.Text()); next != "" {
		target = next
	}
	if util.Host(target) == util.Host(p.baseURL) {
		return false, errors.Errorf("play page for %s did not redirect", player)
	}
	return p.extractors.Load(ctx, target, p.baseURL+"/", subtitles, links)
}
