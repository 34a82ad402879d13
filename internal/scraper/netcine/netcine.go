// Package netcine scrapes netcine movies and series. Player iframes sit
// behind a chain of ad-gate pages before reaching the <source> player.
package netcine

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
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
	// Name is the registry key; DefaultURL is used when the config names no mirror
	Name       = "NetCine"
	DefaultURL = "https://netcine.lat"

	cardSelector = "#box_movies .movie, .movies-list .movie, article.movie"
)

var (
	playerFileRe = regexp.MustCompile(`(?:<source|file\s*:)`)
	resolutionRe = regexp.MustCompile(`(?i)(\d{3,4})p`)
)

// Provider scrapes netcine. Player links go through an ad gate that the
// provider resolves before handing the embed to the extractors.
type Provider struct {
	baseURL    string
	fetch      *util.Fetcher
	extractors *extractor.Registry
	gate       *extractor.AdGate
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
		gate:       extractor.NewAdGate(fetch),
	}
}

// Plugin registers NetCine with a Registrar
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
		{Name: "Lançamentos", Data: "/category/lancamentos"},
		{Name: "Filmes", Data: "/category/ultimos-filmes"},
		{Name: "Séries", Data: "/tvshows"},
		{Name: "Animações", Data: "/category/animacao"},
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
	return &models.HomePageResponse{
		Items:   []models.HomePageList{{Name: request.Name, List: p.parseCards(doc)}},
		HasNext: doc.Find(fmt.Sprintf(`.paginado a[href*="/page/%d"], .pagination a[href*="/page/%d"]`, page+1, page+1)).Length() > 0,
	}, nil
}

// Search returns the movies and series matching query
func (p *Provider) Search(ctx context.Context, query string) ([]models.SearchResponse, error) {
	q := util.NormalizeQuery(query)
	if q == "" {
		return nil, nil
	}
	doc, _, err := p.fetch.Document(ctx, p.baseURL+"/?s="+url.QueryEscape(q), util.WithReferer(p.baseURL+"/"))
	if err != nil {
		return nil, errors.Wrap(err, "search failed")
	}
	return p.parseCards(doc), nil
}

func (p *Provider) parseCards(doc *goquery.Document) []models.SearchResponse {
	var out []models.SearchResponse
	doc.Find(cardSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Find("a[href]").First().Attr("href")
		name := strings.TrimSpace(s.Find("h2, .title").First().Text())
		if !ok || name == "" {
			return
		}
		img := s.Find("img").First()
		r := models.SearchResponse{
			Name:      name,
			URL:       util.ResolveURL(p.baseURL, href),
			APIName:   Name,
			Type:      models.TvTypeMovie,
			PosterURL: util.ResolveURL(p.baseURL, img.AttrOr("data-src", img.AttrOr("src", ""))),
			Year:      util.ParseYear(s.Find(".year, span").First().Text()),
		}
		if isSeriesURL(href) {
			r.Type = models.TvTypeTvSeries
		}
		if strings.Contains(strings.ToLower(name), "dublado") {
			r.Dub = models.Dubbed
		}
		out = append(out, r)
	})
	return out
}

func isSeriesURL(href string) bool {
	return strings.Contains(href, "/tvshows/") || strings.Contains(href, "/series/")
}

// Load reads a title page; series get their seasons parsed into episodes
func (p *Provider) Load(ctx context.Context, rawURL string) (*models.LoadResponse, error) {
	doc, resp, err := p.fetch.Document(ctx, util.ResolveURL(p.baseURL, rawURL), util.WithReferer(p.baseURL+"/"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load title")
	}
	title := strings.TrimSpace(doc.Find(".dataplus h1, .headingder h1, h1").First().Text())
	if title == "" {
		return nil, errors.Wrap(util.ErrNotFound, "title not found")
	}
	img := doc.Find(".headingder .cover img, .poster img, .imgs img").First()
	load := &models.LoadResponse{
		Name:      title,
		URL:       resp.URL,
		APIName:   Name,
		Type:      models.TvTypeMovie,
		PosterURL: util.ResolveURL(p.baseURL, img.AttrOr("data-src", img.AttrOr("src", ""))),
		Plot:      strings.TrimSpace(doc.Find("#dato-2 p, .post-entry p, .sinopse").First().Text()),
		Year:      util.ParseYear(doc.Find(".dataplus .year, .datos .year").First().Text()),
	}
	doc.Find(".dataplus .genres a, .generos a").Each(func(_ int, s *goquery.Selection) {
		load.Tags = append(load.Tags, strings.TrimSpace(s.Text()))
	})
	if rating := util.FirstNumber(doc.Find(".imdb, .rating").First().Text(), 0); rating > 0 && rating <= 10 {
		load.Rating = float64(rating)
	}

	episodes := parseSeasons(doc, p.baseURL)
	if len(episodes) == 0 {
		load.DataURL = resp.URL
		return load, nil
	}
	load.Type = models.TvTypeTvSeries
	load.Episodes = episodes
	return load, nil
}

// parseSeasons reads the #cssmenu accordion: one entry per season, each with
// its episode list
func parseSeasons(doc *goquery.Document, base string) []models.Episode {
	var episodes []models.Episode
	doc.Find("#cssmenu > ul > li").Each(func(i int, season *goquery.Selection) {
		num := util.FirstNumber(season.ChildrenFiltered("a").First().Text(), i+1)
		season.ChildrenFiltered("ul").Find("li > a[href]").Each(func(j int, s *goquery.Selection) {
			href := strings.TrimSpace(s.AttrOr("href", ""))
			if href == "" || strings.HasPrefix(href, "#") {
				return
			}
			name := strings.TrimSpace(s.Find(".datix").Text())
			if name == "" {
				name = strings.TrimSpace(s.Text())
			}
			episodes = append(episodes, models.Episode{
				Data:    util.ResolveURL(base, href),
				Name:    name,
				Season:  num,
				Episode: util.FirstNumber(s.Find("b").First().Text(), j+1),
			})
		})
	})
	sort.SliceStable(episodes, func(i, j int) bool {
		if episodes[i].Season != episodes[j].Season {
			return episodes[i].Season < episodes[j].Season
		}
		return episodes[i].Episode < episodes[j].Episode
	})
	return episodes
}

// LoadLinks walks each player option through the ad gate until a page that
// plays media or belongs to a known host
func (p *Provider) LoadLinks(ctx context.Context, data string, subtitles models.SubtitleCallback, links models.LinkCallback) (bool, error) {
	doc, resp, err := p.fetch.Document(ctx, util.ResolveURL(p.baseURL, data), util.WithReferer(p.baseURL+"/"))
	if err != nil {
		return false, errors.Wrap(err, "failed to load player page")
	}

	var options []string
	doc.Find("#player-container iframe, .play-1 iframe, div[id^='play-'] iframe, .player iframe").Each(func(_ int, s *goquery.Selection) {
		src := s.AttrOr("src", "")
		if src == "" || src == "about:blank" {
			src = s.AttrOr("data-src", "")
		}
		if src = util.ResolveURL(resp.URL, src); src != "" {
			options = append(options, src)
		}
	})
	util.Debug("player options", "provider", Name, "count", len(options))

	done := func(r *util.Response) bool {
		return playerFileRe.MatchString(r.Text()) || p.extractors.Claims(r.URL)
	}

	found := false
	for _, option := range options {
		final, err := p.gate.Follow(ctx, option, resp.URL, done)
		if err != nil {
			util.Debug("ad gate failed", "provider", Name, "url", option, "error", err)
			continue
		}
		if !playerFileRe.MatchString(final.Text()) {
			ok, err := p.extractors.Load(ctx, final.URL, resp.URL, subtitles, links)
			if err != nil {
				util.Debug("host extraction failed", "provider", Name, "url", final.URL, "error", err)
			}
			found = found || ok
			continue
		}
		if p.emitPlayer(ctx, final, subtitles, links) {
			found = true
		}
	}
	if !found {
		return false, errors.Wrap(extractor.ErrNoLinks, data)
	}
	return true, nil
}

func (p *Provider) emitPlayer(ctx context.Context, page *util.Response, subtitles models.SubtitleCallback, links models.LinkCallback) bool {
	doc, err := page.Document()
	if err != nil {
		return false
	}
	found := false
	doc.Find("video source[src], source[src]").Each(func(_ int, s *goquery.Selection) {
		src := util.ResolveURL(page.URL, s.AttrOr("src", ""))
		label := s.AttrOr("label", s.AttrOr("data-res", s.AttrOr("size", "")))
		links(models.ExtractorLink{
			Source:  Name,
			Name:    strings.TrimSpace(Name + " " + label),
			URL:     src,
			Referer: page.URL,
			Quality: sourceQuality(label, src),
			Type:    models.LinkTypeVideo,
		})
		found = true
	})
	if found {
		return true
	}

	setup := extractor.ParseJWPlayer(extractor.UnpackAll(page.Text()))
	if len(setup.Sources) == 0 {
		return false
	}
	extractor.EmitJWPlayer(ctx, p.fetch, Name, setup, page.URL, page.URL, subtitles, links)
	return true
}

// sourceQuality reads the label, then a resolution embedded in the file name
func sourceQuality(label, src string) models.Quality {
	if q := models.QualityFromName(label); q != models.QualityUnknown {
		return q
	}
	if m := resolutionRe.FindStringSubmatch(util.LastPathSegment(src)); m != nil {
		return models.QualityFromName(m[1] + "p")
	}
	return models.QualityUnknown
}
