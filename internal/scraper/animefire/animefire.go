// Package animefire scrapes animefire.plus
package animefire

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
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
	Name       = "AnimeFire"
	DefaultURL = "https://animefire.plus"

	episodeSelector = "a.lEp.epT.divNumEp.smallbox.px-2.mx-1.text-left.d-flex"
)

var episodeNumberRe = regexp.MustCompile(`(?i)epis[oó]dio\s*(\d+)`)

// Provider implements models.MainAPI for AnimeFire
// Provider scrapes animefire
type Provider struct {
	baseURL    string
	fetch      *util.Fetcher
	extractors *extractor.Registry
}

// New creates the provider
func New(fetch *util.Fetcher, extractors *extractor.Registry) *Provider {
	if fetch == nil {
		fetch = util.NewFetcher(nil)
	}
	if extractors == nil {
		extractors = extractor.NewDefaultRegistry(fetch)
	}
	return &Provider{baseURL: DefaultURL, fetch: fetch, extractors: extractors}
}

// Plugin registers the provider with the host
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
	return []models.TvType{models.TvTypeAnime, models.TvTypeAnimeMovie, models.TvTypeOVA}
}

func (p *Provider) MainPage() []models.MainPageData {
	return []models.MainPageData{
		{Name: "Lançamentos", Data: "/em-lancamento"},
		{Name: "Atualizados", Data: "/animes-atualizados"},
		{Name: "Top Animes", Data: "/top-animes"},
	}
}

func (p *Provider) GetMainPage(ctx context.Context, page int, request models.MainPageData) (*models.HomePageResponse, error) {
	if page < 1 {
		page = 1
	}
	pageURL := fmt.Sprintf("%s%s/%d", p.baseURL, request.Data, page)
	doc, _, err := p.fetch.Document(ctx, pageURL, util.WithReferer(p.baseURL+"/"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", request.Name)
	}

	items := p.parseCards(doc)
	hasNext := doc.Find(".pagination .next a").Length() > 0 ||
		doc.Find(fmt.Sprintf(`.pagination a[href$="/%d"]`, page+1)).Length() > 0

	return &models.HomePageResponse{
		Items:   []models.HomePageList{{Name: request.Name, List: items}},
		HasNext: hasNext,
	}, nil
}

// Search queries /pesquisar/<slug>, which renders one of two result layouts
func (p *Provider) Search(ctx context.Context, query string) ([]models.SearchResponse, error) {
	slug := util.Slugify(util.NormalizeQuery(query))
	if slug == "" {
		return nil, nil
	}
	searchURL := fmt.Sprintf("%s/pesquisar/%s", p.baseURL, slug)

	doc, _, err := p.fetch.Document(ctx, searchURL, util.WithReferer(p.baseURL+"/"))
	if err != nil {
		if util.IsStatus(err, http.StatusForbidden) {
			return nil, errors.Wrap(err, "access restricted: VPN may be required")
		}
		return nil, errors.Wrap(err, "search failed")
	}

	var results []models.SearchResponse
	doc.Find(".row.ml-1.mr-1 a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		name := strings.TrimSpace(s.Text())
		if !ok || name == "" {
			return
		}
		results = append(results, p.newResult(name, href, ""))
	})
	if len(results) == 0 {
		results = p.parseCards(doc)
	}
	util.Debug("search results", "provider", Name, "query", query, "count", len(results))
	return results, nil
}

func (p *Provider) parseCards(doc *goquery.Document) []models.SearchResponse {
	var out []models.SearchResponse
	doc.Find(".card_ani, .divCardUltimosEps").Each(func(_ int, s *goquery.Selection) {
		link := s.Find(".ani_name a, a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		name := strings.TrimSpace(s.Find(".ani_name, .animeTitle, h3").First().Text())
		if name == "" {
			name = strings.TrimSpace(link.AttrOr("title", link.Text()))
		}
		if name == "" {
			return
		}
		img := s.Find(".div_img img, img").First()
		poster := img.AttrOr("data-src", img.AttrOr("src", ""))
		out = append(out, p.newResult(name, href, poster))
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
	if isDubbed(name, href) {
		r.Dub = models.Dubbed
	}
	if strings.Contains(strings.ToLower(name), "filme") {
		r.Type = models.TvTypeAnimeMovie
	}
	return r
}

func isDubbed(name, href string) bool {
	return strings.Contains(strings.ToLower(name), "dublado") || strings.Contains(strings.ToLower(href), "dublado")
}

func (p *Provider) Load(ctx context.Context, url string) (*models.LoadResponse, error) {
	doc, resp, err := p.fetch.Document(ctx, url, util.WithReferer(p.baseURL+"/"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load anime page")
	}

	title := strings.TrimSpace(doc.Find(".div_anime_names h1, h1.quicksand400, h1").First().Text())
	if title == "" {
		return nil, errors.Wrap(util.ErrNotFound, "anime title not found")
	}
	img := doc.Find(".sub_animepage_img img, .animeCapa img").First()

	load := &models.LoadResponse{
		Name:      title,
		URL:       resp.URL,
		APIName:   Name,
		Type:      models.TvTypeAnime,
		PosterURL: util.ResolveURL(p.baseURL, img.AttrOr("data-src", img.AttrOr("src", ""))),
		Plot:      strings.TrimSpace(doc.Find(".divSinopse .spanAnimeInfo, .divSinopse").First().Text()),
	}

	doc.Find(".animeInfo a.spanGeneros, .spanGeneros").Each(func(_ int, s *goquery.Selection) {
		if tag := strings.TrimSpace(s.Text()); tag != "" {
			load.Tags = append(load.Tags, tag)
		}
	})
	doc.Find(".animeInfo").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		if strings.Contains(text, "Ano") && load.Year == 0 {
			load.Year = util.ParseYear(text)
		}
	})
	if score := strings.TrimSpace(doc.Find("#anime_score").Text()); score != "" {
		_, _ = fmt.Sscanf(strings.Replace(score, ",", ".", 1), "%g", &load.Rating)
	}

	episodes := parseEpisodes(doc, p.baseURL)
	switch {
	case len(episodes) == 0:
		load.Type = models.TvTypeAnimeMovie
		load.DataURL = resp.URL
	case isDubbed(title, resp.URL):
		load.DubEpisodes = episodes
	default:
		load.Episodes = episodes
	}
	if len(episodes) == 1 && strings.Contains(strings.ToLower(title), "filme") {
		load.Type = models.TvTypeAnimeMovie
		load.DataURL = episodes[0].Data
	}
	return load, nil
}

func parseEpisodes(doc *goquery.Document, base string) []models.Episode {
	var episodes []models.Episode
	doc.Find(episodeSelector).Each(func(i int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		text := strings.TrimSpace(s.Text())
		num := i + 1
		if m := episodeNumberRe.FindStringSubmatch(text); m != nil {
			num = util.FirstNumber(m[1], num)
		} else {
			num = util.FirstNumber(util.LastPathSegment(href), num)
		}
		episodes = append(episodes, models.Episode{
			Data:    util.ResolveURL(base, href),
			Name:    text,
			Episode: num,
		})
	})
	sort.SliceStable(episodes, func(i, j int) bool { return episodes[i].Episode < episodes[j].Episode })
	return episodes
}

// LoadLinks reads the player's data-video-src JSON API and falls back to the
// Blogger embed some episodes use instead
func (p *Provider) LoadLinks(ctx context.Context, data string, subtitles models.SubtitleCallback, links models.LinkCallback) (bool, error) {
	doc, resp, err := p.fetch.Document(ctx, data, util.WithReferer(p.baseURL+"/"))
	if err != nil {
		return false, errors.Wrap(err, "failed to load episode page")
	}

	if src, ok := doc.Find("video[data-video-src], [data-video-src]").First().Attr("data-video-src"); ok && src != "" {
		found, err := p.videoAPI(ctx, util.ResolveURL(resp.URL, src), resp.URL, links)
		if found {
			return true, nil
		}
		util.Debug("video api failed", "provider", Name, "url", src, "error", err)
	}

	if token := extractor.FindBloggerToken(resp.Text()); token != "" {
		return p.extractors.Load(ctx, "https://www.blogger.com/video.g?token="+token, resp.URL, subtitles, links)
	}

	if iframe, ok := doc.Find("iframe[src]").First().Attr("src"); ok {
		return p.extractors.Load(ctx, util.ResolveURL(resp.URL, iframe), resp.URL, subtitles, links)
	}
	return false, errors.Wrap(extractor.ErrNoLinks, data)
}

func (p *Provider) videoAPI(ctx context.Context, apiURL, referer string, links models.LinkCallback) (bool, error) {
	resp, err := p.fetch.Get(ctx, apiURL, util.WithReferer(referer), util.WithXHR())
	if err != nil {
		return false, err
	}
	found := false
	resp.Get("data").ForEach(func(_, v gjson.Result) bool {
		src := v.Get("src").String()
		if src == "" {
			return true
		}
		label := v.Get("label").String()
		links(models.ExtractorLink{
			Source:  Name,
			Name:    strings.TrimSpace(Name + " " + label),
			URL:     src,
			Referer: p.baseURL + "/",
			Quality: models.QualityFromName(label),
			Type:    models.LinkTypeVideo,
		})
		found = true
		return true
	})
	if !found {
		return false, extractor.ErrNoLinks
	}
	return true, nil
}
