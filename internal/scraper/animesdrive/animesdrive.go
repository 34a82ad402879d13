// Package animesdrive scrapes animesdrive.blog, a Dooplay WordPress site
package animesdrive

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/alvarorichard/provedores/internal/extractor"
	"github.com/alvarorichard/provedores/internal/models"
	"github.com/alvarorichard/provedores/internal/plugin"
	"github.com/alvarorichard/provedores/internal/util"
)

const (
	Name       = "AnimesDrive"
	DefaultURL = "https://animesdrive.blog"

	cardSelector    = "article.item, .items article, #archive-content article, .content article, .movies-list .ml-item, .animation-2 .item"
	playerSelector  = ".dooplay_player_option, [class*='player_option'], .source-box li, .player_nav li, .server-item"
	episodeSelector = "#seasons .episodios li a, .episodios li a, ul.episodios a, .se-a a, #episodes a, .episodelist a"
)

var (
	episodeNumRe = regexp.MustCompile(`(?i)episodio[s]?[-_]?(\d+)`)
	sourceRe     = regexp.MustCompile(`source=([^&]+)`)
)

// preferredDomains play reliably and are emitted first
var preferredDomains = []string{
	"tityos.feralhosting.com",
	"feralhosting.com",
	"archive.org",
}

// problematicDomains often block players and are emitted last
var problematicDomains = []string{
	"aniplay.online",
	"animeshd.cloud",
	"animes.strp2p.com",
}

func domainIn(rawURL string, domains []string) bool {
	lower := strings.ToLower(rawURL)
	for _, d := range domains {
		if strings.Contains(lower, d) {
			return true
		}
	}
	return false
}

// Genre is an entry of the site's genre menu
type Genre struct {
	Name string
	URL  string
}

// VideoOption is one server button of an episode page
type VideoOption struct {
	Label   string
	Quality models.Quality
	PostID  string
	Type    string
	Nume    string
}

// optionQuality maps the site's server labels; "HLS" is its FullHD stream
func optionQuality(label string) models.Quality {
	if strings.EqualFold(strings.TrimSpace(label), "hls") {
		return models.QualityP1080
	}
	return models.QualityFromName(label)
}

// Provider scrapes animesdrive; player options resolve in parallel
type Provider struct {
	baseURL    string
	fetch      *util.Fetcher
	extractors *extractor.Registry
	workers    int
}

// New creates a provider; nil arguments get defaults
func New(fetch *util.Fetcher, extractors *extractor.Registry) *Provider {
	if fetch == nil {
		fetch = util.NewFetcher(nil)
	}
	if extractors == nil {
		extractors = extractor.NewDefaultRegistry(fetch)
	}
	return &Provider{baseURL: DefaultURL, fetch: fetch, extractors: extractors, workers: 4}
}

// Plugin registers AnimesDrive with a Registrar
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
		{Name: "Animes", Data: "/anime/"},
		{Name: "Filmes", Data: "/filme/"},
		{Name: "Episódios", Data: "/episodios/"},
	}
}

func (p *Provider) get(ctx context.Context, rawURL string) (*goquery.Document, *util.Response, error) {
	return p.fetch.Document(ctx, rawURL,
		util.WithReferer(p.baseURL),
		util.WithHeader("Accept-Language", "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7"),
	)
}

func pagedPath(path string, page int) string {
	path = "/" + strings.Trim(path, "/") + "/"
	if page <= 1 {
		return path
	}
	return fmt.Sprintf("%spage/%d/", path, page)
}

func (p *Provider) GetMainPage(ctx context.Context, page int, request models.MainPageData) (*models.HomePageResponse, error) {
	doc, _, err := p.get(ctx, p.baseURL+pagedPath(request.Data, page))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", request.Name)
	}
	return &models.HomePageResponse{
		Items:   []models.HomePageList{{Name: request.Name, List: p.parseCards(doc)}},
		HasNext: lastPage(doc) > page,
	}, nil
}

func lastPage(doc *goquery.Document) int {
	last := 1
	doc.Find(".pagination a, .pagination span, .wp-pagenavi a").Each(func(_ int, s *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(s.Text())); err == nil && n > last {
			last = n
		}
	})
	return last
}

// Letters lists the A-Z navigation entries
func (p *Provider) Letters() []string {
	return []string{
		"#", "A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M",
		"N", "O", "P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z",
	}
}

// LetterPage lists the titles starting with letter
func (p *Provider) LetterPage(ctx context.Context, letter string, page int) ([]models.SearchResponse, error) {
	param := strings.ToLower(letter)
	if letter == "#" {
		param = "0-9"
	}
	doc, _, err := p.get(ctx, p.baseURL+pagedPath("/anime/", page)+"?letter="+url.QueryEscape(param))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load letter %s", letter)
	}
	return p.parseCards(doc), nil
}

// Genres reads the genre menu of the home page
func (p *Provider) Genres(ctx context.Context) ([]Genre, error) {
	doc, _, err := p.get(ctx, p.baseURL+"/")
	if err != nil {
		return nil, errors.Wrap(err, "failed to load genres")
	}
	var genres []Genre
	seen := make(map[string]bool)
	doc.Find("a[href*='/genre/'], a[href*='/genero/']").Each(func(_ int, s *goquery.Selection) {
		href := util.ResolveURL(p.baseURL, s.AttrOr("href", ""))
		name := strings.TrimSpace(s.Text())
		if href == "" || name == "" || seen[href] {
			return
		}
		seen[href] = true
		genres = append(genres, Genre{Name: name, URL: href})
	})
	return genres, nil
}

// GenrePage lists one page of a genre
func (p *Provider) GenrePage(ctx context.Context, genreURL string, page int) ([]models.SearchResponse, error) {
	u := util.ResolveURL(p.baseURL, genreURL)
	if page > 1 {
		u = fmt.Sprintf("%s/page/%d/", strings.TrimSuffix(u, "/"), page)
	}
	doc, _, err := p.get(ctx, u)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load genre")
	}
	return p.parseCards(doc), nil
}

func (p *Provider) Search(ctx context.Context, query string) ([]models.SearchResponse, error) {
	q := util.NormalizeQuery(query)
	if q == "" {
		return nil, nil
	}
	searchURL := fmt.Sprintf("%s/?s=%s", p.baseURL, url.QueryEscape(q))
	util.Debug("search", "provider", Name, "query", query, "url", searchURL)

	doc, _, err := p.get(ctx, searchURL)
	if err != nil {
		return nil, errors.Wrap(err, "search failed")
	}

	var results []models.SearchResponse
	for _, selector := range []string{"div.result-item", "article.item", "div.search-page .item"} {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			title := s.Find(".title a, h3 a, h2 a, a.tip").First()
			href, ok := title.Attr("href")
			name := strings.TrimSpace(title.Text())
			if !ok || name == "" || !isTitleURL(href) {
				return
			}
			r := p.newResult(name, href, imageOf(s.Find("img").First()))
			r.Year = util.ParseYear(s.Find(".year, .meta .year").Text())
			results = append(results, r)
		})
		if len(results) > 0 {
			break
		}
	}
	return results, nil
}

func isTitleURL(href string) bool {
	return strings.Contains(href, "/anime/") || strings.Contains(href, "/filme/")
}

func imageOf(img *goquery.Selection) string {
	for _, attr := range []string{"data-src", "data-lazy-src", "src"} {
		if v := img.AttrOr(attr, ""); v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	return ""
}

func (p *Provider) parseCards(doc *goquery.Document) []models.SearchResponse {
	var out []models.SearchResponse
	doc.Find(cardSelector).Each(func(_ int, item *goquery.Selection) {
		link := item.Find("a[href*='/anime/'], a[href*='/filme/']").First()
		href, ok := link.Attr("href")
		if !ok || !isTitleURL(href) {
			return
		}
		name := strings.TrimSpace(item.Find("h3, h2, .data h3, .title, .mli-info h2").First().Text())
		if name == "" {
			name = strings.TrimSpace(link.AttrOr("title", ""))
		}
		if name == "" {
			return
		}
		r := p.newResult(name, href, imageOf(item.Find("img").First()))
		r.Year = util.ParseYear(item.Find(".year, .date, span.year").First().Text())
		out = append(out, r)
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
	}
	if strings.Contains(href, "/filme/") {
		r.Type = models.TvTypeAnimeMovie
	}
	if strings.Contains(strings.ToLower(name), "dublado") {
		r.Dub = models.Dubbed
	}
	return r
}

func (p *Provider) Load(ctx context.Context, rawURL string) (*models.LoadResponse, error) {
	doc, resp, err := p.get(ctx, util.ResolveURL(p.baseURL, rawURL))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load details")
	}

	title := strings.TrimSpace(doc.Find(".sheader .data h1, h1.entry-title, h1").First().Text())
	if title == "" {
		return nil, errors.Wrap(util.ErrNotFound, "title not found")
	}

	load := &models.LoadResponse{
		Name:      title,
		URL:       resp.URL,
		APIName:   Name,
		Type:      models.TvTypeAnime,
		PosterURL: util.ResolveURL(p.baseURL, imageOf(doc.Find(".sheader .poster img, .poster img, img.wp-post-image").First())),
		Plot:      strings.TrimSpace(doc.Find("#info .wp-content p, .wp-content p, .description p").First().Text()),
		Year:      util.ParseYear(doc.Find(".sheader .extra .date, .date").First().Text()),
	}
	doc.Find(".sgeneros a").Each(func(_ int, s *goquery.Selection) {
		load.Tags = append(load.Tags, strings.TrimSpace(s.Text()))
	})
	if rating, err := strconv.ParseFloat(strings.TrimSpace(doc.Find(".dt_rating_vgs").First().Text()), 64); err == nil {
		load.Rating = rating
	}

	episodes := p.parseEpisodes(doc)
	if len(episodes) == 0 || strings.Contains(resp.URL, "/filme/") {
		load.Type = models.TvTypeAnimeMovie
		load.DataURL = resp.URL
		return load, nil
	}
	if strings.Contains(strings.ToLower(title), "dublado") {
		load.DubEpisodes = episodes
	} else {
		load.Episodes = episodes
	}
	return load, nil
}

func (p *Provider) parseEpisodes(doc *goquery.Document) []models.Episode {
	var episodes []models.Episode
	seen := make(map[string]bool)
	doc.Find(episodeSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || !strings.Contains(href, "episodio") || seen[href] {
			return
		}
		seen[href] = true
		name := strings.TrimSpace(s.Text())
		num := 0
		if m := episodeNumRe.FindStringSubmatch(href); m != nil {
			num, _ = strconv.Atoi(m[1])
		} else {
			num = util.FirstNumber(name, 0)
		}
		season := 0
		if se := s.Closest(".se-c"); se.Length() > 0 {
			season = util.FirstNumber(se.Find(".se-t").First().Text(), 0)
		}
		episodes = append(episodes, models.Episode{
			Data:    util.ResolveURL(p.baseURL, href),
			Name:    name,
			Season:  season,
			Episode: num,
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

// VideoOptions lists the server buttons of an episode or movie page
func (p *Provider) VideoOptions(doc *goquery.Document) []VideoOption {
	var options []VideoOption
	collect := func(i int, s *goquery.Selection) {
		post, ok := s.Attr("data-post")
		if !ok || post == "" {
			return
		}
		label := strings.TrimSpace(s.Find(".title, .server, span").First().Text())
		if label == "" {
			label = strings.TrimSpace(s.Text())
		}
		if label == "" {
			label = fmt.Sprintf("Server %d", i+1)
		}
		options = append(options, VideoOption{
			Label:   label,
			Quality: optionQuality(label),
			PostID:  post,
			Type:    s.AttrOr("data-type", "tv"),
			Nume:    s.AttrOr("data-nume", strconv.Itoa(i+1)),
		})
	}
	doc.Find(playerSelector).Each(collect)
	if len(options) == 0 {
		doc.Find("[data-post][data-nume]").Each(collect)
	}
	return options
}

type resolvedOption struct {
	option VideoOption
	url    string
	kind   string
}

// resolveOption asks the dooplayer API for the option's embed. The kind is
// mp4, hls or iframe.
func (p *Provider) resolveOption(ctx context.Context, opt VideoOption, referer string) (resolvedOption, error) {
	apiURL := fmt.Sprintf("%s/wp-json/dooplayer/v2/%s/%s/%s", p.baseURL, opt.PostID, opt.Type, opt.Nume)
	resp, err := p.fetch.Get(ctx, apiURL, util.WithReferer(referer), util.WithXHR())
	if err != nil {
		return resolvedOption{}, err
	}
	embed := resp.Get("embed_url").String()
	if embed == "" {
		return resolvedOption{}, errors.New("no embed URL in response")
	}
	if m := sourceRe.FindStringSubmatch(embed); m != nil {
		if src, err := url.QueryUnescape(m[1]); err == nil && src != "" {
			return resolvedOption{option: opt, url: src, kind: "mp4"}, nil
		}
	}
	if strings.Contains(embed, ".m3u8") {
		return resolvedOption{option: opt, url: embed, kind: "hls"}, nil
	}
	if strings.EqualFold(resp.Get("type").String(), "mp4") {
		return resolvedOption{option: opt, url: embed, kind: "mp4"}, nil
	}
	embed = extractIframeSrc(embed)
	return resolvedOption{option: opt, url: util.ResolveURL(p.baseURL, embed), kind: "iframe"}, nil
}

var iframeAttrRe = regexp.MustCompile(`(?i)<iframe[^>]+src=["']([^"']+)["']`)

// extractIframeSrc unwraps embed_url values that carry a full iframe tag
func extractIframeSrc(embed string) string {
	if m := iframeAttrRe.FindStringSubmatch(embed); m != nil {
		return m[1]
	}
	return embed
}

func (p *Provider) LoadLinks(ctx context.Context, data string, subtitles models.SubtitleCallback, links models.LinkCallback) (bool, error) {
	pageURL := util.ResolveURL(p.baseURL, data)
	doc, resp, err := p.get(ctx, pageURL)
	if err != nil {
		return false, errors.Wrap(err, "failed to load episode page")
	}
	options := p.VideoOptions(doc)
	util.Debug("video options", "provider", Name, "count", len(options))

	var (
		mu       sync.Mutex
		resolved []resolvedOption
	)
	tasks := make([]func(), 0, len(options))
	for _, opt := range options {
		opt := opt
		tasks = append(tasks, func() {
			r, err := p.resolveOption(ctx, opt, resp.URL)
			if err != nil {
				util.Debug("failed to resolve option", "provider", Name, "label", opt.Label, "error", err)
				return
			}
			mu.Lock()
			resolved = append(resolved, r)
			mu.Unlock()
		})
	}
	util.ParallelExecute(p.workers, tasks...)

	sort.SliceStable(resolved, func(i, j int) bool {
		return rank(resolved[i]) < rank(resolved[j])
	})

	found := false
	for _, r := range resolved {
		switch r.kind {
		case "mp4":
			links(models.ExtractorLink{
				Source:  Name,
				Name:    Name + " " + r.option.Label,
				URL:     r.url,
				Referer: p.baseURL + "/",
				Quality: r.option.Quality,
				Type:    models.LinkTypeVideo,
			})
			found = true
		case "hls":
			extractor.M3u8Links(ctx, p.fetch, Name+" "+r.option.Label, r.url, p.baseURL+"/", nil, links)
			found = true
		default:
			ok, err := p.extractors.Load(ctx, r.url, resp.URL, subtitles, links)
			if err != nil {
				util.Debug("iframe extraction failed", "provider", Name, "url", r.url, "error", err)
			}
			found = found || ok
		}
	}
	if found {
		return true, nil
	}

	util.Debug("no option resolved, scanning page", "provider", Name, "url", pageURL)
	return p.extractors.Load(ctx, pageURL, p.baseURL+"/", subtitles, links)
}

// rank orders preferred hosts first and problematic ones last
func rank(r resolvedOption) int {
	switch {
	case domainIn(r.url, preferredDomains):
		return 0
	case domainIn(r.url, problematicDomains):
		return 2
	default:
		return 1
	}
}
