package animefire

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvarorichard/provedores/internal/extractor"
	"github.com/alvarorichard/provedores/internal/models"
	"github.com/alvarorichard/provedores/internal/util"
)

func newTestProvider(server *httptest.Server, extractors ...extractor.Extractor) *Provider {
	f := util.NewFetcher(nil)
	f.MaxRetries = 2
	f.RetryDelay = 0
	p := New(f, extractor.NewRegistry(f, extractors...))
	p.baseURL = server.URL
	return p
}

type fakeBlogger struct{ token string }

func (f *fakeBlogger) Name() string { return "Blogger" }

func (f *fakeBlogger) Matches(rawURL string) bool { return util.HostMatches(rawURL, "blogger.com") }

func (f *fakeBlogger) Extract(_ context.Context, rawURL, _ string, _ models.SubtitleCallback, links models.LinkCallback) error {
	f.token = util.QueryParam(rawURL, "token")
	links(models.ExtractorLink{Source: "Blogger", URL: "https://r1.googlevideo.com/videoplayback?itag=22", Quality: models.QualityP720})
	return nil
}

func TestSearchRetriesOnFailure(t *testing.T) {
	t.Parallel()

	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pesquisar/naruto-shippuden", r.URL.Path)
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = fmt.Fprint(w, `
        <html>
            <body>
                <div class="row ml-1 mr-1">
                    <a href="/animes/naruto-shippuden-todos-os-episodios">Naruto Shippuden</a>
                    <a href="/animes/naruto-shippuden-dublado-todos-os-episodios">Naruto Shippuden (Dublado)</a>
                </div>
            </body>
        </html>
        `)
	}))
	defer server.Close()

	p := newTestProvider(server)
	results, err := p.Search(context.Background(), "Naruto  Shippuden")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Naruto Shippuden", results[0].Name)
	assert.Equal(t, server.URL+"/animes/naruto-shippuden-todos-os-episodios", results[0].URL)
	assert.Equal(t, Name, results[0].APIName)
	assert.Equal(t, models.Subbed, results[0].Dub)
	assert.Equal(t, models.Dubbed, results[1].Dub)
}

func TestSearchFallsBackToCards(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `
        <div class="card_ani">
            <div class="div_img"><img src="/img/op.webp"></div>
            <div class="ani_name"><a href="/animes/one-piece-filme-red">One Piece Filme: Red</a></div>
        </div>`)
	}))
	defer server.Close()

	results, err := newTestProvider(server).Search(context.Background(), "one piece")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, server.URL+"/img/op.webp", results[0].PosterURL)
	assert.Equal(t, models.TvTypeAnimeMovie, results[0].Type)
}

func TestSearchReturnsEmptyWhenNoMatch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `<html><body><div class="nothing-here"></div></body></html>`)
	}))
	defer server.Close()

	results, err := newTestProvider(server).Search(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchDetectsChallengePage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `
        <html>
            <head><title>Just a moment...</title></head>
            <body><div id="cf-wrapper">Blocked</div></body>
        </html>`)
	}))
	defer server.Close()

	_, err := newTestProvider(server).Search(context.Background(), "naruto")
	assert.ErrorIs(t, err, util.ErrChallenge)
}

func TestGetMainPage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/em-lancamento/2", r.URL.Path)
		_, _ = fmt.Fprint(w, `
        <div class="divCardUltimosEps"><a href="/animes/dandadan-todos-os-episodios" title="Dandadan">
            <img data-src="/img/dan.webp"><h3 class="animeTitle">Dandadan</h3></a></div>
        <ul class="pagination"><li><a href="/em-lancamento/3">3</a></li></ul>`)
	}))
	defer server.Close()

	p := newTestProvider(server)
	home, err := p.GetMainPage(context.Background(), 2, p.MainPage()[0])
	require.NoError(t, err)
	require.Len(t, home.Items, 1)
	assert.Equal(t, "Lançamentos", home.Items[0].Name)
	require.Len(t, home.Items[0].List, 1)
	assert.Equal(t, "Dandadan", home.Items[0].List[0].Name)
	assert.Equal(t, server.URL+"/img/dan.webp", home.Items[0].List[0].PosterURL)
	assert.True(t, home.HasNext)
}

func TestLoadSortsEpisodes(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `
        <div class="div_anime_names"><h1 class="quicksand400">Frieren Dublado</h1></div>
        <div class="sub_animepage_img"><img data-src="/img/frieren.webp"></div>
        <div class="divSinopse"><span class="spanAnimeInfo">Uma elfa maga.</span></div>
        <div class="animeInfo"><a class="spanGeneros">Aventura</a><a class="spanGeneros">Fantasia</a></div>
        <div class="animeInfo"><b>Ano:</b> <span>2023</span></div>
        <h4 id="anime_score">8,9</h4>
        <a class="lEp epT divNumEp smallbox px-2 mx-1 text-left d-flex" href="/animes/frieren-dublado/2">Episódio 2</a>
        <a class="lEp epT divNumEp smallbox px-2 mx-1 text-left d-flex" href="/animes/frieren-dublado/1">Episódio 1</a>
        <a class="lEp epT divNumEp smallbox px-2 mx-1 text-left d-flex" href="/animes/frieren-dublado/10">Episódio 10</a>`)
	}))
	defer server.Close()

	load, err := newTestProvider(server).Load(context.Background(), server.URL+"/animes/frieren-dublado-todos-os-episodios")
	require.NoError(t, err)

	assert.Equal(t, "Frieren Dublado", load.Name)
	assert.Equal(t, models.TvTypeAnime, load.Type)
	assert.Equal(t, 2023, load.Year)
	assert.InDelta(t, 8.9, load.Rating, 0.001)
	assert.Equal(t, []string{"Aventura", "Fantasia"}, load.Tags)
	assert.Equal(t, "Uma elfa maga.", load.Plot)
	assert.Empty(t, load.Episodes)
	require.Len(t, load.DubEpisodes, 3)
	assert.Equal(t, 1, load.DubEpisodes[0].Episode)
	assert.Equal(t, 10, load.DubEpisodes[2].Episode)
	assert.Equal(t, server.URL+"/animes/frieren-dublado/1", load.DubEpisodes[0].Data)
}

func TestLoadLinksUsesVideoAPI(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/animes/frieren/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `<video id="my-video" data-video-src="/video/frieren/1?tempsubs=0"></video>`)
	})
	mux.HandleFunc("/video/frieren/1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		_, _ = fmt.Fprint(w, `{"data":[{"src":"https://cdn.test/frieren/360p.mp4","label":"SD"},{"src":"https://cdn.test/frieren/720p.mp4","label":"HD"}],"resposta":{"status":"true"}}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	var links []models.ExtractorLink
	found, err := newTestProvider(server).LoadLinks(context.Background(), server.URL+"/animes/frieren/1", nil, func(l models.ExtractorLink) {
		links = append(links, l)
	})
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, links, 2)
	assert.Equal(t, models.QualityP480, links[0].Quality)
	assert.Equal(t, models.QualityP720, links[1].Quality)
	assert.Equal(t, server.URL+"/", links[1].Referer)
}

func TestLoadLinksFallsBackToBlogger(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `<div id="div_video"><iframe src="https://www.blogger.com/video.g?token=AD6v5dy"></iframe></div>`)
	}))
	defer server.Close()

	blogger := &fakeBlogger{}
	var links []models.ExtractorLink
	found, err := newTestProvider(server, blogger).LoadLinks(context.Background(), server.URL+"/animes/x/1", nil, func(l models.ExtractorLink) {
		links = append(links, l)
	})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "AD6v5dy", blogger.token)
	require.Len(t, links, 1)
	assert.Equal(t, models.QualityP720, links[0].Quality)
}
