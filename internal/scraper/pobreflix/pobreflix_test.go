package pobreflix

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvarorichard/provedores/internal/extractor"
	"github.com/alvarorichard/provedores/internal/models"
	"github.com/alvarorichard/provedores/internal/util"
)

// packedSetup is a JW Player setup run through the p,a,c,k,e,d packer
const packedSetup = `eval(function(p,a,c,k,e,d){while(c--)if(k[c])p=p.replace(new RegExp('\\b'+c.toString(a)+'\\b','g'),k[c]);return p}('0(\'1\').2({3:[{4:"5",6:"7"}]});',10,8,'jwplayer|player|setup|sources|file|https://cdn.pobre.test/v/filme.mp4|label|1080p'.split('|'),0,{}))`

func newTestProvider(server *httptest.Server, extractors ...extractor.Extractor) *Provider {
	f := util.NewFetcher(nil)
	f.MaxRetries = 0
	f.RetryDelay = 0
	p := New(f, extractor.NewRegistry(f, extractors...))
	p.baseURL = server.URL
	return p
}

type hostExtractor struct{ host string }

func (h hostExtractor) Name() string               { return h.host }
func (h hostExtractor) Matches(rawURL string) bool { return util.HostMatches(rawURL, h.host) }
func (h hostExtractor) Extract(_ context.Context, rawURL, referer string, _ models.SubtitleCallback, links models.LinkCallback) error {
	links(models.ExtractorLink{Source: h.host, URL: rawURL + ".mp4", Referer: referer, Quality: models.QualityP720})
	return nil
}

func TestSearch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "o auto da compadecida", r.URL.Query().Get("s"))
		_, _ = fmt.Fprint(w, `
        <div class="vbItemImage"><a href="/filme/o-auto-da-compadecida/"><img src="/capa/auto.jpg"></a>
          <div class="caption"><div class="title">O Auto da Compadecida</div><span class="y">2000</span><span class="quality">HD</span></div></div>
        <div class="vbItemImage"><a href="/serie/o-auto/" title="O Auto"><img data-src="/capa/serie.jpg"></a></div>`)
	}))
	defer server.Close()

	results, err := newTestProvider(server).Search(context.Background(), "o auto da compadecida")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "O Auto da Compadecida", results[0].Name)
	assert.Equal(t, 2000, results[0].Year)
	assert.Equal(t, models.QualityP720, results[0].Quality)
	assert.Equal(t, "O Auto", results[1].Name)
	assert.Equal(t, models.TvTypeTvSeries, results[1].Type)
}

func TestGetMainPage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/series/page/1", r.URL.Path)
		_, _ = fmt.Fprint(w, `<div class="ml-item"><a href="/serie/dark/"><h2>Dark</h2></a></div><a href="/series/page/2">2</a>`)
	}))
	defer server.Close()

	p := newTestProvider(server)
	home, err := p.GetMainPage(context.Background(), 0, p.MainPage()[1])
	require.NoError(t, err)
	require.Len(t, home.Items[0].List, 1)
	assert.True(t, home.HasNext)
}

func TestLoadSeriesWithRecommendations(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `
        <div class="infos"><h1>Dark</h1><span class="year">2017</span><span class="duration">60 min</span></div>
        <div class="sinopse">Viagem no tempo.</div>
        <div class="generos"><a>Ficção</a></div>
        <div data-season-number="2"><ul><li><a href="/episodio/dark-2x1/" data-episode="1"><span class="title">Início</span></a></li></ul></div>
        <div data-season-number="1"><ul>
          <li><a href="/episodio/dark-1x2/" data-episode="2"><span class="title">Mentiras</span></a></li>
          <li><a href="/episodio/dark-1x1/" data-episode="1"><span class="title">Segredos</span></a></li>
        </ul></div>
        <div class="recomendados"><div class="ml-item"><a href="/serie/1899/"><h2>1899</h2></a></div></div>`)
	}))
	defer server.Close()

	load, err := newTestProvider(server).Load(context.Background(), "/serie/dark/")
	require.NoError(t, err)
	assert.Equal(t, models.TvTypeTvSeries, load.Type)
	assert.Equal(t, 2017, load.Year)
	assert.Equal(t, 60, load.Duration)
	require.Len(t, load.Episodes, 3)
	assert.Equal(t, "Segredos", load.Episodes[0].Name)
	assert.Equal(t, 2, load.Episodes[2].Season)
	require.Len(t, load.Recommendations, 1)
	assert.Equal(t, "1899", load.Recommendations[0].Name)
}

func TestLoadLinksDecodesServers(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/filme/auto/", func(w http.ResponseWriter, r *http.Request) {
		encoded := base64.StdEncoding.EncodeToString([]byte("https://streamtape.test/e/abc"))
		_, _ = fmt.Fprintf(w, `
        <ul class="servidores">
          <li data-url="%s">Streamtape</li>
          <li data-url="https://streamtape.test/e/abc">Streamtape 2</li>
          <li data-url="/player/packed">Player</li>
          <li data-url="">vazio</li>
        </ul>`, encoded)
	})
	mux.HandleFunc("/player/packed", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "<html><script>"+packedSetup+"</script></html>")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	var links []models.ExtractorLink
	found, err := newTestProvider(server, hostExtractor{host: "streamtape.test"}).LoadLinks(context.Background(), "/filme/auto/", nil, func(l models.ExtractorLink) {
		links = append(links, l)
	})
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, links, 2)
	assert.Equal(t, "https://streamtape.test/e/abc.mp4", links[0].URL)
	assert.Equal(t, server.URL+"/filme/auto/", links[0].Referer)
	assert.Equal(t, "https://cdn.pobre.test/v/filme.mp4", links[1].URL)
	assert.Equal(t, models.QualityP1080, links[1].Quality)
}

func TestDecodeServer(t *testing.T) {
	t.Parallel()

	page := "https://pobreflix.test/filme/x/"
	assert.Equal(t, "https://filemoon.sx/e/1", decodeServer(page, base64.StdEncoding.EncodeToString([]byte("https://filemoon.sx/e/1"))))
	assert.Equal(t, "https://mixdrop.co/e/2", decodeServer(page, "//mixdrop.co/e/2"))
	assert.Equal(t, "https://pobreflix.test/embed/3", decodeServer(page, "/embed/3"))
	assert.Empty(t, decodeServer(page, " "))
}
