package goyabu

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
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
	f.MaxRetries = 0
	f.RetryDelay = 0
	p := New(f, extractor.NewRegistry(f, extractors...))
	p.baseURL = server.URL
	return p
}

type fakeBlogger struct{ calls int32 }

func (f *fakeBlogger) Name() string               { return "Blogger" }
func (f *fakeBlogger) Matches(rawURL string) bool { return util.HostMatches(rawURL, "blogger.com") }
func (f *fakeBlogger) Extract(_ context.Context, rawURL, _ string, _ models.SubtitleCallback, links models.LinkCallback) error {
	atomic.AddInt32(&f.calls, 1)
	links(models.ExtractorLink{Source: "Blogger", URL: "https://r1.googlevideo.com/videoplayback?itag=18&token=" + util.QueryParam(rawURL, "token"), Quality: models.QualityP360})
	return nil
}

type collector struct {
	mu    sync.Mutex
	links []models.ExtractorLink
	subs  []models.SubtitleFile
}

func (c *collector) link(l models.ExtractorLink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.links = append(c.links, l)
}

func (c *collector) sub(s models.SubtitleFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, s)
}

func TestSearchRefreshesRejectedNonce(t *testing.T) {
	t.Parallel()

	var homeHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&homeHits, 1)
		_, _ = fmt.Fprintf(w, `<script>var goyabu_ajax = {"ajaxurl":"/wp-admin/admin-ajax.php","nonce":"n%d"};</script>`, n)
	})
	mux.HandleFunc("/wp-admin/admin-ajax.php", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "ajax_search", r.PostForm.Get("action"))
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("nonce") != "n2" {
			_, _ = fmt.Fprint(w, `{"success":false,"data":"invalid nonce"}`)
			return
		}
		assert.Equal(t, "jujutsu kaisen", r.PostForm.Get("keyword"))
		_, _ = fmt.Fprint(w, `{"success":true,"data":[
            {"title":"Jujutsu Kaisen","url":"/anime/jujutsu-kaisen","img":"/img/jjk.jpg"},
            {"title":"Jujutsu Kaisen Dublado","link":"https://goyabu.test/anime/jujutsu-kaisen-dublado"},
            {"title":"","url":"/anime/empty"}
        ]}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := newTestProvider(server)
	results, err := p.Search(context.Background(), "jujutsu-kaisen")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, server.URL+"/anime/jujutsu-kaisen", results[0].URL)
	assert.Equal(t, server.URL+"/img/jjk.jpg", results[0].PosterURL)
	assert.Equal(t, models.Dubbed, results[1].Dub)
	assert.Equal(t, int32(2), atomic.LoadInt32(&homeHits))

	_, err = p.Search(context.Background(), "jujutsu kaisen")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&homeHits), "valid nonce is reused")
}

func TestSearchFailsWithoutNonce(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `<html><body>no script</body></html>`)
	}))
	defer server.Close()

	_, err := newTestProvider(server).Search(context.Background(), "naruto")
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestLoadReadsAllEpisodes(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `
        <div class="streamer-poster"><img src="/img/op.jpg"></div>
        <div class="streamer-info"><h1>One Piece</h1>
          <ul class="streamer-info-list"><li><b>Ano:</b> 1999</li></ul></div>
        <div class="streamer-sinopse">Piratas.</div>
        <a class="filter-btn">Ação</a><a class="filter-btn">Aventura</a>
        <script>
          const allEpisodes = [
            {"id":"9002","episodio":"2","title":"Episódio 2","link":"/9002"},
            {"id":"9001","episodio":"1","title":"Episódio 1","link":"/9001","imagem":"/thumb/1.jpg"},
            {"id":"9010","episodio":"10","title":"Episódio 10"}
          ];
        </script>`)
	}))
	defer server.Close()

	load, err := newTestProvider(server).Load(context.Background(), "/anime/one-piece")
	require.NoError(t, err)
	assert.Equal(t, "One Piece", load.Name)
	assert.Equal(t, 1999, load.Year)
	assert.Equal(t, "Piratas.", load.Plot)
	assert.Equal(t, []string{"Ação", "Aventura"}, load.Tags)
	require.Len(t, load.Episodes, 3)
	assert.Equal(t, 1, load.Episodes[0].Episode)
	assert.Equal(t, server.URL+"/9001", load.Episodes[0].Data)
	assert.Equal(t, server.URL+"/thumb/1.jpg", load.Episodes[0].PosterURL)
	assert.Equal(t, server.URL+"/9010", load.Episodes[2].Data)
}

func TestLoadWithoutEpisodesIsMovie(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `<h1>Suzume</h1>`)
	}))
	defer server.Close()

	load, err := newTestProvider(server).Load(context.Background(), server.URL+"/filme/suzume")
	require.NoError(t, err)
	assert.Equal(t, models.TvTypeAnimeMovie, load.Type)
	assert.Equal(t, server.URL+"/filme/suzume", load.DataURL)
}

func TestLoadLinksResolvesEveryPlayer(t *testing.T) {
	t.Parallel()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mp4 := base64.StdEncoding.EncodeToString([]byte(server.URL + "/video/ep1.mp4"))
		_, _ = fmt.Fprintf(w, `
        <div class="player-tabs"><button class="player-tab" data-url="%s">FHD</button></div>
        <div id="player"></div>
        <script>
          var playersData = [{"name":"Blogger","url":"https://www.blogger.com/video.g?token=AD6v5dz"}];
          jwplayer("player").setup({
            sources: [{file: "https://r4---sn-abc.googlevideo.com/videoplayback?expire=4102444800&itag=22&id=x", label: "HD"}],
            tracks: [{file: "/subs/pt.vtt", label: "Português", kind: "captions"}],
            autostart: false
          });
        </script>`, mp4)
	}))
	defer server.Close()

	blogger := &fakeBlogger{}
	c := &collector{}
	found, err := newTestProvider(server, blogger).LoadLinks(context.Background(), "/9001", c.sub, c.link)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int32(1), atomic.LoadInt32(&blogger.calls))

	require.Len(t, c.links, 3)
	assert.Equal(t, "Blogger", c.links[0].Source)
	assert.Equal(t, server.URL+"/video/ep1.mp4", c.links[1].URL)
	assert.Equal(t, models.QualityP1080, c.links[1].Quality)
	assert.Equal(t, models.QualityP720, c.links[2].Quality)
	assert.Contains(t, c.links[2].URL, "googlevideo.com/videoplayback")
	assert.Equal(t, server.URL+"/", c.links[2].Referer)

	require.Len(t, c.subs, 1)
	assert.Equal(t, server.URL+"/subs/pt.vtt", c.subs[0].URL)
}

func TestLoadLinksWithoutPlayers(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `<div>sem player</div>`)
	}))
	defer server.Close()

	found, err := newTestProvider(server).LoadLinks(context.Background(), "/1", nil, func(models.ExtractorLink) {})
	assert.False(t, found)
	assert.ErrorIs(t, err, extractor.ErrNoLinks)
}
