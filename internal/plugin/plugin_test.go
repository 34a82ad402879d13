package plugin

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvarorichard/provedores/internal/config"
	"github.com/alvarorichard/provedores/internal/models"
)

type stubAPI struct{ name, url string }

func (s *stubAPI) Name() string                    { return s.name }
func (s *stubAPI) MainURL() string                 { return s.url }
func (s *stubAPI) Lang() string                    { return "pt-BR" }
func (s *stubAPI) SupportedTypes() []models.TvType { return []models.TvType{models.TvTypeMovie} }
func (s *stubAPI) MainPage() []models.MainPageData { return nil }
func (s *stubAPI) GetMainPage(context.Context, int, models.MainPageData) (*models.HomePageResponse, error) {
	return nil, nil
}
func (s *stubAPI) Search(context.Context, string) ([]models.SearchResponse, error) { return nil, nil }
func (s *stubAPI) Load(context.Context, string) (*models.LoadResponse, error)      { return nil, nil }
func (s *stubAPI) LoadLinks(context.Context, string, models.SubtitleCallback, models.LinkCallback) (bool, error) {
	return false, nil
}

type stubPlugin struct {
	name string
	err  error
}

func (p stubPlugin) Name() string { return p.name }

func (p stubPlugin) Load(r *Registrar) error {
	if p.err != nil {
		return p.err
	}
	return r.RegisterMainAPI(&stubAPI{name: p.name, url: r.MainURL(p.name, "https://"+p.name+".test")})
}

func TestRegistrarLoadsEnabledPlugins(t *testing.T) {
	t.Parallel()

	off := false
	cfg := &config.Config{Providers: map[string]config.ProviderConfig{
		"beta":  {Enabled: &off},
		"alpha": {URL: "https://alpha.mirror/"},
	}}
	r := NewRegistrar(nil, cfg)
	r.LoadAll(stubPlugin{name: "Alpha"}, stubPlugin{name: "Beta"}, stubPlugin{name: "Broken", err: errors.New("boom")}, stubPlugin{name: "Gamma"})

	apis := r.APIs()
	require.Len(t, apis, 2)
	assert.Equal(t, "Alpha", apis[0].Name())
	assert.Equal(t, "https://alpha.mirror", apis[0].MainURL())
	assert.Equal(t, "https://Gamma.test", apis[1].MainURL())

	api, ok := r.API("GAMMA")
	require.True(t, ok)
	assert.Equal(t, "Gamma", api.Name())
}

func TestRegistrarRejectsDuplicates(t *testing.T) {
	t.Parallel()

	r := NewRegistrar(nil, nil)
	require.NoError(t, r.RegisterMainAPI(&stubAPI{name: "Vizer"}))
	assert.Error(t, r.RegisterMainAPI(&stubAPI{name: "vizer"}))
	assert.NotNil(t, r.Fetcher())
	assert.NotNil(t, r.Extractors().ByName("Blogger"))
}
