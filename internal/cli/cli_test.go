package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvarorichard/provedores/pkg/provedores"
)

// These tests share the util debug and logger globals, so they run serially.

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "provedores.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := runWithLog(t, args...)
	return out, err
}

// runWithLog also returns what the command logged to stderr
func runWithLog(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestListJSON(t *testing.T) {
	cfg := writeConfig(t, "[providers.netcine]\nenabled = false\n")

	out, err := run(t, "--config", cfg, "--json", "list")
	require.NoError(t, err)

	var providers []provedores.ProviderInfo
	require.NoError(t, json.Unmarshal([]byte(out), &providers))
	require.Len(t, providers, 6)
	assert.Equal(t, "AnimeFire", providers[0].Name)
	for _, p := range providers {
		assert.NotEqual(t, "NetCine", p.Name)
	}
}

func TestListText(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t, ""), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ReiDosCanais")
	assert.Contains(t, out, "https://vizer.tv")
}

func TestListExtractors(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := run(t, "--config", cfg, "--json", "list", "--extractors")
	require.NoError(t, err)

	var names []string
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	assert.Contains(t, names, "Mixdrop")
	assert.Contains(t, names, "ReiDosCanais")

	out, err = run(t, "--config", cfg, "list", "--extractors")
	require.NoError(t, err)
	assert.Contains(t, out, "Streamtape")
}

func TestVersionFlag(t *testing.T) {
	out, err := run(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "provedores v")
}

func TestSearchWithMirror(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pesquisar/cidade de deus", r.URL.Path)
		_, _ = fmt.Fprint(w, `<a class="gPoster" href="/filme/online/cidade-de-deus"><div class="i"><span>Cidade de Deus</span><div class="y">2002</div></div></a>`)
	}))
	defer server.Close()

	cfg := writeConfig(t, fmt.Sprintf("[http]\nmax_retries = 0\n\n[providers.vizer]\nurl = %q\n", server.URL))

	out, err := run(t, "--config", cfg, "--json", "search", "--provider", "vizer", "cidade", "de", "deus")
	require.NoError(t, err)

	var results []provedores.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "Cidade de Deus", results[0].Name)
	assert.Equal(t, 2002, results[0].Year)

	out, logged, err := runWithLog(t, "--config", cfg, "search", "-p", "vizer", "cidade de deus")
	require.NoError(t, err)
	assert.Contains(t, out, "Cidade de Deus (2002)")
	assert.Contains(t, out, "[Vizer]")
	assert.Contains(t, logged, "Search finished")
	assert.NotContains(t, out, "Search finished")
}

func TestUnknownProvider(t *testing.T) {
	cfg := writeConfig(t, "")

	_, err := run(t, "--config", cfg, "links", "nope", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")

	_, err = run(t, "--config", cfg, "home", "nope")
	require.Error(t, err)
}

func TestArgumentValidation(t *testing.T) {
	cfg := writeConfig(t, "")

	_, err := run(t, "--config", cfg, "load", "vizer")
	require.Error(t, err)

	_, err = run(t, "--config", cfg, "search")
	require.Error(t, err)
}
