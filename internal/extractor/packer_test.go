package extractor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const packedPlayer = `eval(function(p,a,c,k,e,d){e=function(c){return(c<a?'':e(parseInt(c/a)))+((c=c%a)>35?String.fromCharCode(c+29):c.toString(36))};if(!''.replace(/^/,String)){while(c--){d[e(c)]=k[c]||e(c)}k=[function(e){return d[e]}];e=function(){return'\\w+'};c=1};while(c--){if(k[c]){p=p.replace(new RegExp('\\b'+e(c)+'\\b','g'),k[c])}}return p}('0 1=2("3");1.4({5:[{6:"7://8.9/a/b.c",d:"e"}],f:"7://8.9/g.h"});0 i=\'//8.9/j/k.l\';',62,22,'var|player|jwplayer|vplayer|setup|sources|file|https|cdn|test|hls|master|m3u8|label|720p|image|poster|jpg|wurl|v|abc|mp4'.split('|'),0,{}))`

const unpackedPlayer = `var player=jwplayer("vplayer");player.setup({sources:[{file:"https://cdn.test/hls/master.m3u8",label:"720p"}],image:"https://cdn.test/poster.jpg"});var wurl='//cdn.test/v/abc.mp4';`

func TestDetectPacked(t *testing.T) {
	t.Parallel()

	assert.True(t, DetectPacked("<script>"+packedPlayer+"</script>"))
	assert.False(t, DetectPacked("<script>var a = 1;</script>"))
}

func TestUnpack(t *testing.T) {
	t.Parallel()

	out, err := Unpack(packedPlayer)
	require.NoError(t, err)
	assert.Equal(t, unpackedPlayer, out)
}

func TestUnpackMultiCharWords(t *testing.T) {
	t.Parallel()

	data, err := os.ReadFile(filepath.Join("testdata", "packed_long.js"))
	require.NoError(t, err)

	out, err := Unpack(string(data))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, unpackedPlayer))
	assert.Contains(t, out, "var w10=10;")
	assert.True(t, strings.HasSuffix(out, "var w39=39"))
}

func TestUnpackNotPacked(t *testing.T) {
	t.Parallel()

	_, err := Unpack("var a = 1;")
	assert.ErrorIs(t, err, ErrNotPacked)
}

func TestUnpackAllKeepsOriginalMarkup(t *testing.T) {
	t.Parallel()

	html := `<html><body><div id="x"></div><script>` + packedPlayer + `</script></body></html>`
	out := UnpackAll(html)
	assert.True(t, strings.HasPrefix(out, unpackedPlayer))
	assert.Contains(t, out, `<div id="x"></div>`)

	assert.Equal(t, "plain", UnpackAll("plain"))
}

func TestEvalPackedMatchesNativeUnpack(t *testing.T) {
	t.Parallel()

	out, err := evalPacked("<script>" + packedPlayer + "</script>")
	require.NoError(t, err)
	assert.Equal(t, unpackedPlayer, out)
}

func TestUnpackJSFallsBackToVM(t *testing.T) {
	t.Parallel()

	// A double quoted dictionary defeats the native pattern
	script := `eval(function(p,a,c,k,e,d){while(c--){if(k[c]){p=p.replace(new RegExp('\\b'+c.toString(a)+'\\b','g'),k[c])}}return p}('0 1="2"',36,3,"var|file|ok".split("|"),0,{}))`

	out, err := UnpackJS(script)
	require.NoError(t, err)
	assert.Equal(t, `var file="ok"`, out)
}

func TestBalancedCall(t *testing.T) {
	t.Parallel()

	expr, ok := balancedCall(`(f('a)b', "c(") + g(1)) trailing`)
	require.True(t, ok)
	assert.Equal(t, `(f('a)b', "c(") + g(1))`, expr)

	_, ok = balancedCall(`(unterminated`)
	assert.False(t, ok)
}
