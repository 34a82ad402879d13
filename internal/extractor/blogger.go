package extractor

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/alvarorichard/provedores/internal/models"
	"github.com/alvarorichard/provedores/internal/util"
)

const (
	bloggerBaseURL = "https://www.blogger.com"
	bloggerRPCID   = "WcwnYd"
	// BloggerReferer must accompany every googlevideo link resolved from Blogger
	BloggerReferer = "https://www.blogger.com/"
)

var (
	bloggerTokenRe   = regexp.MustCompile(`(?:https?:)?//(?:www\.)?blogger\.com/video\.g\?token=([A-Za-z0-9_\-]+)`)
	bloggerConfigRe  = regexp.MustCompile(`(?s)VIDEO_CONFIG\s*=\s*(\{.*?\})\s*(?:;|</script>)`)
	bloggerSidRe     = regexp.MustCompile(`"FdrFJe"\s*:\s*"([^"]+)"`)
	bloggerBuildRe   = regexp.MustCompile(`"cfb2h"\s*:\s*"([^"]+)"`)
	bloggerXSSIGuard = ")]}'"
)

// FindBloggerToken returns the token of the first blogger video.g embed in html
func FindBloggerToken(html string) string {
	if m := bloggerTokenRe.FindStringSubmatch(html); m != nil {
		return m[1]
	}
	return ""
}

// Blogger resolves blogger.com/video.g embeds through the page's
// VIDEO_CONFIG or the BloggerVideoPlayerUi batchexecute RPC
type Blogger struct {
	fetch   *util.Fetcher
	baseURL string
}

// NewBlogger creates the extractor
func NewBlogger(fetch *util.Fetcher) *Blogger {
	return &Blogger{fetch: fetch, baseURL: bloggerBaseURL}
}

func (b *Blogger) Name() string { return "Blogger" }

func (b *Blogger) Matches(rawURL string) bool {
	return util.HostMatches(rawURL, "blogger.com") && strings.Contains(rawURL, "video.g")
}

func (b *Blogger) Extract(ctx context.Context, rawURL, _ string, _ models.SubtitleCallback, links models.LinkCallback) error {
	token := util.QueryParam(rawURL, "token")
	if token == "" {
		token = FindBloggerToken(rawURL)
	}
	if token == "" {
		return errors.Errorf("blogger url without token: %s", rawURL)
	}
	return b.ExtractToken(ctx, token, links)
}

type bloggerStream struct {
	url  string
	itag int
}

// ExtractToken resolves a video.g token into googlevideo links
func (b *Blogger) ExtractToken(ctx context.Context, token string, links models.LinkCallback) error {
	pageURL := b.baseURL + "/video.g?token=" + url.QueryEscape(token)
	resp, err := b.fetch.Get(ctx, pageURL, util.WithReferer(b.baseURL+"/"))
	if err != nil {
		return errors.Wrap(err, "failed to load blogger player")
	}
	page := resp.Text()

	streams := parseVideoConfig(page)
	if len(streams) == 0 {
		sid := firstGroup(bloggerSidRe, page)
		bl := firstGroup(bloggerBuildRe, page)
		if sid == "" || bl == "" {
			return errors.Wrap(ErrNoLinks, "blogger page has no session parameters")
		}
		streams, err = b.batchExecute(ctx, token, sid, bl)
		if err != nil {
			return err
		}
	}
	if len(streams) == 0 {
		return errors.Wrap(ErrNoLinks, "blogger")
	}

	seen := make(map[string]bool)
	for _, s := range streams {
		key := strconv.Itoa(s.itag)
		if s.itag == 0 {
			key = s.url
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		q := ItagQuality(s.itag)
		links(models.ExtractorLink{
			Source:  b.Name(),
			Name:    b.Name() + " " + q.String(),
			URL:     s.url,
			Referer: BloggerReferer,
			Quality: q,
			Type:    models.LinkTypeVideo,
		})
	}
	return nil
}

func parseVideoConfig(page string) []bloggerStream {
	m := bloggerConfigRe.FindStringSubmatch(page)
	if m == nil || !gjson.Valid(m[1]) {
		return nil
	}
	var out []bloggerStream
	gjson.Get(m[1], "streams").ForEach(func(_, s gjson.Result) bool {
		u := s.Get("play_url").String()
		if u == "" {
			return true
		}
		itag := int(s.Get("format_id").Int())
		if itag == 0 {
			itag = ItagFromURL(u)
		}
		out = append(out, bloggerStream{url: u, itag: itag})
		return true
	})
	return out
}

func (b *Blogger) batchExecute(ctx context.Context, token, sid, bl string) ([]bloggerStream, error) {
	q := url.Values{}
	q.Set("rpcids", bloggerRPCID)
	q.Set("source-path", "/video.g")
	q.Set("f.sid", sid)
	q.Set("bl", bl)
	q.Set("hl", "pt-BR")
	q.Set("_reqid", strconv.Itoa(1000+rand.Intn(90000)))
	q.Set("rt", "c")
	endpoint := b.baseURL + "/_/BloggerVideoPlayerUi/data/batchexecute?" + q.Encode()

	freq, err := bloggerRequest(token)
	if err != nil {
		return nil, err
	}
	resp, err := b.fetch.PostForm(ctx, endpoint, url.Values{"f.req": {freq}},
		util.WithHeader("Origin", b.baseURL),
		util.WithReferer(b.baseURL+"/"),
		util.WithHeader("X-Same-Domain", "1"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "blogger batchexecute failed")
	}
	return parseBatchExecute(resp.Text()), nil
}

// bloggerRequest builds f.req: [[["WcwnYd","[\"TOKEN\",\"\",0]",null,"generic"]]]
func bloggerRequest(token string) (string, error) {
	inner, err := json.Marshal([]interface{}{token, "", 0})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode blogger token")
	}
	outer, err := json.Marshal([][][]interface{}{{{bloggerRPCID, string(inner), nil, "generic"}}})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode blogger request")
	}
	return string(outer), nil
}

func parseBatchExecute(body string) []bloggerStream {
	body = strings.TrimPrefix(strings.TrimSpace(body), bloggerXSSIGuard)

	var out []bloggerStream
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "[") || !gjson.Valid(line) {
			continue
		}
		gjson.Parse(line).ForEach(func(_, entry gjson.Result) bool {
			if entry.Get("0").String() != "wrb.fr" || entry.Get("1").String() != bloggerRPCID {
				return true
			}
			payload := entry.Get("2").String()
			if !gjson.Valid(payload) {
				return true
			}
			walkStrings(gjson.Parse(payload), func(s string) {
				if IsGoogleVideoURL(s) {
					out = append(out, bloggerStream{url: s, itag: ItagFromURL(s)})
				}
			})
			return true
		})
	}
	return out
}

func walkStrings(v gjson.Result, visit func(string)) {
	switch {
	case v.IsArray() || v.IsObject():
		v.ForEach(func(_, child gjson.Result) bool {
			walkStrings(child, visit)
			return true
		})
	case v.Type == gjson.String:
		visit(v.String())
	}
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}
