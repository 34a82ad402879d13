package util

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	IsDebug bool

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4757")).
			Bold(true)

	debugErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FF4757")).
			Padding(1, 2)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA726")).
			Bold(true)
)

// SetDebugMode sets the debug mode
func SetDebugMode(debug bool) {
	IsDebug = debug
}

// ErrorHandler returns a stylized error message. Debug mode prints the full
// wrapped chain with stack.
func ErrorHandler(err error) string {
	if IsDebug {
		header := errorStyle.Render("DEBUG ERROR")
		return fmt.Sprintf("%s\n%s", header, debugErrorStyle.Render(fmt.Sprintf("%+v", err)))
	}

	styledError := errorStyle.Render(fmt.Sprintf("✗ %v", err))
	styledHint := warningStyle.Render("run with --debug to see details")
	return fmt.Sprintf("%s\n%s", styledError, styledHint)
}

// FoldAccents lowercases s and strips diacritics ("Ação" -> "acao")
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

var slugStripRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a title into the dash separated form most sites use in paths
func Slugify(s string) string {
	slug := slugStripRe.ReplaceAllString(FoldAccents(s), "-")
	return strings.Trim(slug, "-")
}

// NormalizeQuery collapses separators and whitespace in a search query
func NormalizeQuery(query string) string {
	q := strings.TrimSpace(query)
	q = strings.ReplaceAll(q, "-", " ")
	q = strings.ReplaceAll(q, "_", " ")
	return strings.Join(strings.Fields(q), " ")
}

var (
	yearRe   = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	numberRe = regexp.MustCompile(`\d+`)
)

// ParseYear returns the first plausible year in s, or 0
func ParseYear(s string) int {
	m := yearRe.FindString(s)
	if m == "" {
		return 0
	}
	year, _ := strconv.Atoi(m)
	return year
}

// FirstNumber returns the first integer in s, or fallback when none is found
func FirstNumber(s string, fallback int) int {
	m := numberRe.FindString(s)
	if m == "" {
		return fallback
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return fallback
	}
	return n
}

// DecodeBase64 decodes standard or URL-safe base64, padded or not
func DecodeBase64(s string) (string, error) {
	s = strings.TrimSpace(s)
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err == nil {
			return string(b), nil
		}
		lastErr = err
	}
	return "", lastErr
}

// LooksLikeBase64URL reports whether s is a base64 encoded http(s) URL
func LooksLikeBase64URL(s string) bool {
	return strings.HasPrefix(s, "aHR0c")
}
