package reidoscanais

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/alvarorichard/provedores/internal/util"
)

// ErrNoCipher is returned when a page does not carry the encoded player
var ErrNoCipher = errors.New("page has no encoded player")

var (
	cipherArrayRe  = regexp.MustCompile(`(?s)var\s+[\w$]+\s*=\s*\[((?:\s*["'][A-Za-z0-9+/=]*["']\s*,?)+)\]`)
	cipherItemRe   = regexp.MustCompile(`["']([A-Za-z0-9+/=]*)["']`)
	cipherOffsetRe = regexp.MustCompile(`(?:parseInt|Number)\([^;]*?\)\s*-\s*(\d+)`)
	nonDigitRe     = regexp.MustCompile(`\D`)
)

// DecodeCipher reverses the embed page obfuscation: every array element is
// base64 text whose digits, minus a fixed offset, give one character code.
func DecodeCipher(page string) (string, error) {
	arr := cipherArrayRe.FindStringSubmatch(page)
	off := cipherOffsetRe.FindStringSubmatch(page)
	if arr == nil || off == nil {
		return "", ErrNoCipher
	}
	offset, err := strconv.Atoi(off[1])
	if err != nil {
		return "", errors.Wrap(err, "invalid cipher offset")
	}

	var b strings.Builder
	for _, item := range cipherItemRe.FindAllStringSubmatch(arr[1], -1) {
		decoded, err := util.DecodeBase64(item[1])
		if err != nil {
			return "", errors.Wrapf(err, "invalid cipher element %q", item[1])
		}
		digits := nonDigitRe.ReplaceAllString(decoded, "")
		if digits == "" {
			continue
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			return "", errors.Wrapf(err, "invalid cipher element %q", item[1])
		}
		code := n - offset
		if code < 0 {
			return "", errors.Errorf("cipher code below zero for %q", item[1])
		}
		// the page writes codes as Latin-1 bytes, multibyte text arrives as its UTF-8 bytes
		if code < 256 {
			b.WriteByte(byte(code))
		} else {
			b.WriteRune(rune(code))
		}
	}

	out := b.String()
	if !utf8.ValidString(out) {
		out = strings.ToValidUTF8(out, "")
	}
	return out, nil
}
