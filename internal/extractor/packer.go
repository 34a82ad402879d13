package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/pkg/errors"

	"github.com/alvarorichard/provedores/internal/util"
)

// ErrNotPacked is returned when a script has no eval(function(p,a,c,k,e,d)) block
var ErrNotPacked = errors.New("script is not packed")

const packerAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

var (
	packedRe = regexp.MustCompile(`(?s)eval\(function\(p,a,c,k,e,[dr]\)\{.*?\}\('(.*?)',\s*(\d+),\s*(\d+),\s*'(.*?)'\.split\('\|'\)`)
	wordRe   = regexp.MustCompile(`\b\w+\b`)

	jsUnescaper = strings.NewReplacer(`\\`, `\`, `\'`, `'`)
)

// DetectPacked reports whether script contains a packed block
func DetectPacked(script string) bool {
	return strings.Contains(script, "eval(function(p,a,c,k,e,")
}

// Unpack reverses the first packed block in script by replacing every base-N
// encoded word of the payload with its dictionary entry.
func Unpack(script string) (string, error) {
	m := packedRe.FindStringSubmatch(script)
	if m == nil {
		return "", ErrNotPacked
	}
	return unpackParts(m[1], m[2], m[3], m[4])
}

func unpackParts(payload, radixStr, countStr, dict string) (string, error) {
	radix, err := strconv.Atoi(radixStr)
	if err != nil {
		return "", errors.Wrap(err, "invalid radix")
	}
	if radix < 2 || radix > len(packerAlphabet) {
		return "", errors.Errorf("unsupported radix %d", radix)
	}
	count, _ := strconv.Atoi(countStr)

	words := strings.Split(dict, "|")
	if count > 0 && len(words) != count {
		util.Debug("packer dictionary size mismatch", "expected", count, "got", len(words))
	}

	payload = jsUnescaper.Replace(payload)
	return wordRe.ReplaceAllStringFunc(payload, func(w string) string {
		n, ok := unbase(w, radix)
		if !ok || n >= len(words) || words[n] == "" {
			return w
		}
		return words[n]
	}), nil
}

// unbase decodes w written in the packer alphabet for radix
func unbase(w string, radix int) (int, bool) {
	n := 0
	for i := 0; i < len(w); i++ {
		d := strings.IndexByte(packerAlphabet[:radix], w[i])
		if d < 0 {
			return 0, false
		}
		n = n*radix + d
	}
	return n, true
}

// UnpackAll returns every unpacked block of html followed by html itself, so
// regex scans see both the decoded and the plain markup
func UnpackAll(html string) string {
	if !DetectPacked(html) {
		return html
	}

	var b strings.Builder
	for _, m := range packedRe.FindAllStringSubmatch(html, -1) {
		out, err := unpackParts(m[1], m[2], m[3], m[4])
		if err != nil {
			util.Debug("failed to unpack block", "error", err)
			continue
		}
		b.WriteString(out)
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		if out, err := evalPacked(html); err == nil {
			b.WriteString(out)
			b.WriteString("\n")
		}
	}
	b.WriteString(html)
	return b.String()
}

// UnpackJS unpacks script natively and falls back to evaluating the packer
// function in a JavaScript VM for variants the dictionary pass cannot handle.
func UnpackJS(script string) (string, error) {
	out, err := Unpack(script)
	if err == nil {
		return out, nil
	}
	util.Debug("native unpack failed, evaluating packer", "error", err)
	return evalPacked(script)
}

const evalTimeout = 2 * time.Second

func evalPacked(script string) (string, error) {
	idx := strings.Index(script, "eval(function(p,a,c,k,e,")
	if idx < 0 {
		return "", ErrNotPacked
	}
	expr, ok := balancedCall(script[idx+len("eval"):])
	if !ok {
		return "", errors.New("unterminated packed expression")
	}

	vm := goja.New()
	timer := time.AfterFunc(evalTimeout, func() {
		vm.Interrupt("packer evaluation timed out")
	})
	defer timer.Stop()

	v, err := vm.RunString(expr)
	if err != nil {
		return "", errors.Wrap(err, "failed to evaluate packed script")
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "", errors.New("packed script evaluated to nothing")
	}
	return v.String(), nil
}

// balancedCall returns the parenthesized expression at the start of s,
// skipping quoted strings
func balancedCall(s string) (string, bool) {
	if !strings.HasPrefix(s, "(") {
		return "", false
	}
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}
