package completion

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var placeholderRe = regexp.MustCompile(`\{(\d+)\}`)

// Pattern maps source text matching a regular expression to a class name,
// for factories the extractor cannot see through, e.g.
// Mage::getModel('catalog/product') → Mage_Catalog_Model_Product.
type Pattern struct {
	re       *regexp.Regexp
	class    string
	capFirst bool
}

// NewPattern compiles a pattern. match must cover the whole chain prefix;
// {n} in class is replaced with the n-th capture group.
func NewPattern(match, class string, capFirst bool) (Pattern, error) {
	re, err := regexp.Compile(`^(?:` + match + `)$`)
	if err != nil {
		return Pattern{}, fmt.Errorf("invalid pattern %q: %w", match, err)
	}
	for _, m := range placeholderRe.FindAllStringSubmatch(class, -1) {
		n, _ := strconv.Atoi(m[1])
		if n > re.NumSubexp() {
			return Pattern{}, fmt.Errorf("pattern %q has no group %d for %q", match, n, class)
		}
	}
	return Pattern{re: re, class: class, capFirst: capFirst}, nil
}

// Resolve returns the class text maps to, if the pattern matches all of it.
func (p Pattern) Resolve(text string) (string, bool) {
	m := p.re.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", false
	}
	class := placeholderRe.ReplaceAllStringFunc(p.class, func(ph string) string {
		n, _ := strconv.Atoi(ph[1 : len(ph)-1])
		if n >= len(m) {
			return ""
		}
		if p.capFirst {
			return upperFirst(m[n])
		}
		return m[n]
	})
	return class, true
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
