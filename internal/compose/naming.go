package compose

import (
	"errors"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NamingMode selects how output files are named.
type NamingMode string

const (
	NamingLiteral NamingMode = "literal"
	NamingSmart   NamingMode = "smart"
)

const fallbackName = "image"

// NamingPolicy resolves the output filename of each processed file.
type NamingPolicy struct {
	Mode      NamingMode
	Base      string
	Separator string
}

func (p NamingPolicy) Validate() error {
	switch p.Mode {
	case "", NamingSmart:
		return nil
	case NamingLiteral:
		if strings.ContainsAny(p.Base+p.Separator, `/\`) {
			return errors.New("base name must not contain path separators")
		}
		return nil
	}
	return errors.New("unknown naming mode " + strconv.Quote(string(p.Mode)))
}

// Resolve returns the filename for the index-th input (zero based). ext
// includes the leading dot.
func (p NamingPolicy) Resolve(original string, index int, ext string) string {
	if p.Mode == NamingLiteral {
		base := strings.TrimSpace(p.Base)
		if base == "" {
			base = fallbackName
		}
		sep := p.Separator
		if sep == "" {
			sep = "_"
		}
		return base + sep + strconv.Itoa(index+1) + ext
	}
	return SmartName(original) + ext
}

var (
	noiseTokens = map[string]struct{}{
		"img": {}, "image": {}, "dsc": {}, "dscn": {}, "dcim": {}, "photo": {}, "pic": {},
		"copy": {}, "final": {}, "edited": {}, "edit": {}, "untitled": {}, "screenshot": {},
		"scan": {}, "pxl": {}, "wa": {}, "whatsapp": {}, "removebg": {}, "preview": {},
		"min": {}, "compressed": {}, "resized": {}, "new": {},
	}
	counterPattern   = regexp.MustCompile(`\(\d+\)`)
	dimensionPattern = regexp.MustCompile(`^\d+x\d+$`)
	hexPattern       = regexp.MustCompile(`^[0-9a-f]{8,}$`)
	digitsPattern    = regexp.MustCompile(`^\d+$`)
)

// SmartName derives a clean base name from an uploaded filename: accents are
// folded, camera prefixes, copy markers, counters, bare numbers, dimensions and
// hash-like runs are dropped, and the remaining words are joined with dashes.
func SmartName(original string) string {
	stem := filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	stem = strings.TrimSuffix(stem, filepath.Ext(stem))
	stem = counterPattern.ReplaceAllString(stem, " ")
	// Transformers and casers carry state, so build them per call.
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, stem); err == nil {
		stem = folded
	}
	stem = cases.Lower(language.Und).String(stem)
	tokens := strings.FieldsFunc(stem, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	kept := tokens[:0]
	for _, tok := range tokens {
		if isNoise(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	if len(kept) == 0 {
		return fallbackName
	}
	return strings.Join(kept, "-")
}

func isNoise(tok string) bool {
	if _, ok := noiseTokens[tok]; ok {
		return true
	}
	if digitsPattern.MatchString(tok) || dimensionPattern.MatchString(tok) {
		return true
	}
	return hexPattern.MatchString(tok) && strings.ContainsAny(tok, "0123456789")
}
