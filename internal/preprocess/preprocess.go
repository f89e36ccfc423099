// Package preprocess turns raw job text into the normalized text and keyword set used for
// embedding and fuzzy skill matching. Every function here is pure.
package preprocess

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
	"golang.org/x/net/html"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinKeywordLength keeps two-letter technologies such as go, ai and ml.
const MinKeywordLength = 2

// acronyms are technologies too short or too common to survive as lowercase tokens. They become
// keywords only when written in capitals, so "it" in prose stays a stop word while "IT" is kept.
var acronyms = map[string]string{
	"C":  "c",
	"R":  "r",
	"IT": "it",
}

// Result is the preprocessed form of a text.
type Result struct {
	Text     string
	Keywords []string
}

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:[.\-][\p{L}\p{N}]+)*[+#]*`)

var blockTags = map[string]bool{
	"br": true, "p": true, "div": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "td": true, "th": true, "section": true, "article": true,
}

// Preprocess strips markup, folds case and accents, lemmatizes tokens and drops stop words.
// The returned keyword set is sorted and deduplicated.
func Preprocess(raw string) Result {
	stripped := StripMarkup(raw)
	tokens := Tokens(stripped)

	kept := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	keywords := make([]string, 0, len(tokens))

	for _, token := range tokens {
		if IsStopWord(token) {
			continue
		}
		lemma := Lemma(token)
		if lemma == "" {
			continue
		}
		kept = append(kept, lemma)

		if !isKeyword(lemma) {
			continue
		}
		if _, ok := seen[lemma]; ok {
			continue
		}
		seen[lemma] = struct{}{}
		keywords = append(keywords, lemma)
	}

	for _, acronym := range Acronyms(stripped) {
		if _, ok := seen[acronym]; ok {
			continue
		}
		seen[acronym] = struct{}{}
		keywords = append(keywords, acronym)
	}

	sort.Strings(keywords)

	return Result{
		Text:     strings.Join(kept, " "),
		Keywords: keywords,
	}
}

// Acronyms returns the folded form of the capitalized short technologies in s, such as C, R
// and IT. C++ and C# are regular tokens and are not reported here.
func Acronyms(s string) []string {
	var out []string
	for _, token := range tokenPattern.FindAllString(s, -1) {
		if folded, ok := acronyms[token]; ok {
			out = append(out, folded)
		}
	}
	return out
}

// StripMarkup removes HTML tags, drops script and style content and collapses whitespace.
// Plain text passes through with whitespace collapsed.
func StripMarkup(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(raw))
	skip := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or malformed markup: keep what was collected so far.
			return collapse(b.String())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			if blockTags[tag] {
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style") && skip > 0 {
				skip--
				continue
			}
			if blockTags[tag] {
				b.WriteByte(' ')
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			b.Write(z.Text())
		}
	}
}

// Fold lowercases s and removes diacritics.
func Fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// Tokens folds s and splits it into word tokens. Tokens keep inner dots and dashes and trailing
// plus or hash signs, so c++, c# and node.js survive.
func Tokens(s string) []string {
	return tokenPattern.FindAllString(Fold(s), -1)
}

// Lemma reduces a folded token to its dictionary-like root. Tokens containing digits or
// symbols are returned unchanged.
func Lemma(token string) string {
	if token == "" {
		return ""
	}
	for _, r := range token {
		if !unicode.IsLetter(r) {
			return token
		}
	}
	return english.Stem(token, false)
}

// NormalizeTerm applies the keyword pipeline to a single skill or term, so candidate skills and
// job keywords are compared in the same space. Stop words inside multi-word terms are kept.
func NormalizeTerm(term string) string {
	tokens := Tokens(term)
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if lemma := Lemma(token); lemma != "" {
			out = append(out, lemma)
		}
	}
	return strings.Join(out, " ")
}

// NormalizeTerms normalizes, deduplicates and sorts terms, dropping empty ones.
func NormalizeTerms(terms ...[]string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, list := range terms {
		for _, term := range list {
			normalized := NormalizeTerm(term)
			if normalized == "" {
				continue
			}
			if _, ok := seen[normalized]; ok {
				continue
			}
			seen[normalized] = struct{}{}
			out = append(out, normalized)
		}
	}
	sort.Strings(out)
	return out
}

func isKeyword(lemma string) bool {
	if len([]rune(lemma)) < MinKeywordLength {
		return false
	}
	for _, r := range lemma {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
