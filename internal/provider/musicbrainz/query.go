package musicbrainz

import (
	"strings"

	"github.com/smkaiser/songfix/internal/correction"
)

const (
	// wildcard stands in for each corruption marker in a search term.
	wildcard = "_"
	// fuzzySuffix asks the search engine for an approximate match on a term.
	fuzzySuffix = "~"
)

// luceneEscaper escapes Lucene's reserved characters. The wildcard is not in
// the set, so substituted markers keep their meaning.
var luceneEscaper = strings.NewReplacer(
	`\`, `\\`,
	`+`, `\+`,
	`-`, `\-`,
	`&`, `\&`,
	`|`, `\|`,
	`!`, `\!`,
	`(`, `\(`,
	`)`, `\)`,
	`{`, `\{`,
	`}`, `\}`,
	`[`, `\[`,
	`]`, `\]`,
	`^`, `\^`,
	`"`, `\"`,
	`~`, `\~`,
	`*`, `\*`,
	`?`, `\?`,
	`:`, `\:`,
	`/`, `\/`,
)

// BuildQuery turns a possibly corrupted name into a Lucene search query.
// Every marker becomes a single-character wildcard, reserved characters are
// escaped, and words that held a marker get a fuzzy suffix. A blank name
// yields an empty query, which callers must not send.
func BuildQuery(name string) string {
	words := strings.Fields(name)
	out := make([]string, 0, len(words))
	for _, word := range words {
		marked := correction.HasMarker(word)
		word = strings.ReplaceAll(word, string(correction.Marker), wildcard)
		word = luceneEscaper.Replace(word)
		if marked {
			word += fuzzySuffix
		}
		out = append(out, word)
	}
	return strings.Join(out, " ")
}
