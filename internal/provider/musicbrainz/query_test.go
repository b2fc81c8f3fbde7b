package musicbrainz

import (
	"strings"
	"testing"
)

func TestBuildQuery(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Radiohead", "Radiohead"},
		{"single marker", "M\uFFFDtley", "M_tley~"},
		{"marker per word", "M\uFFFDtley Cr\uFFFDe", "M_tley~ Cr_e~"},
		{"only marked words get suffix", "Sigur R\uFFFDs", "Sigur R_s~"},
		{"two markers in one word", "\uFFFD\uFFFDa", "__a~"},
		{"slash escaped", "AC/DC", `AC\/DC`},
		{"grouping escaped", "Hyperballad (live)", `Hyperballad \(live\)`},
		{"operators escaped", "a+b-c&d|e!", `a\+b\-c\&d\|e\!`},
		{"quote and colon", `"Title": Part`, `\"Title\"\: Part`},
		{"backslash escaped once", `a\b`, `a\\b`},
		{"wildcards escaped", "Why? *", `Why\? \*`},
		{"escape and marker", "R\uFFFD?", `R_\?~`},
		{"apostrophe untouched", "Guns N' Roses", "Guns N' Roses"},
		{"underscore untouched", "a_b", "a_b"},
		{"whitespace collapsed", "  The\t Beatles \n", "The Beatles"},
		{"empty", "", ""},
		{"blank", "   \t ", ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := BuildQuery(c.input); got != c.want {
				t.Errorf("BuildQuery(%q) = %q, want %q", c.input, got, c.want)
			}
		})
	}
}

func TestBuildQueryWithoutMarkerAddsNoFuzzySuffix(t *testing.T) {
	names := []string{
		"Radiohead",
		"Sigur Rós",
		"Beyoncé Knowles",
		"AC/DC",
		"The Artist (Formerly Known As Prince)",
		"Tilde~Band",
		"!!!",
	}
	for _, name := range names {
		q := BuildQuery(name)
		for _, word := range strings.Fields(q) {
			if strings.HasSuffix(word, fuzzySuffix) && !strings.HasSuffix(word, `\`+fuzzySuffix) {
				t.Errorf("BuildQuery(%q): word %q has an unescaped fuzzy suffix", name, word)
			}
		}
		if strings.Count(q, wildcard) != strings.Count(name, wildcard) {
			t.Errorf("BuildQuery(%q) = %q introduced a wildcard", name, q)
		}
	}
}

func TestBuildQueryMarkedWordsAreWildcarded(t *testing.T) {
	names := []string{
		"M\uFFFDtley Cr\uFFFDe",
		"Bj\uFFFDrk",
		"\uFFFD",
		"C\uFFFDline Dion",
		"Caf\uFFFD Tacvba (en vivo)",
	}
	for _, name := range names {
		inWords := strings.Fields(name)
		outWords := strings.Fields(BuildQuery(name))
		if len(inWords) != len(outWords) {
			t.Fatalf("BuildQuery(%q): word count changed from %d to %d", name, len(inWords), len(outWords))
		}
		for i, w := range inWords {
			markers := strings.Count(w, "\uFFFD")
			if markers == 0 {
				continue
			}
			out := outWords[i]
			if strings.Contains(out, "\uFFFD") {
				t.Errorf("word %q still holds a marker: %q", w, out)
			}
			if got := strings.Count(out, wildcard); got != markers {
				t.Errorf("word %q: expected %d wildcards, got %d in %q", w, markers, got, out)
			}
			if !strings.HasSuffix(out, fuzzySuffix) {
				t.Errorf("word %q: expected fuzzy suffix in %q", w, out)
			}
		}
	}
}
