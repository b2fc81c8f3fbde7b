// Package correction defines the values that flow through name resolution:
// the type hint, the provenance tag and the resolved result.
package correction

import (
	"fmt"
	"math"
	"strings"
)

// Marker is the Unicode replacement character substituted upstream for bytes
// that failed to decode.
const Marker = '\uFFFD'

// HasMarker reports whether name contains at least one corruption marker.
func HasMarker(name string) bool {
	return strings.ContainsRune(name, Marker)
}

// Type is the category hint supplied with a name. The literal value is part
// of the cache key, so "auto" and "artist" are stored separately even for the
// same name.
type Type string

// Known type hints.
const (
	TypeArtist Type = "artist"
	TypeSong   Type = "song"
	TypeAuto   Type = "auto"
)

// ParseType converts a raw hint to a Type. An empty string means TypeAuto.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TypeAuto, nil
	case TypeArtist, TypeSong, TypeAuto:
		return t, nil
	default:
		return "", fmt.Errorf("unknown type %q: want artist, song or auto", s)
	}
}

// Describe returns the phrase used when asking a model about this type.
func (t Type) Describe() string {
	switch t {
	case TypeArtist:
		return "artist name"
	case TypeSong:
		return "song title"
	default:
		return "song title or artist name"
	}
}

// Source tags where a correction came from.
type Source string

// Known sources.
const (
	SourceCache       Source = "cache"
	SourceMusicBrainz Source = "musicbrainz"
	SourceOpenAI      Source = "openai"
	SourceNone        Source = "none"
)

// Match is a correction produced by one resolution stage.
type Match struct {
	Corrected  string
	Source     Source
	Confidence float64
}

// Entry is a persisted correction keyed by (InputName, Type).
type Entry struct {
	InputName  string
	Type       Type
	Corrected  string
	Source     Source
	Confidence float64
}

// Result is the response for one resolution request.
type Result struct {
	Input      string  `json:"input"`
	Corrected  string  `json:"corrected"`
	Source     Source  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// RoundConfidence rounds a confidence to three decimal places.
func RoundConfidence(c float64) float64 {
	return math.Round(c*1000) / 1000
}
