package musicbrainz

// MusicBrainz API response types.

// Entity is a searchable MusicBrainz entity type. Its value is the path
// segment of the search endpoint.
type Entity string

// Searchable entities.
const (
	EntityArtist    Entity = "artist"
	EntityRecording Entity = "recording"
)

// SearchResponse is the top-level response from a search endpoint. Only the
// list matching the searched entity is populated.
type SearchResponse struct {
	Created    string        `json:"created"`
	Count      int           `json:"count"`
	Offset     int           `json:"offset"`
	Artists    []MBArtist    `json:"artists"`
	Recordings []MBRecording `json:"recordings"`
}

// MBArtist represents an artist search hit.
type MBArtist struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SortName       string `json:"sort-name"`
	Type           string `json:"type"`
	Country        string `json:"country"`
	Disambiguation string `json:"disambiguation"`
	Score          int    `json:"score"`
}

// MBRecording represents a recording search hit.
type MBRecording struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Length         int              `json:"length"`
	Disambiguation string           `json:"disambiguation"`
	Score          int              `json:"score"`
	ArtistCredit   []MBArtistCredit `json:"artist-credit"`
}

// MBArtistCredit names one credited artist on a recording.
type MBArtistCredit struct {
	Name string `json:"name"`
}

// Candidate is one ranked search hit. Artists carry Name, recordings carry
// Title. Score is the raw 0-100 relevance reported by the service.
type Candidate struct {
	ID    string
	Name  string
	Title string
	Score int
}

// candidates returns the hits for entity in service order.
func (r *SearchResponse) candidates(entity Entity) []Candidate {
	switch entity {
	case EntityArtist:
		out := make([]Candidate, 0, len(r.Artists))
		for _, a := range r.Artists {
			out = append(out, Candidate{ID: a.ID, Name: a.Name, Score: a.Score})
		}
		return out
	case EntityRecording:
		out := make([]Candidate, 0, len(r.Recordings))
		for _, rec := range r.Recordings {
			out = append(out, Candidate{ID: rec.ID, Title: rec.Title, Score: rec.Score})
		}
		return out
	default:
		return nil
	}
}
