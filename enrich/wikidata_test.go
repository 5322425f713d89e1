package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestNormalizeNameText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Mette Frederiksen", "mette frederiksen"},
		{"José García", "jose garcia"},
		{"Pia Kjærsgaard", "pia kj rsgaard"},
		{"Søren-Pape Poulsen", "s ren pape poulsen"},
		{"  Ida   Auken  ", "ida auken"},
		{"O'Neill", "o neill"},
	}
	for _, tt := range tests {
		if got := normalizeNameText(tt.in); got != tt.want {
			t.Errorf("normalizeNameText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNameScore(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		candidate string
		want      int
	}{
		{"exact", "Mette Frederiksen", "Mette Frederiksen", 140},
		{"exact after normalization", "Mette Frederiksen", "mette  FREDERIKSEN", 140},
		{"no overlap", "Mette Frederiksen", "Lars Jensen", 0},
		{"query inside candidate", "Mette Frederiksen", "Mette Frederiksen Jensen", 2*16 + 28 + 35},
		{"candidate inside query", "Mette Frederiksen", "Frederiksen", 16 + 10},
		{"empty query", "", "Mette Frederiksen", 0},
		{"empty candidate", "Mette Frederiksen", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nameScore(tt.query, tt.candidate); got != tt.want {
				t.Errorf("nameScore(%q, %q) = %d, want %d", tt.query, tt.candidate, got, tt.want)
			}
		})
	}
}

func TestCandidateScore(t *testing.T) {
	tests := []struct {
		name   string
		result searchResult
		want   int
	}{
		{
			name:   "exact label with political description",
			result: searchResult{Label: "Mette Frederiksen", Description: "Danish politician"},
			want:   140 + 24 + 8,
		},
		{
			name:   "negative description",
			result: searchResult{Label: "Mette Frederiksen", Description: "studio album"},
			want:   140 - 18,
		},
		{
			name:   "alias beats weak label",
			result: searchResult{Label: "MF", Aliases: []string{"Mette Frederiksen"}},
			want:   140 + 18,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := candidateScore("Mette Frederiksen", tt.result); got != tt.want {
				t.Errorf("candidateScore = %d, want %d", got, tt.want)
			}
		})
	}

	t.Run("alias match type boosts", func(t *testing.T) {
		result := searchResult{Label: "MF"}
		result.Match.Type = "alias"
		result.Match.Text = "Mette Frederiksen"
		if got := candidateScore("Mette Frederiksen", result); got != 140+22+8 {
			t.Errorf("candidateScore = %d, want %d", got, 140+22+8)
		}
	})
}

func decodeEntity(t *testing.T, raw string) *entityData {
	t.Helper()
	var entity entityData
	if err := json.Unmarshal([]byte(raw), &entity); err != nil {
		t.Fatalf("decode entity fixture: %v", err)
	}
	return &entity
}

func TestHasPoliticalSignal(t *testing.T) {
	tests := []struct {
		name     string
		entity   string
		fallback string
		want     bool
	}{
		{
			name:   "description keyword",
			entity: `{"descriptions":{"da":{"value":"dansk folketingsmedlem"}}}`,
			want:   true,
		},
		{
			name:   "position held claim",
			entity: `{"claims":{"P39":[{"mainsnak":{"datavalue":{"value":{"id":"Q12311817"}}}}]}}`,
			want:   true,
		},
		{
			name:   "occupation claim",
			entity: `{"claims":{"P106":[{"mainsnak":{"datavalue":{"value":{"id":"Q82955"}}}}]}}`,
			want:   true,
		},
		{
			name:     "fallback description",
			entity:   `{}`,
			fallback: "Danish politician",
			want:     true,
		},
		{
			name:     "unrelated person",
			entity:   `{"descriptions":{"en":{"value":"Danish footballer"}},"claims":{"P106":[{"mainsnak":{"datavalue":{"value":{"id":"Q937857"}}}}]}}`,
			fallback: "Danish footballer",
			want:     false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entity := decodeEntity(t, tt.entity)
			if got := hasPoliticalSignal(entity, tt.fallback); got != tt.want {
				t.Errorf("hasPoliticalSignal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCommonsImageURL(t *testing.T) {
	tests := []struct {
		name   string
		entity string
		want   string
	}{
		{
			name:   "jpeg portrait",
			entity: `{"claims":{"P18":[{"mainsnak":{"datavalue":{"value":"Mette Frederiksen 2019.jpg"}}}]}}`,
			want:   "https://upload.wikimedia.org/wikipedia/commons/5/5d/Mette_Frederiksen_2019.jpg",
		},
		{
			name:   "vector image skipped",
			entity: `{"claims":{"P18":[{"mainsnak":{"datavalue":{"value":"Party logo.svg"}}}]}}`,
			want:   "",
		},
		{
			name:   "no image claim",
			entity: `{"claims":{}}`,
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := commonsImageURL(decodeEntity(t, tt.entity)); got != tt.want {
				t.Errorf("commonsImageURL = %q, want %q", got, tt.want)
			}
		})
	}
}

// newWikidataServer serves canned search and entity documents and
// counts requests per endpoint.
func newWikidataServer(t *testing.T, searchJSON map[string]string, entityJSON map[string]string, searches, entities *atomic.Int64) *Wikidata {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/w/api.php":
			searches.Add(1)
			body, ok := searchJSON[r.URL.Query().Get("language")]
			if !ok {
				body = `{"search":[]}`
			}
			w.Write([]byte(body))
		case strings.HasPrefix(r.URL.Path, "/wiki/Special:EntityData/"):
			entities.Add(1)
			qid := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/wiki/Special:EntityData/"), ".json")
			body, ok := entityJSON[qid]
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Write([]byte(body))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return NewWikidata(WithWikidataBaseURL(srv.URL))
}

func TestPhotoURL(t *testing.T) {
	searchJSON := map[string]string{
		"da": `{"search":[
			{"id":"Q1","label":"Mette Frederiksen","description":"dansk politiker"},
			{"id":"Q2","label":"Mette Frederiksen (album)","description":"studio album"}]}`,
		"en": `{"search":[
			{"id":"Q1","label":"Mette Frederiksen","description":"Danish politician"}]}`,
	}
	entityJSON := map[string]string{
		"Q1": `{"entities":{"Q1":{
			"descriptions":{"en":{"value":"Danish politician"}},
			"claims":{
				"P39":[{"mainsnak":{"datavalue":{"value":{"id":"Q12311817"}}}}],
				"P18":[{"mainsnak":{"datavalue":{"value":"Mette Frederiksen 2019.jpg"}}}]}}}}`,
	}

	var searches, entities atomic.Int64
	client := newWikidataServer(t, searchJSON, entityJSON, &searches, &entities)

	got, err := client.PhotoURL(context.Background(), "Mette Frederiksen")
	if err != nil {
		t.Fatalf("PhotoURL: %v", err)
	}
	want := "https://upload.wikimedia.org/wikipedia/commons/5/5d/Mette_Frederiksen_2019.jpg"
	if got != want {
		t.Errorf("PhotoURL = %q, want %q", got, want)
	}
	if searches.Load() != 2 || entities.Load() != 1 {
		t.Errorf("request counts = %d searches, %d entities, want 2 and 1",
			searches.Load(), entities.Load())
	}

	// A repeat lookup is served entirely from the cache.
	if _, err := client.PhotoURL(context.Background(), "Mette Frederiksen"); err != nil {
		t.Fatalf("cached PhotoURL: %v", err)
	}
	if searches.Load() != 2 || entities.Load() != 1 {
		t.Errorf("cached lookup hit the network: %d searches, %d entities",
			searches.Load(), entities.Load())
	}
}

func TestPhotoURLNoMatchBelowThreshold(t *testing.T) {
	searchJSON := map[string]string{
		"da": `{"search":[{"id":"Q9","label":"Somebody Else","description":"Danish politician"}]}`,
	}

	var searches, entities atomic.Int64
	client := newWikidataServer(t, searchJSON, map[string]string{}, &searches, &entities)

	got, err := client.PhotoURL(context.Background(), "Mette Frederiksen")
	if err != nil {
		t.Fatalf("PhotoURL: %v", err)
	}
	if got != "" {
		t.Errorf("PhotoURL = %q, want empty", got)
	}
	if entities.Load() != 0 {
		t.Errorf("entity endpoint hit %d times for a below-threshold candidate", entities.Load())
	}
}

func TestPhotoURLSkipsNonPolitician(t *testing.T) {
	searchJSON := map[string]string{
		"da": `{"search":[{"id":"Q3","label":"Mette Frederiksen","description":"handball player"}]}`,
	}
	entityJSON := map[string]string{
		"Q3": `{"entities":{"Q3":{
			"descriptions":{"en":{"value":"Danish handball player"}},
			"claims":{"P18":[{"mainsnak":{"datavalue":{"value":"Somebody.jpg"}}}]}}}}`,
	}

	var searches, entities atomic.Int64
	client := newWikidataServer(t, searchJSON, entityJSON, &searches, &entities)

	got, err := client.PhotoURL(context.Background(), "Mette Frederiksen")
	if err != nil {
		t.Fatalf("PhotoURL: %v", err)
	}
	if got != "" {
		t.Errorf("PhotoURL = %q, want empty for a non-politician match", got)
	}
}
