package casedocs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/folkevalget/folkevalget/engine"
	"github.com/folkevalget/folkevalget/oda"
)

func TestLinks(t *testing.T) {
	rows := []oda.CaseDocument{
		{
			ID: 1, CaseID: 42,
			Document: &oda.Document{
				ID: 900, Title: "Lovforslag som fremsat",
				Files: []oda.File{
					{URL: "https://www.ft.dk/ripdf/l42.pdf", Format: "PDF", Variant: "A"},
					{URL: "https://www.ft.dk/html/l42.htm", Format: "HTML", Variant: "A"},
				},
			},
		},
		{
			// Same document attached again through another role row.
			ID: 2, CaseID: 42,
			Document: &oda.Document{
				ID: 900, Title: "Lovforslag som fremsat",
				Files: []oda.File{
					{URL: "https://www.ft.dk/ripdf/l42.pdf", Format: "PDF", Variant: "A"},
				},
			},
		},
		{
			ID: 3, CaseID: 43,
			Document: &oda.Document{
				ID: 901, Title: "Betænkning",
				Files: []oda.File{
					{URL: "", Format: "PDF"},
					{URL: "https://www.ft.dk/ripdf/b43.pdf", Format: "PDF", Variant: "B"},
				},
			},
		},
		{ID: 4, CaseID: 44, Document: nil},
	}

	byCase := Links(rows)

	if got := byCase[42]; len(got) != 2 {
		t.Fatalf("case 42 links = %d, want 2 after dedupe", len(got))
	}
	if byCase[42][0].URL != "https://www.ft.dk/ripdf/l42.pdf" || byCase[42][0].DocumentID != 900 {
		t.Errorf("case 42 first link = %+v", byCase[42][0])
	}
	if got := byCase[43]; len(got) != 1 || got[0].Variant != "B" {
		t.Errorf("case 43 links = %+v", got)
	}
	if _, ok := byCase[44]; ok {
		t.Error("document-less row produced links")
	}
}

func TestForVoteCapsLinks(t *testing.T) {
	byCase := map[int64][]engine.DocumentLink{
		42: {
			{URL: "u1"}, {URL: "u2"}, {URL: "u3"}, {URL: "u4"},
		},
	}

	got := ForVote(byCase, 42)
	if len(got) != MaxPerVote {
		t.Fatalf("links = %d, want %d", len(got), MaxPerVote)
	}
	if got[2].URL != "u3" {
		t.Errorf("third link = %q, want u3", got[2].URL)
	}

	empty := ForVote(byCase, 99)
	if empty == nil || len(empty) != 0 {
		t.Errorf("missing case links = %#v, want empty slice", empty)
	}
}

const sampleDocument = `<!DOCTYPE html>
<html>
<head><title>L 42 Lov om testdata</title></head>
<body>
<nav>skip me</nav>
<article>
<h1>Lov om testdata</h1>
<p>Forslaget fastsætter rammerne for offentlige testdata og pålægger
myndighederne at offentliggøre afstemningsresultater maskinlæsbart.</p>
<p>Loven træder i kraft den 1. januar 2024.</p>
</article>
</body>
</html>`

func TestSummarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(sampleDocument))
	}))
	t.Cleanup(srv.Close)

	s := NewSummarizer()
	summary, err := s.Summarize(context.Background(), srv.URL+"/html/l42.htm")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !strings.Contains(summary, "rammerne for offentlige testdata") {
		t.Errorf("summary lost body text: %q", summary)
	}
	if strings.Contains(summary, "<p>") || strings.Contains(summary, "<article>") {
		t.Errorf("summary still contains HTML: %q", summary)
	}
}

func TestSummarizeTruncates(t *testing.T) {
	long := "<html><body><article><p>" + strings.Repeat("ord og atter ord. ", 200) + "</p></article></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(long))
	}))
	t.Cleanup(srv.Close)

	s := NewSummarizer(WithMaxRunes(120))
	summary, err := s.Summarize(context.Background(), srv.URL+"/long.htm")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got := len([]rune(summary)); got > 121 {
		t.Errorf("summary runes = %d, want <= 121", got)
	}
	if !strings.HasSuffix(summary, "…") {
		t.Errorf("truncated summary missing ellipsis: %q", summary)
	}
}

func TestAnnotateSkipsNonHTML(t *testing.T) {
	var fetched atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetched.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(sampleDocument))
	}))
	t.Cleanup(srv.Close)

	byCase := map[int64][]engine.DocumentLink{
		42: {
			{URL: srv.URL + "/doc.htm", Format: "HTML"},
			{URL: srv.URL + "/doc.pdf", Format: "PDF"},
		},
	}

	s := NewSummarizer()
	s.Annotate(context.Background(), byCase, 2)

	if n := fetched.Load(); n != 1 {
		t.Errorf("fetched %d documents, want only the HTML one", n)
	}
	if byCase[42][0].Summary == "" {
		t.Error("HTML link missing summary")
	}
	if byCase[42][1].Summary != "" {
		t.Errorf("PDF link got summary %q", byCase[42][1].Summary)
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  string
	}{
		{name: "short passes through", text: "kort tekst", limit: 100, want: "kort tekst"},
		{name: "cuts at word boundary", text: "første andet tredje", limit: 14, want: "første andet…"},
		{name: "exact fit", text: "præcis", limit: 6, want: "præcis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateRunes(tt.text, tt.limit); got != tt.want {
				t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.text, tt.limit, got, tt.want)
			}
		})
	}
}
