// Package hverv parses the register of offices and financial
// interests ("hverv og økonomiske interesser") from saved ft.dk member
// page sections and assembles the published report.
//
// The register is voluntary. A member without registrations has not
// necessarily declared the absence of interests, only declined to
// register; the report states this caveat on every affected record.
// Inputs are HTML captures of the #hverv section, one file per member
// id; fetching the pages is outside this package.
package hverv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/folkevalget/folkevalget/engine"
	"github.com/folkevalget/folkevalget/enrich"
)

// ReportNote is the caveat printed on the report as a whole.
const ReportNote = "Hvervregisteret er frivilligt. Manglende registreringer betyder " +
	"IKKE nødvendigvis fraværet af økonomiske interesser."

// noRegistrationsNote marks members whose section exists but is empty.
const noRegistrationsNote = "Ingen registreringer. Registreringen er frivillig — " +
	"dette er ikke ensbetydende med fraværet af interesser."

// noSectionNote marks members whose page carries no register section,
// which is legitimate for new members and North Atlantic mandates.
const noSectionNote = "Siden har ingen hverv-sektion. Registreringen er frivillig."

// Registration is one declared office or interest.
type Registration struct {
	Category    string          `json:"kategori"`
	Description string          `json:"beskrivelse"`
	Company     *enrich.Company `json:"cvr"`
}

// MemberRecord is one member's slice of the report.
type MemberRecord struct {
	ID              int64          `json:"id"`
	Name            string         `json:"navn"`
	Registrations   []Registration `json:"registreringer"`
	NoRegistrations bool           `json:"ingen_registreringer"`
	NoSection       bool           `json:"ingen_hverv_sektion,omitempty"`
	Note            string         `json:"registrering_note,omitempty"`
	SourceURL       string         `json:"kilde_url"`
	FetchedAt       string         `json:"hentet"`
	Error           string         `json:"fejl,omitempty"`
}

// Report is the published hverv.json document.
type Report struct {
	Generated   string                  `json:"genereret"`
	MemberCount int                     `json:"antal_mf"`
	Note        string                  `json:"note"`
	Members     map[string]MemberRecord `json:"medlemmer"`
}

// ParseSection extracts registrations from a saved #hverv section.
// Each article holds one registration: a strong element naming the
// category and paragraphs describing it. Articles with an h3 are
// headers and articles without a strong are footers; both are skipped.
func ParseSection(r io.Reader) ([]Registration, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse hverv section: %w", err)
	}

	var registrations []Registration
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "article" {
			if reg, ok := parseArticle(n); ok {
				registrations = append(registrations, reg)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return registrations, nil
}

func parseArticle(article *html.Node) (Registration, bool) {
	if findElement(article, "h3") != nil {
		return Registration{}, false
	}
	strong := findElement(article, "strong")
	if strong == nil {
		return Registration{}, false
	}

	category := strings.TrimRight(nodeText(strong, ""), ":")

	var parts []string
	collectElements(article, "p", func(p *html.Node) {
		if text := nodeText(p, " "); text != "" {
			parts = append(parts, text)
		}
	})
	description := strings.Join(parts, " ")

	if category == "" && description == "" {
		return Registration{}, false
	}
	return Registration{Category: category, Description: description}, true
}

// findElement returns the first descendant element with the given tag.
func findElement(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// collectElements calls fn for every descendant element with the given
// tag, in document order.
func collectElements(n *html.Node, tag string, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			fn(c)
		}
		collectElements(c, tag, fn)
	}
}

// nodeText joins the trimmed text fragments under n with sep.
func nodeText(n *html.Node, sep string) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, sep)
}

// MemberPageURL rewrites a member URL onto the Danish site section,
// where the register section lives.
func MemberPageURL(memberURL string) string {
	if memberURL == "" || strings.Contains(memberURL, "/da/") {
		return memberURL
	}
	return strings.Replace(memberURL, "https://www.ft.dk/", "https://www.ft.dk/da/", 1)
}

// Builder assembles the report from saved sections.
type Builder struct {
	cvr      *enrich.CVRClient
	existing *Report
	logger   *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithCVR enables company lookups for quoted names in registration
// descriptions.
func WithCVR(client *enrich.CVRClient) BuilderOption {
	return func(b *Builder) {
		b.cvr = client
	}
}

// WithExisting seeds the report with a previous run's records, so an
// interrupted collection resumes instead of starting over.
func WithExisting(report *Report) BuilderOption {
	return func(b *Builder) {
		b.existing = report
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = l
	}
}

// NewBuilder creates a report builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build reads htmlDir/<id>.html for every profile and assembles the
// report. A missing file records a no-section member; an unreadable
// one records the error. Every processed member replaces their record
// from the seeded report.
func (b *Builder) Build(ctx context.Context, profiles []engine.Profile, htmlDir string, today engine.Date) (*Report, error) {
	report := &Report{
		Generated:   today.String(),
		MemberCount: len(profiles),
		Note:        ReportNote,
		Members:     make(map[string]MemberRecord, len(profiles)),
	}
	if b.existing != nil {
		for key, record := range b.existing.Members {
			report.Members[key] = record
		}
	}

	for i := range profiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record := b.buildMember(ctx, &profiles[i], htmlDir, today)
		report.Members[fmt.Sprintf("%d", record.ID)] = record
	}

	registered := 0
	for _, record := range report.Members {
		if len(record.Registrations) > 0 {
			registered++
		}
	}
	b.logger.Info("assembled interests report",
		"members", len(report.Members),
		"with_registrations", registered)
	return report, nil
}

func (b *Builder) buildMember(ctx context.Context, profile *engine.Profile, htmlDir string, today engine.Date) MemberRecord {
	record := MemberRecord{
		ID:        profile.ID,
		Name:      profile.Name,
		SourceURL: MemberPageURL(profile.MemberURL),
		FetchedAt: today.String(),
	}

	path := filepath.Join(htmlDir, fmt.Sprintf("%d.html", profile.ID))
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		record.Registrations = []Registration{}
		record.NoRegistrations = true
		record.NoSection = true
		record.Note = noSectionNote
		return record
	}
	if err != nil {
		record.Registrations = []Registration{}
		record.Error = err.Error()
		return record
	}
	defer f.Close()

	registrations, err := ParseSection(f)
	if err != nil {
		record.Registrations = []Registration{}
		record.Error = err.Error()
		return record
	}
	if registrations == nil {
		registrations = []Registration{}
	}

	if b.cvr != nil {
		b.enrichRegistrations(ctx, registrations)
	}

	record.Registrations = registrations
	record.NoRegistrations = len(registrations) == 0
	if len(registrations) == 0 {
		record.Note = noRegistrationsNote
	}
	return record
}

// enrichRegistrations attaches CVR matches where a description quotes
// a company name. Lookups are best effort.
func (b *Builder) enrichRegistrations(ctx context.Context, registrations []Registration) {
	for i := range registrations {
		name := enrich.QuotedCompanyName(registrations[i].Description)
		if name == "" {
			continue
		}
		company, err := b.cvr.Lookup(ctx, name)
		if err != nil {
			b.logger.Debug("cvr lookup failed", "company", name, "error", err)
			continue
		}
		registrations[i].Company = company
	}
}

// LoadReport reads a previously written report. A missing or
// unreadable file yields nil.
func LoadReport(path string) *Report {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var report Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil
	}
	return &report
}
