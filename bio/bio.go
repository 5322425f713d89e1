// Package bio extracts member facts from the Aktør biography blob.
//
// The biografi column holds pseudo-XML that is frequently not well
// formed, so the extraction is regex-based and tolerant:
// pull the tag span, strip markup, unescape entities, and trim. The
// structured fields feed member profiles; everything else in the blob
// is ignored.
package bio

import (
	"html"
	"regexp"
	"strings"
	"sync"
)

// Fields is what a member biography yields for profile building.
type Fields struct {
	MemberURL    string
	PhotoURL     string
	Profession   string
	Title        string
	Constituency string
	PartyShort   string
}

// Parse extracts the profile-relevant fields from a biography blob.
func Parse(biography string) Fields {
	constituency := ExtractTag(biography, "currentConstituency")
	if constituency == "" {
		constituency = ExtractTag(biography, "constituency")
	}
	photo := NormalizePhotoURL(ExtractTag(biography, "pictureMiRes"))
	if photo == "" {
		photo = NormalizePhotoURL(ExtractTag(biography, "pictureHiRes"))
	}
	return Fields{
		MemberURL:    NormalizeMemberURL(ExtractTag(biography, "url")),
		PhotoURL:     photo,
		Profession:   ExtractTag(biography, "profession"),
		Title:        ExtractTag(biography, "title"),
		Constituency: constituency,
		PartyShort:   ExtractTag(biography, "partyShortname"),
	}
}

var tagPatterns sync.Map // tag name -> *regexp.Regexp

func tagPattern(tag string) *regexp.Regexp {
	if cached, ok := tagPatterns.Load(tag); ok {
		return cached.(*regexp.Regexp)
	}
	quoted := regexp.QuoteMeta(tag)
	re := regexp.MustCompile(`(?s)<` + quoted + `>(.*?)</` + quoted + `>`)
	tagPatterns.Store(tag, re)
	return re
}

var markupPattern = regexp.MustCompile(`<[^>]+>`)

// ExtractTag returns the text inside the first <tag>...</tag> span,
// with nested markup stripped and entities unescaped. Missing or empty
// tags yield "".
func ExtractTag(blob, tag string) string {
	if blob == "" {
		return ""
	}
	match := tagPattern(tag).FindStringSubmatch(blob)
	if match == nil {
		return ""
	}
	text := markupPattern.ReplaceAllString(match[1], "")
	return strings.TrimSpace(html.UnescapeString(text))
}

// NormalizeMemberURL absolutizes a member page link against ft.dk.
func NormalizeMemberURL(raw string) string {
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	if strings.HasPrefix(raw, "/") {
		return "https://www.ft.dk" + raw
	}
	return "https://www.ft.dk/" + strings.TrimLeft(raw, "/")
}

// NormalizePhotoURL absolutizes a portrait link against ft.dk. Archive
// bundles are not portraits, so .zip links drop.
func NormalizePhotoURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasSuffix(strings.ToLower(raw), ".zip") {
		return ""
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	if strings.HasPrefix(raw, "/") {
		return "https://www.ft.dk" + raw
	}
	return "https://www.ft.dk/" + strings.TrimLeft(raw, "/")
}

var constituencyPattern = regexp.MustCompile(`i ([^.]+?)(?: fra |, )`)
var leadingIPattern = regexp.MustCompile(`^i\s+`)

// ConstituencyLabel condenses the free-text constituency sentence to
// the bare district name, e.g. "Valgt i Østjyllands Storkreds fra
// 1. november 2022" to "Østjyllands Storkreds". Unparseable text
// passes through cleaned rather than getting lost.
func ConstituencyLabel(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := strings.Join(strings.Fields(strings.ReplaceAll(raw, " ", " ")), " ")

	label := cleaned
	if match := constituencyPattern.FindStringSubmatch(cleaned); match != nil {
		label = strings.TrimSpace(match[1])
	}
	label = leadingIPattern.ReplaceAllString(label, "")
	return strings.Trim(label, " .")
}
