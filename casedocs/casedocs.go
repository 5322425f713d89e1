// Package casedocs turns ODA document rows into the published source
// links behind each vote, optionally annotated with short markdown
// summaries of the linked pages.
package casedocs

import (
	"github.com/folkevalget/folkevalget/engine"
	"github.com/folkevalget/folkevalget/oda"
)

// MaxPerVote caps how many document links a vote summary carries.
const MaxPerVote = 3

// Links groups the published document links per case. Duplicate file
// URLs collapse to the first occurrence; rows without a document or a
// file URL are skipped.
func Links(rows []oda.CaseDocument) map[int64][]engine.DocumentLink {
	byCase := make(map[int64][]engine.DocumentLink)
	seen := make(map[int64]map[string]struct{})

	for _, row := range rows {
		if row.Document == nil {
			continue
		}
		for _, file := range row.Document.Files {
			if file.URL == "" {
				continue
			}
			urls := seen[row.CaseID]
			if urls == nil {
				urls = make(map[string]struct{})
				seen[row.CaseID] = urls
			}
			if _, ok := urls[file.URL]; ok {
				continue
			}
			urls[file.URL] = struct{}{}
			byCase[row.CaseID] = append(byCase[row.CaseID], engine.DocumentLink{
				DocumentID: row.Document.ID,
				Title:      row.Document.Title,
				URL:        file.URL,
				Format:     file.Format,
				Variant:    file.Variant,
			})
		}
	}
	return byCase
}

// ForVote returns the capped link list for one case, or an empty slice
// so the published JSON always carries an array.
func ForVote(byCase map[int64][]engine.DocumentLink, caseID int64) []engine.DocumentLink {
	links := byCase[caseID]
	if len(links) > MaxPerVote {
		links = links[:MaxPerVote]
	}
	out := make([]engine.DocumentLink, len(links))
	copy(out, links)
	return out
}
