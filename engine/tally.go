package engine

import "sort"

// resolvedBallot is one counted ballot with its party affiliation at
// the vote date already looked up.
type resolvedBallot struct {
	personID int64
	choice   Choice
	party    *Membership
}

// tallyVote folds one vote's ballots into the per-person accumulators
// and produces the published vote summary. Ballots referencing unknown
// persons are dropped and counted; ballots with unknown choice codes
// are surfaced as integrity issues and excluded from every tally.
func (r *run) tallyVote(v *Vote) VoteSummary {
	ballots := r.ballotsByVote[v.ID]
	resolved := make([]resolvedBallot, 0, len(ballots))
	buckets := make(map[int64]map[Choice]int)

	for _, b := range ballots {
		if _, ok := r.persons[b.PersonID]; !ok {
			r.stats.DroppedBallots++
			r.issues = append(r.issues, IntegrityIssue{
				Kind:     IssueOrphanBallot,
				VoteID:   v.ID,
				PersonID: b.PersonID,
			})
			continue
		}
		choice, ok := ParseChoice(b.Code)
		if !ok {
			r.stats.UnknownChoices++
			r.issues = append(r.issues, IntegrityIssue{
				Kind:     IssueUnknownChoice,
				VoteID:   v.ID,
				PersonID: b.PersonID,
				Code:     b.Code,
			})
			continue
		}

		party := r.ix.PartyOn(b.PersonID, v.Date)
		resolved = append(resolved, resolvedBallot{personID: b.PersonID, choice: choice, party: party})

		t := r.tally(b.PersonID)
		t.total++
		t.counts.Add(choice)
		if t.latestVote.Before(v.Date) {
			t.latestVote = v.Date
		}
		t.recent = append(t.recent, RecentVote{
			VoteID:     v.ID,
			Date:       v.Date.String(),
			VoteTypeID: int64(choice),
			VoteType:   r.in.ChoiceLabels[choice],
			CaseNumber: v.CaseNumber,
			CaseTitle:  v.DisplayTitle(),
			Passed:     v.Passed,
		})

		if choice.InScope() && party != nil {
			bucket := buckets[party.Org.ID]
			if bucket == nil {
				bucket = make(map[Choice]int)
				buckets[party.Org.ID] = bucket
			}
			bucket[choice]++
		}
	}

	majorities := make(map[int64]Choice, len(buckets))
	splits := 0
	for orgID, bucket := range buckets {
		if line, ok := majorityChoice(bucket); ok {
			majorities[orgID] = line
		} else {
			splits++
		}
	}
	r.stats.SplitParties += splits

	summary := VoteSummary{
		ID:              v.ID,
		Number:          v.Number,
		Date:            v.Date.String(),
		Passed:          v.Passed,
		Conclusion:      v.Conclusion,
		Comment:         v.Comment,
		TypeID:          v.TypeID,
		TypeName:        v.TypeName,
		CaseStepID:      v.CaseStepID,
		CaseStepTitle:   v.CaseStepTitle,
		CaseStepType:    v.CaseStepType,
		CaseID:          v.CaseID,
		CaseTitle:       v.CaseTitle,
		CaseShortTitle:  v.CaseShortTitle,
		CaseNumber:      v.CaseNumber,
		CaseTypeID:      v.CaseTypeID,
		Documents:       v.Documents,
		GroupsByParty:   make(map[string]ChoiceGroups),
		PartySplitCount: splits,
	}

	for _, rb := range resolved {
		// Loyalty: compare in-scope choices against the member's own
		// party line, when that party resolved one.
		if rb.choice.InScope() && rb.party != nil {
			if line, ok := majorities[rb.party.Org.ID]; ok {
				t := r.tally(rb.personID)
				t.loyaltyTotal++
				if rb.choice == line {
					t.loyaltyMatches++
				}
			}
		}

		summary.Counts.Add(rb.choice)
		summary.Groups.add(rb.personID, rb.choice)

		label := "Uden parti"
		if rb.party != nil {
			if s := rb.party.Org.ShortName; s != "" {
				label = s
			} else if n := rb.party.Org.Name; n != "" {
				label = n
			}
		}
		groups := summary.GroupsByParty[label]
		groups.add(rb.personID, rb.choice)
		summary.GroupsByParty[label] = groups
	}

	summary.Margin = summary.Counts.Margin()
	summary.Groups.sort()
	summary.Groups = summary.Groups.normalized()
	for label, groups := range summary.GroupsByParty {
		groups.sort()
		summary.GroupsByParty[label] = groups.normalized()
	}
	if summary.Documents == nil {
		summary.Documents = []DocumentLink{}
	}
	return summary
}

// majorityChoice resolves a party's line from its in-scope tally,
// largest bucket first with the lower choice code breaking count ties
// below the top. An exact tie between the two largest buckets means the
// party split and no line exists.
func majorityChoice(bucket map[Choice]int) (Choice, bool) {
	type entry struct {
		choice Choice
		n      int
	}
	entries := make([]entry, 0, len(bucket))
	for c, n := range bucket {
		entries = append(entries, entry{choice: c, n: n})
	}
	if len(entries) == 0 {
		return 0, false
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].n != entries[j].n {
			return entries[i].n > entries[j].n
		}
		return entries[i].choice < entries[j].choice
	})
	if len(entries) > 1 && entries[0].n == entries[1].n {
		return 0, false
	}
	return entries[0].choice, true
}

func (g *ChoiceGroups) sort() {
	sortIDs(g.For)
	sortIDs(g.Against)
	sortIDs(g.Absent)
	sortIDs(g.Neither)
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
