package engine

import "sort"

// idSet is a set of person ids keyed by organization.
type idSet map[int64]map[int64]struct{}

func (s idSet) add(orgID, personID int64) {
	members := s[orgID]
	if members == nil {
		members = make(map[int64]struct{})
		s[orgID] = members
	}
	members[personID] = struct{}{}
}

func (s idSet) contains(personID int64) bool {
	for _, members := range s {
		if _, ok := members[personID]; ok {
			return true
		}
	}
	return false
}

func (s idSet) sorted(orgID int64) []int64 {
	members := s[orgID]
	if len(members) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// currentMembers resolves today's party and committee rosters across
// every person in the input, not only those who end up with a profile.
func (r *run) currentMembers() (parties, committees idSet) {
	parties = make(idSet)
	committees = make(idSet)
	for i := range r.in.Persons {
		id := r.in.Persons[i].ID
		if m := r.ix.PartyOn(id, r.opts.Today); m != nil {
			parties.add(m.Org.ID, id)
		}
		for _, m := range r.ix.CommitteesOn(id, r.opts.Today) {
			committees.add(m.Org.ID, id)
		}
	}
	return parties, committees
}

// included reports whether a person earns a profile: they voted at
// least once, or they currently hold a party or committee seat.
func (r *run) included(personID int64, parties, committees idSet) bool {
	if _, ok := r.tallies[personID]; ok {
		return true
	}
	return parties.contains(personID) || committees.contains(personID)
}

// buildProfile assembles the published analytics record for one member.
func (r *run) buildProfile(p *Person) Profile {
	currentParty := r.ix.PartyOn(p.ID, r.opts.Today)
	currentCommittees := r.ix.CommitteesOn(p.ID, r.opts.Today)
	t := r.tallies[p.ID]

	// Former members display the party they last voted under.
	displayParty := currentParty
	if displayParty == nil && t != nil && !t.latestVote.IsZero() {
		displayParty = r.ix.PartyOn(p.ID, t.latestVote)
	}

	prof := Profile{
		ID:           p.ID,
		Name:         p.Name,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		PartyShort:   p.Bio.PartyShort,
		Role:         p.Bio.Profession,
		Constituency: p.Bio.Constituency,
		Storkreds:    p.Bio.Storkreds,
		MemberURL:    p.Bio.MemberURL,
		PhotoURL:     p.Bio.PhotoURL,
		Committees:   []CommitteeRef{},
		RecentVotes:  []RecentVote{},
	}
	if prof.Role == "" {
		prof.Role = p.Bio.Title
	}
	if displayParty != nil {
		prof.Party = displayParty.Org.Name
		if displayParty.Org.ShortName != "" {
			prof.PartyShort = displayParty.Org.ShortName
		}
	}
	if currentParty != nil {
		prof.CurrentParty = currentParty.Org.Name
		prof.CurrentPartyShort = currentParty.Org.ShortName
	}
	for _, m := range currentCommittees {
		prof.Committees = append(prof.Committees, CommitteeRef{
			ID:        m.Org.ID,
			Name:      m.Org.Name,
			ShortName: m.Org.ShortName,
		})
	}

	if t != nil {
		prof.VotesTotal = t.total
		prof.VotesFor = t.counts.For
		prof.VotesAgainst = t.counts.Against
		prof.VotesNeither = t.counts.Neither
		prof.VotesAbsent = t.counts.Absent
		prof.AttendancePct = t.attendancePct()
		prof.LoyaltyPct = t.loyaltyPct()
		prof.LoyaltyMatches = t.loyaltyMatches
		prof.LoyaltyCompared = t.loyaltyTotal

		recent := make([]RecentVote, len(t.recent))
		copy(recent, t.recent)
		sort.SliceStable(recent, func(i, j int) bool {
			if recent[i].Date != recent[j].Date {
				return recent[i].Date > recent[j].Date
			}
			return recent[i].VoteID > recent[j].VoteID
		})
		if len(recent) > r.opts.RecentVotes {
			recent = recent[:r.opts.RecentVotes]
		}
		prof.RecentVotes = recent
	}
	return prof
}

// buildProfiles assembles and orders every published profile. Members
// sort by party short name with partyless members last, then by
// surname and first name.
func (r *run) buildProfiles(parties, committees idSet) []Profile {
	profiles := make([]Profile, 0, len(r.in.Persons))
	for i := range r.in.Persons {
		p := &r.in.Persons[i]
		if !r.included(p.ID, parties, committees) {
			continue
		}
		profiles = append(profiles, r.buildProfile(p))
	}

	sort.SliceStable(profiles, func(i, j int) bool {
		a, b := &profiles[i], &profiles[j]
		if (a.PartyShort == "") != (b.PartyShort == "") {
			return b.PartyShort == ""
		}
		if a.PartyShort != b.PartyShort {
			return a.PartyShort < b.PartyShort
		}
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.ID < b.ID
	})
	return profiles
}

// buildRosters publishes today's party and committee member lists,
// skipping organizations with no current members. Parties order by
// short name, committees by name.
func (r *run) buildRosters(parties, committees idSet) (partyOut, committeeOut []OrgSummary) {
	partyOut = []OrgSummary{}
	committeeOut = []OrgSummary{}
	for i := range r.in.Organizations {
		org := &r.in.Organizations[i]
		var members []int64
		switch org.Kind {
		case KindParty:
			members = parties.sorted(org.ID)
		case KindCommittee:
			members = committees.sorted(org.ID)
		}
		if len(members) == 0 {
			continue
		}
		summary := OrgSummary{
			ID:          org.ID,
			Name:        org.Name,
			ShortName:   org.ShortName,
			MemberCount: len(members),
			MemberIDs:   members,
		}
		if org.Kind == KindParty {
			partyOut = append(partyOut, summary)
		} else {
			committeeOut = append(committeeOut, summary)
		}
	}

	sort.SliceStable(partyOut, func(i, j int) bool {
		if partyOut[i].ShortName != partyOut[j].ShortName {
			return partyOut[i].ShortName < partyOut[j].ShortName
		}
		if partyOut[i].Name != partyOut[j].Name {
			return partyOut[i].Name < partyOut[j].Name
		}
		return partyOut[i].ID < partyOut[j].ID
	})
	sort.SliceStable(committeeOut, func(i, j int) bool {
		if committeeOut[i].Name != committeeOut[j].Name {
			return committeeOut[i].Name < committeeOut[j].Name
		}
		return committeeOut[i].ID < committeeOut[j].ID
	})
	return partyOut, committeeOut
}
