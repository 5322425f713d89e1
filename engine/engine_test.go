package engine

import (
	"encoding/json"
	"testing"
)

// fixtureInput models two parties, one committee, and two votes: a
// clean party-line vote followed by one where the first party splits.
func fixtureInput() *Input {
	return &Input{
		Persons: []Person{
			{ID: 10, Name: "Anna Andersen", FirstName: "Anna", LastName: "Andersen"},
			{ID: 11, Name: "Bent Berg", FirstName: "Bent", LastName: "Berg"},
			{ID: 12, Name: "Carl Carlsen", FirstName: "Carl", LastName: "Carlsen"},
			{ID: 20, Name: "Dorte Dam", FirstName: "Dorte", LastName: "Dam"},
			{ID: 21, Name: "Erik Eng", FirstName: "Erik", LastName: "Eng"},
			{ID: 30, Name: "Frede Friis", FirstName: "Frede", LastName: "Friis"},
			{ID: 40, Name: "Grete Gram", FirstName: "Grete", LastName: "Gram"},
			{ID: 50, Name: "Henrik Holm", FirstName: "Henrik", LastName: "Holm"},
		},
		Organizations: []Organization{
			{ID: 1, Kind: KindParty, Name: "Socialdemokratiet", ShortName: "S"},
			{ID: 2, Kind: KindParty, Name: "Venstre", ShortName: "V"},
			{ID: 5, Kind: KindCommittee, Name: "Finansudvalget", ShortName: "FIU"},
		},
		Relations: []Relation{
			{ID: 100, OrgID: 1, PersonID: 10, Start: date("2022-11-01")},
			{ID: 101, OrgID: 1, PersonID: 11, Start: date("2022-11-01")},
			{ID: 102, OrgID: 1, PersonID: 12, Start: date("2022-11-01")},
			{ID: 103, OrgID: 2, PersonID: 20, Start: date("2022-11-01")},
			{ID: 104, OrgID: 2, PersonID: 21, Start: date("2022-11-01")},
			{ID: 105, OrgID: 5, PersonID: 10, Start: date("2022-12-01")},
			{ID: 106, OrgID: 5, PersonID: 40, Start: date("2023-01-01")},
			{ID: 107, OrgID: 999, PersonID: 10, Start: date("2022-11-01")},
		},
		Votes: []Vote{
			{
				ID: 100, Number: 7, Date: date("2023-03-01"), Passed: true,
				TypeID: 1, TypeName: "Endelig vedtagelse",
				CaseID: 900, CaseTitle: "Lov om testdata", CaseNumber: "L 42",
			},
			{
				ID: 101, Number: 12, Date: date("2023-04-01"), Passed: false,
				TypeID: 1, TypeName: "Endelig vedtagelse",
				CaseID: 901, CaseTitle: "Forslag om frie data", CaseShortTitle: "Om frie data", CaseNumber: "B 12",
			},
		},
		Ballots: []Ballot{
			{VoteID: 100, PersonID: 10, Code: 1},
			{VoteID: 100, PersonID: 11, Code: 1},
			{VoteID: 100, PersonID: 12, Code: 2},
			{VoteID: 100, PersonID: 20, Code: 2},
			{VoteID: 100, PersonID: 21, Code: 2},
			{VoteID: 100, PersonID: 30, Code: 1},
			{VoteID: 101, PersonID: 10, Code: 1},
			{VoteID: 101, PersonID: 11, Code: 2},
			{VoteID: 101, PersonID: 12, Code: 3},
			{VoteID: 101, PersonID: 20, Code: 4},
			{VoteID: 101, PersonID: 21, Code: 4},
			{VoteID: 101, PersonID: 30, Code: 9},
			{VoteID: 101, PersonID: 999, Code: 1},
			{VoteID: 555, PersonID: 10, Code: 1},
		},
		ChoiceLabels: map[Choice]string{
			ChoiceFor:     "For",
			ChoiceAgainst: "Imod",
			ChoiceAbsent:  "Fravær",
			ChoiceNeither: "Hverken for eller imod",
		},
	}
}

func fixtureOptions() Options {
	return Options{Today: date("2023-06-01")}
}

func runFixture(t *testing.T) *Result {
	t.Helper()
	res, err := Run(fixtureInput(), fixtureOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

func profileByID(t *testing.T, res *Result, id int64) *Profile {
	t.Helper()
	for i := range res.Profiles {
		if res.Profiles[i].ID == id {
			return &res.Profiles[i]
		}
	}
	t.Fatalf("no profile for person %d", id)
	return nil
}

func TestRunValidation(t *testing.T) {
	if _, err := Run(nil, fixtureOptions()); err == nil {
		t.Error("nil input accepted")
	}
	if _, err := Run(fixtureInput(), Options{}); err == nil {
		t.Error("zero run date accepted")
	}
}

func TestRunProfileInclusion(t *testing.T) {
	res := runFixture(t)

	got := make([]int64, 0, len(res.Profiles))
	for _, p := range res.Profiles {
		got = append(got, p.ID)
	}
	// S members by surname, then V, then the partyless. Henrik Holm
	// never voted and holds no seat, so no profile.
	want := []int64{10, 11, 12, 20, 21, 30, 40}
	if len(got) != len(want) {
		t.Fatalf("profiles = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("profiles = %v, want %v", got, want)
		}
	}
}

func TestRunLoyaltyAndAttendance(t *testing.T) {
	res := runFixture(t)

	tests := []struct {
		id         int64
		total      int
		absent     int
		attendance float64
		matches    int
		compared   int
		loyalty    *float64
	}{
		// Anna: for/for. Vote 101 split her party, so only vote 100
		// compares.
		{id: 10, total: 2, absent: 0, attendance: 100.0, matches: 1, compared: 1, loyalty: ptr(100.0)},
		{id: 11, total: 2, absent: 0, attendance: 100.0, matches: 1, compared: 1, loyalty: ptr(100.0)},
		// Carl: against his party on vote 100, absent on vote 101.
		{id: 12, total: 2, absent: 1, attendance: 50.0, matches: 0, compared: 1, loyalty: ptr(0.0)},
		{id: 20, total: 2, absent: 0, attendance: 100.0, matches: 2, compared: 2, loyalty: ptr(100.0)},
		{id: 21, total: 2, absent: 0, attendance: 100.0, matches: 2, compared: 2, loyalty: ptr(100.0)},
		// Frede has no party, so no comparisons; his vote 101 ballot
		// carried an unknown code and never counted.
		{id: 30, total: 1, absent: 0, attendance: 100.0, matches: 0, compared: 0, loyalty: nil},
	}

	for _, tt := range tests {
		p := profileByID(t, res, tt.id)
		if p.VotesTotal != tt.total {
			t.Errorf("person %d: total = %d, want %d", tt.id, p.VotesTotal, tt.total)
		}
		if p.VotesAbsent != tt.absent {
			t.Errorf("person %d: absent = %d, want %d", tt.id, p.VotesAbsent, tt.absent)
		}
		if p.AttendancePct == nil || *p.AttendancePct != tt.attendance {
			t.Errorf("person %d: attendance = %v, want %v", tt.id, p.AttendancePct, tt.attendance)
		}
		if p.LoyaltyMatches != tt.matches || p.LoyaltyCompared != tt.compared {
			t.Errorf("person %d: loyalty %d/%d, want %d/%d",
				tt.id, p.LoyaltyMatches, p.LoyaltyCompared, tt.matches, tt.compared)
		}
		switch {
		case tt.loyalty == nil && p.LoyaltyPct != nil:
			t.Errorf("person %d: loyalty pct = %v, want nil", tt.id, *p.LoyaltyPct)
		case tt.loyalty != nil && (p.LoyaltyPct == nil || *p.LoyaltyPct != *tt.loyalty):
			t.Errorf("person %d: loyalty pct = %v, want %v", tt.id, p.LoyaltyPct, *tt.loyalty)
		}
	}

	// Grete holds a seat but cast no ballots: both rates are unknown,
	// not zero.
	grete := profileByID(t, res, 40)
	if grete.AttendancePct != nil || grete.LoyaltyPct != nil {
		t.Errorf("seat-only member has rates: attendance %v, loyalty %v",
			grete.AttendancePct, grete.LoyaltyPct)
	}
	if grete.VotesTotal != 0 {
		t.Errorf("seat-only member has votes_total %d", grete.VotesTotal)
	}
}

func TestRunVoteSummaries(t *testing.T) {
	res := runFixture(t)

	if len(res.Votes) != 2 {
		t.Fatalf("votes = %d, want 2", len(res.Votes))
	}
	// Newest first.
	if res.Votes[0].ID != 101 || res.Votes[1].ID != 100 {
		t.Fatalf("vote order = [%d %d], want [101 100]", res.Votes[0].ID, res.Votes[1].ID)
	}

	split := res.Votes[0]
	if split.Counts != (ChoiceCounts{For: 1, Against: 1, Absent: 1, Neither: 2}) {
		t.Errorf("vote 101 counts = %+v", split.Counts)
	}
	if split.Margin != 0 {
		t.Errorf("vote 101 margin = %d, want 0", split.Margin)
	}
	if split.PartySplitCount != 1 {
		t.Errorf("vote 101 split count = %d, want 1", split.PartySplitCount)
	}
	if got := split.Groups.Neither; len(got) != 2 || got[0] != 20 || got[1] != 21 {
		t.Errorf("vote 101 neither group = %v, want [20 21]", got)
	}
	s := split.GroupsByParty["S"]
	if len(s.For) != 1 || s.For[0] != 10 || len(s.Against) != 1 || s.Against[0] != 11 || len(s.Absent) != 1 || s.Absent[0] != 12 {
		t.Errorf("vote 101 S groups = %+v", s)
	}
	if v := split.GroupsByParty["V"]; len(v.Neither) != 2 {
		t.Errorf("vote 101 V groups = %+v", v)
	}
	if _, ok := split.GroupsByParty["Uden parti"]; ok {
		t.Error("unknown-code ballot leaked into party groups")
	}

	clean := res.Votes[1]
	if clean.Counts != (ChoiceCounts{For: 3, Against: 3}) {
		t.Errorf("vote 100 counts = %+v", clean.Counts)
	}
	if clean.PartySplitCount != 0 {
		t.Errorf("vote 100 split count = %d, want 0", clean.PartySplitCount)
	}
	if got := clean.GroupsByParty["Uden parti"]; len(got.For) != 1 || got.For[0] != 30 {
		t.Errorf("vote 100 partyless group = %+v", got)
	}
}

func TestRunRosters(t *testing.T) {
	res := runFixture(t)

	if len(res.Parties) != 2 {
		t.Fatalf("parties = %d, want 2", len(res.Parties))
	}
	s, v := res.Parties[0], res.Parties[1]
	if s.ShortName != "S" || v.ShortName != "V" {
		t.Fatalf("party order = [%s %s], want [S V]", s.ShortName, v.ShortName)
	}
	if s.MemberCount != 3 || len(s.MemberIDs) != 3 || s.MemberIDs[0] != 10 || s.MemberIDs[2] != 12 {
		t.Errorf("S roster = %+v", s)
	}

	if len(res.Committees) != 1 {
		t.Fatalf("committees = %d, want 1", len(res.Committees))
	}
	fiu := res.Committees[0]
	if fiu.MemberCount != 2 || fiu.MemberIDs[0] != 10 || fiu.MemberIDs[1] != 40 {
		t.Errorf("FIU roster = %+v", fiu)
	}
}

func TestRunRecentVotes(t *testing.T) {
	res := runFixture(t)

	anna := profileByID(t, res, 10)
	if len(anna.RecentVotes) != 2 {
		t.Fatalf("recent votes = %d, want 2", len(anna.RecentVotes))
	}
	first := anna.RecentVotes[0]
	if first.VoteID != 101 || first.Date != "2023-04-01" {
		t.Errorf("newest recent vote = %+v", first)
	}
	if first.CaseTitle != "Om frie data" {
		t.Errorf("recent vote title = %q, want short title", first.CaseTitle)
	}
	if first.VoteType != "For" {
		t.Errorf("recent vote label = %q, want For", first.VoteType)
	}

	res2, err := Run(fixtureInput(), Options{Today: date("2023-06-01"), RecentVotes: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	anna2 := profileByID(t, res2, 10)
	if len(anna2.RecentVotes) != 1 || anna2.RecentVotes[0].VoteID != 101 {
		t.Errorf("capped recent votes = %+v", anna2.RecentVotes)
	}
}

func TestRunIntegrityAccounting(t *testing.T) {
	res := runFixture(t)

	if res.Stats.DroppedRelations != 1 {
		t.Errorf("dropped relations = %d, want 1", res.Stats.DroppedRelations)
	}
	if res.Stats.DroppedBallots != 2 {
		t.Errorf("dropped ballots = %d, want 2", res.Stats.DroppedBallots)
	}
	if res.Stats.UnknownChoices != 1 {
		t.Errorf("unknown choices = %d, want 1", res.Stats.UnknownChoices)
	}
	if res.Stats.SplitParties != 1 {
		t.Errorf("split parties = %d, want 1", res.Stats.SplitParties)
	}
	if res.Stats.Ballots != 14 {
		t.Errorf("ballots = %d, want 14", res.Stats.Ballots)
	}

	var unknown, orphanBallots, orphanRelations int
	for _, issue := range res.Issues {
		switch issue.Kind {
		case IssueUnknownChoice:
			unknown++
			if issue.Code != 9 || issue.PersonID != 30 {
				t.Errorf("unknown choice issue = %+v", issue)
			}
		case IssueOrphanBallot:
			orphanBallots++
		case IssueOrphanRelation:
			orphanRelations++
		}
	}
	if unknown != 1 || orphanBallots != 2 || orphanRelations != 1 {
		t.Errorf("issues = %d unknown, %d orphan ballots, %d orphan relations",
			unknown, orphanBallots, orphanRelations)
	}
}

func TestRunFormerMemberDisplayParty(t *testing.T) {
	in := fixtureInput()
	// Close Anna's party relation before today: she keeps the party
	// she last voted under but loses the current affiliation.
	for i := range in.Relations {
		if in.Relations[i].ID == 100 {
			in.Relations[i].End = date("2023-05-01")
		}
	}
	res, err := Run(in, fixtureOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	anna := profileByID(t, res, 10)
	if anna.CurrentParty != "" || anna.CurrentPartyShort != "" {
		t.Errorf("former member still current: %q %q", anna.CurrentParty, anna.CurrentPartyShort)
	}
	if anna.Party != "Socialdemokratiet" || anna.PartyShort != "S" {
		t.Errorf("display party = %q %q, want last-vote party", anna.Party, anna.PartyShort)
	}

	// And she no longer appears on the party roster.
	for _, party := range res.Parties {
		if party.ID != 1 {
			continue
		}
		for _, id := range party.MemberIDs {
			if id == 10 {
				t.Error("former member still on roster")
			}
		}
	}
}

func TestRunBioPartyShortFallback(t *testing.T) {
	in := fixtureInput()
	for i := range in.Persons {
		if in.Persons[i].ID == 30 {
			in.Persons[i].Bio.PartyShort = "UFG"
		}
	}
	res, err := Run(in, fixtureOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	frede := profileByID(t, res, 30)
	if frede.Party != "" {
		t.Errorf("partyless member got party %q", frede.Party)
	}
	if frede.PartyShort != "UFG" {
		t.Errorf("party short = %q, want biography fallback UFG", frede.PartyShort)
	}
}

func TestRunDeterminism(t *testing.T) {
	first, err := Run(fixtureInput(), fixtureOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := Run(fixtureInput(), fixtureOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	a, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(a) != string(b) {
		t.Error("identical input produced different output")
	}
}

func ptr(v float64) *float64 {
	return &v
}
