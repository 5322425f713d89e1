package engine

// Choice is a resolved ballot choice. The numeric values follow the ODA
// Stemmetype table and are stable across parliamentary periods.
type Choice int

const (
	// ChoiceFor is a vote in favour (Stemmetype 1).
	ChoiceFor Choice = 1
	// ChoiceAgainst is a vote against (Stemmetype 2).
	ChoiceAgainst Choice = 2
	// ChoiceAbsent marks a member recorded as absent (Stemmetype 3).
	ChoiceAbsent Choice = 3
	// ChoiceNeither is an explicit abstention, "hverken for eller imod"
	// (Stemmetype 4).
	ChoiceNeither Choice = 4
)

// ParseChoice maps a raw Stemmetype id to a Choice. The second return is
// false for codes outside the known table; callers must surface those as
// integrity issues rather than coerce them.
func ParseChoice(code int64) (Choice, bool) {
	switch Choice(code) {
	case ChoiceFor, ChoiceAgainst, ChoiceAbsent, ChoiceNeither:
		return Choice(code), true
	}
	return 0, false
}

// Key returns the Danish short key used in published tallies.
func (c Choice) Key() string {
	switch c {
	case ChoiceFor:
		return "for"
	case ChoiceAgainst:
		return "imod"
	case ChoiceAbsent:
		return "fravaer"
	case ChoiceNeither:
		return "hverken"
	}
	return "ukendt"
}

// InScope reports whether the choice participates in party-line
// comparisons. Absences never enter loyalty math.
func (c Choice) InScope() bool {
	return c == ChoiceFor || c == ChoiceAgainst || c == ChoiceNeither
}

// OrgKind distinguishes the two membership dimensions the index tracks.
type OrgKind int

const (
	// KindParty covers parliamentary groups (Aktør type 4).
	KindParty OrgKind = iota
	// KindCommittee covers standing committees (Aktør type 3).
	KindCommittee
)

func (k OrgKind) String() string {
	if k == KindParty {
		return "party"
	}
	return "committee"
}

// Organization is a party or committee with its actor validity window.
type Organization struct {
	ID        int64
	Kind      OrgKind
	Name      string
	ShortName string
	Start     Date
	End       Date
}

// Biography carries the fields parsed out of a member's biography XML
// plus enrichment results. The engine treats it as opaque input.
type Biography struct {
	Profession   string
	Title        string
	Constituency string
	Storkreds    string
	PartyShort   string
	MemberURL    string
	PhotoURL     string
}

// Person is a sitting or former member of parliament.
type Person struct {
	ID        int64
	Name      string
	FirstName string
	LastName  string
	Bio       Biography
}

// Relation is a raw membership edge between an organization and a
// person, as delivered by the ODA AktørAktør table.
type Relation struct {
	ID       int64
	OrgID    int64
	PersonID int64
	RoleID   int64
	Start    Date
	End      Date
}

// Membership is one validity interval of a person in an organization.
// A person is active on a date iff the date falls inside both the
// relation window and the organization's own window; an absent bound is
// open.
type Membership struct {
	Person   int64
	Org      *Organization
	Relation Relation
}

// ActiveOn reports whether the membership covers the given date.
func (m *Membership) ActiveOn(d Date) bool {
	if s := m.Relation.Start; !s.IsZero() && d.Before(s) {
		return false
	}
	if e := m.Relation.End; !e.IsZero() && d.After(e) {
		return false
	}
	if s := m.Org.Start; !s.IsZero() && d.Before(s) {
		return false
	}
	if e := m.Org.End; !e.IsZero() && d.After(e) {
		return false
	}
	return true
}

// startKey is the recency key used for ordering: the later of the two
// window starts, with an absent start counting as the minimum.
func (m *Membership) startKey() Date {
	return laterStart(m.Relation.Start, m.Org.Start)
}

// DocumentLink points at one published document behind a vote.
type DocumentLink struct {
	DocumentID int64  `json:"document_id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Format     string `json:"format"`
	Variant    string `json:"variant_code"`
	Summary    string `json:"summary,omitempty"`
}

// Vote is one roll-call vote with its case context already joined in.
type Vote struct {
	ID             int64
	Number         int64
	Date           Date
	Passed         bool
	Conclusion     string
	Comment        string
	TypeID         int64
	TypeName       string
	CaseStepID     int64
	CaseStepTitle  string
	CaseStepType   string
	CaseID         int64
	CaseTitle      string
	CaseShortTitle string
	CaseNumber     string
	CaseTypeID     int64
	Documents      []DocumentLink
}

// DisplayTitle prefers the short case title over the full one.
func (v *Vote) DisplayTitle() string {
	if v.CaseShortTitle != "" {
		return v.CaseShortTitle
	}
	return v.CaseTitle
}

// Ballot is one member's raw entry in one vote. Code is the unvalidated
// Stemmetype id; the engine resolves it and reports unknown codes.
type Ballot struct {
	VoteID   int64
	PersonID int64
	Code     int64
}

// Input is the full record set a run operates on. The engine never
// mutates it.
type Input struct {
	Persons       []Person
	Organizations []Organization
	Relations     []Relation
	Votes         []Vote
	Ballots       []Ballot
	ChoiceLabels  map[Choice]string
}

// Options steers one derivation run. Today must be injected so the same
// input always yields the same output.
type Options struct {
	Today       Date
	RecentVotes int
}

// DefaultRecentVotes caps the per-member recent vote list.
const DefaultRecentVotes = 10

// CommitteeRef is the compact committee entry embedded in a profile.
type CommitteeRef struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
}

// RecentVote is one entry in a member's recent voting record.
type RecentVote struct {
	VoteID     int64  `json:"afstemning_id"`
	Date       string `json:"date"`
	VoteTypeID int64  `json:"vote_type_id"`
	VoteType   string `json:"vote_type"`
	CaseNumber string `json:"sag_number"`
	CaseTitle  string `json:"sag_title"`
	Passed     bool   `json:"vedtaget"`
}

// Profile is the published per-member analytics record.
type Profile struct {
	ID                int64          `json:"id"`
	Name              string         `json:"name"`
	FirstName         string         `json:"first_name"`
	LastName          string         `json:"last_name"`
	Party             string         `json:"party"`
	PartyShort        string         `json:"party_short"`
	CurrentParty      string         `json:"current_party"`
	CurrentPartyShort string         `json:"current_party_short"`
	Committees        []CommitteeRef `json:"committees"`
	Role              string         `json:"role"`
	Constituency      string         `json:"constituency"`
	Storkreds         string         `json:"storkreds"`
	MemberURL         string         `json:"member_url"`
	PhotoURL          string         `json:"photo_url"`
	PhotoSourceURL    string         `json:"photo_source_url"`
	PhotoSourceName   string         `json:"photo_source_name"`
	PhotoPhotographer string         `json:"photo_photographer"`
	PhotoCreditText   string         `json:"photo_credit_text"`
	VotesTotal        int            `json:"votes_total"`
	VotesFor          int            `json:"votes_for"`
	VotesAgainst      int            `json:"votes_against"`
	VotesNeither      int            `json:"votes_neither"`
	VotesAbsent       int            `json:"votes_absent"`
	AttendancePct     *float64       `json:"attendance_pct"`
	LoyaltyPct        *float64       `json:"party_loyalty_pct"`
	LoyaltyMatches    int            `json:"party_loyalty_matches"`
	LoyaltyCompared   int            `json:"party_loyalty_comparisons"`
	RecentVotes       []RecentVote   `json:"recent_votes"`
}

// OrgSummary is the published roster for one party or committee.
type OrgSummary struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	ShortName   string  `json:"short_name"`
	MemberCount int     `json:"member_count"`
	MemberIDs   []int64 `json:"member_ids"`
}

// ChoiceCounts is a for/against/absent/neither tally.
type ChoiceCounts struct {
	For     int `json:"for"`
	Against int `json:"imod"`
	Absent  int `json:"fravaer"`
	Neither int `json:"hverken"`
}

// Add bumps the bucket for a resolved choice.
func (c *ChoiceCounts) Add(choice Choice) {
	switch choice {
	case ChoiceFor:
		c.For++
	case ChoiceAgainst:
		c.Against++
	case ChoiceAbsent:
		c.Absent++
	case ChoiceNeither:
		c.Neither++
	}
}

// Margin is the absolute distance between the for and against buckets.
func (c ChoiceCounts) Margin() int {
	d := c.For - c.Against
	if d < 0 {
		return -d
	}
	return d
}

// ChoiceGroups lists, per choice, which members picked it. The lists
// are kept sorted ascending so output is stable across runs.
type ChoiceGroups struct {
	For     []int64 `json:"for"`
	Against []int64 `json:"imod"`
	Absent  []int64 `json:"fravaer"`
	Neither []int64 `json:"hverken"`
}

// normalized replaces nil buckets with empty slices so the published
// JSON always carries all four keys as arrays, never null.
func (g ChoiceGroups) normalized() ChoiceGroups {
	if g.For == nil {
		g.For = []int64{}
	}
	if g.Against == nil {
		g.Against = []int64{}
	}
	if g.Absent == nil {
		g.Absent = []int64{}
	}
	if g.Neither == nil {
		g.Neither = []int64{}
	}
	return g
}

// add appends a member to the bucket for a resolved choice.
func (g *ChoiceGroups) add(personID int64, choice Choice) {
	switch choice {
	case ChoiceFor:
		g.For = append(g.For, personID)
	case ChoiceAgainst:
		g.Against = append(g.Against, personID)
	case ChoiceAbsent:
		g.Absent = append(g.Absent, personID)
	case ChoiceNeither:
		g.Neither = append(g.Neither, personID)
	}
}

// VoteSummary is the published record of one roll-call vote.
type VoteSummary struct {
	ID              int64                   `json:"afstemning_id"`
	Number          int64                   `json:"nummer"`
	Date            string                  `json:"date"`
	Passed          bool                    `json:"vedtaget"`
	Conclusion      string                  `json:"konklusion"`
	Comment         string                  `json:"kommentar"`
	TypeID          int64                   `json:"type_id"`
	TypeName        string                  `json:"type"`
	CaseStepID      int64                   `json:"sagstrin_id"`
	CaseStepTitle   string                  `json:"sagstrin_title"`
	CaseStepType    string                  `json:"sagstrin_type"`
	CaseID          int64                   `json:"sag_id"`
	CaseTitle       string                  `json:"sag_title"`
	CaseShortTitle  string                  `json:"sag_short_title"`
	CaseNumber      string                  `json:"sag_number"`
	CaseTypeID      int64                   `json:"sag_type_id"`
	Documents       []DocumentLink          `json:"source_documents"`
	Counts          ChoiceCounts            `json:"counts"`
	Margin          int                     `json:"margin"`
	Groups          ChoiceGroups            `json:"vote_groups"`
	GroupsByParty   map[string]ChoiceGroups `json:"vote_groups_by_party"`
	PartySplitCount int                     `json:"party_split_count"`
}

// IssueKind classifies an integrity issue.
type IssueKind string

const (
	// IssueUnknownChoice marks a ballot whose Stemmetype id is outside
	// the known table.
	IssueUnknownChoice IssueKind = "unknown_choice"
	// IssueOrphanBallot marks a ballot referencing a vote missing from
	// the input.
	IssueOrphanBallot IssueKind = "orphan_ballot"
	// IssueOrphanRelation marks a membership edge referencing an actor
	// missing from the input.
	IssueOrphanRelation IssueKind = "orphan_relation"
)

// IntegrityIssue records one referential or value-level defect found
// during a run. Issues never abort a run; they ride along in the result.
type IntegrityIssue struct {
	Kind     IssueKind `json:"kind"`
	VoteID   int64     `json:"afstemning_id,omitempty"`
	PersonID int64     `json:"person_id,omitempty"`
	OrgID    int64     `json:"org_id,omitempty"`
	Code     int64     `json:"code,omitempty"`
}

// Stats summarizes one run for logging and the published site stats.
type Stats struct {
	Profiles         int `json:"profiles"`
	Parties          int `json:"parties"`
	Committees       int `json:"committees"`
	Votes            int `json:"votes"`
	Ballots          int `json:"ballots"`
	DroppedRelations int `json:"dropped_relations"`
	DroppedBallots   int `json:"dropped_ballots"`
	UnknownChoices   int `json:"unknown_choices"`
	SplitParties     int `json:"split_parties"`
}

// Result is everything one derivation run produces.
type Result struct {
	Profiles   []Profile
	Parties    []OrgSummary
	Committees []OrgSummary
	Votes      []VoteSummary
	Stats      Stats
	Issues     []IntegrityIssue
}
