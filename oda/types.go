package oda

import "encoding/json"

// Aktør type ids. The table has more kinds; these are the ones the
// pipeline consumes.
const (
	ActorTypeCommittee int64 = 3
	ActorTypeParty     int64 = 4
	ActorTypePerson    int64 = 5
)

// Actor is one row of the Aktør table. Persons, parties, and
// committees all live here, discriminated by TypeID.
type Actor struct {
	ID         int64  `json:"id"`
	TypeID     int64  `json:"typeid"`
	GroupShort string `json:"gruppenavnkort"`
	Name       string `json:"navn"`
	FirstName  string `json:"fornavn"`
	LastName   string `json:"efternavn"`
	Biography  string `json:"biografi"`
	Start      string `json:"startdato"`
	End        string `json:"slutdato"`
}

// ActorType is one row of the Aktørtype lookup table.
type ActorType struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// ActorRelation is one row of the AktørAktør table: FromActorID is the
// organization, ToActorID the person.
type ActorRelation struct {
	ID          int64  `json:"id"`
	FromActorID int64  `json:"fraaktørid"`
	ToActorID   int64  `json:"tilaktørid"`
	RoleID      int64  `json:"rolleid"`
	Start       string `json:"startdato"`
	End         string `json:"slutdato"`
}

// CaseStep is one row of the Sagstrin table with the expansions the
// vote window fetch requests.
type CaseStep struct {
	ID       int64         `json:"id"`
	CaseID   int64         `json:"sagid"`
	Title    string        `json:"titel"`
	Date     string        `json:"dato"`
	Votes    []VoteRow     `json:"Afstemning"`
	Case     *CaseRow      `json:"Sag"`
	StepType *CaseStepType `json:"Sagstrinstype"`
}

// CaseRow is the Sag payload embedded in an expanded case step.
type CaseRow struct {
	ID         int64  `json:"id"`
	Title      string `json:"titel"`
	ShortTitle string `json:"titelkort"`
	Number     string `json:"nummer"`
	TypeID     int64  `json:"typeid"`
}

// CaseStepType is the Sagstrinstype payload embedded in an expanded
// case step.
type CaseStepType struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// VoteRow is one row of the Afstemning table. When fetched through the
// Sagstrin expansion the first page of ballots rides along in Ballots;
// larger votes continue behind BallotsNextLink.
type VoteRow struct {
	ID              int64       `json:"id"`
	Number          int64       `json:"nummer"`
	Conclusion      string      `json:"konklusion"`
	Passed          bool        `json:"vedtaget"`
	Comment         string      `json:"kommentar"`
	TypeID          int64       `json:"typeid"`
	CaseStepID      int64       `json:"sagstrinid"`
	Ballots         []BallotRow `json:"Stemme"`
	BallotsNextLink string      `json:"Stemme@odata.nextLink"`
}

// BallotRow is one row of the Stemme table. ActorID is decoded by hand:
// depending on serving path the API has shipped the aktørid column
// under several spellings, including double-encoded mojibake.
type BallotRow struct {
	ID      int64 `json:"id"`
	TypeID  int64 `json:"typeid"`
	VoteID  int64 `json:"afstemningid"`
	ActorID int64 `json:"-"`
}

// actorIDKeys are the observed spellings of the Stemme actor column, in
// preference order.
var actorIDKeys = []string{
	"aktørid",
	"aktør_id",
	"aktoerid",
	"aktoer_id",
	"aktÃ¸rid",
	"aktÃƒÂ¸rid",
}

// UnmarshalJSON decodes the regular columns and then resolves ActorID
// across the known key spellings. A row with no recognizable actor key
// keeps ActorID zero and is dropped downstream as an orphan.
func (b *BallotRow) UnmarshalJSON(data []byte) error {
	type plain BallotRow
	var row plain
	if err := json.Unmarshal(data, &row); err != nil {
		return err
	}
	*b = BallotRow(row)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, key := range actorIDKeys {
		value, ok := raw[key]
		if !ok || string(value) == "null" {
			continue
		}
		var id int64
		if err := json.Unmarshal(value, &id); err != nil {
			return err
		}
		b.ActorID = id
		return nil
	}
	return nil
}

// MarshalJSON writes the actor id under its canonical spelling, so a
// snapshot round-trips rows no matter which variant the API served.
func (b BallotRow) MarshalJSON() ([]byte, error) {
	type plain struct {
		ID      int64 `json:"id"`
		TypeID  int64 `json:"typeid"`
		ActorID int64 `json:"aktørid"`
		VoteID  int64 `json:"afstemningid"`
	}
	return json.Marshal(plain{ID: b.ID, TypeID: b.TypeID, ActorID: b.ActorID, VoteID: b.VoteID})
}

// CaseDocument is one row of the SagDokument join table with its
// Dokument expansion.
type CaseDocument struct {
	ID       int64     `json:"id"`
	CaseID   int64     `json:"sagid"`
	Document *Document `json:"Dokument"`
}

// Document is the Dokument payload with its files expanded.
type Document struct {
	ID    int64  `json:"id"`
	Title string `json:"titel"`
	Files []File `json:"Fil"`
}

// File is one row of the Fil table.
type File struct {
	ID      int64  `json:"id"`
	URL     string `json:"filurl"`
	Format  string `json:"format"`
	Variant string `json:"variantkode"`
}

// BallotType is one row of the Stemmetype lookup table.
type BallotType struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// VoteType is one row of the Afstemningstype lookup table.
type VoteType struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}
