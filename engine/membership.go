package engine

import "sort"

// memoKey caches one resolved lookup. Date is comparable, so the whole
// key is.
type memoKey struct {
	person int64
	date   Date
	kind   OrgKind
}

// MembershipIndex answers "which party / which committees did person P
// belong to on date D" from raw relation edges. Intervals are sorted
// once at build time, most recent first, so every lookup degrades to a
// linear scan over one person's handful of intervals. Lookups are
// memoized per (person, date, kind).
//
// The index is not safe for concurrent use; runs are single-threaded.
type MembershipIndex struct {
	byPerson map[int64]map[OrgKind][]*Membership

	partyMemo     map[memoKey]*Membership
	committeeMemo map[memoKey][]*Membership

	droppedEdges []Relation
}

// BuildMembershipIndex ingests relation edges and groups them per
// person and organization kind. Edges pointing at unknown organizations
// or unknown persons are dropped and counted, never guessed at.
func BuildMembershipIndex(relations []Relation, orgs map[int64]*Organization, persons map[int64]*Person) *MembershipIndex {
	ix := &MembershipIndex{
		byPerson:      make(map[int64]map[OrgKind][]*Membership),
		partyMemo:     make(map[memoKey]*Membership),
		committeeMemo: make(map[memoKey][]*Membership),
	}

	for _, rel := range relations {
		org, ok := orgs[rel.OrgID]
		if !ok {
			ix.droppedEdges = append(ix.droppedEdges, rel)
			continue
		}
		if _, ok := persons[rel.PersonID]; !ok {
			ix.droppedEdges = append(ix.droppedEdges, rel)
			continue
		}
		kinds := ix.byPerson[rel.PersonID]
		if kinds == nil {
			kinds = make(map[OrgKind][]*Membership)
			ix.byPerson[rel.PersonID] = kinds
		}
		kinds[org.Kind] = append(kinds[org.Kind], &Membership{
			Person:   rel.PersonID,
			Org:      org,
			Relation: rel,
		})
	}

	for _, kinds := range ix.byPerson {
		for _, list := range kinds {
			sortMemberships(list)
		}
	}
	return ix
}

// sortMemberships orders intervals most recent first: descending by the
// later of the relation and organization starts, then descending by
// organization id so equal starts still order the same way every run.
func sortMemberships(list []*Membership) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].startKey(), list[j].startKey()
		if a != b {
			return b.Before(a)
		}
		return list[i].Org.ID > list[j].Org.ID
	})
}

// ActiveOn returns every membership of the given kind covering the
// date, most recent first. The returned slice is shared; callers must
// not mutate it.
func (ix *MembershipIndex) ActiveOn(personID int64, d Date, kind OrgKind) []*Membership {
	kinds := ix.byPerson[personID]
	if kinds == nil {
		return nil
	}
	var active []*Membership
	for _, m := range kinds[kind] {
		if m.ActiveOn(d) {
			active = append(active, m)
		}
	}
	return active
}

// PartyOn resolves the single party affiliation on a date, or nil when
// none was active. Overlapping affiliations resolve to the most
// recently started one.
func (ix *MembershipIndex) PartyOn(personID int64, d Date) *Membership {
	key := memoKey{person: personID, date: d, kind: KindParty}
	if m, ok := ix.partyMemo[key]; ok {
		return m
	}
	var m *Membership
	if active := ix.ActiveOn(personID, d, KindParty); len(active) > 0 {
		m = active[0]
	}
	ix.partyMemo[key] = m
	return m
}

// CommitteesOn resolves every committee seat active on a date, most
// recent first.
func (ix *MembershipIndex) CommitteesOn(personID int64, d Date) []*Membership {
	key := memoKey{person: personID, date: d, kind: KindCommittee}
	if list, ok := ix.committeeMemo[key]; ok {
		return list
	}
	list := ix.ActiveOn(personID, d, KindCommittee)
	ix.committeeMemo[key] = list
	return list
}

// Dropped reports how many relation edges were discarded for pointing
// at records missing from the input.
func (ix *MembershipIndex) Dropped() int {
	return len(ix.droppedEdges)
}

// DroppedEdges returns the discarded relation edges, in input order.
func (ix *MembershipIndex) DroppedEdges() []Relation {
	return ix.droppedEdges
}
