package engine

import "math"

// personTally accumulates one member's voting record across a run.
type personTally struct {
	total      int
	counts     ChoiceCounts
	latestVote Date
	recent     []RecentVote

	loyaltyMatches int
	loyaltyTotal   int
}

// tally returns the accumulator for a person, creating it on first use.
// A person has a tally iff at least one of their ballots counted.
func (r *run) tally(personID int64) *personTally {
	t := r.tallies[personID]
	if t == nil {
		t = &personTally{}
		r.tallies[personID] = t
	}
	return t
}

// attendancePct is the share of counted ballots that were not
// absences, or nil when the member cast no counted ballots.
func (t *personTally) attendancePct() *float64 {
	return roundPct(t.total-t.counts.Absent, t.total)
}

// loyaltyPct is the share of party-line comparisons the member matched,
// or nil when no comparison was possible.
func (t *personTally) loyaltyPct() *float64 {
	return roundPct(t.loyaltyMatches, t.loyaltyTotal)
}

// roundPct expresses numerator/denominator as a percentage with one
// decimal, halves rounding away from zero. A zero denominator yields
// nil; the published JSON distinguishes "no data" from 0.0.
func roundPct(numerator, denominator int) *float64 {
	if denominator == 0 {
		return nil
	}
	pct := math.Round(float64(numerator)/float64(denominator)*1000) / 10
	return &pct
}
