// Package engine derives per-member voting analytics from interval
// stamped parliamentary records.
//
// # Overview
//
// The engine answers one question: given a snapshot of members,
// parties, committees, membership relations, roll-call votes, and
// individual ballots, what did each member's voting record, party
// loyalty, and attendance look like, and who belongs where today?
//
// Affiliations in the source data are intervals, not facts: a member's
// party on a given date is whichever membership window covers that
// date, and windows overlap whenever a defection leaves the old
// relation open. The MembershipIndex resolves those conflicts the same
// way every run: the interval with the most recent effective start
// wins, organization id breaking exact ties.
//
// # Derivation
//
// A run proceeds in fixed stages:
//
//  1. Index memberships and drop edges whose endpoints are missing.
//  2. Bucket ballots per vote, dropping orphans.
//  3. Tally each vote newest first: per-member counts, per-party
//     majorities, loyalty comparisons, and the published vote summary.
//  4. Resolve today's rosters and assemble profiles for every member
//     who voted or currently holds a seat.
//
// A party's line on a vote is its largest in-scope bucket (for,
// against, or abstain; absences never count). An exact tie between the
// two largest buckets means the party split: no line exists, members
// get no loyalty comparison for that vote, and the split is published
// on the vote summary.
//
// # Determinism
//
// The engine is pure. The reference date is injected
// through Options rather than read from the clock, every map-derived
// emission is sorted before it leaves the package, and malformed
// records are surfaced as IntegrityIssues instead of being coerced or
// silently dropped. Two runs over the same snapshot produce
// byte-identical JSON.
package engine
