package engine

import (
	"errors"
	"sort"
)

// run holds the working state of one derivation pass.
type run struct {
	in   *Input
	opts Options

	persons       map[int64]*Person
	orgs          map[int64]*Organization
	ix            *MembershipIndex
	ballotsByVote map[int64][]Ballot
	tallies       map[int64]*personTally

	issues []IntegrityIssue
	stats  Stats
}

// Run derives the full analytics output from one input snapshot. The
// engine is pure: it never touches the clock, the network, or disk, so
// identical input and options always produce identical output. It runs
// single-threaded; callers parallelize above it if they need to.
func Run(in *Input, opts Options) (*Result, error) {
	if in == nil {
		return nil, errors.New("engine: nil input")
	}
	if opts.Today.IsZero() {
		return nil, errors.New("engine: options missing run date")
	}
	if opts.RecentVotes <= 0 {
		opts.RecentVotes = DefaultRecentVotes
	}

	r := &run{
		in:            in,
		opts:          opts,
		persons:       make(map[int64]*Person, len(in.Persons)),
		orgs:          make(map[int64]*Organization, len(in.Organizations)),
		ballotsByVote: make(map[int64][]Ballot),
		tallies:       make(map[int64]*personTally),
	}
	for i := range in.Persons {
		p := &in.Persons[i]
		r.persons[p.ID] = p
	}
	for i := range in.Organizations {
		o := &in.Organizations[i]
		r.orgs[o.ID] = o
	}

	r.ix = BuildMembershipIndex(in.Relations, r.orgs, r.persons)
	r.stats.DroppedRelations = r.ix.Dropped()
	for _, rel := range r.ix.DroppedEdges() {
		r.issues = append(r.issues, IntegrityIssue{
			Kind:     IssueOrphanRelation,
			PersonID: rel.PersonID,
			OrgID:    rel.OrgID,
		})
	}

	r.groupBallots()

	votes := r.sortedVotes()
	summaries := make([]VoteSummary, 0, len(votes))
	for i := range votes {
		summaries = append(summaries, r.tallyVote(&votes[i]))
	}

	parties, committees := r.currentMembers()
	profiles := r.buildProfiles(parties, committees)
	partyOut, committeeOut := r.buildRosters(parties, committees)

	r.stats.Profiles = len(profiles)
	r.stats.Parties = len(partyOut)
	r.stats.Committees = len(committeeOut)
	r.stats.Votes = len(summaries)
	r.stats.Ballots = len(in.Ballots)

	return &Result{
		Profiles:   profiles,
		Parties:    partyOut,
		Committees: committeeOut,
		Votes:      summaries,
		Stats:      r.stats,
		Issues:     r.issues,
	}, nil
}

// groupBallots buckets ballots per vote. Ballots pointing at votes
// missing from the input are dropped and surfaced.
func (r *run) groupBallots() {
	known := make(map[int64]struct{}, len(r.in.Votes))
	for i := range r.in.Votes {
		known[r.in.Votes[i].ID] = struct{}{}
	}
	for _, b := range r.in.Ballots {
		if _, ok := known[b.VoteID]; !ok {
			r.stats.DroppedBallots++
			r.issues = append(r.issues, IntegrityIssue{
				Kind:     IssueOrphanBallot,
				VoteID:   b.VoteID,
				PersonID: b.PersonID,
			})
			continue
		}
		r.ballotsByVote[b.VoteID] = append(r.ballotsByVote[b.VoteID], b)
	}
}

// sortedVotes returns the input votes newest first, id descending
// within a day. Every per-vote emission downstream inherits this order.
func (r *run) sortedVotes() []Vote {
	votes := make([]Vote, len(r.in.Votes))
	copy(votes, r.in.Votes)
	sort.SliceStable(votes, func(i, j int) bool {
		if c := votes[i].Date.Compare(votes[j].Date); c != 0 {
			return c > 0
		}
		return votes[i].ID > votes[j].ID
	})
	return votes
}
