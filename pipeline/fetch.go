package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/folkevalget/folkevalget/oda"
	"github.com/folkevalget/folkevalget/site"
)

// Fetch pulls one full window of raw records from the ODA API: lookup
// tables first, then the vote window with its ballots, then the
// organizations, the membership edges, the people those edges and
// ballots reference, and finally the documents behind the voted cases.
func (p *Pipeline) Fetch(ctx context.Context) (*site.Snapshot, error) {
	startDate := p.cfg.Window.StartDate
	today := p.today()

	p.logger.Info("fetching lookup tables")
	actorTypes, err := p.client.FetchActorTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch actor types: %w", err)
	}
	ballotTypes, err := p.client.FetchBallotTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch ballot types: %w", err)
	}
	voteTypes, err := p.client.FetchVoteTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch vote types: %w", err)
	}

	p.logger.Info("determining vote window", "start_date", startDate, "today", today)
	window, steps, err := p.client.DetermineVoteWindow(ctx, startDate, today)
	if err != nil {
		return nil, fmt.Errorf("determine vote window: %w", err)
	}
	p.logger.Info("vote window determined",
		"first_vote", window.FirstVoteID,
		"case_steps", window.CaseStepCount)

	p.logger.Info("collecting ballots from expanded vote pages")
	ballots, err := p.client.CollectBallots(ctx, steps, p.cfg.API.VoteWorkers)
	if err != nil {
		return nil, fmt.Errorf("collect ballots: %w", err)
	}

	p.logger.Info("fetching party and committee actors")
	orgs, err := p.client.FetchOrganizations(ctx, startDate)
	if err != nil {
		return nil, fmt.Errorf("fetch organizations: %w", err)
	}
	var parties, committees []oda.Actor
	orgIDs := make([]int64, 0, len(orgs))
	for _, actor := range orgs {
		orgIDs = append(orgIDs, actor.ID)
		switch actor.TypeID {
		case oda.ActorTypeParty:
			parties = append(parties, actor)
		case oda.ActorTypeCommittee:
			committees = append(committees, actor)
		}
	}
	sort.Slice(orgIDs, func(i, j int) bool { return orgIDs[i] < orgIDs[j] })

	p.logger.Info("fetching actor relations",
		"parties", len(parties),
		"committees", len(committees))
	relations, err := p.client.FetchRelations(ctx, orgIDs, startDate)
	if err != nil {
		return nil, fmt.Errorf("fetch relations: %w", err)
	}

	personIDs := collectPersonIDs(ballots, relations)
	p.logger.Info("fetching people", "people", len(personIDs))
	persons, err := p.client.FetchPersons(ctx, personIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch people: %w", err)
	}

	caseIDs := collectCaseIDs(steps)
	p.logger.Info("fetching case documents", "cases", len(caseIDs))
	documents, err := p.client.FetchCaseDocuments(ctx, caseIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch case documents: %w", err)
	}

	return &site.Snapshot{
		Window:        window,
		ActorTypes:    actorTypes,
		BallotTypes:   ballotTypes,
		VoteTypes:     voteTypes,
		Persons:       persons,
		Parties:       parties,
		Committees:    committees,
		Relations:     relations,
		CaseSteps:     steps,
		Ballots:       ballots,
		CaseDocuments: documents,
	}, nil
}

// collectPersonIDs unions the voters on the ballots with the members
// the relations point at, sorted ascending for stable request order.
func collectPersonIDs(ballots []oda.BallotRow, relations []oda.ActorRelation) []int64 {
	seen := make(map[int64]struct{})
	for _, b := range ballots {
		if b.ActorID != 0 {
			seen[b.ActorID] = struct{}{}
		}
	}
	for _, rel := range relations {
		if rel.ToActorID != 0 {
			seen[rel.ToActorID] = struct{}{}
		}
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// collectCaseIDs returns the distinct cases behind the voted steps,
// sorted ascending.
func collectCaseIDs(steps []oda.CaseStep) []int64 {
	seen := make(map[int64]struct{}, len(steps))
	for i := range steps {
		if id := steps[i].CaseID; id != 0 {
			seen[id] = struct{}{}
		}
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
