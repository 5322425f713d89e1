package pipeline

import (
	"github.com/folkevalget/folkevalget/bio"
	"github.com/folkevalget/folkevalget/casedocs"
	"github.com/folkevalget/folkevalget/engine"
	"github.com/folkevalget/folkevalget/oda"
	"github.com/folkevalget/folkevalget/site"
)

// BuildInput maps one raw snapshot onto the engine's input: actors
// become persons and organizations, relation rows become membership
// edges, case steps unfold into votes with their case context and
// document links joined in, and ballots flatten to (vote, person,
// code) triples. Ballot rows whose actor id never decoded are dropped
// here; the engine reports every other inconsistency itself.
func (p *Pipeline) BuildInput(snapshot *site.Snapshot) *engine.Input {
	return p.buildInput(snapshot, casedocs.Links(snapshot.CaseDocuments))
}

// buildInput assembles the engine input from a snapshot and an already
// built (possibly annotated) case-document link map.
func (p *Pipeline) buildInput(snapshot *site.Snapshot, links map[int64][]engine.DocumentLink) *engine.Input {
	in := &engine.Input{
		Persons:       buildPersons(snapshot.Persons),
		Organizations: buildOrganizations(snapshot.Parties, snapshot.Committees),
		Relations:     buildRelations(snapshot.Relations),
		Votes:         buildVotes(snapshot.CaseSteps, snapshot.VoteTypes, links),
		ChoiceLabels:  choiceLabels(snapshot.BallotTypes),
	}

	skipped := 0
	in.Ballots = make([]engine.Ballot, 0, len(snapshot.Ballots))
	for _, row := range snapshot.Ballots {
		if row.ActorID == 0 {
			skipped++
			continue
		}
		in.Ballots = append(in.Ballots, engine.Ballot{
			VoteID:   row.VoteID,
			PersonID: row.ActorID,
			Code:     row.TypeID,
		})
	}
	if skipped > 0 {
		p.logger.Warn("ballots without a decodable actor id skipped", "ballots", skipped)
	}
	return in
}

func buildPersons(actors []oda.Actor) []engine.Person {
	persons := make([]engine.Person, 0, len(actors))
	for _, actor := range actors {
		fields := bio.Parse(actor.Biography)
		persons = append(persons, engine.Person{
			ID:        actor.ID,
			Name:      actor.Name,
			FirstName: actor.FirstName,
			LastName:  actor.LastName,
			Bio: engine.Biography{
				Profession:   fields.Profession,
				Title:        fields.Title,
				Constituency: fields.Constituency,
				Storkreds:    bio.ConstituencyLabel(fields.Constituency),
				PartyShort:   fields.PartyShort,
				MemberURL:    fields.MemberURL,
				PhotoURL:     fields.PhotoURL,
			},
		})
	}
	return persons
}

func buildOrganizations(parties, committees []oda.Actor) []engine.Organization {
	orgs := make([]engine.Organization, 0, len(parties)+len(committees))
	for _, actor := range parties {
		orgs = append(orgs, buildOrganization(actor, engine.KindParty))
	}
	for _, actor := range committees {
		orgs = append(orgs, buildOrganization(actor, engine.KindCommittee))
	}
	return orgs
}

func buildOrganization(actor oda.Actor, kind engine.OrgKind) engine.Organization {
	return engine.Organization{
		ID:        actor.ID,
		Kind:      kind,
		Name:      actor.Name,
		ShortName: actor.GroupShort,
		Start:     parseDate(actor.Start),
		End:       parseDate(actor.End),
	}
}

func buildRelations(rows []oda.ActorRelation) []engine.Relation {
	relations := make([]engine.Relation, 0, len(rows))
	for _, row := range rows {
		relations = append(relations, engine.Relation{
			ID:       row.ID,
			OrgID:    row.FromActorID,
			PersonID: row.ToActorID,
			RoleID:   row.RoleID,
			Start:    parseDate(row.Start),
			End:      parseDate(row.End),
		})
	}
	return relations
}

// buildVotes unfolds the expanded case steps into votes with their
// case context flattened in. The step date stands in as the vote date;
// the Afstemning table has no date of its own.
func buildVotes(steps []oda.CaseStep, voteTypes []oda.VoteType, linksByCase map[int64][]engine.DocumentLink) []engine.Vote {
	typeNames := make(map[int64]string, len(voteTypes))
	for _, vt := range voteTypes {
		typeNames[vt.ID] = vt.Type
	}

	var votes []engine.Vote
	for i := range steps {
		step := &steps[i]
		for j := range step.Votes {
			row := &step.Votes[j]
			vote := engine.Vote{
				ID:            row.ID,
				Number:        row.Number,
				Date:          parseDate(step.Date),
				Passed:        row.Passed,
				Conclusion:    row.Conclusion,
				Comment:       row.Comment,
				TypeID:        row.TypeID,
				TypeName:      typeNames[row.TypeID],
				CaseStepID:    step.ID,
				CaseStepTitle: step.Title,
				CaseID:        step.CaseID,
				Documents:     casedocs.ForVote(linksByCase, step.CaseID),
			}
			if step.StepType != nil {
				vote.CaseStepType = step.StepType.Type
			}
			if step.Case != nil {
				vote.CaseTitle = step.Case.Title
				vote.CaseShortTitle = step.Case.ShortTitle
				vote.CaseNumber = step.Case.Number
				vote.CaseTypeID = step.Case.TypeID
			}
			votes = append(votes, vote)
		}
	}
	return votes
}

// choiceLabels maps the Stemmetype table onto the engine's choice set.
// Rows outside the known codes stay out of the map; ballots carrying
// them surface as unknown-choice issues during the run.
func choiceLabels(rows []oda.BallotType) map[engine.Choice]string {
	labels := make(map[engine.Choice]string, len(rows))
	for _, row := range rows {
		if choice, ok := engine.ParseChoice(row.ID); ok {
			labels[choice] = row.Type
		}
	}
	return labels
}

// parseDate reads the date part of an ODA timestamp, treating
// unparseable values as absent. Validity windows with garbage bounds
// behave as open rather than poisoning the run.
func parseDate(value string) engine.Date {
	d, err := engine.ParseDate(value)
	if err != nil {
		return engine.Date{}
	}
	return d
}
