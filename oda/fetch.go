package oda

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Chunk sizes for id-list filters. The ODA parser rejects very long
// disjunctions, so id sets go out in batches.
const (
	relationChunkSize = 20
	documentChunkSize = 20
	personChunkSize   = 50
)

// DefaultOverflowWorkers bounds the parallel drain of ballot overflow
// pages.
const DefaultOverflowWorkers = 6

// VoteWindow records which slice of the vote history a snapshot covers.
type VoteWindow struct {
	StartDate       string `json:"start_date"`
	Today           string `json:"today"`
	FirstVoteID     int64  `json:"first_vote_id"`
	FirstCaseStepID int64  `json:"first_sagstrin_id"`
	CaseStepCount   int    `json:"sagstrin_count"`
}

// windowFilter matches case steps inside the window that had at least
// one vote attached.
func windowFilter(startDate, today string) string {
	return fmt.Sprintf(
		"dato ge datetime'%sT00:00:00' and dato le datetime'%sT23:59:59' and Afstemning/any()",
		startDate, today,
	)
}

// DetermineVoteWindow probes for the earliest voted case step in the
// window, then fetches every step with votes, cases, step types, and
// first-page ballots expanded inline.
func (c *Client) DetermineVoteWindow(ctx context.Context, startDate, today string) (VoteWindow, []CaseStep, error) {
	filter := windowFilter(startDate, today)

	probe, err := First[CaseStep](ctx, c, endpointCaseStep, Query{
		Filter:  filter,
		OrderBy: "dato asc",
		Expand:  "Afstemning",
	}, 1)
	if err != nil {
		return VoteWindow{}, nil, err
	}
	if len(probe) == 0 {
		return VoteWindow{}, nil, fmt.Errorf("no voted case steps found from %s", startDate)
	}
	earliest := probe[0]
	if len(earliest.Votes) == 0 {
		return VoteWindow{}, nil, fmt.Errorf("earliest voted case step from %s had no votes attached", startDate)
	}
	firstVoteID := earliest.Votes[0].ID
	for _, v := range earliest.Votes[1:] {
		if v.ID < firstVoteID {
			firstVoteID = v.ID
		}
	}

	steps, err := Collect[CaseStep](ctx, c, endpointCaseStep, Query{
		Filter:  filter,
		OrderBy: "dato asc",
		Expand:  "Afstemning,Afstemning/Stemme,Sag,Sagstrinstype",
	})
	if err != nil {
		return VoteWindow{}, nil, err
	}

	window := VoteWindow{
		StartDate:       startDate,
		Today:           today,
		FirstVoteID:     firstVoteID,
		FirstCaseStepID: earliest.ID,
		CaseStepCount:   len(steps),
	}
	return window, steps, nil
}

// CollectBallots pulls every ballot out of the expanded case steps.
// First pages arrive embedded; votes with more than one page of
// ballots continue behind odata.nextLink and are drained by a small
// worker pool. The result is sorted by (vote, ballot id) so callers
// see the same order no matter how the workers interleave.
func (c *Client) CollectBallots(ctx context.Context, steps []CaseStep, workers int) ([]BallotRow, error) {
	type job struct {
		voteID int64
		url    string
	}

	var ballots []BallotRow
	var jobs []job
	for i := range steps {
		for j := range steps[i].Votes {
			v := &steps[i].Votes[j]
			ballots = append(ballots, v.Ballots...)
			if v.BallotsNextLink != "" {
				jobs = append(jobs, job{voteID: v.ID, url: v.BallotsNextLink})
			}
		}
	}

	if len(jobs) > 0 {
		if workers < 1 {
			workers = 1
		}
		c.logger.Info("fetching overflow ballot pages",
			"votes", len(jobs),
			"workers", workers)

		var (
			mu       sync.Mutex
			overflow []BallotRow
			firstErr error
		)
		jobCh := make(chan job)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for jb := range jobCh {
					rows, err := FollowLink[BallotRow](ctx, c, jb.url)
					mu.Lock()
					if err != nil {
						if firstErr == nil {
							firstErr = fmt.Errorf("vote %d overflow: %w", jb.voteID, err)
						}
					} else {
						overflow = append(overflow, rows...)
					}
					mu.Unlock()
				}
			}()
		}
		for _, jb := range jobs {
			jobCh <- jb
		}
		close(jobCh)
		wg.Wait()

		if firstErr != nil {
			return nil, firstErr
		}
		ballots = append(ballots, overflow...)
	}

	sort.SliceStable(ballots, func(i, j int) bool {
		if ballots[i].VoteID != ballots[j].VoteID {
			return ballots[i].VoteID < ballots[j].VoteID
		}
		return ballots[i].ID < ballots[j].ID
	})
	return ballots, nil
}

// FetchOrganizations returns every party and committee actor that was
// still open at the window start.
func (c *Client) FetchOrganizations(ctx context.Context, startDate string) ([]Actor, error) {
	filter := fmt.Sprintf(
		"(typeid eq %d or typeid eq %d) and (slutdato eq null or slutdato ge datetime'%sT00:00:00')",
		ActorTypeParty, ActorTypeCommittee, startDate,
	)
	return Collect[Actor](ctx, c, endpointActor, Query{Filter: filter})
}

// FetchRelations returns the membership edges emanating from the given
// organizations, restricted to edges still open at the window start.
// Duplicate rows across chunks collapse to the first occurrence.
func (c *Client) FetchRelations(ctx context.Context, orgIDs []int64, startDate string) ([]ActorRelation, error) {
	activeFilter := fmt.Sprintf("(slutdato eq null or slutdato ge datetime'%sT00:00:00')", startDate)

	var rows []ActorRelation
	for _, chunk := range chunkIDs(orgIDs, relationChunkSize) {
		filter := fmt.Sprintf("(%s) and %s", idFilter("fraaktørid", chunk), activeFilter)
		batch, err := Collect[ActorRelation](ctx, c, endpointActorRelation, Query{Filter: filter})
		if err != nil {
			return nil, err
		}
		rows = append(rows, batch...)
		if err := c.pause(ctx); err != nil {
			return nil, err
		}
	}

	seen := make(map[int64]struct{}, len(rows))
	deduped := rows[:0]
	for _, row := range rows {
		if _, ok := seen[row.ID]; ok {
			continue
		}
		seen[row.ID] = struct{}{}
		deduped = append(deduped, row)
	}
	return deduped, nil
}

// FetchPersons returns the person actors for the given ids.
func (c *Client) FetchPersons(ctx context.Context, personIDs []int64) ([]Actor, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}

	var rows []Actor
	for _, chunk := range chunkIDs(personIDs, personChunkSize) {
		filter := fmt.Sprintf("typeid eq %d and (%s)", ActorTypePerson, idFilter("id", chunk))
		batch, err := Collect[Actor](ctx, c, endpointActor, Query{Filter: filter})
		if err != nil {
			return nil, err
		}
		rows = append(rows, batch...)
		if err := c.pause(ctx); err != nil {
			return nil, err
		}
	}

	seen := make(map[int64]struct{}, len(rows))
	deduped := rows[:0]
	for _, row := range rows {
		if _, ok := seen[row.ID]; ok {
			continue
		}
		seen[row.ID] = struct{}{}
		deduped = append(deduped, row)
	}
	return deduped, nil
}

// FetchCaseDocuments returns the document links for the given cases,
// files expanded.
func (c *Client) FetchCaseDocuments(ctx context.Context, caseIDs []int64) ([]CaseDocument, error) {
	var rows []CaseDocument
	for _, chunk := range chunkIDs(caseIDs, documentChunkSize) {
		batch, err := Collect[CaseDocument](ctx, c, endpointCaseDocument, Query{
			Filter: idFilter("sagid", chunk),
			Expand: "Dokument/Fil,SagDokumentRolle",
		})
		if err != nil {
			return nil, err
		}
		rows = append(rows, batch...)
		if err := c.pause(ctx); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// FetchActorTypes returns the Aktørtype lookup table.
func (c *Client) FetchActorTypes(ctx context.Context) ([]ActorType, error) {
	return Collect[ActorType](ctx, c, endpointActorType, Query{})
}

// FetchBallotTypes returns the Stemmetype lookup table.
func (c *Client) FetchBallotTypes(ctx context.Context) ([]BallotType, error) {
	return Collect[BallotType](ctx, c, endpointBallotType, Query{})
}

// FetchVoteTypes returns the Afstemningstype lookup table.
func (c *Client) FetchVoteTypes(ctx context.Context) ([]VoteType, error) {
	return Collect[VoteType](ctx, c, endpointVoteType, Query{})
}

// idFilter builds an "id eq 1 or id eq 2" disjunction.
func idFilter(field string, ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s eq %d", field, id)
	}
	return strings.Join(parts, " or ")
}

// chunkIDs splits ids into batches of at most size.
func chunkIDs(ids []int64, size int) [][]int64 {
	if size < 1 {
		size = 1
	}
	var chunks [][]int64
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
