// Package storage publishes derived documents to NATS JetStream KV.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/folkevalget/folkevalget/engine"
)

// Bucket names for each document type.
const (
	BucketProfiles = "FOLKEVALGET_PROFILES"
	BucketVotes    = "FOLKEVALGET_VOTES"
	BucketRuns     = "FOLKEVALGET_RUNS"
)

// Store persists member profiles, vote summaries and run records in
// NATS JetStream KV buckets. Profiles are keyed by person id, votes by
// vote id and runs by their uuid.
type Store struct {
	js       jetstream.JetStream
	profiles jetstream.KeyValue
	votes    jetstream.KeyValue
	runs     jetstream.KeyValue
}

// NewStore creates a new Store with the given JetStream context.
// It creates the KV buckets and the run event stream if they don't exist.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	profiles, err := getOrCreateBucket(ctx, js, BucketProfiles)
	if err != nil {
		return nil, fmt.Errorf("create profiles bucket: %w", err)
	}

	votes, err := getOrCreateBucket(ctx, js, BucketVotes)
	if err != nil {
		return nil, fmt.Errorf("create votes bucket: %w", err)
	}

	runs, err := getOrCreateBucket(ctx, js, BucketRuns)
	if err != nil {
		return nil, fmt.Errorf("create runs bucket: %w", err)
	}

	if _, err := getOrCreateStream(ctx, js, EventStream, runCompletedPrefix+".*"); err != nil {
		return nil, fmt.Errorf("create event stream: %w", err)
	}

	return &Store{
		js:       js,
		profiles: profiles,
		votes:    votes,
		runs:     runs,
	}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("Folkevalget %s documents", strings.ToLower(strings.TrimPrefix(name, "FOLKEVALGET_"))),
		History:     5, // Keep last 5 revisions
	})
}

func getOrCreateStream(ctx context.Context, js jetstream.JetStream, name, subject string) (jetstream.Stream, error) {
	st, err := js.Stream(ctx, name)
	if err == nil {
		return st, nil
	}
	// Stream doesn't exist, create it
	return js.CreateStream(ctx, jetstream.StreamConfig{
		Name:     name,
		Subjects: []string{subject},
		MaxMsgs:  256, // Cap retained run events
	})
}

// PutProfiles upserts member profiles, keyed by person id. Republishing
// a person id replaces the previous document.
func (s *Store) PutProfiles(ctx context.Context, profiles []engine.Profile) error {
	for i := range profiles {
		p := &profiles[i]
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal profile %d: %w", p.ID, err)
		}
		if _, err := s.profiles.Put(ctx, strconv.FormatInt(p.ID, 10), data); err != nil {
			return fmt.Errorf("store profile %d: %w", p.ID, err)
		}
	}
	return nil
}

// GetProfile retrieves a member profile by person id.
func (s *Store) GetProfile(ctx context.Context, personID int64) (*engine.Profile, error) {
	entry, err := s.profiles.Get(ctx, strconv.FormatInt(personID, 10))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get profile %d: %w", personID, err)
	}

	var p engine.Profile
	if err := json.Unmarshal(entry.Value(), &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile %d: %w", personID, err)
	}

	return &p, nil
}

// PutVotes upserts vote summaries, keyed by vote id.
func (s *Store) PutVotes(ctx context.Context, votes []engine.VoteSummary) error {
	for i := range votes {
		v := &votes[i]
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal vote %d: %w", v.ID, err)
		}
		if _, err := s.votes.Put(ctx, strconv.FormatInt(v.ID, 10), data); err != nil {
			return fmt.Errorf("store vote %d: %w", v.ID, err)
		}
	}
	return nil
}

// GetVote retrieves a vote summary by vote id.
func (s *Store) GetVote(ctx context.Context, voteID int64) (*engine.VoteSummary, error) {
	entry, err := s.votes.Get(ctx, strconv.FormatInt(voteID, 10))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get vote %d: %w", voteID, err)
	}

	var v engine.VoteSummary
	if err := json.Unmarshal(entry.Value(), &v); err != nil {
		return nil, fmt.Errorf("unmarshal vote %d: %w", voteID, err)
	}

	return &v, nil
}

// isNotFound checks if an error indicates a key was not found.
func isNotFound(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound)
}
