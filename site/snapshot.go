package site

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/folkevalget/folkevalget/oda"
)

// Raw snapshot file names. One file per fetched collection, so a
// snapshot diff shows exactly which upstream data moved.
const (
	rawWindowFile        = "vote_window.json"
	rawActorTypesFile    = "actor_types.json"
	rawBallotTypesFile   = "stemmetyper.json"
	rawVoteTypesFile     = "afstemningstyper.json"
	rawPersonsFile       = "aktorer_personer.json"
	rawPartiesFile       = "aktorer_partier.json"
	rawCommitteesFile    = "aktorer_udvalg.json"
	rawRelationsFile     = "aktor_aktor.json"
	rawCaseStepsFile     = "sagstrin.json"
	rawBallotsFile       = "stemmer.json"
	rawCaseDocumentsFile = "sag_dokumenter.json"
)

// Snapshot is one run's raw API data, enough to rerun the derivation
// without touching the network.
type Snapshot struct {
	Window        oda.VoteWindow
	ActorTypes    []oda.ActorType
	BallotTypes   []oda.BallotType
	VoteTypes     []oda.VoteType
	Persons       []oda.Actor
	Parties       []oda.Actor
	Committees    []oda.Actor
	Relations     []oda.ActorRelation
	CaseSteps     []oda.CaseStep
	Ballots       []oda.BallotRow
	CaseDocuments []oda.CaseDocument
}

// WriteSnapshot dumps the snapshot under dir.
func WriteSnapshot(dir string, snapshot *Snapshot) error {
	files := []struct {
		name    string
		payload any
	}{
		{rawWindowFile, snapshot.Window},
		{rawActorTypesFile, snapshot.ActorTypes},
		{rawBallotTypesFile, snapshot.BallotTypes},
		{rawVoteTypesFile, snapshot.VoteTypes},
		{rawPersonsFile, snapshot.Persons},
		{rawPartiesFile, snapshot.Parties},
		{rawCommitteesFile, snapshot.Committees},
		{rawRelationsFile, snapshot.Relations},
		{rawCaseStepsFile, snapshot.CaseSteps},
		{rawBallotsFile, snapshot.Ballots},
		{rawCaseDocumentsFile, snapshot.CaseDocuments},
	}
	for _, f := range files {
		if err := WriteJSON(filepath.Join(dir, f.name), f.payload); err != nil {
			return err
		}
	}
	return nil
}

// LoadSnapshot reads a snapshot back from dir. The case-documents
// file is optional; every other file must be present.
func LoadSnapshot(dir string) (*Snapshot, error) {
	var snapshot Snapshot
	required := []struct {
		name string
		into any
	}{
		{rawWindowFile, &snapshot.Window},
		{rawActorTypesFile, &snapshot.ActorTypes},
		{rawBallotTypesFile, &snapshot.BallotTypes},
		{rawVoteTypesFile, &snapshot.VoteTypes},
		{rawPersonsFile, &snapshot.Persons},
		{rawPartiesFile, &snapshot.Parties},
		{rawCommitteesFile, &snapshot.Committees},
		{rawRelationsFile, &snapshot.Relations},
		{rawCaseStepsFile, &snapshot.CaseSteps},
		{rawBallotsFile, &snapshot.Ballots},
	}
	for _, f := range required {
		if err := readJSONFile(filepath.Join(dir, f.name), f.into); err != nil {
			return nil, err
		}
	}

	err := readJSONFile(filepath.Join(dir, rawCaseDocumentsFile), &snapshot.CaseDocuments)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return &snapshot, nil
}

func readJSONFile(path string, into any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
