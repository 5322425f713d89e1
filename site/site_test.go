package site

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/folkevalget/folkevalget/engine"
	"github.com/folkevalget/folkevalget/hverv"
	"github.com/folkevalget/folkevalget/oda"
)

func TestWriteJSONKeepsDanishText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "out.json")
	payload := map[string]string{"titel": "Forslag om løn & vilkår for <MF>"}

	if err := WriteJSON(path, payload); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	body := string(raw)
	if !strings.Contains(body, "løn & vilkår for <MF>") {
		t.Errorf("output escaped text: %s", body)
	}
	if !strings.Contains(body, "\n  \"titel\"") {
		t.Errorf("output not indented: %s", body)
	}
}

func TestWriteJSPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.js")
	payload := map[string]any{"profiles": []int{1, 2}}

	if err := WriteJSPayload(path, "__FOLKEVALGET_BOOTSTRAP__", payload); err != nil {
		t.Fatalf("WriteJSPayload: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "window.__FOLKEVALGET_BOOTSTRAP__={\"profiles\":[1,2]};\n"
	if string(raw) != want {
		t.Errorf("payload = %q, want %q", raw, want)
	}
}

func TestWriteAll(t *testing.T) {
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")

	stats := NewStats(
		oda.VoteWindow{StartDate: "2022-11-01", Today: "2023-06-01"},
		Counts{People: 1, Votes: 1, Profiles: 1},
		time.Date(2023, 6, 1, 12, 30, 45, 999, time.UTC),
	)
	if stats.GeneratedAt != "2023-06-01T12:30:45Z" {
		t.Errorf("generated_at = %q", stats.GeneratedAt)
	}
	if stats.Source != "Folketinget ODA API" {
		t.Errorf("source = %q", stats.Source)
	}

	artifacts := Artifacts{
		Profiles: []engine.Profile{{ID: 10, Name: "Anna Andersen"}},
		Parties:  []engine.OrgSummary{{ID: 1, Name: "Socialdemokratiet", ShortName: "S"}},
		Votes:    []engine.VoteSummary{{ID: 100}},
		Stats:    stats,
	}
	if err := NewWriter(dataDir).WriteAll(artifacts); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	for _, name := range []string{ProfilesFile, PartiesFile, CommitteesFile, VotesFile, StatsFile} {
		if _, err := os.Stat(filepath.Join(dataDir, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}
	// No interests report in the bundle, no hverv.json on disk.
	if _, err := os.Stat(filepath.Join(dataDir, InterestsFile)); err == nil {
		t.Error("hverv.json written without an interests report")
	}

	catalog, err := os.ReadFile(filepath.Join(root, CatalogFile))
	if err != nil {
		t.Fatalf("catalog.js: %v", err)
	}
	if !strings.HasPrefix(string(catalog), "window.__FOLKEVALGET_BOOTSTRAP__={") {
		t.Errorf("catalog.js starts with %q", string(catalog)[:40])
	}
	if !strings.Contains(string(catalog), "Anna Andersen") {
		t.Error("catalog.js missing profile data")
	}

	votes, err := os.ReadFile(filepath.Join(root, VoteCatalogFile))
	if err != nil {
		t.Fatalf("vote-catalog.js: %v", err)
	}
	if !strings.HasPrefix(string(votes), "window.__FOLKEVALGET_VOTES__={\"votes\":") {
		t.Errorf("vote-catalog.js starts with %q", string(votes)[:40])
	}

	// The absent committees collection publishes as [], not null.
	raw, err := os.ReadFile(filepath.Join(dataDir, CommitteesFile))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Errorf("udvalg.json = %q, want an empty list", raw)
	}
}

func TestLoadArtifacts(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	written := Artifacts{
		Profiles: []engine.Profile{{ID: 10, Name: "Anna Andersen", Party: "Socialdemokratiet"}},
		Parties:  []engine.OrgSummary{{ID: 1, Name: "Socialdemokratiet", ShortName: "S"}},
		Votes:    []engine.VoteSummary{{ID: 100}},
		Stats: NewStats(
			oda.VoteWindow{StartDate: "2022-11-01", Today: "2023-06-01"},
			Counts{People: 1, Votes: 1, Profiles: 1},
			time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC),
		),
	}
	if err := NewWriter(dataDir).WriteAll(written); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	loaded, err := LoadArtifacts(dataDir)
	if err != nil {
		t.Fatalf("LoadArtifacts: %v", err)
	}
	if len(loaded.Profiles) != 1 || loaded.Profiles[0].Name != "Anna Andersen" {
		t.Errorf("profiles = %+v", loaded.Profiles)
	}
	if len(loaded.Parties) != 1 || loaded.Parties[0].ShortName != "S" {
		t.Errorf("parties = %+v", loaded.Parties)
	}
	if loaded.Committees == nil || len(loaded.Committees) != 0 {
		t.Errorf("committees = %+v, want empty list", loaded.Committees)
	}
	if loaded.Stats.VoteWindow.StartDate != "2022-11-01" {
		t.Errorf("stats window = %+v", loaded.Stats.VoteWindow)
	}
	if loaded.Interests != nil {
		t.Errorf("interests = %+v, want nil without hverv.json", loaded.Interests)
	}

	// A written interests report comes back on the next load.
	written.Interests = &hverv.Report{
		Generated:   "2023-06-01T12:00:00Z",
		MemberCount: 1,
		Members: map[string]hverv.MemberRecord{
			"Anna Andersen": {ID: 10, Name: "Anna Andersen"},
		},
	}
	if err := NewWriter(dataDir).WriteAll(written); err != nil {
		t.Fatalf("WriteAll with interests: %v", err)
	}
	loaded, err = LoadArtifacts(dataDir)
	if err != nil {
		t.Fatalf("LoadArtifacts with interests: %v", err)
	}
	if loaded.Interests == nil {
		t.Fatal("interests report not loaded")
	}
	if rec := loaded.Interests.Members["Anna Andersen"]; rec.ID != 10 {
		t.Errorf("interests member = %+v", rec)
	}
}

func TestLoadArtifactsMissingBundle(t *testing.T) {
	if _, err := LoadArtifacts(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for a directory without artifacts")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "raw")

	snapshot := &Snapshot{
		Window: oda.VoteWindow{StartDate: "2022-11-01", Today: "2023-06-01", FirstVoteID: 9000},
		ActorTypes: []oda.ActorType{
			{ID: 5, Type: "Person"},
		},
		Persons: []oda.Actor{
			{ID: 10, TypeID: 5, Name: "Anna Andersen", FirstName: "Anna", LastName: "Andersen"},
		},
		Parties: []oda.Actor{
			{ID: 1, TypeID: 4, Name: "Socialdemokratiet", GroupShort: "S"},
		},
		Relations: []oda.ActorRelation{
			{ID: 500, FromActorID: 1, ToActorID: 10, RoleID: 15},
		},
		CaseSteps: []oda.CaseStep{
			{ID: 7000, CaseID: 42, Date: "2023-03-01T00:00:00", Votes: []oda.VoteRow{{ID: 9000, TypeID: 1}}},
		},
		Ballots: []oda.BallotRow{
			{ID: 1, TypeID: 1, VoteID: 9000, ActorID: 10},
		},
	}
	if err := WriteSnapshot(dir, snapshot); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	loaded, err := LoadSnapshot(dir)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if loaded.Window.FirstVoteID != 9000 {
		t.Errorf("window = %+v", loaded.Window)
	}
	if len(loaded.Persons) != 1 || loaded.Persons[0].Name != "Anna Andersen" {
		t.Errorf("persons = %+v", loaded.Persons)
	}
	if len(loaded.Ballots) != 1 || loaded.Ballots[0].ActorID != 10 {
		t.Errorf("ballot actor id lost in round trip: %+v", loaded.Ballots)
	}
	if len(loaded.CaseSteps) != 1 || len(loaded.CaseSteps[0].Votes) != 1 {
		t.Errorf("case steps = %+v", loaded.CaseSteps)
	}
	if loaded.CaseDocuments != nil {
		t.Errorf("optional case documents decoded as %+v", loaded.CaseDocuments)
	}
}

func TestLoadSnapshotMissingDir(t *testing.T) {
	if _, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected an error for a missing snapshot dir")
	}
}
