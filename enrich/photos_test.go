package enrich

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/folkevalget/folkevalget/engine"
)

func writePhotoFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("img"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestInventoryPhotos(t *testing.T) {
	dir := t.TempDir()
	writePhotoFiles(t, dir, "10.jpg", "11.png", "12.webp", "13.png", "13.jpg", "portrait.jpg")
	if err := os.WriteFile(filepath.Join(dir, "credits.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	inventory, err := InventoryPhotos(dir)
	if err != nil {
		t.Fatalf("InventoryPhotos: %v", err)
	}

	want := map[int64]string{
		10: "photos/10.jpg",
		11: "photos/11.png",
		12: "photos/12.webp",
		13: "photos/13.jpg", // jpg outranks png
	}
	if len(inventory) != len(want) {
		t.Fatalf("inventory has %d entries, want %d: %v", len(inventory), len(want), inventory)
	}
	for id, path := range want {
		if inventory[id] != path {
			t.Errorf("inventory[%d] = %q, want %q", id, inventory[id], path)
		}
	}
}

func TestLoadCreditManifest(t *testing.T) {
	dir := t.TempDir()

	if got := LoadCreditManifest(dir); len(got) != 0 {
		t.Errorf("missing manifest yielded %v", got)
	}

	manifest := `{
		"10": {"source_url": "https://www.ft.dk/a", "photographer": "Steen Brogaard"},
		"not-a-number": {"file": "photos/x.jpg"}
	}`
	if err := os.WriteFile(filepath.Join(dir, CreditsFilename), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	got := LoadCreditManifest(dir)
	if len(got) != 1 {
		t.Fatalf("manifest has %d entries, want 1", len(got))
	}
	if got[10].Photographer != "Steen Brogaard" {
		t.Errorf("photographer = %q", got[10].Photographer)
	}
}

func TestApplyLocalInventory(t *testing.T) {
	dir := t.TempDir()
	writePhotoFiles(t, dir, "10.jpg")
	manifest := `{
		"10": {"source_url": "https://www.ft.dk/medlem/10", "photographer": "Steen Brogaard"},
		"99": {"file": "photos/99-official.jpg", "credit_text": "Pressefoto", "member_url": "https://www.ft.dk/medlem/99"}
	}`
	if err := os.WriteFile(filepath.Join(dir, CreditsFilename), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	profiles := []engine.Profile{
		{ID: 10, Name: "Anna Andersen", PhotoURL: "https://upload.wikimedia.org/old.jpg"},
		{ID: 99, Name: "Bent Berg"},
		{ID: 7, Name: "Carl Carlsen", PhotoURL: "https://upload.wikimedia.org/keep.jpg"},
	}
	if err := ApplyLocalInventory(profiles, dir); err != nil {
		t.Fatalf("ApplyLocalInventory: %v", err)
	}

	local := profiles[0]
	if local.PhotoURL != "photos/10.jpg" {
		t.Errorf("local photo url = %q", local.PhotoURL)
	}
	if local.PhotoSourceName != "Folketinget" {
		t.Errorf("local source name = %q", local.PhotoSourceName)
	}
	if local.PhotoSourceURL != "https://www.ft.dk/medlem/10" {
		t.Errorf("local source url = %q", local.PhotoSourceURL)
	}
	if local.PhotoPhotographer != "Steen Brogaard" {
		t.Errorf("local photographer = %q", local.PhotoPhotographer)
	}
	if local.PhotoCreditText != "Folketinget" {
		t.Errorf("local credit text = %q", local.PhotoCreditText)
	}

	manifestOnly := profiles[1]
	if manifestOnly.PhotoURL != "photos/99-official.jpg" {
		t.Errorf("manifest photo url = %q", manifestOnly.PhotoURL)
	}
	if manifestOnly.MemberURL != "https://www.ft.dk/medlem/99" {
		t.Errorf("manifest member url = %q", manifestOnly.MemberURL)
	}
	if manifestOnly.PhotoCreditText != "Pressefoto" {
		t.Errorf("manifest credit text = %q", manifestOnly.PhotoCreditText)
	}
	if manifestOnly.PhotoSourceName != "" {
		t.Errorf("manifest source name = %q, want empty", manifestOnly.PhotoSourceName)
	}

	untouched := profiles[2]
	if untouched.PhotoURL != "https://upload.wikimedia.org/keep.jpg" {
		t.Errorf("untouched photo url = %q", untouched.PhotoURL)
	}
	if untouched.PhotoCreditText != "" || untouched.PhotoSourceName != "" {
		t.Errorf("untouched profile gained credits: %+v", untouched)
	}
}

func TestFetchAllUsesLocalPhotos(t *testing.T) {
	dir := t.TempDir()
	writePhotoFiles(t, dir, "10.jpg")

	// The Wikidata base URL points nowhere reachable; a lookup would fail
	// loudly instead of silently succeeding.
	wikidata := NewWikidata(WithWikidataBaseURL("http://127.0.0.1:0"))
	portraits := NewPortraits(wikidata)

	profiles := []engine.Profile{
		{ID: 10, Name: "Anna Andersen"},
		{ID: 11}, // unnamed, skipped
	}
	if err := portraits.FetchAll(context.Background(), profiles, dir, 2); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if profiles[0].PhotoURL != "photos/10.jpg" {
		t.Errorf("photo url = %q, want the local file", profiles[0].PhotoURL)
	}
	if profiles[1].PhotoURL != "" {
		t.Errorf("unnamed profile photo url = %q, want empty", profiles[1].PhotoURL)
	}
}
