package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/folkevalget/folkevalget/engine"
)

// CreditsFilename is the manifest next to locally imported portraits.
const CreditsFilename = "credits.json"

// photoExtensions in priority order; when both 123.jpg and 123.png
// exist, jpg wins.
var photoExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

// CreditEntry is one manifest record overriding where a portrait came
// from and how it must be credited.
type CreditEntry struct {
	File         string `json:"file"`
	MemberURL    string `json:"member_url"`
	SourceURL    string `json:"source_url"`
	SourceName   string `json:"source_name"`
	Photographer string `json:"photographer"`
	CreditText   string `json:"credit_text"`
}

// InventoryPhotos scans photosDir for portrait files named after a
// person id and returns relative photo paths keyed by id.
func InventoryPhotos(photosDir string) (map[int64]string, error) {
	pattern := filepath.Join(photosDir, "*.{jpg,jpeg,png,webp,gif}")
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("scan photos dir: %w", err)
	}

	rank := make(map[string]int, len(photoExtensions))
	for i, ext := range photoExtensions {
		rank[ext] = i
	}

	inventory := make(map[int64]string)
	chosen := make(map[int64]int)
	for _, match := range matches {
		base := filepath.Base(match)
		ext := strings.ToLower(filepath.Ext(base))
		id, err := strconv.ParseInt(strings.TrimSuffix(base, filepath.Ext(base)), 10, 64)
		if err != nil {
			continue
		}
		r, ok := rank[ext]
		if !ok {
			continue
		}
		if prev, ok := chosen[id]; ok && prev <= r {
			continue
		}
		chosen[id] = r
		inventory[id] = "photos/" + base
	}
	return inventory, nil
}

// LoadCreditManifest reads credits.json from photosDir. A missing or
// unreadable manifest yields an empty map.
func LoadCreditManifest(photosDir string) map[int64]CreditEntry {
	raw, err := os.ReadFile(filepath.Join(photosDir, CreditsFilename))
	if err != nil {
		return map[int64]CreditEntry{}
	}
	var payload map[string]CreditEntry
	if err := json.Unmarshal(raw, &payload); err != nil {
		return map[int64]CreditEntry{}
	}

	manifest := make(map[int64]CreditEntry, len(payload))
	for rawID, entry := range payload {
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			continue
		}
		manifest[id] = entry
	}
	return manifest
}

// ApplyLocalInventory points profiles at locally stored portraits and
// applies the credit manifest. Manifest fields override what the local
// scan found; a locally imported portrait without explicit credits is
// attributed to Folketinget.
func ApplyLocalInventory(profiles []engine.Profile, photosDir string) error {
	inventory, err := InventoryPhotos(photosDir)
	if err != nil {
		return err
	}
	manifest := LoadCreditManifest(photosDir)

	for i := range profiles {
		p := &profiles[i]
		localPath := inventory[p.ID]
		if localPath != "" {
			p.PhotoURL = localPath
			if p.PhotoSourceName == "" {
				p.PhotoSourceName = "Folketinget"
			}
		}

		entry := manifest[p.ID]
		if entry.File != "" {
			p.PhotoURL = entry.File
		}
		if entry.MemberURL != "" {
			p.MemberURL = entry.MemberURL
		}
		if entry.SourceURL != "" {
			p.PhotoSourceURL = entry.SourceURL
		}
		if entry.SourceName != "" {
			p.PhotoSourceName = entry.SourceName
		}
		if entry.Photographer != "" {
			p.PhotoPhotographer = entry.Photographer
		}
		if entry.CreditText != "" {
			p.PhotoCreditText = entry.CreditText
		} else if localPath != "" && p.PhotoSourceName != "" {
			p.PhotoCreditText = p.PhotoSourceName
		}
	}
	return nil
}

// DefaultPhotoWorkers bounds parallel Wikidata portrait lookups.
const DefaultPhotoWorkers = 4

// Portraits looks up and downloads member portraits from Wikimedia
// Commons via Wikidata.
type Portraits struct {
	wikidata   *Wikidata
	httpClient *http.Client
	logger     *slog.Logger
}

// PortraitsOption configures a Portraits fetcher.
type PortraitsOption func(*Portraits)

// WithPortraitsHTTPClient sets the client used for image downloads.
func WithPortraitsHTTPClient(c *http.Client) PortraitsOption {
	return func(p *Portraits) {
		p.httpClient = c
	}
}

// WithPortraitsLogger sets the logger.
func WithPortraitsLogger(l *slog.Logger) PortraitsOption {
	return func(p *Portraits) {
		p.logger = l
	}
}

// NewPortraits creates a portrait fetcher on top of a Wikidata client.
func NewPortraits(wikidata *Wikidata, opts ...PortraitsOption) *Portraits {
	p := &Portraits{
		wikidata:   wikidata,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FetchAll resolves a portrait for every named profile and rewrites
// PhotoURL to the local relative path on success. Profiles whose
// portrait is already on disk keep it. Lookups are best effort; a
// profile that cannot be resolved keeps whatever PhotoURL it had.
func (p *Portraits) FetchAll(ctx context.Context, profiles []engine.Profile, photosDir string, workers int) error {
	if err := os.MkdirAll(photosDir, 0o755); err != nil {
		return fmt.Errorf("create photos dir: %w", err)
	}
	if workers < 1 {
		workers = 1
	}

	inventory, err := InventoryPhotos(photosDir)
	if err != nil {
		return err
	}

	type job struct {
		index int
	}
	var todo []job
	for i := range profiles {
		if profiles[i].Name == "" {
			continue
		}
		if local, ok := inventory[profiles[i].ID]; ok {
			profiles[i].PhotoURL = local
			continue
		}
		todo = append(todo, job{index: i})
	}
	if len(todo) == 0 {
		return nil
	}

	p.logger.Info("looking up portraits via wikidata",
		"profiles", len(todo),
		"workers", workers)

	var (
		mu    sync.Mutex
		found int
	)
	jobCh := make(chan job)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for jb := range jobCh {
				profile := &profiles[jb.index]
				localPath, err := p.fetchOne(ctx, profile.ID, profile.Name, photosDir)
				if err != nil {
					p.logger.Debug("portrait lookup failed",
						"person", profile.ID,
						"name", profile.Name,
						"error", err)
					continue
				}
				if localPath == "" {
					continue
				}
				mu.Lock()
				profile.PhotoURL = localPath
				found++
				mu.Unlock()
			}
		}()
	}
	for _, jb := range todo {
		select {
		case jobCh <- jb:
		case <-ctx.Done():
			close(jobCh)
			wg.Wait()
			return ctx.Err()
		}
	}
	close(jobCh)
	wg.Wait()

	p.logger.Info("portrait lookup finished",
		"found", found,
		"profiles", len(todo))
	return ctx.Err()
}

// fetchOne downloads one person's portrait. An empty path with nil
// error means no acceptable portrait was found.
func (p *Portraits) fetchOne(ctx context.Context, personID int64, name, photosDir string) (string, error) {
	imgURL, err := p.wikidata.PhotoURL(ctx, name)
	if err != nil {
		return "", err
	}
	if imgURL == "" {
		return "", nil
	}

	ext := ".jpg"
	lower := strings.ToLower(imgURL)
	if i := strings.IndexByte(lower, '?'); i >= 0 {
		lower = lower[:i]
	}
	for _, candidate := range []string{".png", ".gif", ".webp", ".jpeg"} {
		if strings.HasSuffix(lower, candidate) {
			ext = candidate
			break
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imgURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "image/") {
		return "", nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	filename := fmt.Sprintf("%d%s", personID, ext)
	if err := os.WriteFile(filepath.Join(photosDir, filename), body, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return "photos/" + filename, nil
}
