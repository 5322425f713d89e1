package enrich

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	wikidataBaseURL = "https://www.wikidata.org"
	userAgent       = "folkevalget-data-fetcher/1.0 (https://folkevalget.dk)"

	// Scoring thresholds for portrait candidate matching.
	matchThreshold = 42
	maxCandidates  = 4
	searchLimit    = 8

	// Wikidata items that mark a person as a politician.
	itemMemberOfFolketing = "Q12311817"
	itemPolitician        = "Q82955"
)

var positiveDescKeywords = []string{
	"politician",
	"parliamentarian",
	"member of the folketing",
	"member of parliament",
	"politiker",
	"folketingsmedlem",
	"minister",
	"borgmester",
}

var positiveNationalityKeywords = []string{
	"danish",
	"dansk",
	"greenlandic",
	"grønlandsk",
	"faroese",
	"færøsk",
}

var negativeDescKeywords = []string{
	"album",
	"song",
	"bay",
	"film",
	"tv series",
	"footballer",
	"handball",
	"racewalker",
	"cyclist",
	"disambiguation",
}

// searchResult is one wbsearchentities hit.
type searchResult struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Aliases     []string `json:"aliases"`
	Match       struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"match"`
}

type searchResponse struct {
	Search []searchResult `json:"search"`
}

// entityClaim is the slice of one property's statements; only the
// mainsnak value is read.
type entityClaim struct {
	MainSnak struct {
		DataValue struct {
			Value json.RawMessage `json:"value"`
		} `json:"datavalue"`
	} `json:"mainsnak"`
}

type entityData struct {
	Descriptions map[string]struct {
		Value string `json:"value"`
	} `json:"descriptions"`
	Claims map[string][]entityClaim `json:"claims"`
}

type entityResponse struct {
	Entities map[string]entityData `json:"entities"`
}

// Wikidata looks up Wikimedia Commons portraits for people by name.
// Lookups go through an injected cache so repeated runs can reuse
// responses; the zero cache is an in-memory map scoped to this client.
type Wikidata struct {
	baseURL    string
	httpClient *http.Client
	cache      LookupCache
	logger     *slog.Logger
}

// WikidataOption configures a Wikidata client.
type WikidataOption func(*Wikidata)

// WithWikidataBaseURL overrides the API base URL.
func WithWikidataBaseURL(u string) WikidataOption {
	return func(w *Wikidata) {
		w.baseURL = strings.TrimRight(u, "/")
	}
}

// WithWikidataHTTPClient sets a custom HTTP client.
func WithWikidataHTTPClient(c *http.Client) WikidataOption {
	return func(w *Wikidata) {
		w.httpClient = c
	}
}

// WithWikidataCache sets the lookup cache shared across runs.
func WithWikidataCache(cache LookupCache) WikidataOption {
	return func(w *Wikidata) {
		w.cache = cache
	}
}

// WithWikidataLogger sets the logger.
func WithWikidataLogger(l *slog.Logger) WikidataOption {
	return func(w *Wikidata) {
		w.logger = l
	}
}

// NewWikidata creates a Wikidata lookup client.
func NewWikidata(opts ...WikidataOption) *Wikidata {
	w := &Wikidata{
		baseURL:    wikidataBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cache:      NewMemoryCache(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// PhotoURL searches Wikidata for a person by name and returns their
// Wikimedia Commons portrait URL. Returns "" when no candidate clears
// the match threshold, carries a political signal, and has an image.
func (w *Wikidata) PhotoURL(ctx context.Context, name string) (string, error) {
	type scored struct {
		result searchResult
		score  int
	}
	best := map[string]scored{}
	var order []string

	for _, language := range []string{"da", "en"} {
		results, err := w.search(ctx, name, language)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			w.logger.Debug("wikidata search failed", "name", name, "language", language, "error", err)
			continue
		}
		for _, result := range results {
			if result.ID == "" {
				continue
			}
			score := candidateScore(name, result)
			prev, ok := best[result.ID]
			if !ok {
				order = append(order, result.ID)
			}
			if !ok || score > prev.score {
				best[result.ID] = scored{result: result, score: score}
			}
		}
	}

	ranked := make([]scored, 0, len(best))
	for _, qid := range order {
		ranked = append(ranked, best[qid])
	}
	// Stable sort keeps first-seen order among equal scores.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > maxCandidates {
		ranked = ranked[:maxCandidates]
	}

	for _, candidate := range ranked {
		if candidate.score < matchThreshold {
			continue
		}
		entity, err := w.entity(ctx, candidate.result.ID)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			w.logger.Debug("wikidata entity fetch failed", "qid", candidate.result.ID, "error", err)
			continue
		}
		if entity == nil {
			continue
		}
		if !hasPoliticalSignal(entity, candidate.result.Description) {
			continue
		}
		if u := commonsImageURL(entity); u != "" {
			return u, nil
		}
	}
	return "", nil
}

// search queries wbsearchentities, serving repeats from the cache.
func (w *Wikidata) search(ctx context.Context, name, language string) ([]searchResult, error) {
	cacheKey := language + "\x00" + name
	if raw, ok := cacheGet(ctx, w.cache, "wikidata_search", cacheKey); ok {
		var cached []searchResult
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	searchURL := fmt.Sprintf(
		"%s/w/api.php?action=wbsearchentities&search=%s&language=%s&type=item&format=json&limit=%d",
		w.baseURL, url.QueryEscape(name), url.QueryEscape(language), searchLimit,
	)
	var resp searchResponse
	if err := w.getJSON(ctx, searchURL, &resp); err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(resp.Search); err == nil {
		cachePut(ctx, w.cache, "wikidata_search", cacheKey, raw)
	}
	return resp.Search, nil
}

// entity fetches one item's full entity document. A nil return with
// nil error means the item did not resolve.
func (w *Wikidata) entity(ctx context.Context, qid string) (*entityData, error) {
	if raw, ok := cacheGet(ctx, w.cache, "wikidata_entity", qid); ok {
		var cached entityData
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
	}

	entityURL := fmt.Sprintf("%s/wiki/Special:EntityData/%s.json", w.baseURL, url.PathEscape(qid))
	var resp entityResponse
	if err := w.getJSON(ctx, entityURL, &resp); err != nil {
		return nil, err
	}
	entity, ok := resp.Entities[qid]
	if !ok {
		return nil, nil
	}

	if raw, err := json.Marshal(entity); err == nil {
		cachePut(ctx, w.cache, "wikidata_entity", qid, raw)
	}
	return &entity, nil
}

func (w *Wikidata) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeNameText lower-cases, strips diacritics via NFKD
// decomposition, and collapses every non-alphanumeric run to a single
// space. Letters without a decomposition (ø, æ) fall out entirely;
// "Søren" and "Soren" normalize differently, and the same rule applies
// to both sides of every comparison.
func normalizeNameText(value string) string {
	if value == "" {
		return ""
	}
	decomposed := norm.NFKD.String(strings.ToLower(value))
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	collapsed := nonAlnumRun.ReplaceAllString(b.String(), " ")
	return strings.Join(strings.Fields(collapsed), " ")
}

// nameScore scores how well a candidate label matches the queried name.
func nameScore(query, candidate string) int {
	normQuery := normalizeNameText(query)
	normCandidate := normalizeNameText(candidate)
	if normQuery == "" || normCandidate == "" {
		return 0
	}
	if normQuery == normCandidate {
		return 140
	}

	queryTokens := strings.Fields(normQuery)
	candidateTokens := strings.Fields(normCandidate)
	candidateSet := make(map[string]struct{}, len(candidateTokens))
	for _, token := range candidateTokens {
		candidateSet[token] = struct{}{}
	}

	overlap := 0
	allPresent := len(queryTokens) > 0
	seen := make(map[string]struct{}, len(queryTokens))
	for _, token := range queryTokens {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		if _, ok := candidateSet[token]; ok {
			overlap++
		} else {
			allPresent = false
		}
	}

	score := overlap * 16
	if strings.Contains(normCandidate, normQuery) {
		score += 28
	}
	if strings.Contains(normQuery, normCandidate) {
		score += 10
	}
	if allPresent {
		score += 35
	}
	return score
}

// candidateScore combines label, alias, and match-text scores with
// description hints.
func candidateScore(name string, result searchResult) int {
	score := nameScore(name, result.Label)

	for _, alias := range result.Aliases {
		if s := nameScore(name, alias) + 18; s > score {
			score = s
		}
	}
	if result.Match.Text != "" {
		if s := nameScore(name, result.Match.Text) + 22; s > score {
			score = s
		}
	}

	description := strings.ToLower(result.Description)
	if containsAny(description, positiveDescKeywords) {
		score += 24
	}
	if containsAny(description, positiveNationalityKeywords) {
		score += 8
	}
	if containsAny(description, negativeDescKeywords) {
		score -= 18
	}
	if result.Match.Type == "alias" {
		score += 8
	}
	return score
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

// hasPoliticalSignal reports whether the entity's descriptions or its
// position-held/occupation claims identify a politician.
func hasPoliticalSignal(entity *entityData, fallbackDescription string) bool {
	for _, description := range entity.Descriptions {
		if containsAny(strings.ToLower(description.Value), positiveDescKeywords) {
			return true
		}
	}
	if containsAny(strings.ToLower(fallbackDescription), positiveDescKeywords) {
		return true
	}

	for _, property := range []string{"P39", "P106"} {
		for _, claim := range entity.Claims[property] {
			var value struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(claim.MainSnak.DataValue.Value, &value); err != nil {
				continue
			}
			if value.ID == itemMemberOfFolketing || value.ID == itemPolitician {
				return true
			}
		}
	}
	return false
}

// commonsImageURL resolves the entity's first P18 image claim to its
// Wikimedia Commons URL. Vector and document formats are skipped.
func commonsImageURL(entity *entityData) string {
	claims := entity.Claims["P18"]
	if len(claims) == 0 {
		return ""
	}
	var filename string
	if err := json.Unmarshal(claims[0].MainSnak.DataValue.Value, &filename); err != nil || filename == "" {
		return ""
	}

	filename = strings.ReplaceAll(filename, " ", "_")
	lower := strings.ToLower(filename)
	for _, ext := range []string{".svg", ".tif", ".tiff", ".pdf"} {
		if strings.HasSuffix(lower, ext) {
			return ""
		}
	}

	sum := fmt.Sprintf("%x", md5.Sum([]byte(filename)))
	return fmt.Sprintf("https://upload.wikimedia.org/wikipedia/commons/%s/%s/%s",
		sum[:1], sum[:2], escapeCommonsName(filename))
}

// escapeCommonsName percent-encodes a Commons file name the same way
// urllib quote does, leaving "/" literal.
func escapeCommonsName(name string) string {
	escaped := url.PathEscape(name)
	return strings.ReplaceAll(escaped, "%2F", "/")
}
