package casedocs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"

	"github.com/folkevalget/folkevalget/engine"
)

const (
	// DefaultSummaryRunes bounds one document summary.
	DefaultSummaryRunes = 1200
	// maxDocumentSize limits a fetched document body.
	maxDocumentSize = 8 * 1024 * 1024

	summarizerUserAgent = "folkevalget-data-fetcher/1.0"
)

// Summarizer fetches linked HTML documents and condenses them to short
// markdown excerpts. Summaries are best effort: a page that cannot be
// fetched or parsed is logged and left without one.
type Summarizer struct {
	client    *http.Client
	converter *md.Converter
	logger    *slog.Logger
	maxRunes  int

	mu    sync.Mutex
	cache map[string]string
}

// SummarizerOption configures a Summarizer.
type SummarizerOption func(*Summarizer)

// WithClient sets a custom HTTP client.
func WithClient(hc *http.Client) SummarizerOption {
	return func(s *Summarizer) {
		s.client = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SummarizerOption {
	return func(s *Summarizer) {
		s.logger = logger
	}
}

// WithMaxRunes bounds the summary length.
func WithMaxRunes(n int) SummarizerOption {
	return func(s *Summarizer) {
		if n > 0 {
			s.maxRunes = n
		}
	}
}

// NewSummarizer creates a document summarizer.
func NewSummarizer(opts ...SummarizerOption) *Summarizer {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	s := &Summarizer{
		client:    &http.Client{Timeout: 30 * time.Second},
		converter: converter,
		logger:    slog.Default(),
		maxRunes:  DefaultSummaryRunes,
		cache:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize fetches one document and returns its markdown excerpt.
func (s *Summarizer) Summarize(ctx context.Context, docURL string) (string, error) {
	s.mu.Lock()
	cached, ok := s.cache[docURL]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	body, err := s.fetch(ctx, docURL)
	if err != nil {
		return "", err
	}

	parsed, err := url.Parse(docURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return "", fmt.Errorf("extract article: %w", err)
	}

	content := article.Content
	if content == "" {
		content = string(body)
	}
	markdown, err := s.converter.ConvertString(content)
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	summary := truncateRunes(cleanSummary(markdown), s.maxRunes)

	s.mu.Lock()
	s.cache[docURL] = summary
	s.mu.Unlock()
	return summary, nil
}

// Annotate fills Summary on every HTML link in byCase using a bounded
// worker pool. Non-HTML formats are left alone; fetch failures are
// logged and skipped.
func (s *Summarizer) Annotate(ctx context.Context, byCase map[int64][]engine.DocumentLink, workers int) {
	if workers < 1 {
		workers = 1
	}

	type target struct {
		caseID int64
		index  int
		url    string
	}
	var targets []target
	for caseID, links := range byCase {
		for i, link := range links {
			if !strings.EqualFold(link.Format, "html") || link.URL == "" {
				continue
			}
			targets = append(targets, target{caseID: caseID, index: i, url: link.URL})
		}
	}
	if len(targets) == 0 {
		return
	}
	s.logger.Info("summarizing case documents", "documents", len(targets), "workers", workers)

	var mu sync.Mutex
	jobCh := make(chan target)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tg := range jobCh {
				summary, err := s.Summarize(ctx, tg.url)
				if err != nil {
					s.logger.Warn("document summary failed", "url", tg.url, "error", err)
					continue
				}
				mu.Lock()
				byCase[tg.caseID][tg.index].Summary = summary
				mu.Unlock()
			}
		}()
	}
	for _, tg := range targets {
		jobCh <- tg
	}
	close(jobCh)
	wg.Wait()
}

func (s *Summarizer) fetch(ctx context.Context, docURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", summarizerUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// cleanSummary collapses excess blank lines and trailing whitespace
// left over from conversion.
func cleanSummary(markdown string) string {
	lines := strings.Split(markdown, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	cleaned := strings.Join(lines, "\n")
	for strings.Contains(cleaned, "\n\n\n") {
		cleaned = strings.ReplaceAll(cleaned, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(cleaned)
}

// truncateRunes cuts text at the last word boundary under limit and
// marks the cut with an ellipsis.
func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	cut := string(runes[:limit])
	if idx := strings.LastIndexAny(cut, " \n\t"); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " \n\t.,;:") + "…"
}
