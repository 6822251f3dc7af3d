// Package enrich attaches section summaries from rendered arXiv papers to
// candidates before scoring.
package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/benchscope/internal/fetch"
	"github.com/jonathan/benchscope/internal/types"
)

// DefaultHTMLBase is where arXiv serves rendered papers
const DefaultHTMLBase = "https://arxiv.org/html/"

const (
	// summaryRunes caps each attached section summary
	summaryRunes = 1200
	// defaultConcurrency bounds parallel paper downloads
	defaultConcurrency = 3
)

// sectionKeywords maps a metadata key to heading keywords that select it.
// Order matters: the first matching heading wins for each key.
var sectionKeywords = []struct {
	key      string
	keywords []string
}{
	{types.MetaEvaluationSummary, []string{"evaluation", "experiment", "results"}},
	{types.MetaDatasetSummary, []string{"dataset", "benchmark construction", "data collection", "benchmark"}},
	{types.MetaBaselinesSummary, []string{"baseline", "models", "compared methods"}},
}

// Enricher downloads rendered arXiv papers and summarizes key sections
type Enricher struct {
	baseURL     string
	timeout     time.Duration
	concurrency int
	logger      zerolog.Logger
}

// New creates an Enricher
func New(timeout time.Duration, logger zerolog.Logger) *Enricher {
	return &Enricher{
		baseURL:     DefaultHTMLBase,
		timeout:     timeout,
		concurrency: defaultConcurrency,
		logger:      logger.With().Str("component", "enrich").Logger(),
	}
}

// WithBaseURL overrides the rendered paper base URL
func (e *Enricher) WithBaseURL(baseURL string) *Enricher {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	e.baseURL = baseURL
	return e
}

// paperID returns the arXiv id of a candidate's paper, if any
func paperID(c types.RawCandidate) string {
	for _, u := range []string{c.PaperURL, c.URL} {
		if id := fetch.ArxivID(u); id != "" {
			return id
		}
	}
	return ""
}

// EnrichAll enriches every candidate linked to an arXiv paper. Candidates
// without a paper, or whose paper cannot be fetched, are returned unchanged.
// The input slice is not modified.
func (e *Enricher) EnrichAll(ctx context.Context, candidates []types.RawCandidate) []types.RawCandidate {
	out := make([]types.RawCandidate, len(candidates))
	copy(out, candidates)

	var g errgroup.Group
	g.SetLimit(max(e.concurrency, 1))
	enriched := 0
	results := make([]bool, len(out))
	for i, c := range candidates {
		id := paperID(c)
		if id == "" {
			continue
		}
		g.Go(func() error {
			updated, err := e.Enrich(ctx, c, id)
			if err != nil {
				e.logger.Debug().Err(err).Str("title", c.Title).Msg("enrichment skipped")
				return nil
			}
			out[i] = updated
			results[i] = true
			return nil
		})
	}
	_ = g.Wait()

	for _, ok := range results {
		if ok {
			enriched++
		}
	}
	e.logger.Info().Int("candidates", len(candidates)).Int("enriched", enriched).Msg("enrichment finished")
	return out
}

// Enrich fetches the rendered paper with the given arXiv id and attaches
// section summaries to a copy of c. A paper without parseable sections
// contributes an excerpt of its main text as the evaluation summary.
func (e *Enricher) Enrich(ctx context.Context, c types.RawCandidate, id string) (types.RawCandidate, error) {
	result, err := fetch.URL(ctx, e.baseURL+id, fetch.WithTimeout(e.timeout))
	if err != nil {
		return c, err
	}

	sections, err := ExtractSections(result.Text())
	if err != nil {
		return c, err
	}
	summaries := Summarize(sections)
	if len(sections) == 0 {
		// Unsectioned renderings carry their evidence in the page body
		text, err := fetch.ExtractMainText(result.Text(), fetch.ArxivContentSelectors(), "figure", "table", ".ltx_authors")
		if err != nil {
			return c, err
		}
		text = strings.Join(strings.Fields(text), " ")
		if text == "" {
			return c, fmt.Errorf("no content found in %s", id)
		}
		summaries = map[string]string{types.MetaEvaluationSummary: truncate(text, summaryRunes)}
	}

	for key, summary := range summaries {
		c = c.WithMetadata(key, summary)
	}
	if c.Meta(types.MetaRawInstitutions) == "" {
		if affiliations, err := ExtractAffiliations(result.Text()); err == nil && affiliations != "" {
			c = c.WithMetadata(types.MetaRawInstitutions, affiliations)
		}
	}
	return c, nil
}

// Section is one top-level section of a rendered paper
type Section struct {
	Heading string
	Text    string
}

// ExtractSections parses arXiv HTML into top-level sections
func ExtractSections(html string) ([]Section, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse paper HTML: %w", err)
	}
	doc.Find("script, style, .ltx_bibliography, figure, table").Remove()

	var sections []Section
	doc.Find("section.ltx_section").Each(func(_ int, s *goquery.Selection) {
		heading := s.ChildrenFiltered("h2, .ltx_title").First()
		title := strings.Join(strings.Fields(heading.Text()), " ")
		heading.Remove()
		body := strings.Join(strings.Fields(s.Text()), " ")
		if title == "" || body == "" {
			return
		}
		sections = append(sections, Section{Heading: title, Text: body})
	})
	return sections, nil
}

// Summarize picks one section per summary key by heading keyword and
// truncates its text.
func Summarize(sections []Section) map[string]string {
	out := make(map[string]string)
	used := make(map[int]bool)
	for _, sk := range sectionKeywords {
		for i, s := range sections {
			if used[i] || !headingMatches(s.Heading, sk.keywords) {
				continue
			}
			out[sk.key] = truncate(s.Text, summaryRunes)
			used[i] = true
			break
		}
	}
	return out
}

// ExtractAffiliations returns the distinct author affiliations, joined by "; "
func ExtractAffiliations(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse paper HTML: %w", err)
	}
	seen := make(map[string]bool)
	var out []string
	doc.Find(".ltx_role_affiliation").Each(func(_ int, s *goquery.Selection) {
		name := strings.Join(strings.Fields(s.Text()), " ")
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	})
	return strings.Join(out, "; "), nil
}

func headingMatches(heading string, keywords []string) bool {
	h := strings.ToLower(heading)
	for _, kw := range keywords {
		if strings.Contains(h, kw) {
			return true
		}
	}
	return false
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}
