package collectors

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/jonathan/benchscope/internal/config"
	"github.com/jonathan/benchscope/internal/fetch"
	"github.com/jonathan/benchscope/internal/types"
)

// DefaultArxivEndpoint is the arXiv Atom query API
const DefaultArxivEndpoint = "https://export.arxiv.org/api/query"

// Arxiv collects recent papers from the arXiv query API
type Arxiv struct {
	cfg      config.SourcesConfig
	endpoint string
	logger   zerolog.Logger
	now      func() time.Time
}

// NewArxiv creates an arXiv collector
func NewArxiv(cfg config.SourcesConfig, logger zerolog.Logger) *Arxiv {
	return &Arxiv{
		cfg:      cfg,
		endpoint: DefaultArxivEndpoint,
		logger:   logger.With().Str("component", "collector.arxiv").Logger(),
		now:      time.Now,
	}
}

// WithEndpoint points the collector at a different API base URL
func (a *Arxiv) WithEndpoint(endpoint string) *Arxiv {
	a.endpoint = endpoint
	return a
}

// Source implements Collector
func (a *Arxiv) Source() types.Source {
	return types.SourceArxiv
}

func (a *Arxiv) queryURL() string {
	params := url.Values{}
	params.Set("search_query", a.cfg.ArxivQuery)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(a.cfg.ArxivMaxResults))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")
	return a.endpoint + "?" + params.Encode()
}

// Collect queries arXiv and returns papers published inside the lookback window
func (a *Arxiv) Collect(ctx context.Context) ([]types.RawCandidate, error) {
	if strings.TrimSpace(a.cfg.ArxivQuery) == "" || a.cfg.ArxivMaxResults == 0 {
		a.logger.Debug().Msg("arXiv query not configured, skipping")
		return nil, nil
	}

	var feed *gofeed.Feed
	err := getWithRetry(ctx, a.logger, func(ctx context.Context) error {
		result, err := fetch.URL(ctx, a.queryURL(), fetch.WithTimeout(a.cfg.Timeout()))
		if err != nil {
			return err
		}
		feed, err = gofeed.NewParser().ParseString(result.Text())
		if err != nil {
			return fmt.Errorf("failed to parse arXiv feed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("arXiv query failed: %w", err)
	}

	oldest := cutoff(a.now(), a.cfg.LookbackDays)
	var out []types.RawCandidate
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		if item.PublishedParsed != nil && item.PublishedParsed.Before(oldest) {
			continue
		}
		if c, ok := arxivCandidate(item); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func arxivCandidate(item *gofeed.Item) (types.RawCandidate, bool) {
	absURL := item.Link
	if absURL == "" {
		absURL = item.GUID
	}
	title := strings.Join(strings.Fields(item.Title), " ")
	if title == "" || absURL == "" {
		return types.RawCandidate{}, false
	}

	pdfURL := ""
	for _, link := range item.Links {
		if strings.Contains(link, "/pdf/") {
			pdfURL = link
			break
		}
	}

	authors := make([]string, 0, len(item.Authors))
	for _, author := range item.Authors {
		if author != nil && strings.TrimSpace(author.Name) != "" {
			authors = append(authors, strings.TrimSpace(author.Name))
		}
	}

	meta := map[string]string{
		types.MetaPlatform: string(fetch.PlatformArxiv),
		"categories":       strings.Join(item.Categories, ","),
	}
	if id := fetch.ArxivID(absURL); id != "" {
		meta["arxiv_id"] = id
	}
	if comment := arxivExtension(item, "comment"); comment != "" {
		meta["comment"] = comment
	}
	if pdfURL != "" {
		meta["pdf_url"] = pdfURL
	}

	var published *time.Time
	if item.PublishedParsed != nil {
		published = types.TimePtr(item.PublishedParsed.UTC())
	}

	return types.RawCandidate{
		Title:       title,
		URL:         absURL,
		Source:      types.SourceArxiv,
		Abstract:    strings.Join(strings.Fields(item.Description), " "),
		Authors:     authors,
		PublishDate: published,
		PaperURL:    absURL,
		RawMetadata: meta,
	}, true
}

// arxivExtension reads an arxiv: namespaced element such as arxiv:comment
func arxivExtension(item *gofeed.Item, name string) string {
	ns, ok := item.Extensions["arxiv"]
	if !ok {
		return ""
	}
	for _, ext := range ns[name] {
		if v := strings.TrimSpace(ext.Value); v != "" {
			return v
		}
	}
	return ""
}
