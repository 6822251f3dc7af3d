package collectors

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/benchscope/internal/config"
	"github.com/jonathan/benchscope/internal/fetch"
	"github.com/jonathan/benchscope/internal/types"
)

// DefaultPwCAPI is the Papers with Code REST API base URL
const DefaultPwCAPI = "https://paperswithcode.com/api/v1"

// taskConcurrency bounds parallel task paper listings per keyword
const taskConcurrency = 4

type pwcTask struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	PaperCount  int    `json:"paper_count"`
	NumPapers   int    `json:"num_papers"`
	PapersCount int    `json:"papers_count"`
}

// papers returns whichever paper count field the API filled in
func (t pwcTask) papers() int {
	return max(t.PaperCount, t.NumPapers, t.PapersCount)
}

type pwcLink struct {
	URL string `json:"url"`
}

type pwcPaper struct {
	Title        string    `json:"title"`
	URLAbs       string    `json:"url_abs"`
	URL          string    `json:"url"`
	Abstract     string    `json:"abstract"`
	Authors      []string  `json:"authors"`
	Published    string    `json:"published"`
	GitHubStars  *int      `json:"github_stars"`
	OfficialCode *pwcLink  `json:"official_code"`
	Datasets     []pwcLink `json:"datasets"`
}

type pwcPage[T any] struct {
	Results []T `json:"results"`
}

// PwC collects papers attached to Papers with Code tasks that match the
// configured keywords.
type PwC struct {
	cfg     config.SourcesConfig
	baseURL string
	logger  zerolog.Logger
	now     func() time.Time
}

// NewPwC creates a Papers with Code collector
func NewPwC(cfg config.SourcesConfig, logger zerolog.Logger) *PwC {
	return &PwC{
		cfg:     cfg,
		baseURL: DefaultPwCAPI,
		logger:  logger.With().Str("component", "collector.pwc").Logger(),
		now:     time.Now,
	}
}

// WithBaseURL points the collector at a different API base URL
func (p *PwC) WithBaseURL(baseURL string) *PwC {
	p.baseURL = strings.TrimRight(baseURL, "/")
	return p
}

// Source implements Collector
func (p *PwC) Source() types.Source {
	return types.SourcePwC
}

func (p *PwC) tasksURL(keyword string) string {
	params := url.Values{}
	params.Set("q", keyword)
	params.Set("page", "1")
	params.Set("page_size", strconv.Itoa(p.cfg.PwCPageSize))
	return p.baseURL + "/tasks/?" + params.Encode()
}

func (p *PwC) papersURL(slug string) string {
	params := url.Values{}
	params.Set("page", "1")
	params.Set("page_size", strconv.Itoa(p.cfg.PwCPageSize))
	return p.baseURL + "/tasks/" + url.PathEscape(slug) + "/papers/?" + params.Encode()
}

// Collect looks up tasks per keyword, keeps those with at least
// PwCMinTaskPapers papers and lists each task's papers. A failing keyword
// is logged and skipped; the collector fails only when all keywords fail.
func (p *PwC) Collect(ctx context.Context) ([]types.RawCandidate, error) {
	if len(p.cfg.PwCKeywords) == 0 || p.cfg.PwCPageSize == 0 {
		p.logger.Debug().Msg("Papers with Code keywords not configured, skipping")
		return nil, nil
	}

	oldest := cutoff(p.now(), p.cfg.LookbackDays)
	seen := make(map[string]bool)
	var out []types.RawCandidate
	var lastErr error
	failed := 0
	for _, keyword := range p.cfg.PwCKeywords {
		var page pwcPage[pwcTask]
		err := getWithRetry(ctx, p.logger, func(ctx context.Context) error {
			return fetch.JSON(ctx, p.tasksURL(keyword), fetch.WithTimeout(p.cfg.Timeout()), &page)
		})
		if err != nil {
			p.logger.Warn().Err(err).Str("keyword", keyword).Msg("Papers with Code task search failed")
			lastErr = err
			failed++
			continue
		}

		var tasks []pwcTask
		for _, task := range page.Results {
			if task.Slug != "" && task.papers() >= p.cfg.PwCMinTaskPapers {
				tasks = append(tasks, task)
			}
		}

		for _, c := range p.taskPapers(ctx, tasks) {
			if c.PublishDate != nil && c.PublishDate.Before(oldest) {
				continue
			}
			key := c.NormalizedURL()
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, c)
		}
	}
	if failed == len(p.cfg.PwCKeywords) {
		return nil, fmt.Errorf("all Papers with Code searches failed: %w", lastErr)
	}
	return out, nil
}

// taskPapers lists papers for each task concurrently. A failing task is
// logged and contributes nothing. Output keeps task order.
func (p *PwC) taskPapers(ctx context.Context, tasks []pwcTask) []types.RawCandidate {
	byTask := make([][]types.RawCandidate, len(tasks))

	var eg errgroup.Group
	eg.SetLimit(taskConcurrency)
	for i, task := range tasks {
		eg.Go(func() error {
			var page pwcPage[pwcPaper]
			err := getWithRetry(ctx, p.logger, func(ctx context.Context) error {
				return fetch.JSON(ctx, p.papersURL(task.Slug), fetch.WithTimeout(p.cfg.Timeout()), &page)
			})
			if err != nil {
				p.logger.Warn().Err(err).Str("task", task.Slug).Msg("Papers with Code task papers failed")
				return nil
			}
			found := make([]types.RawCandidate, 0, len(page.Results))
			for _, paper := range page.Results {
				if c, ok := pwcCandidate(paper, task.Name); ok {
					found = append(found, c)
				}
			}
			byTask[i] = found
			return nil
		})
	}
	_ = eg.Wait()

	var out []types.RawCandidate
	for _, found := range byTask {
		out = append(out, found...)
	}
	return out
}

func pwcCandidate(paper pwcPaper, taskName string) (types.RawCandidate, bool) {
	title := strings.TrimSpace(paper.Title)
	if title == "" {
		return types.RawCandidate{}, false
	}

	link := paper.URLAbs
	if link == "" {
		link = paper.URL
	}

	meta := map[string]string{
		types.MetaPlatform: string(fetch.PlatformPwC),
	}
	if taskName != "" {
		meta["task"] = taskName
	}
	if paper.URL != "" {
		meta["paper_url"] = paper.URL
	}

	c := types.RawCandidate{
		Title:       title,
		URL:         link,
		Source:      types.SourcePwC,
		Abstract:    fetch.CleanText(paper.Abstract),
		Authors:     paper.Authors,
		GitHubStars: paper.GitHubStars,
		TaskType:    taskName,
		RawMetadata: meta,
	}
	if fetch.DetectPlatform(link) == fetch.PlatformArxiv {
		c.PaperURL = link
	}
	if paper.OfficialCode != nil {
		c.GitHubURL = paper.OfficialCode.URL
	}
	if len(paper.Datasets) > 0 {
		c.DatasetURL = paper.Datasets[0].URL
	}
	if t, ok := parsePwCDate(paper.Published); ok {
		c.PublishDate = types.TimePtr(t)
	}
	return c, true
}

// parsePwCDate accepts RFC 3339 timestamps and bare dates
func parsePwCDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
