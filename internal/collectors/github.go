package collectors

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/benchscope/internal/config"
	"github.com/jonathan/benchscope/internal/fetch"
	"github.com/jonathan/benchscope/internal/types"
)

// DefaultGitHubAPI is the GitHub REST API base URL
const DefaultGitHubAPI = "https://api.github.com"

const (
	// maxReadmeRunes caps how much README text becomes the abstract
	maxReadmeRunes = 6000
	// readmeConcurrency bounds parallel README downloads
	readmeConcurrency = 4
)

type githubSearchResponse struct {
	TotalCount int          `json:"total_count"`
	Items      []githubRepo `json:"items"`
}

type githubRepo struct {
	FullName    string     `json:"full_name"`
	HTMLURL     string     `json:"html_url"`
	Description string     `json:"description"`
	Stars       int        `json:"stargazers_count"`
	Forks       int        `json:"forks_count"`
	Language    string     `json:"language"`
	Topics      []string   `json:"topics"`
	Homepage    string     `json:"homepage"`
	PushedAt    *time.Time `json:"pushed_at"`
	CreatedAt   *time.Time `json:"created_at"`
	Archived    bool       `json:"archived"`
	License     *struct {
		Key    string `json:"key"`
		SPDXID string `json:"spdx_id"`
		Name   string `json:"name"`
	} `json:"license"`
	Owner struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// GitHub collects recently active repositories from the search API
type GitHub struct {
	cfg     config.SourcesConfig
	baseURL string
	logger  zerolog.Logger
	now     func() time.Time
}

// NewGitHub creates a GitHub collector
func NewGitHub(cfg config.SourcesConfig, logger zerolog.Logger) *GitHub {
	return &GitHub{
		cfg:     cfg,
		baseURL: DefaultGitHubAPI,
		logger:  logger.With().Str("component", "collector.github").Logger(),
		now:     time.Now,
	}
}

// WithBaseURL points the collector at a different API base URL
func (g *GitHub) WithBaseURL(baseURL string) *GitHub {
	g.baseURL = strings.TrimRight(baseURL, "/")
	return g
}

// Source implements Collector
func (g *GitHub) Source() types.Source {
	return types.SourceGitHub
}

func (g *GitHub) options(accept string) *fetch.Options {
	opts := fetch.WithTimeout(g.cfg.Timeout())
	opts.Headers = map[string]string{
		"Accept":               accept,
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if g.cfg.GitHubToken != "" {
		opts.Headers["Authorization"] = "Bearer " + g.cfg.GitHubToken
	}
	return opts
}

func (g *GitHub) searchURL(query string) string {
	q := strings.TrimSpace(query)
	if oldest := cutoff(g.now(), g.cfg.LookbackDays); !oldest.IsZero() {
		q += " pushed:>=" + oldest.Format("2006-01-02")
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("sort", "stars")
	params.Set("order", "desc")
	params.Set("per_page", strconv.Itoa(min(g.cfg.GitHubMaxResults, 100)))
	return g.baseURL + "/search/repositories?" + params.Encode()
}

// Collect runs every configured search query. A failing query is logged and
// skipped; the collector fails only when all queries fail.
func (g *GitHub) Collect(ctx context.Context) ([]types.RawCandidate, error) {
	if len(g.cfg.GitHubQueries) == 0 || g.cfg.GitHubMaxResults == 0 {
		g.logger.Debug().Msg("GitHub queries not configured, skipping")
		return nil, nil
	}

	seen := make(map[string]bool)
	var repos []githubRepo
	var lastErr error
	failed := 0
	for _, query := range g.cfg.GitHubQueries {
		var resp githubSearchResponse
		err := getWithRetry(ctx, g.logger, func(ctx context.Context) error {
			return fetch.JSON(ctx, g.searchURL(query), g.options("application/vnd.github+json"), &resp)
		})
		if err != nil {
			g.logger.Warn().Err(err).Str("query", query).Msg("GitHub search failed")
			lastErr = err
			failed++
			continue
		}
		for _, repo := range resp.Items {
			key := strings.ToLower(repo.FullName)
			if key == "" || seen[key] || repo.Archived {
				continue
			}
			seen[key] = true
			repos = append(repos, repo)
		}
	}
	if failed == len(g.cfg.GitHubQueries) {
		return nil, fmt.Errorf("all GitHub searches failed: %w", lastErr)
	}

	readmes := g.readmes(ctx, repos)
	out := make([]types.RawCandidate, 0, len(repos))
	for _, repo := range repos {
		out = append(out, githubCandidate(repo, readmes[repo.FullName]))
	}
	return out, nil
}

// readmes downloads README bodies. Missing READMEs are not errors.
func (g *GitHub) readmes(ctx context.Context, repos []githubRepo) map[string]string {
	var mu sync.Mutex
	out := make(map[string]string, len(repos))

	var eg errgroup.Group
	eg.SetLimit(readmeConcurrency)
	for _, repo := range repos {
		eg.Go(func() error {
			result, err := fetch.URL(ctx, g.baseURL+"/repos/"+repo.FullName+"/readme", g.options("application/vnd.github.raw"))
			if err != nil {
				g.logger.Debug().Err(err).Str("repo", repo.FullName).Msg("README unavailable")
				return nil
			}
			mu.Lock()
			out[repo.FullName] = result.Text()
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

func githubCandidate(repo githubRepo, readme string) types.RawCandidate {
	abstract := strings.TrimSpace(repo.Description)
	if body := truncateRunes(fetch.CleanText(readme), maxReadmeRunes); body != "" {
		if abstract != "" {
			abstract += "\n\n"
		}
		abstract += body
	}

	meta := map[string]string{
		types.MetaPlatform: string(fetch.PlatformGitHub),
		"full_name":        repo.FullName,
		"forks":            strconv.Itoa(repo.Forks),
	}
	if repo.Language != "" {
		meta["language"] = repo.Language
	}
	if len(repo.Topics) > 0 {
		meta["topics"] = strings.Join(repo.Topics, ",")
	}
	if repo.Owner.Login != "" {
		meta[types.MetaRawInstitutions] = repo.Owner.Login
	}
	if repo.CreatedAt != nil {
		meta["created_at"] = repo.CreatedAt.UTC().Format(time.RFC3339)
	}

	license := ""
	if repo.License != nil {
		license = repo.License.SPDXID
		if license == "" || license == "NOASSERTION" {
			license = repo.License.Name
		}
	}

	c := types.RawCandidate{
		Title:       repo.FullName,
		URL:         repo.HTMLURL,
		Source:      types.SourceGitHub,
		Abstract:    abstract,
		GitHubStars: types.IntPtr(repo.Stars),
		GitHubURL:   repo.HTMLURL,
		LicenseType: license,
		RawMetadata: meta,
	}
	if repo.PushedAt != nil {
		c.PublishDate = types.TimePtr(repo.PushedAt.UTC())
	}
	if repo.Homepage != "" && fetch.DetectPlatform(repo.Homepage) == fetch.PlatformArxiv {
		c.PaperURL = repo.Homepage
	}
	return c
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit]))
}
