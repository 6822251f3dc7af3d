package collectors

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonathan/benchscope/internal/config"
	"github.com/jonathan/benchscope/internal/fetch"
	"github.com/jonathan/benchscope/internal/types"
)

// DefaultHuggingFaceAPI is the HuggingFace Hub base URL
const DefaultHuggingFaceAPI = "https://huggingface.co"

type hfDataset struct {
	ID           string     `json:"id"`
	Author       string     `json:"author"`
	Description  string     `json:"description"`
	Likes        int        `json:"likes"`
	Downloads    int        `json:"downloads"`
	Tags         []string   `json:"tags"`
	LastModified *time.Time `json:"lastModified"`
	CreatedAt    *time.Time `json:"createdAt"`
	Private      bool       `json:"private"`
}

// HuggingFace collects recently updated datasets from the Hub API
type HuggingFace struct {
	cfg     config.SourcesConfig
	baseURL string
	logger  zerolog.Logger
	now     func() time.Time
}

// NewHuggingFace creates a HuggingFace collector
func NewHuggingFace(cfg config.SourcesConfig, logger zerolog.Logger) *HuggingFace {
	return &HuggingFace{
		cfg:     cfg,
		baseURL: DefaultHuggingFaceAPI,
		logger:  logger.With().Str("component", "collector.huggingface").Logger(),
		now:     time.Now,
	}
}

// WithBaseURL points the collector at a different Hub base URL
func (h *HuggingFace) WithBaseURL(baseURL string) *HuggingFace {
	h.baseURL = strings.TrimRight(baseURL, "/")
	return h
}

// Source implements Collector
func (h *HuggingFace) Source() types.Source {
	return types.SourceHuggingFace
}

func (h *HuggingFace) searchURL(keyword string) string {
	params := url.Values{}
	params.Set("search", keyword)
	params.Set("sort", "lastModified")
	params.Set("direction", "-1")
	params.Set("limit", strconv.Itoa(h.cfg.HuggingFaceLimit))
	params.Set("full", "true")
	return h.baseURL + "/api/datasets?" + params.Encode()
}

// Collect searches datasets for each keyword and keeps those modified inside
// the lookback window.
func (h *HuggingFace) Collect(ctx context.Context) ([]types.RawCandidate, error) {
	if len(h.cfg.HuggingFaceKeywords) == 0 || h.cfg.HuggingFaceLimit == 0 {
		h.logger.Debug().Msg("HuggingFace keywords not configured, skipping")
		return nil, nil
	}

	oldest := cutoff(h.now(), h.cfg.LookbackDays)
	seen := make(map[string]bool)
	var out []types.RawCandidate
	var lastErr error
	failed := 0
	for _, keyword := range h.cfg.HuggingFaceKeywords {
		var datasets []hfDataset
		err := getWithRetry(ctx, h.logger, func(ctx context.Context) error {
			return fetch.JSON(ctx, h.searchURL(keyword), fetch.WithTimeout(h.cfg.Timeout()), &datasets)
		})
		if err != nil {
			h.logger.Warn().Err(err).Str("keyword", keyword).Msg("HuggingFace search failed")
			lastErr = err
			failed++
			continue
		}
		for _, ds := range datasets {
			if ds.ID == "" || ds.Private || seen[ds.ID] {
				continue
			}
			if ds.LastModified != nil && ds.LastModified.Before(oldest) {
				continue
			}
			seen[ds.ID] = true
			out = append(out, h.candidate(ds))
		}
	}
	if failed == len(h.cfg.HuggingFaceKeywords) {
		return nil, fmt.Errorf("all HuggingFace searches failed: %w", lastErr)
	}
	return out, nil
}

func (h *HuggingFace) candidate(ds hfDataset) types.RawCandidate {
	pageURL := DefaultHuggingFaceAPI + "/datasets/" + ds.ID

	meta := map[string]string{
		types.MetaPlatform: string(fetch.PlatformHuggingFace),
		"likes":            strconv.Itoa(ds.Likes),
		"downloads":        strconv.Itoa(ds.Downloads),
	}
	if ds.Author != "" {
		meta[types.MetaRawInstitutions] = ds.Author
	}
	if size := tagValue(ds.Tags, "size_categories"); size != "" {
		meta[types.MetaRawDatasetSize] = size
	}

	c := types.RawCandidate{
		Title:       ds.ID,
		URL:         pageURL,
		Source:      types.SourceHuggingFace,
		Abstract:    fetch.CleanText(ds.Description),
		DatasetURL:  pageURL,
		LicenseType: tagValue(ds.Tags, "license"),
		TaskType:    tagValue(ds.Tags, "task_categories"),
		RawMetadata: meta,
	}
	if id := tagValue(ds.Tags, "arxiv"); id != "" {
		c.PaperURL = "https://arxiv.org/abs/" + id
	}
	switch {
	case ds.LastModified != nil:
		c.PublishDate = types.TimePtr(ds.LastModified.UTC())
	case ds.CreatedAt != nil:
		c.PublishDate = types.TimePtr(ds.CreatedAt.UTC())
	}
	return c
}

// tagValue returns the value of the first "prefix:value" Hub tag
func tagValue(tags []string, prefix string) string {
	for _, tag := range tags {
		if v, ok := strings.CutPrefix(tag, prefix+":"); ok && v != "" {
			return v
		}
	}
	return ""
}
