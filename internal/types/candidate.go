// Package types provides type definitions for structured data used throughout the benchscope pipeline.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"strings"
	"time"
)

// Source identifies the collector that produced a candidate
type Source string

// Supported candidate sources
const (
	SourceArxiv       Source = "arxiv"
	SourceGitHub      Source = "github"
	SourcePwC         Source = "pwc"
	SourceHuggingFace Source = "huggingface"
	SourceTwitter     Source = "twitter"
)

// SupportedSources is the closed set of sources the pipeline accepts
var SupportedSources = []Source{SourceArxiv, SourceGitHub, SourcePwC, SourceHuggingFace, SourceTwitter}

// IsSupported reports whether s is one of SupportedSources
func (s Source) IsSupported() bool {
	for _, known := range SupportedSources {
		if s == known {
			return true
		}
	}
	return false
}

// Metadata keys written by collectors and the enricher into RawCandidate.RawMetadata
const (
	MetaEvaluationSummary = "evaluation_summary"
	MetaDatasetSummary    = "dataset_summary"
	MetaBaselinesSummary  = "baselines_summary"
	MetaRawMetrics        = "raw_metrics"
	MetaRawBaselines      = "raw_baselines"
	MetaRawInstitutions   = "raw_institutions"
	MetaRawDatasetSize    = "raw_dataset_size"
	MetaPlatform          = "platform"
)

// RawCandidate is the normalized output of any collector
type RawCandidate struct {
	Title       string            `json:"title"`
	URL         string            `json:"url"`
	Source      Source            `json:"source"`
	Abstract    string            `json:"abstract"`
	Authors     []string          `json:"authors"`
	PublishDate *time.Time        `json:"publish_date"`
	GitHubStars *int              `json:"github_stars"`
	GitHubURL   string            `json:"github_url"`
	DatasetURL  string            `json:"dataset_url"`
	PaperURL    string            `json:"paper_url"`
	LicenseType string            `json:"license_type"`
	TaskType    string            `json:"task_type"`
	RawMetadata map[string]string `json:"raw_metadata"`
}

// NormalizedURL returns the identity key used for deduplication:
// trimmed, lower-cased and without a trailing slash.
func (c RawCandidate) NormalizedURL() string {
	return NormalizeURL(c.URL)
}

// NormalizeURL normalizes a URL the same way NormalizedURL does
func NormalizeURL(raw string) string {
	u := strings.ToLower(strings.TrimSpace(raw))
	return strings.TrimRight(u, "/")
}

// Stars returns the star count, treating an absent value as zero
func (c RawCandidate) Stars() int {
	if c.GitHubStars == nil {
		return 0
	}
	return *c.GitHubStars
}

// Meta returns a metadata value, or "" when absent
func (c RawCandidate) Meta(key string) string {
	if c.RawMetadata == nil {
		return ""
	}
	return c.RawMetadata[key]
}

// WithMetadata returns a copy of the candidate with key set to value.
// The receiver's metadata map is never modified.
func (c RawCandidate) WithMetadata(key, value string) RawCandidate {
	meta := make(map[string]string, len(c.RawMetadata)+1)
	for k, v := range c.RawMetadata {
		meta[k] = v
	}
	meta[key] = value
	c.RawMetadata = meta
	if c.Authors != nil {
		c.Authors = append([]string(nil), c.Authors...)
	}
	return c
}

// IntPtr is a small helper for optional integer fields
func IntPtr(v int) *int {
	return &v
}

// TimePtr is a small helper for optional timestamps
func TimePtr(t time.Time) *time.Time {
	return &t
}
