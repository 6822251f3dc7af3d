package fetch

import (
	"net/url"
	"regexp"
	"strings"
)

// Platform represents a known hosting site for benchmark artifacts.
type Platform string

const (
	// PlatformArxiv is arxiv.org
	PlatformArxiv Platform = "arxiv"
	// PlatformGitHub is github.com
	PlatformGitHub Platform = "github"
	// PlatformHuggingFace is huggingface.co
	PlatformHuggingFace Platform = "huggingface"
	// PlatformPwC is paperswithcode.com
	PlatformPwC Platform = "pwc"
	// PlatformUnknown is an unrecognized host
	PlatformUnknown Platform = "unknown"
)

// DetectPlatform identifies the hosting platform from a URL.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil {
		return PlatformUnknown
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	switch {
	case host == "arxiv.org" || strings.HasSuffix(host, ".arxiv.org"):
		return PlatformArxiv
	case host == "github.com":
		return PlatformGitHub
	case host == "huggingface.co" || host == "hf.co":
		return PlatformHuggingFace
	case host == "paperswithcode.com":
		return PlatformPwC
	default:
		return PlatformUnknown
	}
}

var arxivIDPattern = regexp.MustCompile(`(\d{4}\.\d{4,5})(v\d+)?`)

// ArxivID extracts the arXiv identifier (without version) from an abs, pdf or
// html URL. Returns "" for non-arXiv URLs.
func ArxivID(urlStr string) string {
	if DetectPlatform(urlStr) != PlatformArxiv {
		return ""
	}
	m := arxivIDPattern.FindStringSubmatch(urlStr)
	if m == nil {
		return ""
	}
	return m[1]
}

// ArxivContentSelectors returns content selectors for rendered arXiv papers.
func ArxivContentSelectors() []string {
	return []string{
		".ltx_page_content",
		"article.ltx_document",
		"main",
		"article",
	}
}
