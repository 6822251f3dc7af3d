// Package fetch provides the HTTP layer shared by collectors, the enricher
// and the webhook transport, plus HTML-to-text helpers.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (compatible; BenchScope/1.0)"

// maxBodyBytes bounds how much of a response body is read
const maxBodyBytes = 8 << 20

// Result holds the raw content from a URL fetch.
type Result struct {
	URL         string
	Body        []byte
	ContentType string
	StatusCode  int
}

// Text returns the body as a string
func (r *Result) Text() string {
	return string(r.Body)
}

// Error represents an error during URL fetching.
type Error struct {
	URL        string
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the fetch behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// WithTimeout returns the default options with a different timeout
func WithTimeout(timeout time.Duration) *Options {
	opts := DefaultOptions()
	if timeout > 0 {
		opts.Timeout = timeout
	}
	return opts
}

// URL retrieves content from a URL with a GET request.
func URL(ctx context.Context, urlStr string, opts *Options) (*Result, error) {
	return do(ctx, http.MethodGet, urlStr, nil, "", opts)
}

// JSON performs a GET request and decodes the JSON response into v.
func JSON(ctx context.Context, urlStr string, opts *Options, v any) error {
	result, err := do(ctx, http.MethodGet, urlStr, nil, "", opts)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(result.Body, v); err != nil {
		return &Error{URL: urlStr, Message: "failed to decode JSON response", Cause: err}
	}
	return nil
}

// PostJSON encodes payload as JSON and POSTs it. The result is returned even
// when the status is not 2xx so callers can inspect the body.
func PostJSON(ctx context.Context, urlStr string, payload any, opts *Options) (*Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to encode payload", Cause: err}
	}
	return do(ctx, http.MethodPost, urlStr, bytes.NewReader(body), "application/json; charset=utf-8", opts)
}

func do(ctx context.Context, method, urlStr string, body io.Reader, contentType string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	// Validate URL
	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &Error{
			URL:     urlStr,
			Message: "invalid URL",
			Cause:   err,
		}
	}

	client := &http.Client{
		Timeout: opts.Timeout,
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, &Error{
			URL:     urlStr,
			Message: "failed to create request",
			Cause:   err,
		}
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{
			URL:     urlStr,
			Message: "HTTP request failed",
			Cause:   err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{
			URL:        urlStr,
			Message:    "failed to read response body",
			StatusCode: resp.StatusCode,
			Cause:      err,
		}
	}

	result := &Result{
		URL:         urlStr,
		Body:        bodyBytes,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, &Error{
			URL:        urlStr,
			Message:    fmt.Sprintf("HTTP status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	return result, nil
}

// pageChrome is stripped from every page before text is extracted
var pageChrome = []string{"nav", "header", "footer", "script", "style", "noscript", ".ltx_bibliography", ".ltx_page_footer"}

// ExtractMainText returns the collapsed text of the first element matching
// one of contentSelectors, or of <body> when none match. Page chrome and
// anything matching noiseSelectors is removed first.
func ExtractMainText(html string, contentSelectors []string, noiseSelectors ...string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find(strings.Join(append(slices.Clone(pageChrome), noiseSelectors...), ", ")).Remove()

	content := doc.Find("body")
	for _, selector := range contentSelectors {
		if match := doc.Find(selector).First(); match.Length() > 0 {
			content = match
			break
		}
	}
	return cleanWhitespace(content.Text()), nil
}

var (
	markdownImage = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	markdownLink  = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	spaceRun      = regexp.MustCompile(`[ \t]+`)
)

// CleanText strips HTML tags, markdown images and link targets from text and
// collapses whitespace. It is applied to README and card bodies before they
// become candidate abstracts.
func CleanText(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if strings.Contains(text, "<") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
			doc.Find("script, style").Remove()
			text = doc.Text()
		}
	}
	text = markdownImage.ReplaceAllString(text, "")
	text = markdownLink.ReplaceAllString(text, "$1")
	text = spaceRun.ReplaceAllString(text, " ")
	return cleanWhitespace(text)
}

// cleanWhitespace normalizes whitespace in text.
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
