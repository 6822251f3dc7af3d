package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/benchscope/internal/types"
)

func TestFormatStars(t *testing.T) {
	assert.Equal(t, "Stars: --", FormatStars(nil))
	assert.Equal(t, "Stars: --", FormatStars(types.IntPtr(0)))
	assert.Equal(t, "Stars: 999", FormatStars(types.IntPtr(999)))
	assert.Equal(t, "Stars: 1.0k", FormatStars(types.IntPtr(1000)))
	assert.Equal(t, "Stars: 12.3k", FormatStars(types.IntPtr(12345)))
}

func TestFormatInstitution(t *testing.T) {
	tests := []struct {
		name     string
		c        types.ScoredCandidate
		expected string
	}{
		{
			name:     "github without institution",
			c:        types.ScoredCandidate{RawCandidate: types.RawCandidate{Source: types.SourceGitHub, Authors: []string{"octocat"}}},
			expected: "",
		},
		{
			name: "raw institutions",
			c: types.ScoredCandidate{RawCandidate: types.RawCandidate{Source: types.SourceArxiv}.
				WithMetadata(types.MetaRawInstitutions, "Princeton University")},
			expected: "Institution: Princeton University",
		},
		{
			name: "long institution is truncated",
			c: types.ScoredCandidate{
				RawCandidate: types.RawCandidate{Source: types.SourceArxiv},
				Institution:  strings.Repeat("x", 60),
			},
			expected: "Institution: " + strings.Repeat("x", 47) + "...",
		},
		{
			name:     "two authors",
			c:        types.ScoredCandidate{RawCandidate: types.RawCandidate{Source: types.SourceArxiv, Authors: []string{"Ada", "Grace"}}},
			expected: "Authors: Ada, Grace",
		},
		{
			name:     "unknown",
			c:        types.ScoredCandidate{RawCandidate: types.RawCandidate{Source: types.SourceHuggingFace}},
			expected: "Institution: unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatInstitution(tt.c))
		})
	}
}

func TestSourceName(t *testing.T) {
	assert.Equal(t, "arXiv", SourceName(types.SourceArxiv))
	assert.Equal(t, "GitHub", SourceName("GitHub"))
	assert.Equal(t, "Reddit", SourceName("reddit"))
	assert.Equal(t, "Unknown", SourceName(""))
}

func TestCardPlainText(t *testing.T) {
	card := newCard("Title", TemplateRed).
		markdown("body").
		divider().
		buttons(button("Open", "https://example.com", true)).
		note("footer")

	assert.Equal(t, "Title\nbody\n[Open](https://example.com)\nfooter", card.PlainText())
	assert.Equal(t, "", (*Card)(nil).PlainText())
}
