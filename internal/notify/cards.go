package notify

import (
	"fmt"
	"strings"

	"github.com/jonathan/benchscope/internal/types"
)

// Card is a Feishu interactive card
type Card struct {
	Config   CardConfig `json:"config"`
	Header   CardHeader `json:"header"`
	Elements []Element  `json:"elements"`
}

// CardConfig holds card display options
type CardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

// CardHeader is the colored title bar
type CardHeader struct {
	Title    Text   `json:"title"`
	Template string `json:"template"`
}

// Text is a plain_text or lark_md span
type Text struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

// Element is one card block: div, hr, action or note
type Element struct {
	Tag      string   `json:"tag"`
	Text     *Text    `json:"text,omitempty"`
	Actions  []Action `json:"actions,omitempty"`
	Elements []Text   `json:"elements,omitempty"`
}

// Action is a link button
type Action struct {
	Tag  string `json:"tag"`
	Text Text   `json:"text"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Header templates
const (
	TemplateRed    = "red"
	TemplateYellow = "yellow"
	TemplateBlue   = "blue"
)

func newCard(title, template string) *Card {
	return &Card{
		Config: CardConfig{WideScreenMode: true},
		Header: CardHeader{Title: plain(title), Template: template},
	}
}

func plain(s string) Text {
	return Text{Tag: "plain_text", Content: s}
}

func (c *Card) markdown(content string) *Card {
	c.Elements = append(c.Elements, Element{Tag: "div", Text: &Text{Tag: "lark_md", Content: content}})
	return c
}

func (c *Card) divider() *Card {
	c.Elements = append(c.Elements, Element{Tag: "hr"})
	return c
}

func (c *Card) buttons(actions ...Action) *Card {
	if len(actions) == 0 {
		return c
	}
	c.Elements = append(c.Elements, Element{Tag: "action", Actions: actions})
	return c
}

func (c *Card) note(content string) *Card {
	c.Elements = append(c.Elements, Element{Tag: "note", Elements: []Text{plain(content)}})
	return c
}

func button(label, url string, primary bool) Action {
	kind := "default"
	if primary {
		kind = "primary"
	}
	return Action{Tag: "button", Text: plain(label), URL: url, Type: kind}
}

// PlainText concatenates every text span of the card, one per line.
// Used for logging and for the CLI dry-run output.
func (c *Card) PlainText() string {
	if c == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(c.Header.Title.Content)
	for _, el := range c.Elements {
		if el.Text != nil {
			sb.WriteString("\n")
			sb.WriteString(el.Text.Content)
		}
		for _, a := range el.Actions {
			sb.WriteString(fmt.Sprintf("\n[%s](%s)", a.Text.Content, a.URL))
		}
		for _, t := range el.Elements {
			sb.WriteString("\n")
			sb.WriteString(t.Content)
		}
	}
	return sb.String()
}

var sourceNames = map[types.Source]string{
	types.SourceArxiv:       "arXiv",
	types.SourceGitHub:      "GitHub",
	types.SourceHuggingFace: "HuggingFace",
	types.SourcePwC:         "Papers with Code",
	types.SourceTwitter:     "Twitter",
}

// SourceName returns the display name of a source
func SourceName(s types.Source) string {
	if name, ok := sourceNames[types.Source(strings.ToLower(string(s)))]; ok {
		return name
	}
	if s == "" {
		return "Unknown"
	}
	str := string(s)
	return strings.ToUpper(str[:1]) + str[1:]
}

// FormatStars renders a star count compactly
func FormatStars(stars *int) string {
	if stars == nil || *stars == 0 {
		return "Stars: --"
	}
	if *stars >= 1000 {
		return fmt.Sprintf("Stars: %.1fk", float64(*stars)/1000)
	}
	return fmt.Sprintf("Stars: %d", *stars)
}

// FormatInstitution renders the institution or leading authors of a candidate.
// GitHub repositories without institution data render as "".
func FormatInstitution(c types.ScoredCandidate) string {
	institutions := strings.TrimSpace(c.Institution)
	if institutions == "" {
		institutions = strings.TrimSpace(c.Meta(types.MetaRawInstitutions))
	}

	if c.Source == types.SourceGitHub && institutions == "" {
		return ""
	}
	if institutions != "" {
		return "Institution: " + truncate(institutions, 50)
	}

	var authors string
	switch len(c.Authors) {
	case 0:
		return "Institution: unknown"
	case 1:
		authors = c.Authors[0]
	case 2:
		authors = c.Authors[0] + ", " + c.Authors[1]
	default:
		authors = c.Authors[0] + ", " + c.Authors[1] + " et al."
	}
	return "Authors: " + truncate(authors, 50)
}

// truncate cuts s to limit runes including a trailing "..."
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}

// infoLine joins institution, stars (GitHub only) and a details link
func infoLine(c types.ScoredCandidate) string {
	var parts []string
	if inst := FormatInstitution(c); inst != "" {
		parts = append(parts, inst)
	}
	if c.Source == types.SourceGitHub {
		parts = append(parts, FormatStars(c.GitHubStars))
	}
	parts = append(parts, fmt.Sprintf("[Details](%s)", c.URL))
	return strings.Join(parts, "  |  ")
}
