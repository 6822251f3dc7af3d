package observability

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/jonathan/benchscope/internal/db"
	"github.com/jonathan/benchscope/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
	// titleWidth bounds the title column of the ranking table
	titleWidth = 48
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		line = truncateRunes(line, boxWidth-4)
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRanking renders scored candidates as a table, in the order given.
func (p *Printer) PrintRanking(candidates []types.ScoredCandidate, ranking types.Ranking) error {
	if len(candidates) == 0 {
		_, err := fmt.Fprintln(p.out, "No candidates scored.")
		return err
	}

	table := tablewriter.NewWriter(p.out)
	table.Header("#", "Total", "Tier", "Source", "Title", "By")
	for i, c := range candidates {
		row := []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.2f", ranking.Total(c)),
			string(ranking.Priority(c)),
			string(c.Source),
			truncateRunes(c.Title, titleWidth),
			string(c.ScoredBy),
		}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("failed to append ranking row: %w", err)
		}
	}
	return table.Render()
}

// PrintRuns renders pipeline run records as a table
func (p *Printer) PrintRuns(runs []db.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(p.out, "No runs recorded.")
		return err
	}

	table := tablewriter.NewWriter(p.out)
	table.Header("Started", "Status", "Trigger", "Collected", "Scored", "High", "Medium", "Duration", "Error")
	for _, r := range runs {
		duration := "-"
		if r.CompletedAt != nil {
			duration = r.CompletedAt.Sub(r.CreatedAt).Round(time.Second).String()
		}
		row := []string{
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			string(r.Status),
			r.Trigger,
			strconv.Itoa(r.Stats.Collected),
			strconv.Itoa(r.Stats.Scored),
			strconv.Itoa(r.Stats.High),
			strconv.Itoa(r.Stats.Medium),
			duration,
			truncateRunes(r.Error, titleWidth),
		}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("failed to append run row: %w", err)
		}
	}
	return table.Render()
}

// PrintCandidate outputs a detailed box for one scored candidate.
func (p *Printer) PrintCandidate(c types.ScoredCandidate, ranking types.Ranking) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("URL:     %s\n", c.URL))
	sb.WriteString(fmt.Sprintf("Source:  %s\n", c.Source))
	sb.WriteString(fmt.Sprintf("Total:   %.2f (%s)\n", ranking.Total(c), ranking.Priority(c)))
	sb.WriteString(fmt.Sprintf("Scores:  activity %.1f | repro %.1f | license %.1f | novelty %.1f | relevance %.1f\n",
		c.ActivityScore, c.ReproducibilityScore, c.LicenseScore, c.NoveltyScore, c.RelevanceScore))
	if c.TaskDomain != "" {
		sb.WriteString(fmt.Sprintf("Domain:  %s\n", c.TaskDomain))
	}
	if len(c.Metrics) > 0 {
		count := min(len(c.Metrics), maxItemsToShow)
		sb.WriteString(fmt.Sprintf("Metrics: %s\n", strings.Join(c.Metrics[:count], ", ")))
	}
	sb.WriteString("\n")
	sb.WriteString(wrap(c.Reasoning, boxWidth-4))

	p.printBox(truncateRunes(c.Title, boxWidth-4), sb.String())
}

// PrintDecision outputs one prefilter decision line.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintDecision(c types.RawCandidate, accepted bool, reason string) {
	status := "PASS"
	if !accepted {
		status = "DROP"
	}
	line := fmt.Sprintf("[%s] %-8s %s", status, c.Source, truncateRunes(c.Title, titleWidth))
	if reason != "" {
		line += fmt.Sprintf(" (%s)", reason)
	}
	fmt.Fprintln(p.out, line)
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}

// wrap breaks text on word boundaries so each line fits within width runes
func wrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var lines []string
	current := words[0]
	for _, w := range words[1:] {
		if len([]rune(current))+1+len([]rune(w)) > width {
			lines = append(lines, current)
			current = w
			continue
		}
		current += " " + w
	}
	lines = append(lines, current)
	return strings.Join(lines, "\n")
}
