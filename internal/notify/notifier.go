// Package notify renders scored candidates into tiered webhook cards and
// sends them through a Transport.
package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonathan/benchscope/internal/config"
	"github.com/jonathan/benchscope/internal/types"
)

const (
	titleLong   = 80
	titleMedium = 50
	// reasoningLimit bounds the reasoning shown on a detail card
	reasoningLimit = 2000
	timeLayout     = "2006-01-02 15:04"
)

// Quality label cutoffs for the average qualified score
const (
	qualityExcellent = 8.0
	qualityGood      = 7.0
	qualityPass      = 6.0
)

// Notifier sends one detail card per high-priority candidate, one digest for
// the medium tier and a closing summary.
type Notifier struct {
	cfg       config.NotifyConfig
	transport Transport
	ranking   types.Ranking
	logger    zerolog.Logger

	// Now is the clock used for card timestamps and low-pick recency
	Now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Notifier using the default ranking
func New(cfg config.NotifyConfig, transport Transport, logger zerolog.Logger) *Notifier {
	return &Notifier{
		cfg:       cfg,
		transport: transport,
		ranking:   types.DefaultRanking,
		logger:    logger.With().Str("component", "notify").Logger(),
		Now:       time.Now,
		sleep:     sleepContext,
	}
}

// WithRanking sets the weights and tier thresholds used for totals
func (n *Notifier) WithRanking(r types.Ranking) *Notifier {
	n.ranking = r
	return n
}

// ranked caches the derived total and tier of a candidate
type ranked struct {
	types.ScoredCandidate
	total    float64
	priority types.Priority
}

// Notify sends the tiered messages for one batch. Nothing is sent when no
// candidate reaches MinScore. The first transport error stops the sequence
// and is returned.
func (n *Notifier) Notify(ctx context.Context, candidates []types.ScoredCandidate) error {
	all := n.rank(candidates)

	var qualified, high, medium []ranked
	for _, c := range all {
		if c.total < n.cfg.MinScore {
			continue
		}
		qualified = append(qualified, c)
		switch c.priority {
		case types.PriorityHigh:
			high = append(high, c)
		case types.PriorityMedium:
			medium = append(medium, c)
		}
	}

	if len(qualified) == 0 {
		n.logger.Info().
			Int("candidates", len(candidates)).
			Float64("min_score", n.cfg.MinScore).
			Msg("no candidates above notification threshold")
		return nil
	}

	now := n.Now()
	s := &sender{n: n}

	for _, c := range high {
		if err := s.send(ctx, Message{Kind: KindCandidate, Card: n.candidateCard(c, now)}); err != nil {
			return fmt.Errorf("failed to send card for %q: %w", c.Title, err)
		}
	}

	if len(medium) > 0 {
		if err := s.send(ctx, Message{Kind: KindDigest, Card: n.digestCard(medium, all, now)}); err != nil {
			return fmt.Errorf("failed to send medium-priority digest: %w", err)
		}
	}

	if err := s.send(ctx, Message{Kind: KindSummary, Card: n.summaryCard(qualified, high, medium, len(candidates), now)}); err != nil {
		return fmt.Errorf("failed to send summary: %w", err)
	}

	n.logger.Info().
		Int("qualified", len(qualified)).
		Int("high", len(high)).
		Int("medium", len(medium)).
		Int("messages", s.sent).
		Msg("notifications sent")
	return nil
}

// Alert sends a plain text message, used for operational warnings
func (n *Notifier) Alert(ctx context.Context, text string) error {
	if err := n.transport.Send(ctx, Message{Kind: KindText, Text: text}); err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}
	return nil
}

// sender paces consecutive sends
type sender struct {
	n    *Notifier
	sent int
}

func (s *sender) send(ctx context.Context, msg Message) error {
	if s.sent > 0 {
		if err := s.n.sleep(ctx, s.n.cfg.SendDelay()); err != nil {
			return err
		}
	}
	if err := s.n.transport.Send(ctx, msg); err != nil {
		return err
	}
	s.sent++
	return nil
}

// rank derives totals and tiers and orders by total descending.
// Ties keep input order.
func (n *Notifier) rank(candidates []types.ScoredCandidate) []ranked {
	out := make([]ranked, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, ranked{
			ScoredCandidate: c,
			total:           n.ranking.Total(c),
			priority:        n.ranking.Priority(c),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].total > out[j].total })
	return out
}

func (n *Notifier) candidateCard(c ranked, now time.Time) *Card {
	sourceLine := []string{"**Source**: " + SourceName(c.Source)}
	if inst := FormatInstitution(c.ScoredCandidate); inst != "" {
		sourceLine = append(sourceLine, inst)
	}
	if c.Source == types.SourceGitHub {
		sourceLine = append(sourceLine, FormatStars(c.GitHubStars))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Total score: **%.1f** / 10  |  Priority: **%s**\n\n", c.total, priorityLabel(c.priority))
	sb.WriteString("**Scores**\n")
	fmt.Fprintf(&sb, "Activity %.1f  |  Reproducibility %.1f  |  License %.1f  |  Novelty %.1f  |  Relevance %.1f\n\n",
		c.ActivityScore, c.ReproducibilityScore, c.LicenseScore, c.NoveltyScore, c.RelevanceScore)
	sb.WriteString(strings.Join(sourceLine, "  |  "))
	sb.WriteString("\n\n**Reasoning**\n")
	sb.WriteString(truncate(c.Reasoning, reasoningLimit))

	actions := []Action{button("View details", c.URL, true)}
	if c.GitHubURL != "" && c.GitHubURL != c.URL {
		actions = append(actions, button("GitHub", c.GitHubURL, false))
	}
	if n.cfg.TableURL != "" {
		actions = append(actions, button("Results table", n.cfg.TableURL, false))
	}

	return newCard("High-priority benchmark candidate", TemplateRed).
		markdown("**" + truncate(c.Title, titleLong) + "**").
		markdown(sb.String()).
		divider().
		buttons(actions...).
		note("BenchScope | " + now.Format(timeLayout))
}

func (n *Notifier) digestCard(medium, all []ranked, now time.Time) *Card {
	minScore, maxScore, sum := medium[0].total, medium[0].total, 0.0
	for _, c := range medium {
		sum += c.total
		minScore = min(minScore, c.total)
		maxScore = max(maxScore, c.total)
	}
	top := medium[:min(len(medium), n.cfg.TopN)]

	var sb strings.Builder
	sb.WriteString("**Overview**\n")
	fmt.Fprintf(&sb, "  Count: %d  |  Average: %.1f / 10  |  Range: %.1f ~ %.1f\n\n",
		len(medium), sum/float64(len(medium)), minScore, maxScore)

	fmt.Fprintf(&sb, "**Top %d**\n\n", len(top))
	for i, c := range top {
		fmt.Fprintf(&sb, "**%d. %s**\n", i+1, truncate(c.Title, titleMedium))
		fmt.Fprintf(&sb, "   Source: %s  |  Score: %.1f  |  Activity: %.1f  |  Reproducibility: %.1f  |  Relevance: %.1f\n",
			SourceName(c.Source), c.total, c.ActivityScore, c.ReproducibilityScore, c.RelevanceScore)
		fmt.Fprintf(&sb, "   %s\n\n", infoLine(c.ScoredCandidate))
	}

	if n.cfg.PerSourcePicks {
		if picks := n.perSourcePicks(medium, all); len(picks) > 0 {
			sb.WriteString("**Best per source**\n\n")
			for _, c := range picks {
				fmt.Fprintf(&sb, "- %s: %s (score %.1f, relevance %.1f)\n  %s\n",
					SourceName(c.Source), truncate(c.Title, titleMedium), c.total, c.RelevanceScore, infoLine(c.ScoredCandidate))
			}
			sb.WriteString("\n")
		}
	}

	if n.cfg.LowPickEnabled {
		if picks := n.lowPicks(all, now); len(picks) > 0 {
			sb.WriteString("**Latest Papers / Datasets**\n\n")
			for _, c := range picks {
				date := "recent"
				if c.PublishDate != nil {
					date = c.PublishDate.Format("2006-01-02")
				}
				fmt.Fprintf(&sb, "- %s: %s (relevance %.1f, %s) [Details](%s)\n",
					SourceName(c.Source), truncate(c.Title, titleMedium), c.RelevanceScore, date, c.URL)
			}
			sb.WriteString("\n")
		}
	}

	if rest := len(medium) - len(top); rest > 0 {
		fmt.Fprintf(&sb, "%d more candidates in the results table\n", rest)
	}

	card := newCard("Medium-priority candidates", TemplateYellow).
		markdown(strings.TrimRight(sb.String(), "\n"))
	if n.cfg.TableURL != "" {
		card.divider().buttons(button("Open full table", n.cfg.TableURL, true))
	}
	return card
}

// perSourcePicks returns the best candidate of each source drawn from the
// medium tier and low-tier candidates that reach LowPickMinScore.
func (n *Notifier) perSourcePicks(medium, all []ranked) []ranked {
	pool := append([]ranked(nil), medium...)
	for _, c := range all {
		if c.priority == types.PriorityLow && c.total >= n.cfg.LowPickMinScore {
			pool = append(pool, c)
		}
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].total > pool[j].total })

	seen := make(map[types.Source]bool)
	var picks []ranked
	for _, c := range pool {
		src := types.Source(strings.ToLower(string(c.Source)))
		if seen[src] {
			continue
		}
		seen[src] = true
		picks = append(picks, c)
	}
	return picks
}

// lowPicks selects recent, relevant low-tier papers and datasets,
// at most LowPickPerSource per source.
func (n *Notifier) lowPicks(all []ranked, now time.Time) []ranked {
	if n.cfg.LowPickPerSource <= 0 {
		return nil
	}
	maxAge := time.Duration(n.cfg.LowPickMaxAgeDays) * 24 * time.Hour

	perSource := make(map[types.Source]int)
	var picks []ranked
	for _, c := range all {
		switch {
		case c.priority != types.PriorityLow,
			c.Source == types.SourceGitHub,
			c.total < n.cfg.LowPickMinScore,
			c.RelevanceScore < n.cfg.LowPickMinRelevant,
			maxAge > 0 && c.PublishDate != nil && now.Sub(*c.PublishDate) > maxAge,
			perSource[c.Source] >= n.cfg.LowPickPerSource:
			continue
		}
		perSource[c.Source]++
		picks = append(picks, c)
	}
	return picks
}

func (n *Notifier) summaryCard(qualified, high, medium []ranked, scanned int, now time.Time) *Card {
	var sum float64
	var excellent, good, fair, pass, below int
	sources := make(map[types.Source]int)
	for _, c := range qualified {
		sum += c.total
		sources[c.Source]++
		switch {
		case c.total >= 9.0:
			excellent++
		case c.total >= 8.0:
			good++
		case c.total >= 7.0:
			fair++
		case c.total >= 6.0:
			pass++
		default:
			below++
		}
	}
	avg := sum / float64(len(qualified))

	type sourceCount struct {
		name  string
		count int
	}
	breakdown := make([]sourceCount, 0, len(sources))
	for src, count := range sources {
		breakdown = append(breakdown, sourceCount{name: SourceName(src), count: count})
	}
	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].count != breakdown[j].count {
			return breakdown[i].count > breakdown[j].count
		}
		return breakdown[i].name < breakdown[j].name
	})
	parts := make([]string, 0, len(breakdown))
	for _, b := range breakdown {
		parts = append(parts, fmt.Sprintf("%s %d", b.name, b.count))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**  |  %d qualified of %d scanned  |  Average %.1f (%s)\n\n",
		now.Format(timeLayout), len(qualified), scanned, avg, qualityLabel(avg))
	fmt.Fprintf(&sb, "**Priority**: high %d (detail cards)  |  medium %d (digest)\n\n", len(high), len(medium))
	fmt.Fprintf(&sb, "**Score distribution**: 9.0+ %d  |  8.0~8.9 %d  |  7.0~7.9 %d  |  6.0~6.9 %d",
		excellent, good, fair, pass)
	// only reachable when notify.min_score sits below 6.0
	if below > 0 {
		fmt.Fprintf(&sb, "  |  below 6.0 %d", below)
	}
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "**Sources**: %s", strings.Join(parts, "  |  "))
	if n.cfg.TableURL != "" {
		fmt.Fprintf(&sb, "\n\n[Open results table](%s)", n.cfg.TableURL)
	}

	return newCard("Collection summary", TemplateBlue).markdown(sb.String())
}

func priorityLabel(p types.Priority) string {
	switch p {
	case types.PriorityHigh:
		return "High"
	case types.PriorityMedium:
		return "Medium"
	default:
		return "Low"
	}
}

func qualityLabel(avg float64) string {
	switch {
	case avg >= qualityExcellent:
		return "excellent"
	case avg >= qualityGood:
		return "good"
	case avg >= qualityPass:
		return "pass"
	default:
		return "fair"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
