package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pario-ai/frugal/pkg/models"
	"github.com/pario-ai/frugal/pkg/pricing"
	"github.com/pario-ai/frugal/pkg/router"
)

func formatCostStats(s models.CostStats) string {
	return fmt.Sprintf("Cost Statistics\n"+
		"  Interactions:  %d\n"+
		"  Input tokens:  %s\n"+
		"  Output tokens: %s\n"+
		"  Cached tokens: %s\n"+
		"  Total cost:    $%.4f\n"+
		"  Cache hits:    %d\n"+
		"  Cache misses:  %d\n"+
		"  Hit rate:      %.1f%%\n"+
		"  Duration:      %s\n",
		s.TotalInteractions,
		humanize.Comma(s.TotalInputTokens),
		humanize.Comma(s.TotalOutputTokens),
		humanize.Comma(s.TotalCachedTokens),
		s.TotalCost,
		s.CacheHits, s.CacheMisses,
		s.CacheHitRate*100,
		s.SessionDuration.Round(time.Second))
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Cache Statistics\n"+
		"  Signatures: %d\n"+
		"  Variants:   %d\n"+
		"  Hits:       %d\n"+
		"  Misses:     %d\n"+
		"  Hit Rate:   %.1f%%\n",
		stats.Signatures, stats.TotalVariants, stats.Hits, stats.Misses, hitRate)
}

func formatBudget(s models.BudgetStatus, o pricing.Outlook) string {
	var b strings.Builder
	b.WriteString("Budget Status\n")
	fmt.Fprintf(&b, "  Spent:            $%.4f\n", s.SpentCost)
	if s.Budget.CostLimitPerSession > 0 {
		fmt.Fprintf(&b, "  Session limit:    $%.2f\n", s.Budget.CostLimitPerSession)
		fmt.Fprintf(&b, "  Remaining:        $%.4f (%.1f%% used)\n", s.RemainingCost, s.PercentUsed)
		fmt.Fprintf(&b, "  Est. interactions left: %s\n", humanize.Comma(int64(o.RemainingInteractions)))
	} else {
		b.WriteString("  Session limit:    none\n")
	}
	if s.Budget.CostLimitPerInteraction > 0 {
		fmt.Fprintf(&b, "  Per interaction:  $%.2f\n", s.Budget.CostLimitPerInteraction)
	}
	fmt.Fprintf(&b, "  Interactions:     %d\n", s.Interactions)
	if s.Budget.MaxTotalTokens > 0 {
		fmt.Fprintf(&b, "  Tokens remaining: %s of %s\n",
			humanize.Comma(s.RemainingTokens), humanize.Comma(int64(s.Budget.MaxTotalTokens)))
	}
	switch {
	case o.Critical:
		b.WriteString("  CRITICAL: session budget nearly exhausted\n")
	case o.Warning:
		b.WriteString("  WARNING: session budget past warning threshold\n")
	}
	return b.String()
}

func formatRouting(r *router.Router) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-32s %-8s\n", "Task", "Model", "Tier")
	b.WriteString(strings.Repeat("-", 62) + "\n")
	for _, task := range router.TaskTypes() {
		fmt.Fprintf(&b, "%-20s %-32s %-8s\n", task, r.Model(task), r.Tier(task))
	}
	fmt.Fprintf(&b, "\nDefault model: %s\n", r.DefaultModel())
	return b.String()
}

// formatLedger formats per-model ledger rows as a text table.
func formatLedger(rows []models.LedgerSummary) string {
	if len(rows) == 0 {
		return "No ledger data found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-32s %8s %6s %12s %12s %10s\n",
		"Model", "Calls", "Hits", "Input", "Output", "Cost")
	b.WriteString(strings.Repeat("-", 85) + "\n")
	var total float64
	for _, r := range rows {
		fmt.Fprintf(&b, "%-32s %8d %6d %12s %12s %10s\n",
			r.Model, r.Interactions, r.CacheHits,
			humanize.Comma(r.InputTokens), humanize.Comma(r.OutputTokens), dollars(r.Cost))
		total += r.Cost
	}
	fmt.Fprintf(&b, "%-32s %8s %6s %12s %12s %10s\n", "Total", "", "", "", "", dollars(total))
	return b.String()
}

// formatSessions formats sessions as a text table.
func formatSessions(sessions []models.Session) string {
	if len(sessions) == 0 {
		return "No sessions found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-20s %-20s %8s %10s\n",
		"Session ID", "Started", "Last Activity", "Calls", "Cost")
	b.WriteString(strings.Repeat("-", 100) + "\n")
	for _, s := range sessions {
		fmt.Fprintf(&b, "%-38s %-20s %-20s %8d %10s\n",
			s.ID,
			s.StartedAt.Format("2006-01-02 15:04:05"),
			s.LastActivity.Format("2006-01-02 15:04:05"),
			s.Interactions, dollars(s.TotalCost))
	}
	return b.String()
}

func formatEstimate(est pricing.Estimate) string {
	return pricing.Format(est)
}

func dollars(v float64) string {
	return fmt.Sprintf("$%.4f", v)
}
