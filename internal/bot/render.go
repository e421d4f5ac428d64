package bot

import (
	"fmt"
	"strings"

	"github.com/raine/telegram-skinwise-bot/internal/analysis"
	"github.com/raine/telegram-skinwise-bot/internal/entitlement"
	"github.com/raine/telegram-skinwise-bot/internal/llm"
)

var severityIcons = map[llm.Severity]string{
	llm.SeverityMild:     "🟢",
	llm.SeverityModerate: "🟠",
	llm.SeveritySevere:   "🔴",
}

func trialsText(state entitlement.State) string {
	switch {
	case state.Unlimited():
		return "unlimited analyses"
	case state.HasPaid:
		return "unlimited analyses (paid)"
	default:
		return pluralize("free analysis", "free analyses", state.TrialCount)
	}
}

func formatStatus(state entitlement.State) string {
	switch {
	case state.Unlimited():
		return MsgStatusUnlimited
	case state.HasPaid:
		return MsgStatusPaid
	default:
		return fmt.Sprintf(MsgStatusTrials, pluralize("free analysis", "free analyses", state.TrialCount))
	}
}

func writeItems(b *strings.Builder, items []llm.Item) {
	for _, item := range items {
		fmt.Fprintf(b, "• *%s*: %s\n", escapeMarkdown(item.Title), escapeMarkdown(item.Description))
	}
}

func writeSteps(b *strings.Builder, steps []string) {
	if len(steps) == 0 {
		b.WriteString("_No specific steps._\n")
		return
	}
	for i, step := range steps {
		fmt.Fprintf(b, "%d. %s\n", i+1, escapeMarkdown(step))
	}
}

func formatAnalysisResult(r *analysis.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Condition:* %s\n", escapeMarkdown(r.Condition))
	fmt.Fprintf(&b, "*Severity:* %s %s\n", severityIcons[r.Severity], r.Severity)

	b.WriteString("\n*Suggested remedies*\n")
	writeItems(&b, r.Remedies.Remedies)

	b.WriteString("\n*Morning routine*\n")
	writeSteps(&b, r.Remedies.Routine.AM)
	b.WriteString("\n*Evening routine*\n")
	writeSteps(&b, r.Remedies.Routine.PM)

	if len(r.Remedies.Lifestyle) > 0 {
		b.WriteString("\n*Lifestyle tips*\n")
		writeItems(&b, r.Remedies.Lifestyle)
	}

	if !r.HasPaid && r.RemainingTrials != entitlement.UnlimitedTrials {
		fmt.Fprintf(&b, "\nYou have %s left.", pluralize("free analysis", "free analyses", r.RemainingTrials))
	}
	return strings.TrimSpace(b.String())
}

func formatIngredientReport(r *llm.IngredientReport) string {
	var b strings.Builder
	b.WriteString("*Ingredients*\n")
	for _, ing := range r.Ingredients {
		var tags []string
		if ing.IsBeneficial {
			tags = append(tags, "✅ beneficial")
		}
		if ing.IsIrritant {
			tags = append(tags, "⚠️ potential irritant")
		}
		fmt.Fprintf(&b, "• *%s*: %s", escapeMarkdown(ing.Name), escapeMarkdown(ing.ShortDescription))
		if len(tags) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(tags, ", "))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n*Summary*\n%s", escapeMarkdown(r.Summary))
	return b.String()
}

func formatSuitabilityReport(condition string, r *llm.SuitabilityReport) string {
	var b strings.Builder
	if r.IsGoodMatch {
		fmt.Fprintf(&b, "✅ *Good match* for %s\n", escapeMarkdown(condition))
	} else {
		fmt.Fprintf(&b, "❌ *Not a good match* for %s\n", escapeMarkdown(condition))
	}
	fmt.Fprintf(&b, "\n%s\n", escapeMarkdown(r.Summary))

	if len(r.IngredientAnalyses) > 0 {
		b.WriteString("\n*Notable ingredients*\n")
		for _, a := range r.IngredientAnalyses {
			icon := "•"
			switch {
			case a.IsHarmful:
				icon = "⚠️"
			case a.IsHelpful:
				icon = "✅"
			}
			fmt.Fprintf(&b, "%s *%s*: %s\n", icon, escapeMarkdown(a.Name), escapeMarkdown(a.Reason))
		}
	}
	return strings.TrimSpace(b.String())
}

func formatHistory(results []analysis.Result) string {
	if len(results) == 0 {
		return MsgHistoryEmpty
	}
	var b strings.Builder
	b.WriteString(MsgHistoryHeader)
	b.WriteString("\n")
	for _, r := range results {
		fmt.Fprintf(&b, "• %s: *%s* (%s)\n", r.CreatedAt.Format("2006-01-02"), escapeMarkdown(r.Condition), r.Severity)
	}
	return strings.TrimSpace(b.String())
}
