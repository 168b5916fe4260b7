package pipeline

import (
	"fmt"
	"strings"

	"github.com/sells-group/adintel-cli/internal/model"
)

// FormatReport renders a run report as the per-stage text summary the CLI
// prints by default.
func FormatReport(rc *model.RunContext, report *model.RunReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s — %s / %s\n", rc.RunID, rc.Brand, rc.Vertical)
	fmt.Fprintf(&b, "Status: %s", report.Status)
	if rc.DryRun {
		b.WriteString(" (dry run)")
	}
	b.WriteString("\n\n")

	b.WriteString("Stages:\n")
	for _, s := range report.Stages {
		mark := "ok"
		if s.Status != model.StageStatusSuccess {
			mark = "FAILED"
		}
		fmt.Fprintf(&b, "  %-32s %-7s %6dms", s.Name, mark, s.DurationMS)
		if s.Error != "" {
			fmt.Fprintf(&b, "  %s", s.Error)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nSummary:\n")
	fmt.Fprintf(&b, "  competitors:    %d\n", report.Competitors)
	fmt.Fprintf(&b, "  ads ingested:   %d\n", report.AdsIngested)
	fmt.Fprintf(&b, "  ads labeled:    %d\n", report.AdsLabeled)
	fmt.Fprintf(&b, "  embeddings:     %d\n", report.Embeddings)
	fmt.Fprintf(&b, "  images sampled: %d\n", report.ImagesSampled)
	fmt.Fprintf(&b, "  est. cost:      $%.4f\n", report.TotalCost)

	if len(report.SamplingPlans) > 0 {
		b.WriteString("\n")
		b.WriteString(FormatSamplingPlans(report.SamplingPlans))
	}

	if report.Report != "" {
		b.WriteString("\nBriefing:\n")
		b.WriteString(report.Report)
		b.WriteString("\n")
	}

	return b.String()
}

// FormatSamplingPlans renders the adaptive sampling plan table.
func FormatSamplingPlans(plans []model.BrandSamplingPlan) string {
	var b strings.Builder
	b.WriteString("Sampling plan:\n")
	fmt.Fprintf(&b, "  %-24s %10s %8s %8s %9s\n", "brand", "population", "target", "final", "coverage")
	var total int
	for _, p := range plans {
		fmt.Fprintf(&b, "  %-24s %10d %8d %8d %8.1f%%\n",
			p.Brand, p.Population, p.TargetSampleSize, p.FinalSampleSize, p.CoveragePct)
		total += p.FinalSampleSize
	}
	fmt.Fprintf(&b, "  %-24s %10s %8s %8d\n", "total", "", "", total)
	return b.String()
}
