package model

// BrandPopulation is the allocator's input: how many eligible creatives a
// brand has.
type BrandPopulation struct {
	Brand      string `json:"brand"`
	Population int    `json:"population"`
}

// BrandSamplingPlan is one row of the adaptive sampling allocation: how
// many of a brand's creatives will actually be analyzed.
//
// FinalSampleSize is never larger than TargetSampleSize. Summed across
// brands the final sizes respect the global budget except for the
// documented min-per-brand floor slack.
type BrandSamplingPlan struct {
	Brand            string  `json:"brand"`
	Population       int     `json:"population"`
	TargetSampleSize int     `json:"target_sample_size"`
	FinalSampleSize  int     `json:"final_sample_size"`
	CoveragePct      float64 `json:"coverage_pct"`
}
