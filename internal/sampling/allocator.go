// Package sampling implements the adaptive sampling allocator that decides
// how many creatives per brand are analyzed by paid vision calls. Tiered
// coverage gives small brands proportionally more coverage; a global budget
// caps the total.
package sampling

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/adintel-cli/internal/model"
)

// ErrInvalidPopulation is returned when a brand population is negative.
var ErrInvalidPopulation = eris.New("sampling: population must be >= 0")

// Config bounds the allocation. LargeBrandCap applies only to brands with
// more than 100 eligible creatives and is normally smaller than
// PerBrandCap, reflecting the diminishing value of sampling very large
// brands.
type Config struct {
	PerBrandCap    int `yaml:"per_brand_cap" mapstructure:"per_brand_cap"`
	LargeBrandCap  int `yaml:"large_brand_cap" mapstructure:"large_brand_cap"`
	MaxTotalBudget int `yaml:"max_total_budget" mapstructure:"max_total_budget"`
	MinPerBrand    int `yaml:"min_per_brand" mapstructure:"min_per_brand"`
}

// DefaultConfig returns the sampling limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		PerBrandCap:    50,
		LargeBrandCap:  25,
		MaxTotalBudget: 200,
		MinPerBrand:    3,
	}
}

func (c Config) validate() error {
	if c.PerBrandCap < 1 {
		return eris.Errorf("sampling: per_brand_cap must be >= 1, got %d", c.PerBrandCap)
	}
	if c.LargeBrandCap < 1 {
		return eris.Errorf("sampling: large_brand_cap must be >= 1, got %d", c.LargeBrandCap)
	}
	if c.MaxTotalBudget < 1 {
		return eris.Errorf("sampling: max_total_budget must be >= 1, got %d", c.MaxTotalBudget)
	}
	if c.MinPerBrand < 0 {
		return eris.Errorf("sampling: min_per_brand must be >= 0, got %d", c.MinPerBrand)
	}
	return nil
}

// Target computes the tiered-coverage target sample size for one brand
// population. Tier boundaries are inclusive on the low side: exactly 20
// creatives uses the 50% tier.
func (c Config) Target(population int) int {
	var target int
	switch {
	case population <= 20:
		target = int(math.Round(float64(population) * 0.5))
	case population <= 50:
		target = int(math.Round(float64(population) * 0.3))
	case population <= 100:
		target = int(math.Round(float64(population) * 0.2))
	default:
		target = min(c.PerBrandCap, c.LargeBrandCap)
	}
	// Caps above the tier boundary must never sample more creatives than
	// the brand has.
	return min(target, c.PerBrandCap, population)
}

// Allocate computes one sampling plan row per brand with a non-zero
// population. It is a pure function: identical inputs always produce an
// identical plan.
//
// When the summed targets exceed the budget every target is scaled down
// proportionally and then floored at MinPerBrand (clamped to the target),
// so no brand is starved to zero. The floor may push the realized total
// above the budget by at most MinPerBrand times the number of floored
// brands; the allocator does not iterate to re-balance that slack.
func Allocate(populations []model.BrandPopulation, cfg Config) ([]model.BrandSamplingPlan, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	for _, p := range populations {
		if p.Population < 0 {
			return nil, eris.Wrapf(ErrInvalidPopulation, "brand %q has population %d", p.Brand, p.Population)
		}
	}

	plans := make([]model.BrandSamplingPlan, 0, len(populations))
	sumTargets := 0
	for _, p := range populations {
		if p.Population == 0 {
			continue
		}
		target := cfg.Target(p.Population)
		plans = append(plans, model.BrandSamplingPlan{
			Brand:            p.Brand,
			Population:       p.Population,
			TargetSampleSize: target,
		})
		sumTargets += target
	}

	for i := range plans {
		final := plans[i].TargetSampleSize
		if sumTargets > cfg.MaxTotalBudget {
			final = plans[i].TargetSampleSize * cfg.MaxTotalBudget / sumTargets
			if floor := min(cfg.MinPerBrand, plans[i].TargetSampleSize); final < floor {
				final = floor
			}
		}
		plans[i].FinalSampleSize = final
		plans[i].CoveragePct = float64(final) / float64(plans[i].Population) * 100
	}

	return plans, nil
}

// Slack returns how far a plan's realized total exceeds the budget, or 0
// when it fits.
func Slack(plans []model.BrandSamplingPlan, cfg Config) int {
	total := 0
	for _, p := range plans {
		total += p.FinalSampleSize
	}
	if total > cfg.MaxTotalBudget {
		return total - cfg.MaxTotalBudget
	}
	return 0
}
