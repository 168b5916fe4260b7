package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/adintel-cli/internal/model"
	"github.com/sells-group/adintel-cli/internal/pipeline"
	"github.com/sells-group/adintel-cli/internal/sampling"
)

var (
	planPopulations string
	planBudget      int
	planPerBrand    int
	planLargeBrand  int
	planMinPerBrand int
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run the adaptive sampling allocator standalone",
	Long:  "Computes the per-brand image sampling plan for a set of creative populations without touching any external service.",
	RunE: func(cmd *cobra.Command, args []string) error {
		pops, err := parsePopulations(planPopulations)
		if err != nil {
			return err
		}

		samplingCfg := cfg.Sampling
		if planBudget > 0 {
			samplingCfg.MaxTotalBudget = planBudget
		}
		if planPerBrand > 0 {
			samplingCfg.PerBrandCap = planPerBrand
		}
		if planLargeBrand > 0 {
			samplingCfg.LargeBrandCap = planLargeBrand
		}
		if planMinPerBrand > 0 {
			samplingCfg.MinPerBrand = planMinPerBrand
		}

		plans, err := sampling.Allocate(pops, samplingCfg)
		if err != nil {
			return err
		}

		fmt.Print(pipeline.FormatSamplingPlans(plans))
		if slack := sampling.Slack(plans, samplingCfg); slack > 0 {
			fmt.Printf("  min-per-brand floor exceeds the budget by %d images\n", slack)
		}
		return nil
	},
}

// parsePopulations parses "brandA=120,brandB=30" into allocator input,
// sorted by brand for stable output.
func parsePopulations(raw string) ([]model.BrandPopulation, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, eris.New("--populations is required, e.g. brandA=120,brandB=30")
	}

	var pops []model.BrandPopulation
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, eris.Errorf("malformed population entry %q", pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, eris.Wrapf(err, "population for %q", name)
		}
		pops = append(pops, model.BrandPopulation{
			Brand:      strings.TrimSpace(name),
			Population: n,
		})
	}

	sort.Slice(pops, func(i, j int) bool { return pops[i].Brand < pops[j].Brand })
	return pops, nil
}

func init() {
	planCmd.Flags().StringVar(&planPopulations, "populations", "", "comma-separated brand=count pairs (required)")
	planCmd.Flags().IntVar(&planBudget, "budget", 0, "override the global image budget")
	planCmd.Flags().IntVar(&planPerBrand, "per-brand-cap", 0, "override the per-brand cap")
	planCmd.Flags().IntVar(&planLargeBrand, "large-brand-cap", 0, "override the large-brand fixed sample size")
	planCmd.Flags().IntVar(&planMinPerBrand, "min-per-brand", 0, "override the minimum viable sample per brand")
	_ = planCmd.MarkFlagRequired("populations")
	rootCmd.AddCommand(planCmd)
}
