package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/adintel-cli/internal/model"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a run's artifacts to an xlsx workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runID := args[0]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, runID)
		if err != nil {
			return eris.Wrapf(err, "run %s", runID)
		}
		ads, err := st.GetAds(ctx, runID)
		if err != nil {
			return err
		}
		labels, err := st.GetLabels(ctx, runID)
		if err != nil {
			return err
		}

		f := xlsx.NewFile()
		if err := addAdsSheet(f, ads); err != nil {
			return err
		}
		if err := addLabelsSheet(f, labels); err != nil {
			return err
		}
		if run.Result != nil && len(run.Result.SamplingPlans) > 0 {
			if err := addPlansSheet(f, run.Result.SamplingPlans); err != nil {
				return err
			}
		}

		if err := f.Save(exportOut); err != nil {
			return eris.Wrapf(err, "write %s", exportOut)
		}
		fmt.Printf("Exported %d ads and %d labels to %s\n", len(ads), len(labels), exportOut)
		return nil
	},
}

func addAdsSheet(f *xlsx.File, ads []model.Ad) error {
	sheet, err := f.AddSheet("Ads")
	if err != nil {
		return eris.Wrap(err, "add ads sheet")
	}
	writeRow(sheet, "Ad ID", "Brand", "Headline", "Body", "CTA", "Image URL", "Landing URL", "Active")
	for _, a := range ads {
		writeRow(sheet, a.ID, a.Brand, a.Headline, a.BodyText, a.CTAText, a.ImageURL, a.LandingURL, fmt.Sprint(a.Active))
	}
	return nil
}

func addLabelsSheet(f *xlsx.File, labels []model.AdLabel) error {
	sheet, err := f.AddSheet("Labels")
	if err != nil {
		return eris.Wrap(err, "add labels sheet")
	}
	writeRow(sheet, "Ad ID", "Brand", "Angle", "Offer", "Funnel Stage", "Persona", "Confidence")
	for _, l := range labels {
		writeRow(sheet, l.AdID, l.Brand, l.Angle, l.Offer, l.FunnelStage, l.Persona, fmt.Sprintf("%.2f", l.Confidence))
	}
	return nil
}

func addPlansSheet(f *xlsx.File, plans []model.BrandSamplingPlan) error {
	sheet, err := f.AddSheet("Sampling Plan")
	if err != nil {
		return eris.Wrap(err, "add plan sheet")
	}
	writeRow(sheet, "Brand", "Population", "Target", "Final", "Coverage %")
	for _, p := range plans {
		writeRow(sheet, p.Brand,
			fmt.Sprint(p.Population), fmt.Sprint(p.TargetSampleSize),
			fmt.Sprint(p.FinalSampleSize), fmt.Sprintf("%.1f", p.CoveragePct))
	}
	return nil
}

func writeRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "report.xlsx", "output workbook path")
	rootCmd.AddCommand(exportCmd)
}
