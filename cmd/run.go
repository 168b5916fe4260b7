package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/adintel-cli/internal/model"
	"github.com/sells-group/adintel-cli/internal/pipeline"
)

var (
	runBrand    string
	runVertical string
	runID       string
	runDry      bool
	runVerbose  bool
	runFormat   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full intelligence pipeline for a brand",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if runFormat != "text" && runFormat != "json" {
			return eris.Errorf("invalid output format %q (want text or json)", runFormat)
		}

		rc, err := model.NewRunContext(runBrand, runVertical, runID, runDry, runVerbose)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Pipeline.Run(ctx, rc)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		switch runFormat {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		default:
			fmt.Print(pipeline.FormatReport(rc, report))
		}

		if report.Status != model.RunStatusComplete {
			zap.L().Error("run finished with failures", zap.String("run_id", rc.RunID))
			return eris.Errorf("run %s failed: %s", rc.RunID, report.Error)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runBrand, "brand", "", "subject brand name (required)")
	runCmd.Flags().StringVar(&runVertical, "vertical", "", "advertising vertical (required)")
	runCmd.Flags().StringVar(&runID, "run-id", "", "run id (defaults to a new UUID; reusing one overwrites that run)")
	runCmd.Flags().BoolVar(&runDry, "dry-run", false, "simulate all external calls and skip durable writes")
	runCmd.Flags().BoolVar(&runVerbose, "verbose", false, "verbose stage logging")
	runCmd.Flags().StringVar(&runFormat, "output-format", "text", "output format: text or json")
	_ = runCmd.MarkFlagRequired("brand")
	_ = runCmd.MarkFlagRequired("vertical")
	rootCmd.AddCommand(runCmd)
}
