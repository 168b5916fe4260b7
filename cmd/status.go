package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/adintel-cli/internal/model"
	"github.com/sells-group/adintel-cli/internal/pipeline"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show one run's stage-by-stage outcome",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "run %s", args[0])
		}

		if statusFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(run)
		}

		if run.Result == nil {
			fmt.Printf("Run %s — %s / %s\nStatus: %s (no result yet)\n",
				run.ID, run.Brand, run.Vertical, run.Status)
			return nil
		}

		rc := &model.RunContext{Brand: run.Brand, Vertical: run.Vertical, RunID: run.ID}
		fmt.Print(pipeline.FormatReport(rc, run.Result))
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "output-format", "text", "output format: text or json")
	rootCmd.AddCommand(statusCmd)
}
