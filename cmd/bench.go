package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/adintel-cli/internal/store"
)

var (
	benchRunID       string
	benchBrands      string
	benchConcurrency int
)

// benchCmd compares sequential against pooled execution of the per-brand
// label-count query. The queries are independent and read-only, so a
// bounded worker pool needs no locking beyond collecting results.
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark sequential vs pooled per-brand label queries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		brands := splitBrands(benchBrands)
		if len(brands) == 0 {
			return eris.New("--brands is required, e.g. --brands rivalA,rivalB")
		}

		concurrency := benchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Bench.Concurrency
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		seqCounts, seqDur, err := benchSequential(ctx, st, benchRunID, brands)
		if err != nil {
			return eris.Wrap(err, "sequential bench")
		}
		poolCounts, poolDur, err := benchPooled(ctx, st, benchRunID, brands, concurrency)
		if err != nil {
			return eris.Wrap(err, "pooled bench")
		}

		for i, b := range brands {
			if seqCounts[i] != poolCounts[i] {
				return eris.Errorf("count mismatch for %s: sequential %d, pooled %d", b, seqCounts[i], poolCounts[i])
			}
			fmt.Printf("  %-24s %6d labels\n", b, seqCounts[i])
		}
		fmt.Printf("\nsequential: %s\npooled(%d):  %s\n", seqDur, concurrency, poolDur)
		if poolDur > 0 {
			fmt.Printf("speedup:    %.2fx\n", float64(seqDur)/float64(poolDur))
		}
		return nil
	},
}

func benchSequential(ctx context.Context, st store.Store, runID string, brands []string) ([]int, time.Duration, error) {
	counts := make([]int, len(brands))
	start := time.Now()
	for i, b := range brands {
		n, err := st.CountLabelsForBrand(ctx, runID, b)
		if err != nil {
			return nil, 0, err
		}
		counts[i] = n
	}
	return counts, time.Since(start), nil
}

func benchPooled(ctx context.Context, st store.Store, runID string, brands []string, concurrency int) ([]int, time.Duration, error) {
	counts := make([]int, len(brands))
	var mu sync.Mutex

	start := time.Now()
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, b := range brands {
		g.Go(func() error {
			n, err := st.CountLabelsForBrand(gCtx, runID, b)
			if err != nil {
				return err
			}
			mu.Lock()
			counts[i] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return counts, time.Since(start), nil
}

func splitBrands(raw string) []string {
	var out []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func init() {
	benchCmd.Flags().StringVar(&benchRunID, "run-id", "", "run whose labels to count (required)")
	benchCmd.Flags().StringVar(&benchBrands, "brands", "", "comma-separated brand names (required)")
	benchCmd.Flags().IntVar(&benchConcurrency, "concurrency", 0, "worker pool size (default from config)")
	_ = benchCmd.MarkFlagRequired("run-id")
	_ = benchCmd.MarkFlagRequired("brands")
	rootCmd.AddCommand(benchCmd)
}
