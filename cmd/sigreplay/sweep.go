package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/newthinker/sigreplay/internal/config"
	"github.com/newthinker/sigreplay/internal/core"
	"github.com/newthinker/sigreplay/internal/storage/runs"
	"github.com/newthinker/sigreplay/internal/sweep"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	sweepPairs   []string
	sweepWorkers int
	sweepTop     int
	sweepMin     int
)

var sweepCmd = &cobra.Command{
	Use:   "sweep [strategy]",
	Short: "Replay a strategy over pairs and parameter sets",
	Long: `Run every combination of the selected pairs and the configured parameter sets on a
worker pool, persist each run to the configured outputs and rank them by total R.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().StringSliceVar(&sweepPairs, "pair", nil, "pairs to replay (default: sweep.pairs or sweep.currencies)")
	sweepCmd.Flags().IntVar(&sweepWorkers, "workers", 0, "concurrent runs (default: sweep.workers)")
	sweepCmd.Flags().IntVar(&sweepTop, "top", 10, "number of ranked runs to print")
	sweepCmd.Flags().IntVar(&sweepMin, "min-trades", 0, "hide runs with fewer trades")

	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	var strategyName string
	var paramSets []map[string]any

	a, log, err := bootstrap(cmd.Context(), func(cfg *config.Config) {
		if sweepWorkers > 0 {
			cfg.Sweep.Workers = sweepWorkers
		}
		strategyName = cfg.Sweep.Strategy
		paramSets = cfg.Sweep.ParamSets
	})
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	if len(args) == 1 {
		strategyName = args[0]
	}
	if strategyName == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("no strategy given and sweep.strategy is empty"))
	}
	pairs, err := a.Pairs(sweepPairs)
	if err != nil {
		return err
	}

	jobs := sweep.Jobs(pairs, strategyName, paramSets)
	log.Info("starting sweep",
		zap.String("strategy", strategyName),
		zap.Strings("pairs", pairs),
		zap.Int("jobs", len(jobs)),
	)

	outcomes, err := a.Runner().Run(cmd.Context(), jobs)
	if err != nil {
		return err
	}
	var failed int
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}

	ranked, err := a.Runs().List(cmd.Context(), runs.ListFilter{
		Strategy:  strategyName,
		MinTrades: sweepMin,
		Order:     runs.OrderTotalR,
		Limit:     sweepTop,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "=== sigreplay sweep: %s ===\n", strategyName)
	fmt.Fprintf(w, "Jobs: %d, failed: %d\n\n", len(jobs), failed)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPAIR\tTRADES\tWIN%\tTOTAL R\tMAX DD\tPARAMS\tRUN")
	for i, s := range ranked {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.1f\t%.2f\t%.2f\t%s\t%s\n",
			i+1, s.Pair, s.Stats.TotalTrades, s.Stats.WinRate, s.Stats.TotalR,
			s.Stats.MaxDrawdownR, formatParams(s.Params), s.RunID)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(jobs))
	}
	return nil
}

func formatParams(p map[string]any) string {
	if len(p) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, p[k])
	}
	return strings.Join(parts, ",")
}
