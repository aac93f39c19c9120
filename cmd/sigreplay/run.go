package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/newthinker/sigreplay/internal/backtest"
	"github.com/newthinker/sigreplay/internal/config"
	"github.com/newthinker/sigreplay/internal/sweep"
	"github.com/spf13/cobra"
)

var (
	runPair   string
	runFrom   string
	runTo     string
	runParams []string
	runTrades bool
)

var runCmd = &cobra.Command{
	Use:   "run [strategy]",
	Short: "Replay one strategy on one pair",
	Long:  "Annotate the coarse series of a pair with a strategy, replay the trades and show their statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func init() {
	runCmd.Flags().StringVar(&runPair, "pair", "", "pair to replay, e.g. EUR_USD (required)")
	runCmd.Flags().StringVar(&runFrom, "from", "", "window start, YYYY-MM-DD or RFC3339")
	runCmd.Flags().StringVar(&runTo, "to", "", "window end (exclusive), YYYY-MM-DD or RFC3339")
	runCmd.Flags().StringArrayVar(&runParams, "param", nil, "strategy parameter override key=value (repeatable)")
	runCmd.Flags().BoolVar(&runTrades, "trades", false, "print every trade")

	runCmd.MarkFlagRequired("pair")

	rootCmd.AddCommand(runCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	params, err := parseParams(runParams)
	if err != nil {
		return err
	}

	a, log, err := bootstrap(cmd.Context(), func(cfg *config.Config) {
		if runFrom != "" {
			cfg.Data.From = runFrom
		}
		if runTo != "" {
			cfg.Data.To = runTo
		}
	})
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	out := a.Runner().RunOne(cmd.Context(), sweep.Job{
		Pair:     strings.ToUpper(runPair),
		Strategy: args[0],
		Params:   params,
	})
	if out.Err != nil {
		return out.Err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "=== sigreplay run ===")
	fmt.Fprintf(w, "Run:      %s\n", out.RunID)
	fmt.Fprintf(w, "Strategy: %s\n", args[0])
	if desc, err := a.Describe(args[0]); err == nil {
		fmt.Fprintf(w, "          %s\n", desc)
	}
	fmt.Fprintf(w, "Pair:     %s\n", out.Job.Pair)
	fmt.Fprintln(w)
	printStats(w, out.Result)
	if runTrades {
		fmt.Fprintln(w)
		printTrades(w, out.Result.Rows)
	}
	return nil
}

func printStats(w io.Writer, res *backtest.Result) {
	s, d := res.Stats, res.Diagnostics
	fmt.Fprintf(w, "Signals:      %d (%d matched, %d dropped)\n", d.Signals, d.Matched, d.DroppedSignals)
	fmt.Fprintf(w, "Trades:       %d (%d won, %d lost, %d incomplete)\n",
		s.TotalTrades, s.WinningTrades, s.LosingTrades, s.IncompleteTrades)
	fmt.Fprintf(w, "Win rate:     %.2f%%\n", s.WinRate)
	fmt.Fprintf(w, "Total R:      %.2f\n", s.TotalR)
	fmt.Fprintf(w, "Average R:    %.3f\n", s.AverageR)
	fmt.Fprintf(w, "Max DD (R):   %.2f\n", s.MaxDrawdownR)
	fmt.Fprintf(w, "Sharpe:       %.3f\n", s.SharpeRatio)
}

func printTrades(w io.Writer, rows []backtest.ResultRow) {
	fmt.Fprintln(w, strings.Join(backtest.CSVHeader(), ","))
	for _, r := range rows {
		fmt.Fprintln(w, strings.Join(r.CSVRecord(), ","))
	}
}

// parseParams turns key=value pairs into typed strategy parameters. Integers, floats
// and booleans are recognised; anything else stays a string.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", p)
		}
		params[k] = parseValue(v)
	}
	return params, nil
}

func parseValue(v string) any {
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v
}
