package results

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path"

	"github.com/newthinker/sigreplay/internal/backtest"
	"github.com/newthinker/sigreplay/internal/core"
	"github.com/newthinker/sigreplay/internal/storage/archive"
)

// ArchiveWriter writes each run as runs/<strategy>/<pair>/<run id>/{trades.csv,summary.json}.
type ArchiveWriter struct {
	store  archive.Storage
	prefix string
}

// NewArchiveWriter creates a writer rooted at prefix inside store.
func NewArchiveWriter(store archive.Storage, prefix string) *ArchiveWriter {
	return &ArchiveWriter{store: store, prefix: prefix}
}

var _ Writer = (*ArchiveWriter)(nil)

// RunDir returns the directory a run is written to.
func (w *ArchiveWriter) RunDir(run Run) string {
	return path.Join(w.prefix, "runs", run.Result.Strategy, run.Result.Pair, run.ID)
}

func (w *ArchiveWriter) Write(ctx context.Context, run Run) error {
	if run.Result == nil {
		return core.WrapError(core.ErrNoData, fmt.Errorf("run %s has no result", run.ID))
	}
	dir := w.RunDir(run)

	trades, err := EncodeCSV(run.Result.Rows)
	if err != nil {
		return err
	}
	if err := w.store.Write(ctx, path.Join(dir, "trades.csv"), trades); err != nil {
		return fmt.Errorf("writing trades of run %s: %w", run.ID, err)
	}

	summary, err := json.MarshalIndent(Summarize(run), "", "  ")
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("encoding summary: %w", err))
	}
	if err := w.store.Write(ctx, path.Join(dir, "summary.json"), summary); err != nil {
		return fmt.Errorf("writing summary of run %s: %w", run.ID, err)
	}
	return nil
}

// EncodeCSV renders result rows with a header line.
func EncodeCSV(rows []backtest.ResultRow) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(backtest.CSVHeader()); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := cw.Write(r.CSVRecord()); err != nil {
			return nil, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("encoding trades: %w", err))
	}
	return buf.Bytes(), nil
}
