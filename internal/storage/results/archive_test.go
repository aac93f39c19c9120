package results

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/newthinker/sigreplay/internal/core"
	"github.com/newthinker/sigreplay/internal/storage/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveWriter_Write(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	w := NewArchiveWriter(store, "out")
	ctx := context.Background()

	run := sampleRun("run-1")
	require.NoError(t, w.Write(ctx, run))

	paths, err := store.List(ctx, "out")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"out/runs/ma_crossover/EUR_USD/run-1/summary.json",
		"out/runs/ma_crossover/EUR_USD/run-1/trades.csv",
	}, paths)

	data, err := store.Read(ctx, "out/runs/ma_crossover/EUR_USD/run-1/trades.csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "direction,entry_price,take_profit,stop_loss,open_time,close_time,result,trigger_price,complete", lines[0])
	assert.Equal(t, "BUY,1.101,1.1027,1.1002,2023-09-04T10:00:00Z,2023-09-04T10:30:00Z,1.5,1.103,true", lines[1])
	assert.Equal(t, "SELL,1.1012,1.099,1.102,2023-09-04T11:00:00Z,,0,1.1012,false", lines[2])

	data, err = store.Read(ctx, "out/runs/ma_crossover/EUR_USD/run-1/summary.json")
	require.NoError(t, err)
	var s Summary
	require.NoError(t, json.Unmarshal(data, &s))
	assert.Equal(t, 1, s.SchemaVersion)
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, 1.5, s.Stats.TotalR)
	assert.Equal(t, 1, s.Diagnostics.DroppedSignals)
	assert.Equal(t, 1.0, s.Config.ExecutionDelayHours)
	assert.Equal(t, int64(1500), s.DurationMS)
	assert.EqualValues(t, 8, s.Params["fast"])
}

func TestArchiveWriter_NoResult(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)

	err = NewArchiveWriter(store, "").Write(context.Background(), Run{ID: "x"})
	assert.ErrorIs(t, err, core.ErrNoData)
}

func TestEncodeCSV_Empty(t *testing.T) {
	data, err := EncodeCSV(nil)
	require.NoError(t, err)
	assert.Equal(t, "direction,entry_price,take_profit,stop_loss,open_time,close_time,result,trigger_price,complete\n", string(data))
}

type recordingWriter struct {
	ids []string
	err error
}

func (r *recordingWriter) Write(_ context.Context, run Run) error {
	r.ids = append(r.ids, run.ID)
	return r.err
}

func TestMulti_TriesEveryWriter(t *testing.T) {
	failing := &recordingWriter{err: errors.New("disk full")}
	ok := &recordingWriter{}

	err := Multi{failing, ok}.Write(context.Background(), sampleRun("run-2"))
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, []string{"run-2"}, failing.ids)
	assert.Equal(t, []string{"run-2"}, ok.ids)

	assert.NoError(t, Multi{ok}.Write(context.Background(), sampleRun("run-3")))
}
