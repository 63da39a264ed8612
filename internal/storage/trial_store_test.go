package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeongseonghan/iqmodem/internal/protocol"
)

func newTestStore(t *testing.T, maxTrials int) *TrialStore {
	t.Helper()
	ts, err := NewTrialStore(filepath.Join(t.TempDir(), "data", "trials.db"), maxTrials)
	require.NoError(t, err)
	t.Cleanup(func() { ts.Close() })
	return ts
}

func trial(id, mod string, at time.Time, symbols, symErrs int) *protocol.TrialResult {
	snr := 12.5
	return &protocol.TrialResult{
		ID:           id,
		Modulation:   mod,
		SNRDB:        12,
		MeasuredSNR:  &snr,
		PayloadBytes: 16,
		Symbols:      symbols,
		SymbolErrors: symErrs,
		BitErrors:    symErrs,
		SER:          float64(symErrs) / float64(symbols),
		FrameOK:      symErrs == 0,
		Duration:     3 * time.Millisecond,
		CreatedAt:    at,
	}
}

func TestTrialStore_SaveAndGet(t *testing.T) {
	ts := newTestStore(t, 0)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	want := trial("a", "QPSK", at, 100, 2)
	want.Error = "decode frame: frame CRC mismatch"
	require.NoError(t, ts.SaveTrial(want))

	got, err := ts.GetTrial("a")
	require.NoError(t, err)
	assert.Equal(t, want.Modulation, got.Modulation)
	assert.Equal(t, want.Symbols, got.Symbols)
	assert.Equal(t, want.SymbolErrors, got.SymbolErrors)
	assert.Equal(t, want.Error, got.Error)
	assert.Equal(t, want.Duration, got.Duration)
	assert.False(t, got.FrameOK)
	assert.True(t, at.Equal(got.CreatedAt), "created_at %v", got.CreatedAt)
	require.NotNil(t, got.MeasuredSNR)
	assert.InDelta(t, 12.5, *got.MeasuredSNR, 1e-12)
}

func TestTrialStore_NullMeasuredSNR(t *testing.T) {
	ts := newTestStore(t, 0)

	r := trial("n", "BPSK", time.Now().UTC(), 64, 0)
	r.Noiseless = true
	r.MeasuredSNR = nil
	require.NoError(t, ts.SaveTrial(r))

	got, err := ts.GetTrial("n")
	require.NoError(t, err)
	assert.Nil(t, got.MeasuredSNR)
	assert.True(t, got.Noiseless)
	assert.True(t, got.FrameOK)
}

func TestTrialStore_GetMissing(t *testing.T) {
	ts := newTestStore(t, 0)

	_, err := ts.GetTrial("nope")
	assert.ErrorIs(t, err, ErrTrialNotFound)
}

func TestTrialStore_SaveRejectsEmptyID(t *testing.T) {
	ts := newTestStore(t, 0)

	assert.Error(t, ts.SaveTrial(nil))
	assert.Error(t, ts.SaveTrial(&protocol.TrialResult{}))
}

func TestTrialStore_ListNewestFirst(t *testing.T) {
	ts := newTestStore(t, 0)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		mod := "QPSK"
		if i%2 == 1 {
			mod = "16-QAM"
		}
		require.NoError(t, ts.SaveTrial(trial(fmt.Sprintf("t%d", i), mod, base.Add(time.Duration(i)*time.Minute), 50, 0)))
	}

	all, err := ts.ListTrials(3, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "t4", all[0].ID)
	assert.Equal(t, "t3", all[1].ID)
	assert.Equal(t, "t2", all[2].ID)

	qam, err := ts.ListTrials(0, "16-QAM")
	require.NoError(t, err)
	require.Len(t, qam, 2)
	assert.Equal(t, "t3", qam[0].ID)
	assert.Equal(t, "t1", qam[1].ID)
}

func TestTrialStore_Prune(t *testing.T) {
	ts := newTestStore(t, 3)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		require.NoError(t, ts.SaveTrial(trial(fmt.Sprintf("t%d", i), "BPSK", base.Add(time.Duration(i)*time.Second), 10, 0)))
	}

	count, err := ts.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	_, err = ts.GetTrial("t0")
	assert.ErrorIs(t, err, ErrTrialNotFound)
	_, err = ts.GetTrial("t5")
	assert.NoError(t, err)
}

func TestTrialStore_Stats(t *testing.T) {
	ts := newTestStore(t, 0)
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, ts.SaveTrial(trial("q1", "QPSK", at, 100, 0)))
	require.NoError(t, ts.SaveTrial(trial("q2", "QPSK", at.Add(time.Second), 100, 10)))
	require.NoError(t, ts.SaveTrial(trial("b1", "BPSK", at.Add(2*time.Second), 200, 0)))

	stats, err := ts.Stats()
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "BPSK", stats[0].Modulation)
	assert.Equal(t, 1, stats[0].Trials)
	assert.Zero(t, stats[0].SER)

	q := stats[1]
	assert.Equal(t, "QPSK", q.Modulation)
	assert.Equal(t, 2, q.Trials)
	assert.Equal(t, 1, q.FramesOK)
	assert.Equal(t, int64(200), q.Symbols)
	assert.Equal(t, int64(10), q.SymbolErrors)
	assert.InDelta(t, 0.05, q.SER, 1e-12)
	assert.InDelta(t, 12, q.AvgSNRDB, 1e-12)
}
