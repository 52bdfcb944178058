package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trend-trading-bot/internal/types"
)

// buyCrossBars ends on a close crossing the trailing stop from below.
func buyCrossBars() []types.Bar {
	mk := func(h, l, c float64) types.Bar {
		return types.Bar{Ts: time.Now().Unix(), Open: c, High: h, Low: l, Close: c, Vol: 1000}
	}
	return []types.Bar{
		mk(110, 100, 105),
		mk(110, 100, 105),
		mk(110, 100, 105),
		mk(106, 95, 96),
		mk(104, 96, 97),
		mk(120, 105, 115),
	}
}

// sellCrossBars ends on a close crossing the trailing stop from above.
func sellCrossBars() []types.Bar {
	mk := func(h, l, c float64) types.Bar {
		return types.Bar{Ts: time.Now().Unix(), Open: c, High: h, Low: l, Close: c, Vol: 1000}
	}
	return []types.Bar{
		mk(110, 100, 105),
		mk(110, 100, 105),
		mk(110, 100, 105),
		mk(120, 105, 115),
		mk(118, 110, 114),
		mk(112, 95, 96),
	}
}

// flatBars never breaks out of its band.
func flatBars() []types.Bar {
	out := make([]types.Bar, 6)
	for i := range out {
		out[i] = types.Bar{Ts: time.Now().Unix(), Open: 105, High: 110, Low: 100, Close: 105, Vol: 1000}
	}
	return out
}

type fakeMD struct {
	bars    map[string][]types.Bar
	failFor map[string]bool // any batch containing one of these fails
}

func (f *fakeMD) Bars(ctx context.Context, symbol, interval string, n int) ([]types.Bar, error) {
	if f.failFor[symbol] {
		return nil, errors.New("fetch failed")
	}
	return f.bars[symbol], nil
}

func (f *fakeMD) BatchBars(ctx context.Context, symbols []string, interval string, n int) (map[string][]types.Bar, error) {
	out := make(map[string][]types.Bar)
	for _, s := range symbols {
		if f.failFor[s] {
			return nil, errors.New("batch fetch failed")
		}
		if b, ok := f.bars[s]; ok {
			out[s] = b
		}
	}
	return out, nil
}

func (f *fakeMD) LTP(ctx context.Context, symbol string) (float64, error) {
	return 0, errors.New("not implemented")
}

type fakeSignalStore struct {
	mu      sync.Mutex
	added   []types.Signal
	seeded  map[string]int // symbol -> standing signal count
	addErr  error
	deleted []string
}

func newFakeSignalStore() *fakeSignalStore {
	return &fakeSignalStore{seeded: make(map[string]int)}
}

func (f *fakeSignalStore) AddSignal(ctx context.Context, s types.Signal) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return false, f.addErr
	}
	for _, prev := range f.added {
		if prev.Symbol == s.Symbol && prev.SignalDate == s.SignalDate {
			return false, nil
		}
	}
	f.added = append(f.added, s)
	return true, nil
}

func (f *fakeSignalStore) DeleteSignals(ctx context.Context, symbol string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, symbol)
	n := int64(f.seeded[symbol])
	f.seeded[symbol] = 0
	return n, nil
}

func (f *fakeSignalStore) RecentSignals(ctx context.Context, limit int) ([]types.Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]types.Signal(nil), f.added...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func quickConfig(strat string) Config {
	return Config{
		Strategy:      strat,
		BatchSize:     2,
		Workers:       2,
		Lookback:      10,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
		BatchPause:    time.Millisecond,
	}
}

func TestScanFindsBuySignal(t *testing.T) {
	md := &fakeMD{bars: map[string][]types.Bar{
		"AAA": buyCrossBars(),
		"BBB": flatBars(),
	}}
	store := newFakeSignalStore()
	s := New(quickConfig(StrategyStandard), md, store)

	sum, err := s.Scan(context.Background(), []string{"AAA", "BBB"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if sum.SignalsFound != 1 {
		t.Errorf("signals found = %d, want 1", sum.SignalsFound)
	}
	if sum.WithData != 2 || sum.NoData != 0 {
		t.Errorf("with/no data = %d/%d, want 2/0", sum.WithData, sum.NoData)
	}
	if len(store.added) != 1 || store.added[0].Symbol != "AAA" {
		t.Fatalf("stored = %+v", store.added)
	}
	if store.added[0].Strength != types.TierStandard {
		t.Errorf("tier = %q, want Standard", store.added[0].Strength)
	}
	if store.added[0].Price != 115 {
		t.Errorf("price = %v, want last close 115", store.added[0].Price)
	}
}

func TestBatchFailureIsolation(t *testing.T) {
	md := &fakeMD{
		bars:    map[string][]types.Bar{"AAA": buyCrossBars()},
		failFor: map[string]bool{"BAD": true},
	}
	store := newFakeSignalStore()
	cfg := quickConfig(StrategyStandard)
	cfg.BatchSize = 1 // isolate BAD in its own batch
	s := New(cfg, md, store)

	sum, err := s.Scan(context.Background(), []string{"AAA", "BAD"})
	if err != nil {
		t.Fatalf("scan must not abort on a failed batch: %v", err)
	}
	if sum.BatchesFailed != 1 {
		t.Errorf("batches failed = %d, want 1", sum.BatchesFailed)
	}
	if sum.SignalsFound != 1 {
		t.Errorf("signals found = %d, want 1 from the healthy batch", sum.SignalsFound)
	}
	if sum.NoData != 1 {
		t.Errorf("no data = %d, want 1 for the failed batch", sum.NoData)
	}
}

func TestMissingSymbolCountsAsNoData(t *testing.T) {
	md := &fakeMD{bars: map[string][]types.Bar{"AAA": buyCrossBars()}}
	store := newFakeSignalStore()
	s := New(quickConfig(StrategyStandard), md, store)

	sum, err := s.Scan(context.Background(), []string{"AAA", "GHOST"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if sum.NoData != 1 || sum.WithData != 1 {
		t.Errorf("with/no data = %d/%d, want 1/1", sum.WithData, sum.NoData)
	}
}

func TestSniperRequiresConfirmation(t *testing.T) {
	// The cross fires but the series is far too short for the long EMA,
	// so sniper confirmation cannot pass.
	md := &fakeMD{bars: map[string][]types.Bar{"AAA": buyCrossBars()}}
	store := newFakeSignalStore()
	s := New(quickConfig(StrategySniper), md, store)

	sum, err := s.Scan(context.Background(), []string{"AAA"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if sum.SignalsFound != 0 {
		t.Errorf("sniper found = %d, want 0 without confirmation", sum.SignalsFound)
	}
	if len(store.added) != 0 {
		t.Errorf("stored = %+v, want none", store.added)
	}
}

func TestSellCrossDeletesStandingSignals(t *testing.T) {
	md := &fakeMD{bars: map[string][]types.Bar{"AAA": sellCrossBars()}}
	store := newFakeSignalStore()
	store.seeded["AAA"] = 2
	s := New(quickConfig(StrategyStandard), md, store)

	sum, err := s.Scan(context.Background(), []string{"AAA"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if sum.SignalsDeleted != 2 {
		t.Errorf("deleted = %d, want 2", sum.SignalsDeleted)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "AAA" {
		t.Errorf("delete calls = %v", store.deleted)
	}
}

func TestStoreErrorsAreCountedNotFatal(t *testing.T) {
	md := &fakeMD{bars: map[string][]types.Bar{"AAA": buyCrossBars()}}
	store := newFakeSignalStore()
	store.addErr = errors.New("disk full")
	s := New(quickConfig(StrategyStandard), md, store)

	sum, err := s.Scan(context.Background(), []string{"AAA"})
	if err != nil {
		t.Fatalf("scan must survive store errors: %v", err)
	}
	if sum.StoreErrors != 1 {
		t.Errorf("store errors = %d, want 1", sum.StoreErrors)
	}
	if sum.SignalsFound != 0 {
		t.Errorf("signals found = %d, want 0", sum.SignalsFound)
	}
}
