package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"trend-trading-bot/internal/strategy"
	"trend-trading-bot/internal/types"
)

var ist = time.FixedZone("IST", 19800)

// sessionClock pins the engine to a weekday inside the trading window.
func sessionClock() time.Time {
	return time.Date(2026, 8, 31, 10, 30, 0, 0, ist) // a Monday
}

type fakeMD struct {
	bars map[string][]types.Bar // keyed symbol + "/" + interval
	ltp  map[string]float64
}

func (f *fakeMD) Bars(ctx context.Context, symbol, interval string, n int) ([]types.Bar, error) {
	b, ok := f.bars[symbol+"/"+interval]
	if !ok {
		return nil, errors.New("no data")
	}
	return b, nil
}

func (f *fakeMD) BatchBars(ctx context.Context, symbols []string, interval string, n int) (map[string][]types.Bar, error) {
	out := make(map[string][]types.Bar)
	for _, s := range symbols {
		if b, err := f.Bars(ctx, s, interval, n); err == nil {
			out[s] = b
		}
	}
	return out, nil
}

func (f *fakeMD) LTP(ctx context.Context, symbol string) (float64, error) {
	p, ok := f.ltp[symbol]
	if !ok {
		return 0, errors.New("no quote")
	}
	return p, nil
}

type fakeScanner struct {
	sum   *types.ScanSummary
	calls int
}

func (f *fakeScanner) Scan(ctx context.Context, symbols []string) (*types.ScanSummary, error) {
	f.calls++
	if f.sum != nil {
		return f.sum, nil
	}
	return &types.ScanSummary{Scanned: len(symbols)}, nil
}

type fakeSignals struct {
	recent []types.Signal
}

func (f *fakeSignals) AddSignal(ctx context.Context, s types.Signal) (bool, error) { return true, nil }
func (f *fakeSignals) DeleteSignals(ctx context.Context, symbol string) (int64, error) {
	return 0, nil
}
func (f *fakeSignals) RecentSignals(ctx context.Context, limit int) ([]types.Signal, error) {
	return f.recent, nil
}

type fakeTrades struct {
	open   []types.PaperTrade
	closed []types.PaperTrade
	today  int
	nextID int64
}

func (f *fakeTrades) OpenTrade(ctx context.Context, t types.PaperTrade) (int64, error) {
	f.nextID++
	t.ID = f.nextID
	t.Status = types.TradeOpen
	f.open = append(f.open, t)
	f.today++
	return t.ID, nil
}

func (f *fakeTrades) OpenTrades(ctx context.Context) ([]types.PaperTrade, error) {
	return append([]types.PaperTrade(nil), f.open...), nil
}

func (f *fakeTrades) CloseTrade(ctx context.Context, id int64, exitPrice, pnl float64, reason string, exitTime time.Time) error {
	for i, t := range f.open {
		if t.ID == id {
			t.Status = types.TradeClosed
			t.ExitPrice = exitPrice
			t.PnL = pnl
			t.ExitReason = reason
			t.ExitTime = exitTime
			f.closed = append(f.closed, t)
			f.open = append(f.open[:i], f.open[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("trade %d not open", id)
}

func (f *fakeTrades) TradesOpenedOn(ctx context.Context, day time.Time) (int, error) {
	return f.today, nil
}

type fakePortfolio struct {
	added  []string
	closed []string
}

func (f *fakePortfolio) AddToPortfolio(ctx context.Context, symbol string, price float64, status, notes string) (bool, error) {
	f.added = append(f.added, symbol)
	return true, nil
}
func (f *fakePortfolio) ClosePosition(ctx context.Context, symbol string) error {
	f.closed = append(f.closed, symbol)
	return nil
}
func (f *fakePortfolio) ActivePortfolio(ctx context.Context) ([]types.PortfolioItem, error) {
	return nil, nil
}
func (f *fakePortfolio) RemoveFromPortfolio(ctx context.Context, symbol string) error { return nil }

func newTestEngine(t *testing.T, md *fakeMD, sigs *fakeSignals, trades *fakeTrades, pf *fakePortfolio) *Engine {
	t.Helper()
	t.Setenv("TRADER_LOG_DIR", t.TempDir())
	e := New(Config{}, strategy.DefaultParams(), Deps{
		MarketData: md,
		Scanner:    &fakeScanner{},
		Signals:    sigs,
		Trades:     trades,
		Portfolio:  pf,
		Universe:   func(ctx context.Context) []string { return []string{"AAA"} },
	})
	e.now = sessionClock
	return e
}

func TestRunSkipsOutsideSession(t *testing.T) {
	e := newTestEngine(t, &fakeMD{}, &fakeSignals{}, &fakeTrades{}, &fakePortfolio{})
	e.now = func() time.Time { return time.Date(2026, 8, 31, 8, 0, 0, 0, ist) }

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Skipped != "outside session window" {
		t.Errorf("skipped = %q", res.Skipped)
	}
	if res.Scan != nil || res.Exited != 0 {
		t.Errorf("nothing should run outside the session: %+v", res)
	}
}

func TestRunSkipsWeekend(t *testing.T) {
	e := newTestEngine(t, &fakeMD{}, &fakeSignals{}, &fakeTrades{}, &fakePortfolio{})
	e.now = func() time.Time { return time.Date(2026, 8, 29, 10, 30, 0, 0, ist) } // a Saturday

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Skipped != "outside session window" {
		t.Errorf("skipped = %q", res.Skipped)
	}
}

func TestStopLossExit(t *testing.T) {
	intraday := []types.Bar{{High: 98, Low: 96, Close: 97, Vol: 100}}
	md := &fakeMD{bars: map[string][]types.Bar{"AAA/5minute": intraday}}
	trades := &fakeTrades{open: []types.PaperTrade{{
		ID: 1, Symbol: "AAA", EntryPrice: 100, Quantity: 20,
		StopLoss: 98, Target: 110, Status: types.TradeOpen,
	}}, nextID: 1, today: 1}
	pf := &fakePortfolio{}
	e := newTestEngine(t, md, &fakeSignals{}, trades, pf)

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Exited != 1 {
		t.Fatalf("exited = %d, want 1", res.Exited)
	}
	closed := trades.closed[0]
	if closed.ExitReason != "Stop Loss Hit" {
		t.Errorf("reason = %q", closed.ExitReason)
	}
	if closed.PnL != -60 {
		t.Errorf("pnl = %v, want -60", closed.PnL)
	}
	if len(pf.closed) != 1 || pf.closed[0] != "AAA" {
		t.Errorf("portfolio closes = %v", pf.closed)
	}
}

func TestAboveTargetStaysOpen(t *testing.T) {
	// Price past the target is not an exit on its own; the trade rides
	// until the stop or a sell crossunder says otherwise.
	intraday := []types.Bar{{High: 112, Low: 109, Close: 111, Vol: 100}}
	md := &fakeMD{bars: map[string][]types.Bar{"AAA/5minute": intraday}}
	trades := &fakeTrades{open: []types.PaperTrade{{
		ID: 1, Symbol: "AAA", EntryPrice: 100, Quantity: 10,
		StopLoss: 95, Target: 110, Status: types.TradeOpen,
	}}, nextID: 1, today: 1}
	e := newTestEngine(t, md, &fakeSignals{}, trades, &fakePortfolio{})

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Exited != 0 {
		t.Fatalf("exited = %d, want 0", res.Exited)
	}
	if len(trades.open) != 1 || len(trades.closed) != 0 {
		t.Errorf("open = %d closed = %d, want the trade still open", len(trades.open), len(trades.closed))
	}
}

func TestExitUsesLastTradedPrice(t *testing.T) {
	// The last bar close sits above the stop but the live tick is below
	// it; the tick decides the exit and prices the fill.
	intraday := []types.Bar{{High: 100, Low: 98.5, Close: 99, Vol: 100}}
	md := &fakeMD{
		bars: map[string][]types.Bar{"AAA/5minute": intraday},
		ltp:  map[string]float64{"AAA": 97.5},
	}
	trades := &fakeTrades{open: []types.PaperTrade{{
		ID: 1, Symbol: "AAA", EntryPrice: 100, Quantity: 20,
		StopLoss: 98, Target: 110, Status: types.TradeOpen,
	}}, nextID: 1, today: 1}
	e := newTestEngine(t, md, &fakeSignals{}, trades, &fakePortfolio{})

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Exited != 1 {
		t.Fatalf("exited = %d, want 1", res.Exited)
	}
	closed := trades.closed[0]
	if closed.ExitReason != "Stop Loss Hit" {
		t.Errorf("reason = %q", closed.ExitReason)
	}
	if closed.ExitPrice != 97.5 {
		t.Errorf("exit price = %v, want the tick 97.5", closed.ExitPrice)
	}
	if closed.PnL != -50 {
		t.Errorf("pnl = %v, want -50", closed.PnL)
	}
}

func TestDailyCapBlocksEntriesNotExits(t *testing.T) {
	intraday := []types.Bar{{High: 98, Low: 96, Close: 97, Vol: 100}}
	md := &fakeMD{bars: map[string][]types.Bar{"AAA/5minute": intraday}}
	trades := &fakeTrades{open: []types.PaperTrade{{
		ID: 1, Symbol: "AAA", EntryPrice: 100, Quantity: 5,
		StopLoss: 98, Target: 110, Status: types.TradeOpen,
	}}, nextID: 1, today: 2}
	e := newTestEngine(t, md, &fakeSignals{}, trades, &fakePortfolio{})
	sc := &fakeScanner{}
	e.scanner = sc

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Exited != 1 {
		t.Errorf("exits must still run at the cap, exited = %d", res.Exited)
	}
	if res.Skipped != "daily trade cap reached" {
		t.Errorf("skipped = %q", res.Skipped)
	}
	if res.Executed != "" {
		t.Errorf("executed = %q, want no entry", res.Executed)
	}
	if sc.calls != 0 || res.Scan != nil {
		t.Errorf("a capped day must not scan: calls = %d scan = %v", sc.calls, res.Scan)
	}
}

func TestBufferedSelectionExecutesTrade(t *testing.T) {
	md := &fakeMD{bars: map[string][]types.Bar{}} // no daily bars: stop falls back to 1%
	trades := &fakeTrades{}
	pf := &fakePortfolio{}
	e := newTestEngine(t, md, &fakeSignals{}, trades, pf)

	now := sessionClock()
	e.buffer.Insert(types.Candidate{Symbol: "AAA", Price: 100, Score: 60, AddedAt: now})
	e.buffer.Insert(types.Candidate{Symbol: "BBB", Price: 200, Score: 75, AddedAt: now})

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Executed != "BBB" {
		t.Fatalf("executed = %q, want the higher-scored BBB", res.Executed)
	}
	if len(trades.open) != 1 {
		t.Fatalf("open trades = %d, want 1", len(trades.open))
	}
	tr := trades.open[0]
	// Fallback stop at 1%: entry 200, stop 198, risk/share 2.
	// 1000/2 = 500 by risk, 50000/200 = 250 by capital.
	if tr.StopLoss != 198 {
		t.Errorf("stop = %v, want 198", tr.StopLoss)
	}
	if tr.Quantity != 250 {
		t.Errorf("qty = %d, want capital-bound 250", tr.Quantity)
	}
	if tr.Target != 204 {
		t.Errorf("target = %v, want 204 at 2x risk", tr.Target)
	}
	if len(pf.added) != 1 || pf.added[0] != "BBB" {
		t.Errorf("portfolio adds = %v", pf.added)
	}
	if e.buffer.Len() != 0 {
		t.Errorf("buffer len = %d after selection, want 0", e.buffer.Len())
	}
}

func TestQualifyGates(t *testing.T) {
	mkIntraday := func(close float64) []types.Bar {
		out := make([]types.Bar, 30)
		for i := range out {
			c := close - float64(30-i)*0.1 // rising into the last bar
			out[i] = types.Bar{High: c + 1, Low: c - 1, Close: c, Vol: 1000}
		}
		return out
	}
	daily := make([]types.Bar, 40)
	for i := range daily {
		c := 100.0 + float64(i%2)
		daily[i] = types.Bar{High: c + 2, Low: c - 2, Close: c, Vol: 1000}
	}
	daily[len(daily)-1].Vol = 2000

	md := &fakeMD{bars: map[string][]types.Bar{
		"AAA/5minute": mkIntraday(100),
		"AAA/day":     daily,
	}}
	e := newTestEngine(t, md, &fakeSignals{}, &fakeTrades{}, &fakePortfolio{})

	cand, ok := e.qualify(context.Background(), types.Signal{Symbol: "AAA", Price: 100})
	if !ok {
		t.Fatal("rising series above vwap should qualify")
	}
	if cand.RVol <= 1.5 {
		t.Errorf("rvol = %v, want the volume surge reflected", cand.RVol)
	}
	if cand.Score <= cand.RSI {
		t.Errorf("score = %v must exceed rsi %v", cand.Score, cand.RSI)
	}

	// A falling series ends below its own VWAP and is rejected.
	falling := mkIntraday(100)
	for i, j := 0, len(falling)-1; i < j; i, j = i+1, j-1 {
		falling[i], falling[j] = falling[j], falling[i]
	}
	md.bars["AAA/5minute"] = falling
	if _, ok := e.qualify(context.Background(), types.Signal{Symbol: "AAA", Price: 100}); ok {
		t.Error("series ending below vwap must not qualify")
	}
}
