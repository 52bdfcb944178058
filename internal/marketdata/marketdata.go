package marketdata

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"trend-trading-bot/internal/interfaces"
	"trend-trading-bot/internal/logger"
	"trend-trading-bot/internal/types"
)

type Params struct {
	Mode        string // STATIC or LIVE
	APIKey      string
	AccessToken string
	Exchange    string
}

// Client serves historical bars and last prices. STATIC mode synthesizes
// candles so the whole pipeline runs without credentials; LIVE mode goes
// through the Kite Connect REST API.
type Client struct {
	p      Params
	kc     *kiteconnect.Client
	mapper *instrumentMapper
}

var _ interfaces.MarketData = (*Client)(nil)

func New(p Params) *Client {
	if p.Exchange == "" {
		p.Exchange = "NSE"
	}
	c := &Client{p: p, mapper: newInstrumentMapper()}
	if p.Mode == "LIVE" {
		kc := kiteconnect.New(p.APIKey)
		kc.SetAccessToken(p.AccessToken)
		c.kc = kc
	}
	return c
}

// Bars returns the most recent n bars at the given Kite interval
// ("day", "5minute", ...), oldest first.
func (c *Client) Bars(ctx context.Context, symbol, interval string, n int) ([]types.Bar, error) {
	if c.p.Mode != "LIVE" {
		return c.staticBars(symbol, interval, n), nil
	}
	return c.liveBars(ctx, symbol, interval, n)
}

func (c *Client) liveBars(ctx context.Context, symbol, interval string, n int) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.mapper.ensure(func() (kiteconnect.Instruments, error) {
		return c.kc.GetInstrumentsByExchange(c.p.Exchange)
	}); err != nil {
		return nil, err
	}
	token, ok := c.mapper.token(symbol)
	if !ok {
		return nil, fmt.Errorf("no instrument token for %s", symbol)
	}

	step := intervalDuration(interval)
	to := time.Now()
	// Triple the nominal window to ride over weekends and holidays.
	from := to.Add(-time.Duration(n) * step * 3)

	data, err := c.kc.GetHistoricalData(token, interval, from, to, false, false)
	if err != nil {
		return nil, fmt.Errorf("historical data %s: %w", symbol, err)
	}

	bars := make([]types.Bar, 0, len(data))
	for _, d := range data {
		bars = append(bars, types.Bar{
			Ts:    d.Date.Unix(),
			Open:  d.Open,
			High:  d.High,
			Low:   d.Low,
			Close: d.Close,
			Vol:   float64(d.Volume),
		})
	}
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}

func (c *Client) staticBars(symbol string, interval string, n int) []types.Bar {
	// Seed per symbol so repeated fetches within a run stay coherent.
	var seed int64
	for _, r := range symbol {
		seed = seed*31 + int64(r)
	}
	rng := rand.New(rand.NewSource(seed))

	step := intervalDuration(interval)
	now := time.Now()
	base := 500 + rng.Float64()*2000

	bars := make([]types.Bar, 0, n)
	price := base
	for i := 0; i < n; i++ {
		price += (rng.Float64() - 0.48) * base * 0.01
		h := price + rng.Float64()*base*0.005
		l := price - rng.Float64()*base*0.005
		bars = append(bars, types.Bar{
			Ts:    now.Add(-time.Duration(n-i) * step).Unix(),
			Open:  price - (rng.Float64()-0.5)*base*0.002,
			High:  h,
			Low:   l,
			Close: price,
			Vol:   1000 + rng.Float64()*100000,
		})
	}
	return bars
}

// BatchBars fetches bars for many symbols. A symbol that fails is logged
// and omitted from the result; it never fails the batch.
func (c *Client) BatchBars(ctx context.Context, symbols []string, interval string, n int) (map[string][]types.Bar, error) {
	out := make(map[string][]types.Bar, len(symbols))
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bars, err := c.Bars(ctx, sym, interval, n)
		if err != nil {
			logger.Debug(ctx, "bar fetch failed", "symbol", sym, "error", err.Error())
			continue
		}
		out[sym] = bars
	}
	return out, nil
}

// LTP returns the last traded price.
func (c *Client) LTP(ctx context.Context, symbol string) (float64, error) {
	if c.p.Mode != "LIVE" {
		bars := c.staticBars(symbol, "5minute", 1)
		return bars[len(bars)-1].Close, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	key := c.p.Exchange + ":" + strings.ToUpper(symbol)
	quotes, err := c.kc.GetLTP(key)
	if err != nil {
		return 0, fmt.Errorf("ltp %s: %w", symbol, err)
	}
	q, ok := quotes[key]
	if !ok {
		return 0, fmt.Errorf("ltp %s: no quote returned", symbol)
	}
	return q.LastPrice, nil
}

func intervalDuration(interval string) time.Duration {
	switch interval {
	case "minute":
		return time.Minute
	case "3minute":
		return 3 * time.Minute
	case "5minute":
		return 5 * time.Minute
	case "10minute":
		return 10 * time.Minute
	case "15minute":
		return 15 * time.Minute
	case "30minute":
		return 30 * time.Minute
	case "60minute":
		return time.Hour
	default:
		return 24 * time.Hour
	}
}
