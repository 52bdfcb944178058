package universe

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"trend-trading-bot/internal/logger"
)

// DefaultCSVURL is the NSE listed-equities master file.
const DefaultCSVURL = "https://archives.nseindia.com/content/equities/EQUITY_L.csv"

// Loader resolves the scan universe. A static list from config wins;
// otherwise the NSE equity master is fetched, and on any failure the
// built-in Nifty-50 set keeps the bot running.
type Loader struct {
	Static     []string
	CSVURL     string
	Client     *http.Client
	RetryDelay time.Duration
}

func NewLoader(static []string, csvURL string) *Loader {
	if csvURL == "" {
		csvURL = DefaultCSVURL
	}
	return &Loader{
		Static:     static,
		CSVURL:     csvURL,
		Client:     &http.Client{Timeout: 30 * time.Second},
		RetryDelay: 2 * time.Second,
	}
}

// Load returns the symbols to scan.
func (l *Loader) Load(ctx context.Context) []string {
	if len(l.Static) > 0 {
		logger.Info(ctx, "using static universe", "symbols", len(l.Static))
		return l.Static
	}

	var symbols []string
	op := func() error {
		var err error
		symbols, err = l.fetchCSV(ctx)
		return err
	}
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(l.RetryDelay), 2)
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		logger.Warn(ctx, "equity list fetch failed, using fallback universe", "error", err.Error())
		return Nifty50()
	}
	if len(symbols) == 0 {
		logger.Warn(ctx, "equity list empty, using fallback universe")
		return Nifty50()
	}
	logger.Info(ctx, "loaded equity universe", "symbols", len(symbols))
	return symbols
}

func (l *Loader) fetchCSV(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.CSVURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	// NSE rejects requests without a browser-looking agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")

	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch equity list: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch equity list: status %d", resp.StatusCode)
	}
	return ParseEquityCSV(resp.Body)
}

// ParseEquityCSV extracts the SYMBOL column from the NSE master file.
func ParseEquityCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), "SYMBOL") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("no SYMBOL column in equity list")
	}

	var out []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if col >= len(rec) {
			continue
		}
		sym := strings.TrimSpace(rec[col])
		if sym != "" {
			out = append(out, sym)
		}
	}
	return out, nil
}

// Nifty50 is the offline fallback universe.
func Nifty50() []string {
	return []string{
		"ADANIENT", "ADANIPORTS", "APOLLOHOSP", "ASIANPAINT", "AXISBANK",
		"BAJAJ-AUTO", "BAJFINANCE", "BAJAJFINSV", "BEL", "BHARTIARTL",
		"CIPLA", "COALINDIA", "DRREDDY", "EICHERMOT", "GRASIM",
		"HCLTECH", "HDFCBANK", "HDFCLIFE", "HEROMOTOCO", "HINDALCO",
		"HINDUNILVR", "ICICIBANK", "INDUSINDBK", "INFY", "ITC",
		"JSWSTEEL", "KOTAKBANK", "LT", "M&M", "MARUTI",
		"NESTLEIND", "NTPC", "ONGC", "POWERGRID", "RELIANCE",
		"SBILIFE", "SBIN", "SHRIRAMFIN", "SUNPHARMA", "TATACONSUM",
		"TATAMOTORS", "TATASTEEL", "TCS", "TECHM", "TITAN",
		"TRENT", "ULTRACEMCO", "UPL", "WIPRO", "LTIM",
	}
}
