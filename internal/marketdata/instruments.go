package marketdata

import (
	"fmt"
	"strings"
	"sync"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

// instrumentMapper resolves trading symbols to Kite instrument tokens
// from the exchange instruments dump. The dump is fetched once, on the
// first lookup that needs it.
type instrumentMapper struct {
	mu     sync.RWMutex
	tokens map[string]int
}

func newInstrumentMapper() *instrumentMapper {
	return &instrumentMapper{}
}

// ensure loads the dump if it has not been loaded yet. A fetch failure
// leaves the mapper empty so the next call retries.
func (m *instrumentMapper) ensure(fetch func() (kiteconnect.Instruments, error)) error {
	m.mu.RLock()
	loaded := m.tokens != nil
	m.mu.RUnlock()
	if loaded {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens != nil {
		return nil
	}

	instruments, err := fetch()
	if err != nil {
		return fmt.Errorf("load instruments: %w", err)
	}
	tokens := make(map[string]int, len(instruments))
	for _, in := range instruments {
		tokens[strings.ToUpper(in.Tradingsymbol)] = in.InstrumentToken
	}
	m.tokens = tokens
	return nil
}

func (m *instrumentMapper) token(symbol string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[strings.ToUpper(symbol)]
	return t, ok
}

func (m *instrumentMapper) size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tokens)
}
