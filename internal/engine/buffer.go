package engine

import (
	"sync"
	"time"

	"trend-trading-bot/internal/types"
)

// CandidateBuffer accumulates qualified candidates across cycles so a
// single marginal signal does not trigger an immediate entry. It is
// volatile on purpose; a restart starts collecting fresh.
type CandidateBuffer struct {
	mu    sync.Mutex
	items map[string]types.Candidate
}

func NewCandidateBuffer() *CandidateBuffer {
	return &CandidateBuffer{items: make(map[string]types.Candidate)}
}

// Insert adds a candidate unless its symbol is already buffered. The
// first sighting keeps its original AddedAt so the timeout clock is not
// reset by rescans. Reports whether the candidate was new.
func (b *CandidateBuffer) Insert(c types.Candidate) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.items[c.Symbol]; ok {
		return false
	}
	b.items[c.Symbol] = c
	return true
}

// TrySelect picks the best candidate once either k candidates have
// accumulated or the oldest one has waited past the timeout. Selection
// empties the buffer; the losers must re-qualify in a later scan.
func (b *CandidateBuffer) TrySelect(k int, timeout time.Duration, now time.Time) (types.Candidate, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return types.Candidate{}, false
	}

	ready := len(b.items) >= k
	if !ready {
		for _, c := range b.items {
			if now.Sub(c.AddedAt) >= timeout {
				ready = true
				break
			}
		}
	}
	if !ready {
		return types.Candidate{}, false
	}

	var best types.Candidate
	first := true
	for _, c := range b.items {
		if first {
			best = c
			first = false
			continue
		}
		if c.Score > best.Score || (c.Score == best.Score && c.AddedAt.Before(best.AddedAt)) {
			best = c
		}
	}
	b.items = make(map[string]types.Candidate)
	return best, true
}

func (b *CandidateBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *CandidateBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = make(map[string]types.Candidate)
}
