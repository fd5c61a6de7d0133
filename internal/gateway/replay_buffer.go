package gateway

import (
	"sort"

	"signal-monitor/internal/model"
)

// replayEntry is one sent envelope kept for clients reconnecting with ?since=.
type replayEntry struct {
	Seq       int64
	Symbol    string
	Indicator model.IndicatorKind
	Data      []byte
}

// ReplayBuffer keeps the most recent envelopes in a ring, ordered by seq.
// It is not synchronized; the Hub guards it with its own lock so pushes and
// backfills are ordered against client registration.
type ReplayBuffer struct {
	buf   []replayEntry
	start int // oldest entry
	n     int
}

// NewReplayBuffer creates a buffer holding capacity envelopes.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = DefaultReplaySize
	}
	return &ReplayBuffer{buf: make([]replayEntry, capacity)}
}

// Push appends e, evicting the oldest entry when full. Seqs must increase.
func (rb *ReplayBuffer) Push(e replayEntry) {
	if rb.n < len(rb.buf) {
		rb.buf[(rb.start+rb.n)%len(rb.buf)] = e
		rb.n++
		return
	}
	rb.buf[rb.start] = e
	rb.start = (rb.start + 1) % len(rb.buf)
}

// Since returns the retained entries with Seq > seq, oldest first.
func (rb *ReplayBuffer) Since(seq int64) []replayEntry {
	i := sort.Search(rb.n, func(i int) bool { return rb.at(i).Seq > seq })
	if i == rb.n {
		return nil
	}
	out := make([]replayEntry, 0, rb.n-i)
	for ; i < rb.n; i++ {
		out = append(out, rb.at(i))
	}
	return out
}

// Oldest returns the seq of the oldest retained entry.
func (rb *ReplayBuffer) Oldest() (int64, bool) {
	if rb.n == 0 {
		return 0, false
	}
	return rb.at(0).Seq, true
}

// Len returns the number of retained entries.
func (rb *ReplayBuffer) Len() int { return rb.n }

func (rb *ReplayBuffer) at(i int) replayEntry {
	return rb.buf[(rb.start+i)%len(rb.buf)]
}
