package gateway

import (
	"strconv"
	"time"

	"signal-monitor/internal/model"
)

// Broadcast wraps data in a sequenced envelope, keeps it for replay and
// sends it to every matching client. Clients with a full send buffer miss
// the envelope and can backfill it by reconnecting with ?since=.
// Envelopes reach each client in seq order.
func (h *Hub) Broadcast(symbol string, kind model.IndicatorKind, data []byte) {
	now := time.Now().UTC()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	seq := h.seq
	buf := envelope(seq, now, data)
	h.replay.Push(replayEntry{Seq: seq, Symbol: symbol, Indicator: kind, Data: buf})

	for client := range h.clients {
		if !client.accepts(symbol, kind) {
			continue
		}
		select {
		case client.send <- buf:
		default:
			h.metrics.StreamDropped()
		}
	}
}

// envelope hand-crafts {"type":"signal","seq":N,"ts":"...","data":...}
// around already encoded data.
func envelope(seq int64, now time.Time, data []byte) []byte {
	buf := make([]byte, 0, len(data)+96)
	buf = append(buf, `{"type":"signal","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, '}')
	return buf
}

// gapEnvelope tells a reconnecting client that seqs from..to were evicted
// from the replay buffer and must be recovered from /api/history.
func gapEnvelope(from, to int64) []byte {
	buf := append([]byte(nil), `{"type":"gap","from":`...)
	buf = strconv.AppendInt(buf, from, 10)
	buf = append(buf, `,"to":`...)
	buf = strconv.AppendInt(buf, to, 10)
	return append(buf, '}')
}
