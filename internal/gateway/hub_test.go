package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-monitor/internal/model"
)

type envelopeMsg struct {
	Type string             `json:"type"`
	Seq  int64              `json:"seq"`
	TS   string             `json:"ts"`
	Data model.SignalRecord `json:"data"`
	From int64              `json:"from"`
	To   int64              `json:"to"`
}

func signal(symbol string, kind model.IndicatorKind) model.SignalRecord {
	return model.SignalRecord{
		Symbol:     symbol,
		Market:     model.MarketStock,
		SignalDate: "2024-03-05 15:00",
		Direction:  model.DirectionBuy,
		Price:      10.5,
		Indicator:  kind,
		Values:     model.NewIndicatorValues(kind, 10.4, 10.2),
	}
}

func dial(t *testing.T, hub *Hub, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	before := hub.ClientCount()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return hub.ClientCount() == before+1 }, time.Second, 5*time.Millisecond)
	return conn
}

// readEnvelopes reads frames until n envelopes arrived, splitting coalesced frames.
func readEnvelopes(t *testing.T, conn *websocket.Conn, n int) []envelopeMsg {
	t.Helper()
	var out []envelopeMsg
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for len(out) < n {
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)
		for _, line := range bytes.Split(frame, []byte{'\n'}) {
			var env envelopeMsg
			require.NoError(t, json.Unmarshal(line, &env), "raw: %s", line)
			out = append(out, env)
		}
	}
	return out
}

func TestHub_PublishSignal(t *testing.T) {
	hub := NewHub(10, nil)
	conn := dial(t, hub, "")

	require.NoError(t, hub.PublishSignal(context.Background(), signal("600000", model.IndicatorDKX)))

	got := readEnvelopes(t, conn, 1)
	assert.Equal(t, "signal", got[0].Type)
	assert.Equal(t, int64(1), got[0].Seq)
	assert.Equal(t, "600000", got[0].Data.Symbol)
	require.NotNil(t, got[0].Data.Values.DKX)
	assert.Equal(t, 10.4, got[0].Data.Values.DKX.DKX)
	_, err := time.Parse(time.RFC3339Nano, got[0].TS)
	assert.NoError(t, err)
}

func TestHub_ReplaySince(t *testing.T) {
	hub := NewHub(10, nil)
	ctx := context.Background()
	for _, s := range []string{"A", "B", "C"} {
		require.NoError(t, hub.PublishSignal(ctx, signal(s, model.IndicatorMA)))
	}
	assert.Equal(t, int64(3), hub.Seq())

	conn := dial(t, hub, "?since=1")
	got := readEnvelopes(t, conn, 2)
	assert.Equal(t, int64(2), got[0].Seq)
	assert.Equal(t, "B", got[0].Data.Symbol)
	assert.Equal(t, int64(3), got[1].Seq)
}

func TestHub_ReplayReportsEvictedGap(t *testing.T) {
	hub := NewHub(2, nil)
	ctx := context.Background()
	for _, s := range []string{"A", "B", "C", "D"} {
		require.NoError(t, hub.PublishSignal(ctx, signal(s, model.IndicatorDKX)))
	}

	conn := dial(t, hub, "?since=0")
	got := readEnvelopes(t, conn, 3)
	assert.Equal(t, "gap", got[0].Type)
	assert.Equal(t, int64(1), got[0].From)
	assert.Equal(t, int64(2), got[0].To)
	assert.Equal(t, int64(3), got[1].Seq)
	assert.Equal(t, "D", got[2].Data.Symbol)
}

func TestHub_QueryFilter(t *testing.T) {
	hub := NewHub(10, nil)
	conn := dial(t, hub, "?symbols=AAA&indicators=dkx")
	ctx := context.Background()

	require.NoError(t, hub.PublishSignal(ctx, signal("BBB", model.IndicatorDKX)))
	require.NoError(t, hub.PublishSignal(ctx, signal("AAA", model.IndicatorMA)))
	require.NoError(t, hub.PublishSignal(ctx, signal("AAA", model.IndicatorDKX)))

	got := readEnvelopes(t, conn, 1)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].Seq)
}

func TestHub_FilterMessageAndPing(t *testing.T) {
	hub := NewHub(10, nil)
	conn := dial(t, hub, "")

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "FILTER", "symbols": []string{"ZZZ"}}))
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"ping": 42}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var pong struct {
		Type string `json:"type"`
		Ping int64  `json:"ping"`
	}
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong.Type)
	assert.Equal(t, int64(42), pong.Ping)

	// The filter was applied before the ping was answered.
	ctx := context.Background()
	require.NoError(t, hub.PublishSignal(ctx, signal("AAA", model.IndicatorDKX)))
	require.NoError(t, hub.PublishSignal(ctx, signal("ZZZ", model.IndicatorDKX)))
	got := readEnvelopes(t, conn, 1)
	assert.Equal(t, "ZZZ", got[0].Data.Symbol)
}

func TestHub_Disconnect(t *testing.T) {
	hub := NewHub(10, nil)
	conn := dial(t, hub, "")
	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)

	// Broadcasting with no clients still advances the sequence.
	require.NoError(t, hub.PublishSignal(context.Background(), signal("A", model.IndicatorDKX)))
	assert.Equal(t, int64(1), hub.Seq())
}

func TestRelay_Handle(t *testing.T) {
	hub := NewHub(10, nil)
	r := NewRelay(nil, hub)

	r.handle("not json")
	assert.Equal(t, int64(0), hub.Seq())

	data, err := json.Marshal(signal("A", model.IndicatorMA))
	require.NoError(t, err)
	r.handle(string(data))
	assert.Equal(t, int64(1), hub.Seq())
	assert.Equal(t, "pub:signal:*", Pattern())
}

func TestEnvelope(t *testing.T) {
	now := time.Date(2024, 3, 5, 7, 0, 0, 0, time.UTC)
	buf := envelope(7, now, []byte(`{"symbol":"A"}`))
	assert.JSONEq(t, `{"type":"signal","seq":7,"ts":"2024-03-05T07:00:00Z","data":{"symbol":"A"}}`, string(buf))
	assert.JSONEq(t, `{"type":"gap","from":3,"to":9}`, string(gapEnvelope(3, 9)))
}
