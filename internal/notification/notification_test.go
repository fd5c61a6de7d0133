package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-monitor/internal/model"
)

func record() model.SignalRecord {
	return model.SignalRecord{
		Symbol:     "FG205",
		Market:     model.MarketFutures,
		SignalDate: "2024-03-05 15:00",
		Direction:  model.DirectionSell,
		Price:      1834,
		Indicator:  model.IndicatorDKX,
		Values:     model.NewIndicatorValues(model.IndicatorDKX, 1830.5, 1840.25),
	}
}

type failing struct{ calls int }

func (f *failing) Send(context.Context, Alert) error {
	f.calls++
	return errors.New("down")
}

func TestSignalAlert(t *testing.T) {
	a := SignalAlert(record())
	assert.Equal(t, AlertInfo, a.Level)
	assert.Equal(t, "DKX SELL FG205", a.Title)
	assert.Contains(t, a.Message, "2024-03-05 15:00")
	assert.Contains(t, a.Message, "1834.00")
	require.NotNil(t, a.Signal)
	assert.Equal(t, "FG205", a.Signal.Symbol)
}

func TestWebhookNotifier_PostsSignal(t *testing.T) {
	var got map[string]json.RawMessage
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		key = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	alerter := NewSignalAlerter(NewWebhookNotifier(srv.URL))
	require.NoError(t, alerter.PublishSignal(context.Background(), record()))

	var sig model.SignalRecord
	require.NoError(t, json.Unmarshal(got["signal"], &sig))
	assert.Equal(t, model.DirectionSell, sig.Direction)
	require.NotNil(t, sig.Values.DKX)
	assert.Equal(t, 1840.25, sig.Values.DKX.MADKX)
	assert.JSONEq(t, `"INFO"`, string(got["level"]))
	assert.JSONEq(t, `"signal"`, string(got["event"]))
	assert.Equal(t, IdempotencyKey(record()), key)
}

func TestWebhookNotifier_RetriesServerErrorOnce(t *testing.T) {
	defer func(d time.Duration) { webhookRetryDelay = d }(webhookRetryDelay)
	webhookRetryDelay = time.Millisecond

	tests := []struct {
		name     string
		statuses []int
		wantErr  string
		attempts int32
	}{
		{"recovers", []int{http.StatusBadGateway, http.StatusOK}, "", 2},
		{"still failing", []int{http.StatusBadGateway, http.StatusBadGateway}, "502", 2},
		{"client error not retried", []int{http.StatusBadRequest}, "400", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				i := atomic.AddInt32(&n, 1) - 1
				w.WriteHeader(tt.statuses[i])
			}))
			defer srv.Close()

			err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{Title: "x"})
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
			assert.Equal(t, tt.attempts, atomic.LoadInt32(&n))
		})
	}
}

func TestIdempotencyKey(t *testing.T) {
	a := record()
	b := record()
	b.Price = 1
	assert.Equal(t, IdempotencyKey(a), IdempotencyKey(b))
	b.Direction = model.DirectionBuy
	assert.NotEqual(t, IdempotencyKey(a), IdempotencyKey(b))
}

func TestTelegramNotifier_Send(t *testing.T) {
	var body struct {
		ChatID    string `json:"chat_id"`
		Text      string `json:"text"`
		ParseMode string `json:"parse_mode"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42")
	n.apiBase = srv.URL
	require.NoError(t, n.Send(context.Background(), SignalAlert(record())))

	assert.Equal(t, "42", body.ChatID)
	assert.Equal(t, "MarkdownV2", body.ParseMode)
	assert.True(t, strings.HasPrefix(body.Text, "📉"))
	assert.Contains(t, body.Text, `2024\-03\-05`)
}

func TestTelegramNotifier_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"api description", http.StatusBadRequest, `{"ok":false,"description":"Bad Request: chat not found"}`, "chat not found"},
		{"rate limited", http.StatusTooManyRequests, `{"ok":false,"parameters":{"retry_after":7}}`, "retry after 7s"},
		{"no body", http.StatusInternalServerError, ``, "status 500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			n := NewTelegramNotifier("TOKEN", "42")
			n.apiBase = srv.URL
			err := n.Send(context.Background(), Alert{Level: AlertWarning, Title: "t"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFormatTelegram(t *testing.T) {
	got := FormatTelegram(Alert{Level: AlertCritical, Title: "db down", Message: "retry in 5s."})
	assert.Equal(t, "🚨 *db down*\n\nretry in 5s\\.", got)
}

func TestSignalAlerter_TriesEveryNotifier(t *testing.T) {
	f1, f2 := &failing{}, &failing{}
	err := NewSignalAlerter(f1, NewLogNotifier(), f2).PublishSignal(context.Background(), record())
	require.Error(t, err)
	assert.Equal(t, 1, f1.calls)
	assert.Equal(t, 1, f2.calls)
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `a\_b\.c\!`, escapeMarkdown("a_b.c!"))
}
