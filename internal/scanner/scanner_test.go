package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-monitor/internal/indicator"
	"signal-monitor/internal/markethours"
	"signal-monitor/internal/model"
	"signal-monitor/internal/strategy"
)

type fakeLoader struct {
	series map[string]model.BarSeries
}

func (f fakeLoader) Load(_ context.Context, q model.BarQuery, _ model.ContractInfo) (model.BarSeries, error) {
	s, ok := f.series[q.Symbol]
	if !ok {
		return model.BarSeries{}, model.ErrNoData
	}
	return s, nil
}

type contracts struct{}

func (contracts) GetContract(_ context.Context, market model.Market, symbol string) (model.ContractInfo, error) {
	return model.DefaultContract(market, symbol), nil
}

type memStore struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (m *memStore) SaveSignal(_ context.Context, rec model.SignalRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	key := rec.Symbol + rec.SignalDate + string(rec.Direction) + string(rec.Indicator)
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *memStore) History(context.Context, int) ([]model.SignalRecord, error) { return nil, nil }

type recorder struct {
	mu   sync.Mutex
	recs []model.SignalRecord
}

func (r *recorder) PublishSignal(_ context.Context, rec model.SignalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

// zigzag has a dead cross at bar 3 and a golden cross at bar 5 for MA(1,2).
func zigzag(symbol string) model.BarSeries {
	closes := []float64{1, 2, 3, 2, 1, 2, 3}
	t0 := time.Date(2024, 3, 4, 15, 0, 0, 0, markethours.CST)
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{TS: t0.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return model.BarSeries{Symbol: symbol, Period: model.PeriodDaily, Bars: bars}
}

func newService(store model.SignalStore, pubs ...model.SignalPublisher) *Service {
	loader := fakeLoader{series: map[string]model.BarSeries{"AAA": zigzag("AAA"), "BBB": zigzag("BBB")}}
	return NewService(Config{Workers: 2, ChartWindow: 4}, loader, contracts{}, store, nil, pubs...)
}

func TestDetect_LookbackAndOffsets(t *testing.T) {
	svc := newService(nil)
	req := Request{Symbols: []string{"AAA"}, Indicator: indicator.MAConfig(1, 2), Scope: strategy.Lookback(0)}

	batch, err := svc.Detect(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, batch.Results, 1)
	sigs := batch.Results[0].Signals
	require.Len(t, sigs, 2)
	assert.Equal(t, model.DirectionSell, sigs[0].Direction)
	assert.Equal(t, 3, sigs[0].Offset)
	assert.Equal(t, model.DirectionBuy, sigs[1].Direction)
	assert.Equal(t, 1, sigs[1].Offset)
	require.NotNil(t, sigs[1].Values.MA)
	assert.Len(t, batch.Results[0].ChartData, 4)

	req.Scope = strategy.Lookback(2)
	batch, err = svc.Detect(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, batch.Results[0].Signals, 1)
	assert.Equal(t, model.DirectionBuy, batch.Results[0].Signals[0].Direction)
}

func TestDetect_IsolatesFailures(t *testing.T) {
	svc := newService(nil)
	batch, err := svc.Detect(context.Background(), Request{
		Symbols:   []string{"MISSING", "AAA"},
		Indicator: indicator.MAConfig(1, 2),
	})
	require.NoError(t, err)
	require.Len(t, batch.Results, 1)
	assert.Equal(t, "AAA", batch.Results[0].Symbol)
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, "MISSING", batch.Failures[0].Symbol)
}

func TestDetect_PublishesOnlyNewSignals(t *testing.T) {
	store := &memStore{}
	pub := &recorder{}
	svc := newService(store, pub)
	req := Request{Symbols: []string{"AAA", "BBB"}, Indicator: indicator.MAConfig(1, 2)}

	_, err := svc.Detect(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, pub.recs, 4)

	_, err = svc.Detect(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, pub.recs, 4, "stored signals are not republished")
}

func TestDetect_StoreErrorDoesNotFailSymbol(t *testing.T) {
	pub := &recorder{}
	svc := newService(&memStore{err: errors.New("disk full")}, pub)
	batch, err := svc.Detect(context.Background(), Request{Symbols: []string{"AAA"}, Indicator: indicator.MAConfig(1, 2)})
	require.NoError(t, err)
	assert.Len(t, batch.Results, 1)
	assert.Empty(t, pub.recs)
}

func TestDetect_NoStorePublishesEverything(t *testing.T) {
	pub := &recorder{}
	svc := newService(nil, pub)
	_, err := svc.Detect(context.Background(), Request{Symbols: []string{"AAA"}, Indicator: indicator.MAConfig(1, 2)})
	require.NoError(t, err)
	assert.Len(t, pub.recs, 2)
}

func TestDetect_Validation(t *testing.T) {
	svc := newService(nil)
	_, err := svc.Detect(context.Background(), Request{})
	assert.Error(t, err)
	_, err = svc.Detect(context.Background(), Request{Symbols: []string{"AAA"}, Indicator: indicator.MAConfig(-1, 2)})
	assert.Error(t, err)
}
