package contract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-monitor/internal/model"
)

type names map[string]string

func (n names) SymbolName(_ context.Context, _ model.Market, symbol string) (string, error) {
	if name, ok := n[symbol]; ok {
		return name, nil
	}
	return "", model.ErrSymbolNotFound
}

const table = `{
  "FG": {"name": "Glass", "multiplier": 20, "min_tick": 1, "margin_rate": 0.12, "night_end": "23:00"},
  "au": {"name": "Gold", "multiplier": 1000, "min_tick": 0.02, "margin_rate": 0.08, "night_end": "02:30"},
  "AP": {"name": "Apple", "multiplier": 10, "min_tick": 1, "margin_rate": 0.1, "volume_scale": 10}
}`

func load(t *testing.T) *FileRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "futures_contracts.json")
	require.NoError(t, os.WriteFile(path, []byte(table), 0o644))
	r, err := LoadFile(path, names{"600000": "Pudong Bank"})
	require.NoError(t, err)
	return r
}

func TestGetContract_Futures(t *testing.T) {
	r := load(t)
	ctx := context.Background()

	c, err := r.GetContract(ctx, model.MarketFutures, "fg205")
	require.NoError(t, err)
	assert.Equal(t, "FG", c.Code)
	assert.Equal(t, "Glass", c.Name)
	assert.Equal(t, 20.0, c.Multiplier)
	assert.Equal(t, 0.12, c.MarginRate)
	assert.Equal(t, model.SessionNight2300, c.Session)
	assert.Equal(t, 1.0, c.VolumeScale)

	c, err = r.GetContract(ctx, model.MarketFutures, "AU2406")
	require.NoError(t, err)
	assert.Equal(t, model.SessionNight0230, c.Session)
	assert.Equal(t, 0.02, c.MinTick)

	c, err = r.GetContract(ctx, model.MarketFutures, "AP501")
	require.NoError(t, err)
	assert.Equal(t, model.SessionDayOnly, c.Session)
	assert.Equal(t, 10.0, c.VolumeScale)
}

func TestGetContract_Defaults(t *testing.T) {
	r := load(t)
	ctx := context.Background()

	c, err := r.GetContract(ctx, model.MarketFutures, "ZZ999")
	require.NoError(t, err)
	assert.Equal(t, 10.0, c.Multiplier)
	assert.Equal(t, 1.0, c.MinTick)
	assert.Equal(t, 0.10, c.MarginRate)
	assert.Equal(t, model.SessionDayOnly, c.Session)

	s, err := r.GetContract(ctx, model.MarketStock, "600000")
	require.NoError(t, err)
	assert.Equal(t, 100.0, s.Multiplier)
	assert.Equal(t, 0.01, s.MinTick)
	assert.Equal(t, 1.0, s.MarginRate)
	assert.Equal(t, "Pudong Bank", s.Name)
}

func TestLoadFile_MissingAndInvalid(t *testing.T) {
	r, err := LoadFile(filepath.Join(t.TempDir(), "absent.json"), nil)
	require.NoError(t, err)
	assert.Empty(t, r.Codes())

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = LoadFile(bad, nil)
	assert.Error(t, err)
}

func TestCodes(t *testing.T) {
	assert.Equal(t, []string{"AP", "AU", "FG"}, load(t).Codes())
}
