// Package contract resolves per-symbol contract parameters from a JSON
// contract table keyed by product code.
package contract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"signal-monitor/internal/model"
)

// Entry is one product in the contract table.
type Entry struct {
	Name        string  `json:"name"`
	Multiplier  float64 `json:"multiplier"`
	MinTick     float64 `json:"min_tick"`
	MarginRate  float64 `json:"margin_rate"`
	NightEnd    string  `json:"night_end"` // "23:00", "01:00", "02:30" or empty
	VolumeScale float64 `json:"volume_scale"`
}

// NameLookup resolves display names for symbols without a table entry.
type NameLookup interface {
	SymbolName(ctx context.Context, market model.Market, symbol string) (string, error)
}

// FileRepository serves contracts from an in-memory table loaded once.
// Unknown futures codes and all stocks get market defaults.
type FileRepository struct {
	entries map[string]Entry
	names   NameLookup
}

// NewRepository creates a repository over entries keyed by product code.
// names may be nil.
func NewRepository(entries map[string]Entry, names NameLookup) *FileRepository {
	norm := make(map[string]Entry, len(entries))
	for code, e := range entries {
		norm[strings.ToUpper(code)] = e
	}
	return &FileRepository{entries: norm, names: names}
}

// LoadFile reads the contract table at path. A missing file yields an empty
// table, so every futures symbol gets the defaults.
func LoadFile(path string, names NameLookup) (*FileRepository, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("[contract] %s not found, using defaults for every contract", path)
		return NewRepository(nil, names), nil
	}
	if err != nil {
		return nil, fmt.Errorf("contract: read %s: %w", path, err)
	}
	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("contract: parse %s: %w", path, err)
	}
	log.Printf("[contract] loaded %d contracts from %s", len(entries), path)
	return NewRepository(entries, names), nil
}

// GetContract implements model.ContractRepository.
func (r *FileRepository) GetContract(ctx context.Context, market model.Market, symbol string) (model.ContractInfo, error) {
	info := model.DefaultContract(market, symbol)
	if market == model.MarketFutures {
		if e, ok := r.entries[info.Code]; ok {
			info.Name = e.Name
			info.Multiplier = e.Multiplier
			info.MinTick = e.MinTick
			info.MarginRate = e.MarginRate
			info.Session = model.SessionFromNightEnd(e.NightEnd)
			info.VolumeScale = e.VolumeScale
			info = info.Normalized()
		}
	}
	if (info.Name == "" || info.Name == symbol) && r.names != nil {
		if name, err := r.names.SymbolName(ctx, market, symbol); err == nil && name != "" {
			info.Name = name
		}
	}
	return info, nil
}

// Codes returns the product codes in the table, sorted.
func (r *FileRepository) Codes() []string {
	codes := make([]string, 0, len(r.entries))
	for c := range r.entries {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
