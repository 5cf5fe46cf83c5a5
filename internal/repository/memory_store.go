package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/models"
)

// MemoryStore is the in-process BarStore backend, selected with
// storage.backend "memory". It honors the same write contract as the
// ClickHouse backend (individual rejects, last-writer-wins upserts) and
// is what the deterministic tests run against.
type MemoryStore struct {
	mu         sync.RWMutex
	partitions map[string]map[int64]models.Bar
	symbols    map[string]models.Symbol
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		partitions: make(map[string]map[int64]models.Bar),
		symbols:    make(map[string]models.Symbol),
	}
}

func (s *MemoryStore) EnsureSymbol(_ context.Context, sym models.Symbol) error {
	if err := checkSymbolName(sym.Name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.partitions[sym.Name]; !ok {
		s.partitions[sym.Name] = make(map[int64]models.Bar)
	}
	s.symbols[sym.Name] = sym
	return nil
}

func (s *MemoryStore) WriteBars(_ context.Context, symbol string, bars []models.Bar) (int, error) {
	if err := checkSymbolName(symbol); err != nil {
		return 0, err
	}
	valid, rejected := prepareBatch(bars)
	if len(valid) == 0 {
		return 0, batchError(rejected)
	}
	s.mu.Lock()
	part, ok := s.partitions[symbol]
	if !ok {
		part = make(map[int64]models.Bar)
		s.partitions[symbol] = part
	}
	for _, b := range valid {
		part[b.Timestamp.UTC().Unix()] = b
	}
	s.mu.Unlock()
	return len(valid), batchError(rejected)
}

func (s *MemoryStore) ReadBars(_ context.Context, symbol string, r models.TimeRange) ([]models.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Bar
	for key, b := range s.partitions[symbol] {
		if t := time.Unix(key, 0).UTC(); r.Contains(t) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *MemoryStore) Timestamps(_ context.Context, symbol string, r models.TimeRange) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []time.Time
	for key := range s.partitions[symbol] {
		if t := time.Unix(key, 0).UTC(); r.Contains(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (s *MemoryStore) MaxTimestamp(_ context.Context, symbol string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max int64
	found := false
	for key := range s.partitions[symbol] {
		if !found || key > max {
			max = key
			found = true
		}
	}
	if !found {
		return time.Time{}, false, nil
	}
	return time.Unix(max, 0).UTC(), true, nil
}

func (s *MemoryStore) Symbols(_ context.Context) ([]models.Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Symbol, 0, len(s.symbols))
	for _, sym := range s.symbols {
		out = append(out, sym)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) Health(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
