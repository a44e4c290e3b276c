// Package data provides historical tick storage: a session replaying a
// backtest reads a trading day's ticks for a symbol from disk instead of
// requiring every request to embed the literal tick array.
package data

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tradelayout/strategy-engine/pkg/types"
)

// Store caches per-(symbol,date) tick files loaded from dataDir. Grounded
// on the teacher's internal/data/store.go (os.MkdirAll at construction,
// os.ReadFile+json.Unmarshal on first access, a sync.RWMutex-guarded cache
// keyed by "symbol_date"), adapted from OHLCV bars to raw ticks since the
// strategy session (internal/scheduler) consumes a tick stream directly.
type Store struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	dataDir string
	cache   map[string][]types.Tick
}

// NewStore creates a Store rooted at dataDir, creating the directory if it
// does not already exist.
func NewStore(logger *zap.Logger, dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("data: create dir %s: %w", dataDir, err)
	}
	return &Store{
		logger:  logger.Named("data"),
		dataDir: dataDir,
		cache:   make(map[string][]types.Tick),
	}, nil
}

func tickFileKey(symbol string, date time.Time) string {
	return fmt.Sprintf("%s_%s", symbol, date.Format("2006-01-02"))
}

func (s *Store) tickFilePath(symbol string, date time.Time) string {
	return filepath.Join(s.dataDir, tickFileKey(symbol, date)+".json")
}

// LoadTicks returns symbol's ticks for date (ascending by timestamp),
// loading and caching the backing file on first access. A missing file is
// reported as an error: unlike the expiry calendar, a session that asks
// for a historical day's ticks has nothing useful to fall back to.
func (s *Store) LoadTicks(ctx context.Context, symbol string, date time.Time) ([]types.Tick, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := tickFileKey(symbol, date)

	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	raw, err := os.ReadFile(s.tickFilePath(symbol, date))
	if err != nil {
		return nil, fmt.Errorf("data: load ticks for %s on %s: %w", symbol, date.Format("2006-01-02"), err)
	}

	var ticks []types.Tick
	if err := json.Unmarshal(raw, &ticks); err != nil {
		return nil, fmt.Errorf("data: parse ticks for %s: %w", symbol, err)
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i].Timestamp.Before(ticks[j].Timestamp) })

	s.mu.Lock()
	s.cache[key] = ticks
	s.mu.Unlock()
	return ticks, nil
}

// SaveTicks writes ticks to symbol's file for date and refreshes the cache.
func (s *Store) SaveTicks(symbol string, date time.Time, ticks []types.Tick) error {
	sorted := append([]types.Tick(nil), ticks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	raw, err := json.Marshal(sorted)
	if err != nil {
		return fmt.Errorf("data: marshal ticks for %s: %w", symbol, err)
	}
	if err := os.WriteFile(s.tickFilePath(symbol, date), raw, 0o644); err != nil {
		return fmt.Errorf("data: write ticks for %s: %w", symbol, err)
	}

	s.mu.Lock()
	s.cache[tickFileKey(symbol, date)] = sorted
	s.mu.Unlock()
	return nil
}

// AvailableSymbols scans dataDir for cached tick files and returns the
// distinct symbols found, derived from each file's "<symbol>_<date>.json"
// name.
func (s *Store) AvailableSymbols() ([]string, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("data: list %s: %w", s.dataDir, err)
	}

	seen := make(map[string]bool)
	var symbols []string
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".json")
		idx := strings.LastIndex(name, "_")
		if idx <= 0 {
			continue
		}
		symbol := name[:idx]
		if !seen[symbol] {
			seen[symbol] = true
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// ClearCache drops every cached tick file, forcing the next LoadTicks call
// to re-read from disk.
func (s *Store) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string][]types.Tick)
}
