package cache

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/cryptoverse/internal/model"
)

// Memory is the reference in-memory Cache.
//
// It keeps the whole ledger in RAM, so it suits tests and short sessions
// rather than a full chain. A single RWMutex gives atomic batch writes and
// snapshot-consistent reads.
//
// Thread-safety: Memory is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	ruleset *model.Ruleset
	logs    []model.StarLog // stored order carries no meaning
	index   map[string]int  // hash -> position in logs
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{index: make(map[string]int)}
}

// WriteRuleset implements Cache.
func (m *Memory) WriteRuleset(ctx context.Context, r model.Ruleset) error {
	if err := CheckContext(ctx, "write ruleset"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rc := r.Clone()
	m.ruleset = &rc
	return nil
}

// WriteRecords implements Cache. A record with a stored Hash replaces the
// stored one in place.
func (m *Memory) WriteRecords(ctx context.Context, logs ...model.StarLog) error {
	if err := CheckContext(ctx, "write records"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range logs {
		stored := l.Clone()
		pos, exists := m.index[l.Hash]
		if !exists {
			m.index[l.Hash] = len(m.logs)
			m.logs = append(m.logs, stored)
			continue
		}

		if slog.Default().Enabled(ctx, slog.LevelDebug) {
			slog.Debug("star log replaced",
				"hash", l.Hash,
				"changed", contentChanged(m.logs[pos], stored),
			)
		}
		m.logs[pos] = stored
	}
	return nil
}

// ReadRuleset implements Cache.
func (m *Memory) ReadRuleset(ctx context.Context) (model.Ruleset, error) {
	if err := CheckContext(ctx, "read ruleset"); err != nil {
		return model.Ruleset{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ruleset == nil {
		return model.Ruleset{}, NoRuleset()
	}
	return m.ruleset.Clone(), nil
}

// ReadRecords implements Cache.
func (m *Memory) ReadRecords(ctx context.Context, hashes ...string) ([]model.StarLog, error) {
	if err := CheckContext(ctx, "read records"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(hashes) == 0 {
		return model.CloneAll(m.logs), nil
	}

	out := make([]model.StarLog, 0, len(hashes))
	seen := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		if seen[h] {
			continue
		}
		seen[h] = true
		if pos, ok := m.index[h]; ok {
			out = append(out, m.logs[pos].Clone())
		}
	}
	return out, nil
}

// ReadRecordsAtHeight implements Cache.
func (m *Memory) ReadRecordsAtHeight(ctx context.Context, heights ...int64) ([]model.StarLog, error) {
	if err := CheckContext(ctx, "read records at height"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(heights) == 0 {
		return model.CloneAll(m.logs), nil
	}
	return filterClone(m.logs, func(l model.StarLog) bool {
		return slices.Contains(heights, l.Height)
	}), nil
}

// ReadRecordsHighest implements Cache.
func (m *Memory) ReadRecordsHighest(ctx context.Context) ([]model.StarLog, error) {
	if err := CheckContext(ctx, "read records highest"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return selectMax(m.logs, byHeight), nil
}

// ReadRecordsLatest implements Cache.
func (m *Memory) ReadRecordsLatest(ctx context.Context) ([]model.StarLog, error) {
	if err := CheckContext(ctx, "read records latest"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return selectMax(m.logs, byTime), nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.logs)
}
