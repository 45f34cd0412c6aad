package testutil

import (
	"context"
	"sync"

	"github.com/roach88/cryptoverse/internal/cache"
	"github.com/roach88/cryptoverse/internal/model"
	"github.com/roach88/cryptoverse/internal/status"
)

// FaultCache wraps a cache.Cache and fails chosen calls.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FaultCache struct {
	cache.Cache

	mu           sync.Mutex
	writeCalls   int
	writesOK     int
	failWriteOn  map[int]error
	latestErr    error
	rulesetErr   error
	writeRuleErr error
}

var _ cache.Cache = (*FaultCache)(nil)

// NewFaultCache wraps inner. With no faults configured it behaves as inner.
func NewFaultCache(inner cache.Cache) *FaultCache {
	return &FaultCache{Cache: inner, failWriteOn: map[int]error{}}
}

func storageFault(op string, err error) error {
	if err == nil {
		err = ErrInjected
	}
	return status.New(status.KindStorage, op, err)
}

// FailWriteOn makes the n-th WriteRecords call (1-based) fail without
// applying its batch.
func (c *FaultCache) FailWriteOn(n int, err error) *FaultCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failWriteOn[n] = storageFault("write records", err)
	return c
}

// FailLatest makes ReadRecordsLatest fail.
func (c *FaultCache) FailLatest(err error) *FaultCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latestErr = storageFault("read records latest", err)
	return c
}

// FailReadRuleset makes ReadRuleset fail.
func (c *FaultCache) FailReadRuleset(err error) *FaultCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rulesetErr = storageFault("read ruleset", err)
	return c
}

// FailWriteRuleset makes WriteRuleset fail.
func (c *FaultCache) FailWriteRuleset(err error) *FaultCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeRuleErr = storageFault("write ruleset", err)
	return c
}

// WriteRecords implements cache.Cache.
func (c *FaultCache) WriteRecords(ctx context.Context, logs ...model.StarLog) error {
	c.mu.Lock()
	c.writeCalls++
	err := c.failWriteOn[c.writeCalls]
	c.mu.Unlock()

	if err != nil {
		return err
	}
	if err := c.Cache.WriteRecords(ctx, logs...); err != nil {
		return err
	}

	c.mu.Lock()
	c.writesOK++
	c.mu.Unlock()
	return nil
}

// WriteRuleset implements cache.Cache.
func (c *FaultCache) WriteRuleset(ctx context.Context, r model.Ruleset) error {
	c.mu.Lock()
	err := c.writeRuleErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.Cache.WriteRuleset(ctx, r)
}

// ReadRuleset implements cache.Cache.
func (c *FaultCache) ReadRuleset(ctx context.Context) (model.Ruleset, error) {
	c.mu.Lock()
	err := c.rulesetErr
	c.mu.Unlock()
	if err != nil {
		return model.Ruleset{}, err
	}
	return c.Cache.ReadRuleset(ctx)
}

// ReadRecordsLatest implements cache.Cache.
func (c *FaultCache) ReadRecordsLatest(ctx context.Context) ([]model.StarLog, error) {
	c.mu.Lock()
	err := c.latestErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.Cache.ReadRecordsLatest(ctx)
}

// WriteCalls returns the number of WriteRecords calls.
func (c *FaultCache) WriteCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeCalls
}

// SuccessfulWrites returns the number of WriteRecords calls that succeeded.
func (c *FaultCache) SuccessfulWrites() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writesOK
}
