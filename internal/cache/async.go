package cache

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/cryptoverse/internal/model"
	"github.com/roach88/cryptoverse/internal/status"
)

// Result is the completion signal of an asynchronous cache call.
type Result[T any] struct {
	Status status.Status
	Value  T
	Err    error
}

// Go runs fn on its own goroutine and returns a channel that delivers exactly
// one Result and is then closed. A panic inside fn is recovered and reported
// as a kind storage error rather than crashing the caller.
func Go[T any](ctx context.Context, op string, fn func(context.Context) (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		defer close(ch)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("cache operation panicked", "op", op, "panic", r)
				err := status.New(status.KindStorage, op, fmt.Errorf("panic: %v", r))
				ch <- Result[T]{Status: status.Error, Err: err}
			}
		}()

		v, err := fn(ctx)
		ch <- Result[T]{Status: status.Of(err), Value: v, Err: err}
	}()
	return ch
}

// Async adapts a Cache to the completion-signal style: every call returns
// immediately with a single-shot channel.
//
// Independent calls may be issued without waiting for each other. They
// resolve in the order they finish, not the order they were issued.
type Async struct {
	c Cache
}

// NewAsync wraps c.
func NewAsync(c Cache) *Async {
	return &Async{c: c}
}

// Cache returns the wrapped cache.
func (a *Async) Cache() Cache {
	return a.c
}

// WriteRuleset is the asynchronous form of Cache.WriteRuleset.
func (a *Async) WriteRuleset(ctx context.Context, r model.Ruleset) <-chan Result[struct{}] {
	return Go(ctx, "write ruleset", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.c.WriteRuleset(ctx, r)
	})
}

// WriteRecords is the asynchronous form of Cache.WriteRecords. The batch is
// copied before it is handed to the worker goroutine, so the caller may reuse
// logs as soon as WriteRecords returns.
func (a *Async) WriteRecords(ctx context.Context, logs ...model.StarLog) <-chan Result[struct{}] {
	logs = model.CloneAll(logs)
	return Go(ctx, "write records", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.c.WriteRecords(ctx, logs...)
	})
}

// ReadRuleset is the asynchronous form of Cache.ReadRuleset.
func (a *Async) ReadRuleset(ctx context.Context) <-chan Result[model.Ruleset] {
	return Go(ctx, "read ruleset", a.c.ReadRuleset)
}

// ReadRecords is the asynchronous form of Cache.ReadRecords.
func (a *Async) ReadRecords(ctx context.Context, hashes ...string) <-chan Result[[]model.StarLog] {
	hashes = slices.Clone(hashes)
	return Go(ctx, "read records", func(ctx context.Context) ([]model.StarLog, error) {
		return a.c.ReadRecords(ctx, hashes...)
	})
}

// ReadRecordsAtHeight is the asynchronous form of Cache.ReadRecordsAtHeight.
func (a *Async) ReadRecordsAtHeight(ctx context.Context, heights ...int64) <-chan Result[[]model.StarLog] {
	heights = slices.Clone(heights)
	return Go(ctx, "read records at height", func(ctx context.Context) ([]model.StarLog, error) {
		return a.c.ReadRecordsAtHeight(ctx, heights...)
	})
}

// ReadRecordsHighest is the asynchronous form of Cache.ReadRecordsHighest.
func (a *Async) ReadRecordsHighest(ctx context.Context) <-chan Result[[]model.StarLog] {
	return Go(ctx, "read records highest", a.c.ReadRecordsHighest)
}

// ReadRecordsLatest is the asynchronous form of Cache.ReadRecordsLatest.
func (a *Async) ReadRecordsLatest(ctx context.Context) <-chan Result[[]model.StarLog] {
	return Go(ctx, "read records latest", a.c.ReadRecordsLatest)
}
