package rediscache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/cryptoverse/internal/cache"
	"github.com/roach88/cryptoverse/internal/model"
)

var _ cache.Cache = (*Store)(nil)

// Store is a cache.Cache kept in Redis.
type Store struct {
	rdb    *redis.Client
	prefix string
	owned  bool
}

// New wraps an existing client. The caller keeps ownership of rdb.
func New(rdb *redis.Client, prefix string) *Store {
	return &Store{
		rdb:    rdb,
		prefix: normalizePrefix(prefix),
	}
}

// Dial connects to the Redis server at addr and verifies it answers.
// The returned Store owns its client; Close releases it.
func Dial(ctx context.Context, addr string, db int, prefix string) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	s := New(rdb, prefix)
	s.owned = true
	return s, nil
}

// Close releases the client if Dial created it.
func (s *Store) Close() error {
	if !s.owned || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// WriteRuleset implements cache.Cache.
func (s *Store) WriteRuleset(ctx context.Context, r model.Ruleset) error {
	const op = "write ruleset"
	if err := cache.CheckContext(ctx, op); err != nil {
		return err
	}

	data, err := marshal(r)
	if err != nil {
		return cache.StorageError(ctx, op, fmt.Errorf("encode ruleset: %w", err))
	}
	if err := s.rdb.Set(ctx, s.KeyRuleset(), data, 0).Err(); err != nil {
		return cache.StorageError(ctx, op, err)
	}
	return nil
}

// WriteRecords implements cache.Cache.
//
// Every record is encoded before anything is sent. The record hash and both
// index entries are then written in one MULTI/EXEC, so a batch lands whole or
// not at all. ZADD on an existing member moves its score, which keeps the
// height and time indexes in step with a replaced record.
func (s *Store) WriteRecords(ctx context.Context, logs ...model.StarLog) error {
	const op = "write records"
	if err := cache.CheckContext(ctx, op); err != nil {
		return err
	}
	if len(logs) == 0 {
		return nil
	}

	batch := cache.Dedupe(logs)
	fields := make([]any, 0, len(batch)*2)
	heights := make([]redis.Z, 0, len(batch))
	times := make([]redis.Z, 0, len(batch))
	for _, l := range batch {
		data, err := marshal(l)
		if err != nil {
			return cache.StorageError(ctx, op, fmt.Errorf("encode star log %s: %w", l.Hash, err))
		}
		fields = append(fields, l.Hash, data)
		heights = append(heights, redis.Z{Score: float64(l.Height), Member: l.Hash})
		times = append(times, redis.Z{Score: float64(l.Time), Member: l.Hash})
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.KeyRecords(), fields...)
		pipe.ZAdd(ctx, s.KeyHeights(), heights...)
		pipe.ZAdd(ctx, s.KeyTimes(), times...)
		return nil
	})
	if err != nil {
		return cache.StorageError(ctx, op, err)
	}

	slog.Debug("star logs written", "backend", "redis", "records", len(batch))
	return nil
}

// ReadRuleset implements cache.Cache.
func (s *Store) ReadRuleset(ctx context.Context) (model.Ruleset, error) {
	const op = "read ruleset"
	if err := cache.CheckContext(ctx, op); err != nil {
		return model.Ruleset{}, err
	}

	data, err := s.rdb.Get(ctx, s.KeyRuleset()).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Ruleset{}, cache.NoRuleset()
	}
	if err != nil {
		return model.Ruleset{}, cache.StorageError(ctx, op, err)
	}

	var r model.Ruleset
	if err := unmarshal(data, &r); err != nil {
		return model.Ruleset{}, cache.StorageError(ctx, op, fmt.Errorf("decode ruleset: %w", err))
	}
	return r, nil
}

// ReadRecords implements cache.Cache.
func (s *Store) ReadRecords(ctx context.Context, hashes ...string) ([]model.StarLog, error) {
	const op = "read records"
	if err := cache.CheckContext(ctx, op); err != nil {
		return nil, err
	}
	if len(hashes) == 0 {
		return s.readAll(ctx, op)
	}

	unique := make([]string, 0, len(hashes))
	seen := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		if !seen[h] {
			seen[h] = true
			unique = append(unique, h)
		}
	}

	vals, err := s.rdb.HMGet(ctx, s.KeyRecords(), unique...).Result()
	if err != nil {
		return nil, cache.StorageError(ctx, op, err)
	}
	return s.decodeAll(ctx, op, vals)
}

// ReadRecordsAtHeight implements cache.Cache.
func (s *Store) ReadRecordsAtHeight(ctx context.Context, heights ...int64) ([]model.StarLog, error) {
	const op = "read records at height"
	if err := cache.CheckContext(ctx, op); err != nil {
		return nil, err
	}
	if len(heights) == 0 {
		return s.readAll(ctx, op)
	}

	args := make([]any, 0, len(heights))
	seen := make(map[int64]bool, len(heights))
	for _, h := range heights {
		if !seen[h] {
			seen[h] = true
			args = append(args, h)
		}
	}

	vals, err := atScoresScript.Run(ctx, s.rdb, []string{s.KeyHeights(), s.KeyRecords()}, args...).Slice()
	if err != nil {
		return nil, cache.StorageError(ctx, op, err)
	}
	return s.decodeAll(ctx, op, vals)
}

// ReadRecordsHighest implements cache.Cache.
func (s *Store) ReadRecordsHighest(ctx context.Context) ([]model.StarLog, error) {
	const op = "read records highest"
	if err := cache.CheckContext(ctx, op); err != nil {
		return nil, err
	}
	return s.readTop(ctx, op, s.KeyHeights())
}

// ReadRecordsLatest implements cache.Cache.
func (s *Store) ReadRecordsLatest(ctx context.Context) ([]model.StarLog, error) {
	const op = "read records latest"
	if err := cache.CheckContext(ctx, op); err != nil {
		return nil, err
	}
	return s.readTop(ctx, op, s.KeyTimes())
}

func (s *Store) readAll(ctx context.Context, op string) ([]model.StarLog, error) {
	vals, err := s.rdb.HVals(ctx, s.KeyRecords()).Result()
	if err != nil {
		return nil, cache.StorageError(ctx, op, err)
	}
	out := make([]model.StarLog, 0, len(vals))
	for _, v := range vals {
		l, err := decodeStarLog(v)
		if err != nil {
			return nil, cache.StorageError(ctx, op, err)
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *Store) readTop(ctx context.Context, op, index string) ([]model.StarLog, error) {
	vals, err := topScoreScript.Run(ctx, s.rdb, []string{index, s.KeyRecords()}).Slice()
	if err != nil {
		return nil, cache.StorageError(ctx, op, err)
	}
	return s.decodeAll(ctx, op, vals)
}

// decodeAll decodes HMGET-shaped replies. Nil entries are absent records.
func (s *Store) decodeAll(ctx context.Context, op string, vals []any) ([]model.StarLog, error) {
	out := make([]model.StarLog, 0, len(vals))
	for _, v := range vals {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return nil, cache.StorageError(ctx, op, fmt.Errorf("unexpected reply type %T", v))
		}
		l, err := decodeStarLog(str)
		if err != nil {
			return nil, cache.StorageError(ctx, op, err)
		}
		out = append(out, l)
	}
	return out, nil
}

func decodeStarLog(data string) (model.StarLog, error) {
	var l model.StarLog
	if err := unmarshal([]byte(data), &l); err != nil {
		return model.StarLog{}, fmt.Errorf("decode star log: %w", err)
	}
	return l, nil
}
