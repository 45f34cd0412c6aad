package sqlitecache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/cryptoverse/internal/cache"
	"github.com/roach88/cryptoverse/internal/model"
)

// maxInParams bounds the IN-list size of a single statement. Larger filters are
// split into chunks executed inside one read transaction.
const maxInParams = 500

// orderBy keeps output deterministic across runs.
const orderBy = `ORDER BY height ASC, time ASC, hash COLLATE BINARY ASC`

// ReadRuleset implements cache.Cache.
func (s *Store) ReadRuleset(ctx context.Context) (model.Ruleset, error) {
	const op = "read ruleset"
	if err := cache.CheckContext(ctx, op); err != nil {
		return model.Ruleset{}, err
	}

	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM rulesets WHERE id = 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Ruleset{}, cache.NoRuleset()
	}
	if err != nil {
		return model.Ruleset{}, cache.StorageError(ctx, op, err)
	}

	var r model.Ruleset
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return model.Ruleset{}, cache.StorageError(ctx, op, fmt.Errorf("unmarshal ruleset: %w", err))
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

	args := make([]any, 0, len(hashes))
	seen := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		if !seen[h] {
			seen[h] = true
			args = append(args, h)
		}
	}
	return s.readIn(ctx, op, "hash", args)
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
	return s.readIn(ctx, op, "height", args)
}

// ReadRecordsHighest implements cache.Cache.
// MAX over an empty table is NULL, which matches no rows.
func (s *Store) ReadRecordsHighest(ctx context.Context) ([]model.StarLog, error) {
	const op = "read records highest"
	if err := cache.CheckContext(ctx, op); err != nil {
		return nil, err
	}
	return s.query(ctx, op, `
		SELECT `+starLogColumns+`
		FROM star_logs
		WHERE height = (SELECT MAX(height) FROM star_logs)
		`+orderBy)
}

// ReadRecordsLatest implements cache.Cache.
// An empty table yields no rows; the cursor baseline of 0 is the caller's.
func (s *Store) ReadRecordsLatest(ctx context.Context) ([]model.StarLog, error) {
	const op = "read records latest"
	if err := cache.CheckContext(ctx, op); err != nil {
		return nil, err
	}
	return s.query(ctx, op, `
		SELECT `+starLogColumns+`
		FROM star_logs
		WHERE time = (SELECT MAX(time) FROM star_logs)
		`+orderBy)
}

// Count returns the number of stored star logs.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM star_logs`).Scan(&n); err != nil {
		return 0, cache.StorageError(ctx, "count records", err)
	}
	return n, nil
}

func (s *Store) readAll(ctx context.Context, op string) ([]model.StarLog, error) {
	return s.query(ctx, op, `SELECT `+starLogColumns+` FROM star_logs `+orderBy)
}

func (s *Store) query(ctx context.Context, op, query string, args ...any) ([]model.StarLog, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, cache.StorageError(ctx, op, err)
	}
	logs, err := collectStarLogs(rows)
	if err != nil {
		return nil, cache.StorageError(ctx, op, err)
	}
	return logs, nil
}

// readIn selects rows whose column is in values. Chunks share one read
// transaction so the result is a single snapshot.
func (s *Store) readIn(ctx context.Context, op, column string, values []any) ([]model.StarLog, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, cache.StorageError(ctx, op, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	out := []model.StarLog{}
	for start := 0; start < len(values); start += maxInParams {
		chunk := values[start:min(start+maxInParams, len(values))]
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := tx.QueryContext(ctx, `
			SELECT `+starLogColumns+`
			FROM star_logs
			WHERE `+column+` IN (`+placeholders+`)
			`+orderBy, chunk...)
		if err != nil {
			return nil, cache.StorageError(ctx, op, err)
		}
		logs, err := collectStarLogs(rows)
		if err != nil {
			return nil, cache.StorageError(ctx, op, err)
		}
		out = append(out, logs...)
	}

	if err := tx.Commit(); err != nil {
		return nil, cache.StorageError(ctx, op, fmt.Errorf("commit: %w", err))
	}
	return out, nil
}
