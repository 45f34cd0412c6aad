package sqlitecache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/roach88/cryptoverse/internal/cache"
	"github.com/roach88/cryptoverse/internal/model"
)

// WriteRuleset implements cache.Cache. The single ruleset row is upserted.
func (s *Store) WriteRuleset(ctx context.Context, r model.Ruleset) error {
	const op = "write ruleset"
	if err := cache.CheckContext(ctx, op); err != nil {
		return err
	}

	body, err := json.Marshal(r)
	if err != nil {
		return cache.StorageError(ctx, op, fmt.Errorf("marshal ruleset: %w", err))
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rulesets (id, body) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET body = excluded.body
	`, string(body))
	if err != nil {
		return cache.StorageError(ctx, op, err)
	}
	return nil
}

// WriteRecords implements cache.Cache.
//
// The whole batch is one transaction. Rows whose stored fingerprint equals the
// incoming one are left untouched by the upsert's WHERE clause.
func (s *Store) WriteRecords(ctx context.Context, logs ...model.StarLog) error {
	const op = "write records"
	if err := cache.CheckContext(ctx, op); err != nil {
		return err
	}
	if len(logs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cache.StorageError(ctx, op, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO star_logs
		(`+starLogColumns+`, fingerprint)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET
			previous_hash = excluded.previous_hash,
			log_header    = excluded.log_header,
			nonce         = excluded.nonce,
			difficulty    = excluded.difficulty,
			height        = excluded.height,
			version       = excluded.version,
			time          = excluded.time,
			create_time   = excluded.create_time,
			events_hash   = excluded.events_hash,
			events        = excluded.events,
			fingerprint   = excluded.fingerprint
		WHERE star_logs.fingerprint != excluded.fingerprint
	`)
	if err != nil {
		return cache.StorageError(ctx, op, fmt.Errorf("prepare upsert: %w", err))
	}
	defer stmt.Close()

	batch := cache.Dedupe(logs)
	var changed int64
	for _, l := range batch {
		events, err := marshalEvents(l.Events)
		if err != nil {
			return cache.StorageError(ctx, op, fmt.Errorf("star log %s: %w", l.Hash, err))
		}
		fp, err := model.Fingerprint(l)
		if err != nil {
			return cache.StorageError(ctx, op, fmt.Errorf("star log %s: %w", l.Hash, err))
		}

		res, err := stmt.ExecContext(ctx,
			l.Hash,
			l.PreviousHash,
			l.LogHeader,
			l.Nonce,
			l.Difficulty,
			l.Height,
			l.Version,
			l.Time,
			l.CreateTime,
			l.EventsHash,
			events,
			fp,
		)
		if err != nil {
			return cache.StorageError(ctx, op, fmt.Errorf("upsert star log %s: %w", l.Hash, err))
		}
		if n, err := res.RowsAffected(); err == nil {
			changed += n
		}
	}

	if err := tx.Commit(); err != nil {
		return cache.StorageError(ctx, op, fmt.Errorf("commit: %w", err))
	}

	slog.Debug("star logs written",
		"backend", "sqlite",
		"records", len(batch),
		"unchanged", int64(len(batch))-changed,
	)
	return nil
}
