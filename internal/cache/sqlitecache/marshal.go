package sqlitecache

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/cryptoverse/internal/model"
)

// starLogColumns is the column list every star log query selects, in scan order.
const starLogColumns = `hash, previous_hash, log_header, nonce, difficulty, height, version, time, create_time, events_hash, events`

// marshalEvents converts the opaque events to JSON TEXT for storage.
// A nil slice is stored as "null" so it reads back as nil.
func marshalEvents(events []json.RawMessage) (string, error) {
	data, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("marshal events: %w", err)
	}
	return string(data), nil
}

// unmarshalEvents parses stored events JSON TEXT.
func unmarshalEvents(data string) ([]json.RawMessage, error) {
	if data == "" || data == "null" {
		return nil, nil
	}
	var events []json.RawMessage
	if err := json.Unmarshal([]byte(data), &events); err != nil {
		return nil, fmt.Errorf("unmarshal events: %w", err)
	}
	return events, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanStarLog reads one row selected with starLogColumns.
func scanStarLog(row rowScanner) (model.StarLog, error) {
	var (
		s      model.StarLog
		events string
	)
	err := row.Scan(
		&s.Hash,
		&s.PreviousHash,
		&s.LogHeader,
		&s.Nonce,
		&s.Difficulty,
		&s.Height,
		&s.Version,
		&s.Time,
		&s.CreateTime,
		&s.EventsHash,
		&events,
	)
	if err != nil {
		return model.StarLog{}, fmt.Errorf("scan star log: %w", err)
	}

	s.Events, err = unmarshalEvents(events)
	if err != nil {
		return model.StarLog{}, fmt.Errorf("star log %s: %w", s.Hash, err)
	}
	return s, nil
}

// collectStarLogs drains rows. Returns an empty (non-nil) slice when there are none.
func collectStarLogs(rows *sql.Rows) ([]model.StarLog, error) {
	defer rows.Close()

	logs := []model.StarLog{}
	for rows.Next() {
		s, err := scanStarLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate star logs: %w", err)
	}
	return logs, nil
}
