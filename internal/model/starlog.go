package model

import (
	"cmp"
	"encoding/json"
	"slices"
	"strings"
)

// StarLog is one link in the append-only hash chain.
//
// Events are opaque to this module: each element is kept as the raw JSON the
// server sent. The PreviousHash linkage is carried but never verified here.
type StarLog struct {
	LogHeader    string            `json:"log_header"`
	Nonce        int64             `json:"nonce"`
	Hash         string            `json:"hash"`
	PreviousHash string            `json:"previous_hash"`
	Difficulty   int64             `json:"difficulty"`
	Height       int64             `json:"height"`
	Version      int64             `json:"version"`
	Time         int64             `json:"time"`
	CreateTime   int64             `json:"create_time"`
	EventsHash   string            `json:"events_hash"`
	Events       []json.RawMessage `json:"events"`
}

// Clone returns a deep copy. The events slice and every event's bytes are
// copied, so the clone shares no memory with the receiver.
func (s StarLog) Clone() StarLog {
	c := s
	if s.Events != nil {
		c.Events = make([]json.RawMessage, len(s.Events))
		for i, ev := range s.Events {
			c.Events[i] = slices.Clone(ev)
		}
	}
	return c
}

// CloneAll deep-copies a slice of star logs. Returns an empty (non-nil) slice
// for empty input.
func CloneAll(logs []StarLog) []StarLog {
	out := make([]StarLog, len(logs))
	for i, l := range logs {
		out[i] = l.Clone()
	}
	return out
}

// Hashes returns the identities of the given star logs, in order.
func Hashes(logs []StarLog) []string {
	out := make([]string, len(logs))
	for i, l := range logs {
		out[i] = l.Hash
	}
	return out
}

// SortForDisplay orders star logs by height, then time, then hash.
// Caches impose no order; this is for deterministic presentation only.
func SortForDisplay(logs []StarLog) {
	slices.SortFunc(logs, func(a, b StarLog) int {
		return cmp.Or(
			cmp.Compare(a.Height, b.Height),
			cmp.Compare(a.Time, b.Time),
			strings.Compare(a.Hash, b.Hash),
		)
	})
}
