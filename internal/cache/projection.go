package cache

import (
	"github.com/roach88/cryptoverse/internal/model"
)

// orderKey extracts the ordering key a projection maximizes over.
type orderKey func(model.StarLog) int64

func byHeight(l model.StarLog) int64 { return l.Height }
func byTime(l model.StarLog) int64   { return l.Time }

// selectMax returns clones of every record sharing the maximum key.
// Ties are all returned. An empty input yields an empty (non-nil) slice.
func selectMax(logs []model.StarLog, key orderKey) []model.StarLog {
	out := []model.StarLog{}
	if len(logs) == 0 {
		return out
	}

	best := key(logs[0])
	for _, l := range logs[1:] {
		if k := key(l); k > best {
			best = k
		}
	}
	for _, l := range logs {
		if key(l) == best {
			out = append(out, l.Clone())
		}
	}
	return out
}

// filterClone returns clones of the records matching keep.
func filterClone(logs []model.StarLog, keep func(model.StarLog) bool) []model.StarLog {
	out := []model.StarLog{}
	for _, l := range logs {
		if keep(l) {
			out = append(out, l.Clone())
		}
	}
	return out
}

// Cursor returns the freshness cursor for a ReadRecordsLatest result: the Time
// of the latest records, or 0 when there are none.
func Cursor(latest []model.StarLog) int64 {
	if len(latest) == 0 {
		return 0
	}
	return latest[0].Time
}

// contentChanged reports whether a replacement differs from the stored record.
// Fingerprint failures (malformed event JSON) count as a change.
func contentChanged(old, replacement model.StarLog) bool {
	a, errA := model.Fingerprint(old)
	b, errB := model.Fingerprint(replacement)
	if errA != nil || errB != nil {
		return true
	}
	return a != b
}
