package testutil

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/cryptoverse/internal/model"
)

// StarLog builds a minimal star log with the given identity and time.
// Height follows time so the two orderings agree unless a test overrides it.
func StarLog(hash string, time int64) model.StarLog {
	return model.StarLog{
		Hash:         hash,
		PreviousHash: "prev-" + hash,
		LogHeader:    "header-" + hash,
		Height:       time,
		Time:         time,
		Version:      1,
		EventsHash:   "events-" + hash,
		Events:       []json.RawMessage{json.RawMessage(`{"type":"reward"}`)},
	}
}

// Run builds n star logs with hashes "<prefix>0".."<prefix>n-1" and times
// starting at firstTime, one apart.
func Run(prefix string, n int, firstTime int64) []model.StarLog {
	logs := make([]model.StarLog, n)
	for i := range logs {
		logs[i] = StarLog(fmt.Sprintf("%s%d", prefix, i), firstTime+int64(i))
	}
	return logs
}
