package model

// Ruleset is the server-supplied configuration governing validation and
// pagination limits.
//
// It is immutable once fetched for the duration of a sync session and replaced
// wholesale on re-fetch.
type Ruleset struct {
	DifficultyFudge    int `json:"difficulty_fudge"`
	DifficultyDuration int `json:"difficulty_duration"`
	DifficultyInterval int `json:"difficulty_interval"`
	DifficultyStart    int `json:"difficulty_start"`
	ShipReward         int `json:"ship_reward"`
	CartesianDigits    int `json:"cartesian_digits"`

	JumpCostMinimum     float64 `json:"jump_cost_min"`
	JumpCostMaximum     float64 `json:"jump_cost_max"`
	JumpDistanceMaximum float64 `json:"jump_distance_max"`

	// Page-size limits for paginated reads.
	StarLogsLimitMaximum int `json:"star_logs_max_limit"`
	EventsLimitMaximum   int `json:"events_max_limit"`
	ChainsLimitMaximum   int `json:"chains_max_limit"`
}

// Clone returns a copy of the ruleset. Ruleset holds only scalars, so a value
// copy is already independent; Clone exists for symmetry with StarLog.
func (r Ruleset) Clone() Ruleset {
	return r
}
