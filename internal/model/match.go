package model

// MatchType classifies how a remote record was matched to a local entity.
type MatchType string

const (
	MatchExactID    MatchType = "exact_id"
	MatchExactEmail MatchType = "exact_email"
	// MatchExactName is reported by the fuzzy audit, where neither external
	// ID nor email is available and a normalized full-name equality is the
	// strongest possible signal.
	MatchExactName MatchType = "exact_name"
	MatchFuzzy     MatchType = "fuzzy"
)

// Exact reports whether the match type outranks any fuzzy match regardless
// of score.
func (t MatchType) Exact() bool {
	return t == MatchExactID || t == MatchExactEmail || t == MatchExactName
}

// MatchCandidate is one possible local counterpart for a remote record.
// Multiple exact candidates are always all surfaced; callers must not
// collapse them silently.
type MatchCandidate struct {
	Entity *LocalEntity `json:"entity"`
	Type   MatchType    `json:"match_type"`
	Score  float64      `json:"score"`
}
