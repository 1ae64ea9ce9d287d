package model

// NamePair is one row of an external name list submitted to the fuzzy audit.
type NamePair struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ContactSnapshot is a read-only view of one local contact with aggregated
// activity stats, loaded once per audit run.
type ContactSnapshot struct {
	ID                 int64      `json:"id"`
	Type               EntityType `json:"entity_type"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	Emails             []string   `json:"emails,omitempty"`
	ParticipationCount int        `json:"participation_count"`
	HistoryCount       int        `json:"history_count"`
}

// AuditMatch is one local contact matched against an audited name.
type AuditMatch struct {
	ContactID          int64      `json:"contact_id"`
	Type               EntityType `json:"entity_type"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	MatchType          MatchType  `json:"match_type"`
	Score              float64    `json:"score"`
	ParticipationCount int        `json:"participation_count"`
	HistoryCount       int        `json:"history_count"`
}

// AuditResult reports every qualifying match for one input name. MatchCount
// exposes one-to-many fan-out instead of a single best guess.
type AuditResult struct {
	Query      NamePair     `json:"query"`
	MatchCount int          `json:"match_count"`
	Matches    []AuditMatch `json:"matches"`
}
