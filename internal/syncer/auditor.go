package syncer

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sparkprog/go-crmsync-backend/internal/model"
)

// Auditor runs the resolver's name strategies against an arbitrary external
// name list for ad-hoc review. The input carries neither external IDs nor
// emails, so normalized full-name equality is the exact tier and everything
// else is fuzzy. Every qualifying match is reported — one-to-many fan-out
// is the point of the report, never a single best guess.
type Auditor struct {
	store Store
	log   zerolog.Logger
}

func NewAuditor(store Store, log zerolog.Logger) *Auditor {
	return &Auditor{store: store, log: log.With().Str("component", "auditor").Logger()}
}

// Run matches each name pair against a snapshot of local contacts with
// aggregated activity stats. minScore <= 0 falls back to the default fuzzy
// threshold. Matches are ordered exact first, then descending score, then
// alphabetically by name.
func (a *Auditor) Run(ctx context.Context, names []model.NamePair, minScore float64) ([]model.AuditResult, error) {
	if minScore <= 0 {
		minScore = DefaultFuzzyThreshold
	}
	snapshot, err := a.store.ContactSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	a.log.Info().Int("names", len(names)).Int("contacts", len(snapshot)).Msg("fuzzy audit started")

	results := make([]model.AuditResult, 0, len(names))
	for _, pair := range names {
		query := NormalizeName(pair.FirstName + " " + pair.LastName)
		var matches []model.AuditMatch
		for _, contact := range snapshot {
			contactName := NormalizeName(contact.FirstName + " " + contact.LastName)
			if contactName == "" {
				continue
			}
			matchType := model.MatchFuzzy
			score := Similarity(query, contactName)
			if query != "" && query == contactName {
				matchType = model.MatchExactName
				score = 1.0
			} else if score < minScore {
				continue
			}
			matches = append(matches, model.AuditMatch{
				ContactID:          contact.ID,
				Type:               contact.Type,
				FirstName:          contact.FirstName,
				LastName:           contact.LastName,
				MatchType:          matchType,
				Score:              score,
				ParticipationCount: contact.ParticipationCount,
				HistoryCount:       contact.HistoryCount,
			})
		}
		sort.Slice(matches, func(i, j int) bool {
			ei, ej := matches[i].MatchType.Exact(), matches[j].MatchType.Exact()
			if ei != ej {
				return ei
			}
			if matches[i].Score != matches[j].Score {
				return matches[i].Score > matches[j].Score
			}
			ni := matches[i].LastName + " " + matches[i].FirstName
			nj := matches[j].LastName + " " + matches[j].FirstName
			if c := strings.Compare(ni, nj); c != 0 {
				return c < 0
			}
			return matches[i].ContactID < matches[j].ContactID
		})
		results = append(results, model.AuditResult{
			Query:      pair,
			MatchCount: len(matches),
			Matches:    matches,
		})
	}
	return results, nil
}
