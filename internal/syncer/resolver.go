package syncer

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/sparkprog/go-crmsync-backend/internal/model"
)

// DefaultFuzzyThreshold applies when no per-type threshold is configured.
const DefaultFuzzyThreshold = 0.90

// Resolver matches remote records to local entities through tiered
// strategies: exact external ID, then exact email, then fuzzy name. Each
// tier short-circuits the ones below it.
type Resolver struct {
	store      Store
	thresholds map[model.EntityType]float64
	log        zerolog.Logger
}

func NewResolver(store Store, thresholds map[model.EntityType]float64, log zerolog.Logger) *Resolver {
	return &Resolver{
		store:      store,
		thresholds: thresholds,
		log:        log.With().Str("component", "resolver").Logger(),
	}
}

func (r *Resolver) threshold(t model.EntityType) float64 {
	if v, ok := r.thresholds[t]; ok && v > 0 {
		return v
	}
	return DefaultFuzzyThreshold
}

// Resolve returns ranked match candidates for a remote record. An empty
// result means the record is new. Multiple candidates in the same tier are
// all surfaced; the caller decides how to treat the ambiguity.
func (r *Resolver) Resolve(ctx context.Context, rec model.RemoteRecord, t model.EntityType) ([]model.MatchCandidate, error) {
	if ext := rec.ExternalID(); ext != "" {
		ent, err := r.store.FindByExternalID(ctx, t, ext)
		if err != nil {
			return nil, err
		}
		if ent != nil {
			return []model.MatchCandidate{{Entity: ent, Type: model.MatchExactID, Score: 1.0}}, nil
		}
	}

	// Activity kinds carry no emails or names worth matching on; an
	// unresolved external ID means a new row.
	if !t.IsContact() {
		return nil, nil
	}

	candidates, err := r.resolveByEmail(ctx, rec, t)
	if err != nil {
		return nil, err
	}
	if len(candidates) > 0 {
		return candidates, nil
	}

	return r.resolveFuzzy(ctx, rec, t)
}

func (r *Resolver) resolveByEmail(ctx context.Context, rec model.RemoteRecord, t model.EntityType) ([]model.MatchCandidate, error) {
	seen := map[int64]bool{}
	var out []model.MatchCandidate
	for _, child := range rec.Children("emails") {
		email := NormalizeEmail(child.Value)
		if email == "" {
			continue
		}
		matches, err := r.store.FindContactsByEmail(ctx, t, email)
		if err != nil {
			return nil, err
		}
		for _, ent := range matches {
			if seen[ent.ID] {
				continue
			}
			seen[ent.ID] = true
			out = append(out, model.MatchCandidate{Entity: ent, Type: model.MatchExactEmail, Score: 1.0})
		}
	}
	if len(out) > 1 {
		r.log.Debug().
			Str("entity_type", string(t)).
			Str("external_id", rec.ExternalID()).
			Int("candidates", len(out)).
			Msg("multiple exact email matches")
	}
	// Deterministic order when several locals share an email.
	sort.Slice(out, func(i, j int) bool { return out[i].Entity.ID < out[j].Entity.ID })
	return out, nil
}

func (r *Resolver) resolveFuzzy(ctx context.Context, rec model.RemoteRecord, t model.EntityType) ([]model.MatchCandidate, error) {
	name := NormalizeName(rec.String("first_name") + " " + rec.String("last_name"))
	if name == "" {
		return nil, nil
	}
	locals, err := r.store.ContactNames(ctx, t)
	if err != nil {
		return nil, err
	}
	threshold := r.threshold(t)
	var out []model.MatchCandidate
	for _, ent := range locals {
		score := Similarity(name, ent.FullName())
		if score >= threshold {
			out = append(out, model.MatchCandidate{Entity: ent, Type: model.MatchFuzzy, Score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Entity.FullName() < out[j].Entity.FullName()
	})
	return out, nil
}
