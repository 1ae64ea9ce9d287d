package syncer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sparkprog/go-crmsync-backend/internal/model"
)

// Coordinator applies one resolved remote record to the local store. Every
// record is one local transaction: a failure rolls back that record only
// and is reported as a tagged outcome, never aborting the batch.
type Coordinator struct {
	store Store
	log   zerolog.Logger
}

func NewCoordinator(store Store, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		store: store,
		log:   log.With().Str("component", "upsert").Logger(),
	}
}

// Apply decides create/update/skip for one record given its match
// candidates and performs the write. The returned error carries detail for
// ambiguous, skipped and failed outcomes; it is nil for created, updated
// and unchanged.
func (c *Coordinator) Apply(ctx context.Context, rec model.RemoteRecord, candidates []model.MatchCandidate, t model.EntityType) (Outcome, error) {
	ext := rec.ExternalID()
	if ext == "" {
		return OutcomeSkipped, &ValidationError{Field: "id", Message: "remote record has no external id"}
	}

	var exact []model.MatchCandidate
	for _, cand := range candidates {
		if cand.Type.Exact() {
			exact = append(exact, cand)
		}
	}

	switch {
	case len(candidates) == 0:
		return c.create(ctx, rec, t, ext)
	case len(exact) == 1:
		return c.update(ctx, rec, t, ext, exact[0])
	case len(exact) > 1:
		return OutcomeAmbiguous, &AmbiguousMatchError{ExternalID: ext, Candidates: exact}
	case len(candidates) == 1:
		return c.update(ctx, rec, t, ext, candidates[0])
	default:
		// Several fuzzy candidates cleared the threshold; never guess.
		return OutcomeAmbiguous, &AmbiguousMatchError{ExternalID: ext, Candidates: candidates}
	}
}

func (c *Coordinator) create(ctx context.Context, rec model.RemoteRecord, t model.EntityType, ext string) (Outcome, error) {
	attrs := map[string]string{}
	for _, d := range Descriptors(t) {
		val := d.normalize(rec.String(d.RemoteKey))
		if d.Required && val == "" {
			return OutcomeSkipped, &ValidationError{ExternalID: ext, Field: d.RemoteKey, Message: "required field is empty"}
		}
		attrs[d.LocalAttr] = val
	}

	ent := &model.LocalEntity{Type: t, ExternalID: &ext, Attrs: attrs}
	if t.IsContact() {
		set := childrenFromRemote(rec)
		plan := planChildren(t, &model.LocalEntity{Type: t}, set)
		ent.Emails = markPrimaryEmails(set.Emails, plan.PrimaryEmail)
		ent.Phones = markPrimaryPhones(set.Phones, plan.PrimaryPhone)
		ent.Addresses = markPrimaryAddresses(set.Addresses, plan.PrimaryAddress)
		ent.Skills = set.Skills
	}

	if err := c.store.CreateEntity(ctx, ent); err != nil {
		if isConstraintViolation(err) {
			return OutcomeFailed, &ConstraintError{ExternalID: ext, Err: err}
		}
		return OutcomeFailed, fmt.Errorf("create %s %q: %w", t, ext, err)
	}
	c.log.Debug().Str("entity_type", string(t)).Str("external_id", ext).Int64("id", ent.ID).Msg("created")
	return OutcomeCreated, nil
}

func (c *Coordinator) update(ctx context.Context, rec model.RemoteRecord, t model.EntityType, ext string, cand model.MatchCandidate) (Outcome, error) {
	local := cand.Entity
	if cand.Type == model.MatchFuzzy {
		// Fuzzy candidates come from the lightweight name index; load the
		// full row with children before diffing.
		full, err := c.store.GetEntity(ctx, t, local.ID)
		if err != nil {
			return OutcomeFailed, err
		}
		if full == nil {
			return OutcomeFailed, fmt.Errorf("update %s %q: local entity %d vanished", t, ext, local.ID)
		}
		local = full
	}

	// A record matched by email or name adopts the remote external ID so
	// later syncs resolve it exactly. A local entity already linked to a
	// different remote identity is a conflict, not a match.
	linkExt := ""
	if local.ExternalID == nil || *local.ExternalID == "" {
		linkExt = ext
	} else if *local.ExternalID != ext {
		return OutcomeAmbiguous, &AmbiguousMatchError{ExternalID: ext, Candidates: []model.MatchCandidate{cand}}
	}

	changes := changedAttrs(Diff(local.Attrs, rec, Descriptors(t)))

	var plan *ChildPlan
	planEmpty := true
	if t.IsContact() {
		plan = planChildren(t, local, childrenFromRemote(rec))
		planEmpty = plan.Empty(local)
	}

	if len(changes) == 0 && planEmpty && linkExt == "" {
		return OutcomeUnchanged, nil
	}

	if err := c.store.UpdateEntity(ctx, t, local.ID, changes, linkExt, plan); err != nil {
		if isConstraintViolation(err) {
			return OutcomeFailed, &ConstraintError{ExternalID: ext, Err: err}
		}
		return OutcomeFailed, fmt.Errorf("update %s %q: %w", t, ext, err)
	}
	c.log.Debug().
		Str("entity_type", string(t)).
		Str("external_id", ext).
		Int64("id", local.ID).
		Int("changed_fields", len(changes)).
		Msg("updated")
	return OutcomeUpdated, nil
}

func markPrimaryEmails(emails []model.Email, primary string) []model.Email {
	for i := range emails {
		emails[i].Primary = emails[i].Address == primary
	}
	return emails
}

func markPrimaryPhones(phones []model.Phone, primary string) []model.Phone {
	for i := range phones {
		phones[i].Primary = phones[i].Number == primary
	}
	return phones
}

func markPrimaryAddresses(addrs []model.Address, primary string) []model.Address {
	for i := range addrs {
		addrs[i].Primary = addrs[i].Key() == primary
	}
	return addrs
}
