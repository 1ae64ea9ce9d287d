package syncer

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkprog/go-crmsync-backend/internal/model"
)

func newTestResolver(store Store) *Resolver {
	return NewResolver(store, nil, zerolog.Nop())
}

func strPtr(s string) *string { return &s }

func TestResolveExactIDShortCircuits(t *testing.T) {
	store := newFakeStore()
	store.seed(&model.LocalEntity{
		Type:       model.EntityVolunteer,
		ExternalID: strPtr("v-1"),
		Attrs:      map[string]string{"first_name": "Mary", "last_name": "O'Brien"},
		Emails:     []model.Email{{Address: "mary@example.org"}},
	})
	// A second contact sharing the email must not surface once the external
	// ID matched.
	store.seed(&model.LocalEntity{
		Type:   model.EntityVolunteer,
		Attrs:  map[string]string{"first_name": "Mary", "last_name": "O'Brien"},
		Emails: []model.Email{{Address: "mary@example.org"}},
	})

	rec := model.RemoteRecord{
		"id":     "v-1",
		"emails": []any{map[string]any{"address": "mary@example.org"}},
	}
	candidates, err := newTestResolver(store).Resolve(context.Background(), rec, model.EntityVolunteer)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, model.MatchExactID, candidates[0].Type)
	assert.Equal(t, 1.0, candidates[0].Score)
}

func TestResolveByEmailSurfacesAllMatches(t *testing.T) {
	store := newFakeStore()
	store.seed(&model.LocalEntity{
		Type:   model.EntityVolunteer,
		Attrs:  map[string]string{"first_name": "Mary", "last_name": "O'Brien"},
		Emails: []model.Email{{Address: "shared@example.org"}},
	})
	store.seed(&model.LocalEntity{
		Type:   model.EntityVolunteer,
		Attrs:  map[string]string{"first_name": "Marie", "last_name": "Obrien"},
		Emails: []model.Email{{Address: "Shared@Example.org"}},
	})

	rec := model.RemoteRecord{
		"id":         "v-9",
		"first_name": "Mary",
		"last_name":  "O'Brien",
		"emails":     []any{map[string]any{"address": "shared@example.org"}},
	}
	candidates, err := newTestResolver(store).Resolve(context.Background(), rec, model.EntityVolunteer)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	for _, c := range candidates {
		assert.Equal(t, model.MatchExactEmail, c.Type)
	}
	// Deterministic order by local ID.
	assert.Less(t, candidates[0].Entity.ID, candidates[1].Entity.ID)
}

func TestResolveFuzzyRespectsThreshold(t *testing.T) {
	store := newFakeStore()
	store.seed(&model.LocalEntity{
		Type:  model.EntityVolunteer,
		Attrs: map[string]string{"first_name": "Katherine", "last_name": "Smith"},
	})
	store.seed(&model.LocalEntity{
		Type:  model.EntityVolunteer,
		Attrs: map[string]string{"first_name": "Bob", "last_name": "Jones"},
	})

	rec := model.RemoteRecord{"id": "v-2", "first_name": "Katharine", "last_name": "Smith"}
	candidates, err := newTestResolver(store).Resolve(context.Background(), rec, model.EntityVolunteer)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, model.MatchFuzzy, candidates[0].Type)
	assert.GreaterOrEqual(t, candidates[0].Score, DefaultFuzzyThreshold)
	assert.Less(t, candidates[0].Score, 1.0)
}

func TestResolvePerTypeThreshold(t *testing.T) {
	store := newFakeStore()
	store.seed(&model.LocalEntity{
		Type:  model.EntityStudent,
		Attrs: map[string]string{"first_name": "Jon", "last_name": "Snow"},
	})

	rec := model.RemoteRecord{"id": "s-1", "first_name": "John", "last_name": "Snow"}

	strict := NewResolver(store, map[model.EntityType]float64{model.EntityStudent: 0.99}, zerolog.Nop())
	candidates, err := strict.Resolve(context.Background(), rec, model.EntityStudent)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	lax := NewResolver(store, map[model.EntityType]float64{model.EntityStudent: 0.80}, zerolog.Nop())
	candidates, err = lax.Resolve(context.Background(), rec, model.EntityStudent)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestResolveActivityKindsNeverFuzzyMatch(t *testing.T) {
	store := newFakeStore()
	store.seed(&model.LocalEntity{
		Type:  model.EntityEvent,
		Attrs: map[string]string{"name": "Spring Gala"},
	})

	rec := model.RemoteRecord{"id": "e-404", "name": "Spring Gala"}
	candidates, err := newTestResolver(store).Resolve(context.Background(), rec, model.EntityEvent)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
