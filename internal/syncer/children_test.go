package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkprog/go-crmsync-backend/internal/model"
)

func TestChildrenFromRemote(t *testing.T) {
	rec := model.RemoteRecord{
		"emails": []any{
			map[string]any{"address": " Mary@Example.org ", "label": "Personal", "primary": true},
			map[string]any{"address": "m.obrien@work.example", "label": "work", "bounced_at": "2026-02-01T08:00:00Z"},
			map[string]any{"label": "empty"},
		},
		"phones": []any{
			map[string]any{"number": "555-0101", "label": "Mobile", "is_primary": true},
		},
		"addresses": []any{
			map[string]any{"line1": "12 Elm St", "city": "Springfield", "postal_code": "01101", "label": "home"},
		},
		"skills": []any{
			map[string]any{"name": "First-Aid", "level": "certified"},
		},
	}

	set := childrenFromRemote(rec)

	require.Len(t, set.Emails, 2)
	assert.Equal(t, "mary@example.org", set.Emails[0].Address)
	assert.True(t, set.Emails[0].Primary)
	require.NotNil(t, set.Emails[1].BouncedAt)

	require.Len(t, set.Phones, 1)
	assert.Equal(t, "555-0101", set.Phones[0].Number)
	assert.True(t, set.Phones[0].Primary)

	require.Len(t, set.Addresses, 1)
	assert.Equal(t, "12 Elm St|01101", set.Addresses[0].Key())

	require.Len(t, set.Skills, 1)
	assert.Equal(t, "first aid", set.Skills[0].Name)
}

func TestPlanChildrenAdditiveUnion(t *testing.T) {
	local := &model.LocalEntity{
		Type: model.EntityVolunteer,
		Emails: []model.Email{
			{Address: "old@example.org", Label: "home", Primary: true},
		},
		Phones: []model.Phone{{Number: "555-0100", Primary: true}},
	}
	remote := ChildSet{
		Emails: []model.Email{
			{Address: "old@example.org", Label: "home"},
			{Address: "new@example.org", Label: "personal"},
		},
	}

	plan := planChildren(model.EntityVolunteer, local, remote)

	// Only the genuinely new email is added; the local-only phone survives.
	require.Len(t, plan.AddEmails, 1)
	assert.Equal(t, "new@example.org", plan.AddEmails[0].Address)
	assert.Empty(t, plan.AddPhones)

	// No remote primary flag, so the current local primary is kept.
	assert.Equal(t, "old@example.org", plan.PrimaryEmail)
	assert.Equal(t, "555-0100", plan.PrimaryPhone)
}

func TestPlanChildrenRemotePrimaryWins(t *testing.T) {
	local := &model.LocalEntity{
		Type:   model.EntityVolunteer,
		Emails: []model.Email{{Address: "work@example.org", Label: "work", Primary: true}},
	}
	remote := ChildSet{
		Emails: []model.Email{{Address: "home@example.org", Label: "personal", Primary: true}},
	}

	plan := planChildren(model.EntityVolunteer, local, remote)

	// Volunteer preference ranks personal above work, so the remote-flagged
	// primary beats the current one.
	assert.Equal(t, "home@example.org", plan.PrimaryEmail)
}

func TestPlanChildrenNoPrimaryFallsBackToAll(t *testing.T) {
	local := &model.LocalEntity{Type: model.EntityVolunteer}
	remote := ChildSet{
		Emails: []model.Email{
			{Address: "b@example.org", Label: "work"},
			{Address: "a@example.org", Label: "work"},
		},
	}

	plan := planChildren(model.EntityVolunteer, local, remote)

	// Nothing flagged primary anywhere: same label ranks tie, lexicographic
	// key breaks it. A contact with children always gets exactly one primary.
	assert.Equal(t, "a@example.org", plan.PrimaryEmail)
}

func TestChildPlanEmpty(t *testing.T) {
	local := &model.LocalEntity{
		Type:   model.EntityVolunteer,
		Emails: []model.Email{{Address: "mary@example.org", Primary: true}},
	}
	remote := ChildSet{Emails: []model.Email{{Address: "mary@example.org"}}}

	plan := planChildren(model.EntityVolunteer, local, remote)
	assert.True(t, plan.Empty(local))

	remote.Emails = append(remote.Emails, model.Email{Address: "second@example.org"})
	plan = planChildren(model.EntityVolunteer, local, remote)
	assert.False(t, plan.Empty(local))
}
