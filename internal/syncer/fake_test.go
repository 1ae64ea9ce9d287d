package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/sparkprog/go-crmsync-backend/internal/model"
)

// fakeStore is an in-memory Store for engine tests.
type fakeStore struct {
	mu     sync.Mutex
	nextID int64

	entities map[model.EntityType]map[int64]*model.LocalEntity

	watermarks map[model.EntityType]time.Time
	created    []*model.SyncRun
	finished   []*model.SyncRun

	// createErrFor / updateErrFor inject a write failure for one external ID.
	createErrFor map[string]error
	updateErrFor map[int64]error

	watermarkErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entities:     map[model.EntityType]map[int64]*model.LocalEntity{},
		watermarks:   map[model.EntityType]time.Time{},
		createErrFor: map[string]error{},
		updateErrFor: map[int64]error{},
	}
}

// seed inserts an entity directly, assigning an ID.
func (s *fakeStore) seed(ent *model.LocalEntity) *model.LocalEntity {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	ent.ID = s.nextID
	if s.entities[ent.Type] == nil {
		s.entities[ent.Type] = map[int64]*model.LocalEntity{}
	}
	s.entities[ent.Type][ent.ID] = ent
	return ent
}

func (s *fakeStore) FindByExternalID(ctx context.Context, t model.EntityType, externalID string) (*model.LocalEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ent := range s.entities[t] {
		if ent.ExternalID != nil && *ent.ExternalID == externalID {
			return ent, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) FindContactsByEmail(ctx context.Context, t model.EntityType, email string) ([]*model.LocalEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.LocalEntity
	for _, ent := range s.entities[t] {
		for _, e := range ent.Emails {
			if NormalizeEmail(e.Address) == email {
				out = append(out, ent)
				break
			}
		}
	}
	return out, nil
}

func (s *fakeStore) ContactNames(ctx context.Context, t model.EntityType) ([]*model.LocalEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.LocalEntity
	for _, ent := range s.entities[t] {
		out = append(out, &model.LocalEntity{
			ID:   ent.ID,
			Type: t,
			Attrs: map[string]string{
				"first_name": ent.Attrs["first_name"],
				"last_name":  ent.Attrs["last_name"],
			},
		})
	}
	return out, nil
}

func (s *fakeStore) GetEntity(ctx context.Context, t model.EntityType, id int64) (*model.LocalEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entities[t][id], nil
}

func (s *fakeStore) CreateEntity(ctx context.Context, ent *model.LocalEntity) error {
	if ent.ExternalID != nil {
		if err := s.createErrFor[*ent.ExternalID]; err != nil {
			return err
		}
	}
	s.seed(ent)
	return nil
}

func (s *fakeStore) UpdateEntity(ctx context.Context, t model.EntityType, id int64, changes map[string]string, externalID string, plan *ChildPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.updateErrFor[id]; err != nil {
		return err
	}
	ent := s.entities[t][id]
	for attr, val := range changes {
		ent.Attrs[attr] = val
	}
	if externalID != "" {
		ent.ExternalID = &externalID
	}
	if plan != nil {
		ent.Emails = append(ent.Emails, plan.AddEmails...)
		ent.Phones = append(ent.Phones, plan.AddPhones...)
		ent.Addresses = append(ent.Addresses, plan.AddAddresses...)
		ent.Skills = append(ent.Skills, plan.AddSkills...)
		if plan.PrimaryEmail != "" {
			for i := range ent.Emails {
				ent.Emails[i].Primary = NormalizeEmail(ent.Emails[i].Address) == plan.PrimaryEmail
			}
		}
		if plan.PrimaryPhone != "" {
			for i := range ent.Phones {
				ent.Phones[i].Primary = ent.Phones[i].Number == plan.PrimaryPhone
			}
		}
		if plan.PrimaryAddress != "" {
			for i := range ent.Addresses {
				ent.Addresses[i].Primary = ent.Addresses[i].Key() == plan.PrimaryAddress
			}
		}
	}
	return nil
}

func (s *fakeStore) GetWatermark(ctx context.Context, t model.EntityType) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ts, ok := s.watermarks[t]; ok {
		return &ts, nil
	}
	return nil, nil
}

func (s *fakeStore) SetWatermark(ctx context.Context, t model.EntityType, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watermarkErr != nil {
		return s.watermarkErr
	}
	if cur, ok := s.watermarks[t]; !ok || ts.After(cur) {
		s.watermarks[t] = ts
	}
	return nil
}

func (s *fakeStore) CreateSyncRun(ctx context.Context, run *model.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, run)
	return nil
}

func (s *fakeStore) FinishSyncRun(ctx context.Context, run *model.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, run)
	return nil
}

func (s *fakeStore) ContactSnapshot(ctx context.Context) ([]model.ContactSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ContactSnapshot
	for _, t := range model.AllEntityTypes() {
		if !t.IsContact() {
			continue
		}
		for _, ent := range s.entities[t] {
			out = append(out, model.ContactSnapshot{
				ID:        ent.ID,
				Type:      t,
				FirstName: ent.Attrs["first_name"],
				LastName:  ent.Attrs["last_name"],
			})
		}
	}
	return out, nil
}
