package syncer

import (
	"sort"
	"time"

	"github.com/sparkprog/go-crmsync-backend/internal/model"
)

// ChildSet holds the child collections derived from one remote contact
// record.
type ChildSet struct {
	Emails    []model.Email
	Phones    []model.Phone
	Addresses []model.Address
	Skills    []model.Skill
}

// ChildPlan is the write plan for a contact's child collections: additions
// (set union, local-only items are never deleted) plus the single primary
// per child kind. Primary keys are empty when the contact has no children
// of that kind.
type ChildPlan struct {
	AddEmails    []model.Email
	AddPhones    []model.Phone
	AddAddresses []model.Address
	AddSkills    []model.Skill

	PrimaryEmail   string // address
	PrimaryPhone   string // number
	PrimaryAddress string // model.Address.Key()
}

// Empty reports whether the plan changes nothing beyond what already holds
// locally.
func (p *ChildPlan) Empty(local *model.LocalEntity) bool {
	if len(p.AddEmails)+len(p.AddPhones)+len(p.AddAddresses)+len(p.AddSkills) > 0 {
		return false
	}
	return p.PrimaryEmail == currentPrimaryEmail(local) &&
		p.PrimaryPhone == currentPrimaryPhone(local) &&
		p.PrimaryAddress == currentPrimaryAddress(local)
}

func currentPrimaryEmail(e *model.LocalEntity) string {
	for _, em := range e.Emails {
		if em.Primary {
			return NormalizeEmail(em.Address)
		}
	}
	return ""
}

func currentPrimaryPhone(e *model.LocalEntity) string {
	for _, p := range e.Phones {
		if p.Primary {
			return p.Number
		}
	}
	return ""
}

func currentPrimaryAddress(e *model.LocalEntity) string {
	for _, a := range e.Addresses {
		if a.Primary {
			return a.Key()
		}
	}
	return ""
}

// childrenFromRemote decodes the child collections of a remote contact
// record, normalizing values as it goes.
func childrenFromRemote(rec model.RemoteRecord) ChildSet {
	var set ChildSet
	for _, c := range rec.Children("emails") {
		addr := NormalizeEmail(c.Value)
		if addr == "" {
			continue
		}
		email := model.Email{Address: addr, Label: NormalizeEnum(c.Label), Primary: c.Primary}
		if raw := c.Extra["bounced_at"]; raw != "" {
			if ts, err := time.Parse(time.RFC3339, raw); err == nil {
				utc := ts.UTC()
				email.BouncedAt = &utc
			}
		}
		set.Emails = append(set.Emails, email)
	}
	for _, c := range rec.Children("phones") {
		num := NormalizeSpace(c.Value)
		if num == "" {
			continue
		}
		set.Phones = append(set.Phones, model.Phone{Number: num, Label: NormalizeEnum(c.Label), Primary: c.Primary})
	}
	for _, c := range rec.Children("addresses") {
		addr := model.Address{
			Line1:      NormalizeSpace(c.Extra["line1"]),
			City:       NormalizeSpace(c.Extra["city"]),
			Region:     NormalizeSpace(c.Extra["region"]),
			PostalCode: NormalizeSpace(c.Extra["postal_code"]),
			Label:      NormalizeEnum(c.Label),
			Primary:    c.Primary,
		}
		if addr.Line1 == "" {
			continue
		}
		set.Addresses = append(set.Addresses, addr)
	}
	for _, c := range rec.Children("skills") {
		name := NormalizeEnum(c.Value)
		if name == "" {
			continue
		}
		set.Skills = append(set.Skills, model.Skill{Name: name, Level: NormalizeEnum(c.Extra["level"])})
	}
	return set
}

// planChildren computes the union merge of local and remote children plus
// the primary assignment for each child kind. Remote items absent locally
// are added; local-only items are kept (sync is additive). The primary is
// chosen deterministically among primary-eligible items — remote-flagged
// primaries plus the current local primary — by the entity type's ranked
// label preference, then lexicographically.
func planChildren(t model.EntityType, local *model.LocalEntity, remote ChildSet) *ChildPlan {
	plan := &ChildPlan{}

	haveEmail := map[string]model.Email{}
	for _, e := range local.Emails {
		haveEmail[NormalizeEmail(e.Address)] = e
	}
	for _, e := range remote.Emails {
		if _, ok := haveEmail[e.Address]; !ok {
			plan.AddEmails = append(plan.AddEmails, e)
			haveEmail[e.Address] = e
		}
	}
	plan.PrimaryEmail = pickPrimary(PrimaryPreference(t, "email"),
		emailEligible(local, remote), emailAll(haveEmail))

	havePhone := map[string]model.Phone{}
	for _, p := range local.Phones {
		havePhone[p.Number] = p
	}
	for _, p := range remote.Phones {
		if _, ok := havePhone[p.Number]; !ok {
			plan.AddPhones = append(plan.AddPhones, p)
			havePhone[p.Number] = p
		}
	}
	plan.PrimaryPhone = pickPrimary(PrimaryPreference(t, "phone"),
		phoneEligible(local, remote), phoneAll(havePhone))

	haveAddr := map[string]model.Address{}
	for _, a := range local.Addresses {
		haveAddr[a.Key()] = a
	}
	for _, a := range remote.Addresses {
		if _, ok := haveAddr[a.Key()]; !ok {
			plan.AddAddresses = append(plan.AddAddresses, a)
			haveAddr[a.Key()] = a
		}
	}
	plan.PrimaryAddress = pickPrimary(PrimaryPreference(t, "address"),
		addressEligible(local, remote), addressAll(haveAddr))

	haveSkill := map[string]bool{}
	for _, s := range local.Skills {
		haveSkill[s.Name] = true
	}
	for _, s := range remote.Skills {
		if !haveSkill[s.Name] {
			plan.AddSkills = append(plan.AddSkills, s)
			haveSkill[s.Name] = true
		}
	}

	return plan
}

// labeled is one primary-eligible child reduced to its key and label.
type labeled struct {
	key   string
	label string
}

// pickPrimary chooses exactly one primary key. Eligible items (remote
// primary flags plus the current local primary) are preferred; when none
// exist every item is eligible, so a contact with children always ends up
// with exactly one primary.
func pickPrimary(prefs []string, eligible, all []labeled) string {
	pool := eligible
	if len(pool) == 0 {
		pool = all
	}
	if len(pool) == 0 {
		return ""
	}
	sort.Slice(pool, func(i, j int) bool {
		ri, rj := labelRank(prefs, pool[i].label), labelRank(prefs, pool[j].label)
		if ri != rj {
			return ri < rj
		}
		return pool[i].key < pool[j].key
	})
	return pool[0].key
}

func emailEligible(local *model.LocalEntity, remote ChildSet) []labeled {
	var out []labeled
	for _, e := range remote.Emails {
		if e.Primary {
			out = append(out, labeled{NormalizeEmail(e.Address), e.Label})
		}
	}
	for _, e := range local.Emails {
		if e.Primary {
			out = append(out, labeled{NormalizeEmail(e.Address), NormalizeEnum(e.Label)})
		}
	}
	return out
}

func emailAll(have map[string]model.Email) []labeled {
	out := make([]labeled, 0, len(have))
	for k, e := range have {
		out = append(out, labeled{k, NormalizeEnum(e.Label)})
	}
	return out
}

func phoneEligible(local *model.LocalEntity, remote ChildSet) []labeled {
	var out []labeled
	for _, p := range remote.Phones {
		if p.Primary {
			out = append(out, labeled{p.Number, p.Label})
		}
	}
	for _, p := range local.Phones {
		if p.Primary {
			out = append(out, labeled{p.Number, NormalizeEnum(p.Label)})
		}
	}
	return out
}

func phoneAll(have map[string]model.Phone) []labeled {
	out := make([]labeled, 0, len(have))
	for k, p := range have {
		out = append(out, labeled{k, NormalizeEnum(p.Label)})
	}
	return out
}

func addressEligible(local *model.LocalEntity, remote ChildSet) []labeled {
	var out []labeled
	for _, a := range remote.Addresses {
		if a.Primary {
			out = append(out, labeled{a.Key(), a.Label})
		}
	}
	for _, a := range local.Addresses {
		if a.Primary {
			out = append(out, labeled{a.Key(), NormalizeEnum(a.Label)})
		}
	}
	return out
}

func addressAll(have map[string]model.Address) []labeled {
	out := make([]labeled, 0, len(have))
	for k, a := range have {
		out = append(out, labeled{k, NormalizeEnum(a.Label)})
	}
	return out
}
