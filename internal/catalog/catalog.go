package catalog

import (
	"context"

	"github.com/pkg/errors"
)

// ErrUnknownTemplate is returned when a roster ID has no template
var ErrUnknownTemplate = errors.New("unknown roster template")

// Catalog is the validated, read-only view of skills, roster templates and
// encounter tables. Lookups are by stable identifier.
type Catalog struct {
	skills     map[SkillID]*Skill
	skillOrder []SkillID
	templates  map[string]*Template
	tmplOrder  []string
	encounters map[EncounterKind]*EncounterTable
}

// New validates data and builds a catalog from it
func New(data *Data) (*Catalog, error) {
	if data == nil {
		return nil, errors.New("catalog data is nil")
	}

	c := &Catalog{
		skills:     make(map[SkillID]*Skill),
		templates:  make(map[string]*Template),
		encounters: make(map[EncounterKind]*EncounterTable),
	}

	for _, s := range data.Skills {
		if err := validateSkill(s); err != nil {
			return nil, err
		}
		if _, dup := c.skills[s.ID]; dup {
			return nil, errors.Errorf("duplicate skill %q", s.ID)
		}
		c.skills[s.ID] = s
		c.skillOrder = append(c.skillOrder, s.ID)
	}

	for _, t := range data.Templates {
		if err := c.validateTemplate(t); err != nil {
			return nil, err
		}
		if _, dup := c.templates[t.ID]; dup {
			return nil, errors.Errorf("duplicate template %q", t.ID)
		}
		c.templates[t.ID] = t
		c.tmplOrder = append(c.tmplOrder, t.ID)
	}

	for _, e := range data.Encounters {
		if err := c.validateEncounter(e); err != nil {
			return nil, err
		}
		c.encounters[e.Kind] = e
	}

	return c, nil
}

func validateSkill(s *Skill) error {
	if s == nil || s.ID == "" {
		return errors.New("skill without id")
	}
	if s.Name == "" {
		return errors.Errorf("skill %q: missing name", s.ID)
	}
	if !s.Target.valid() {
		return errors.Errorf("skill %q: unknown target selector %q", s.ID, s.Target)
	}
	if s.Cost < 0 || s.Magnitude < 0 {
		return errors.Errorf("skill %q: cost and magnitude must not be negative", s.ID)
	}
	if s.CritChance < 0 || s.CritChance > 1 {
		return errors.Errorf("skill %q: crit chance must be within [0, 1]", s.ID)
	}
	if s.IgnoreDefense && s.Category != CategoryDamage {
		return errors.Errorf("skill %q: only damage skills can ignore defense", s.ID)
	}
	if s.MaxMagnitude != 0 && (!s.IgnoreDefense || s.MaxMagnitude < s.Magnitude) {
		return errors.Errorf("skill %q: max magnitude needs ignore_defense and must not be below magnitude", s.ID)
	}

	switch s.Category {
	case CategoryDamage:
		if s.Magnitude == 0 {
			return errors.Errorf("skill %q: damage skill needs a magnitude", s.ID)
		}
		if !s.Target.Hostile() {
			return errors.Errorf("skill %q: damage skill must target enemies, not %s", s.ID, s.Target)
		}
	case CategoryHeal:
		if s.HealMode != HealFlat && s.HealMode != HealPercent {
			return errors.Errorf("skill %q: unknown heal mode %q", s.ID, s.HealMode)
		}
		if s.Target.Hostile() {
			return errors.Errorf("skill %q: heal skill cannot target %s", s.ID, s.Target)
		}
	case CategoryStatus:
		if s.Status == nil {
			return errors.Errorf("skill %q: status skill needs a status", s.ID)
		}
	default:
		return errors.Errorf("skill %q: unknown category %q", s.ID, s.Category)
	}

	if s.Status != nil {
		if !s.Status.Kind.valid() || s.Status.Kind == StatusGuard {
			return errors.Errorf("skill %q: status kind %q cannot be applied by a skill", s.ID, s.Status.Kind)
		}
		if s.Status.Duration < 1 {
			return errors.Errorf("skill %q: status duration must be at least 1", s.ID)
		}
		if s.Status.Chance < 0 || s.Status.Chance > 1 {
			return errors.Errorf("skill %q: status chance must be within [0, 1]", s.ID)
		}
	}
	return nil
}

func (c *Catalog) validateTemplate(t *Template) error {
	if t == nil || t.ID == "" {
		return errors.New("template without id")
	}
	if t.MaxHP <= 0 {
		return errors.Errorf("template %q: max hp must be positive", t.ID)
	}
	if t.Attack <= 0 || t.Defense <= 0 {
		return errors.Errorf("template %q: attack and defense must be positive", t.ID)
	}
	if t.Level < 1 {
		return errors.Errorf("template %q: level must be at least 1", t.ID)
	}
	if t.MaxSP < 0 || t.InitialSP < 0 || t.InitialSP > t.MaxSP {
		return errors.Errorf("template %q: initial sp must be within [0, max sp]", t.ID)
	}
	if len(t.Skills) == 0 {
		return errors.Errorf("template %q: knows no skills", t.ID)
	}
	for _, id := range t.Skills {
		if _, ok := c.skills[id]; !ok {
			return errors.Errorf("template %q: unknown skill %q", t.ID, id)
		}
	}
	return nil
}

func (c *Catalog) validateEncounter(e *EncounterTable) error {
	if e == nil {
		return errors.New("nil encounter table")
	}
	switch e.Kind {
	case EncounterWild, EncounterMiniBoss, EncounterStageBoss:
	default:
		return errors.Errorf("unknown encounter kind %q", e.Kind)
	}
	if len(e.Enemies) == 0 {
		return errors.Errorf("encounter %q: no enemies", e.Kind)
	}
	for _, id := range e.Enemies {
		if _, ok := c.templates[id]; !ok {
			return errors.Errorf("encounter %q: unknown template %q", e.Kind, id)
		}
	}
	if e.MinLevel < 1 || e.MaxLevel < e.MinLevel {
		return errors.Errorf("encounter %q: invalid level range %d-%d", e.Kind, e.MinLevel, e.MaxLevel)
	}
	return nil
}

// Skill looks up a skill by ID
func (c *Catalog) Skill(id SkillID) (*Skill, bool) {
	s, ok := c.skills[id]
	return s, ok
}

// Skills returns every skill in load order
func (c *Catalog) Skills() []*Skill {
	out := make([]*Skill, 0, len(c.skillOrder))
	for _, id := range c.skillOrder {
		out = append(out, c.skills[id])
	}
	return out
}

// Template returns a copy of the roster template with the given ID
func (c *Catalog) Template(_ context.Context, id string) (*Template, error) {
	t, ok := c.templates[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTemplate, "template %q", id)
	}
	return t.Copy(), nil
}

// Templates returns every roster template in load order
func (c *Catalog) Templates() []*Template {
	out := make([]*Template, 0, len(c.tmplOrder))
	for _, id := range c.tmplOrder {
		out = append(out, c.templates[id])
	}
	return out
}

// Encounter returns the table for an encounter kind
func (c *Catalog) Encounter(kind EncounterKind) (*EncounterTable, bool) {
	e, ok := c.encounters[kind]
	return e, ok
}

// Data returns the catalog contents in load order, e.g. for seeding storage
func (c *Catalog) Data() *Data {
	d := &Data{
		Skills:    c.Skills(),
		Templates: c.Templates(),
	}
	for _, kind := range []EncounterKind{EncounterWild, EncounterMiniBoss, EncounterStageBoss} {
		if e, ok := c.encounters[kind]; ok {
			d.Encounters = append(d.Encounters, e)
		}
	}
	return d
}
