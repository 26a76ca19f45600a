package game

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/yourusername/monster-battle/internal/catalog"
)

// minStatMultiplier keeps stacked debuffs from zeroing a stat
const minStatMultiplier = 0.1

// Combatant is a battle participant built from a roster template
type Combatant struct {
	ID         string            `json:"id"`
	TemplateID string            `json:"templateId"`
	Name       string            `json:"name"`
	Side       Side              `json:"side"`
	Level      int               `json:"level"`
	HP         int               `json:"hp"`
	MaxHP      int               `json:"maxHp"`
	Attack     int               `json:"attack"`
	Defense    int               `json:"defense"`
	SP         int               `json:"sp"`
	MaxSP      int               `json:"maxSp"`
	Skills     []catalog.SkillID `json:"skills"`
	Statuses   []*StatusEffect   `json:"statuses,omitempty"`
	Defeated   bool              `json:"defeated"`
}

// NewCombatant builds a combatant at full health. Every known skill must
// exist in skills; a combatant is never usable half-initialized.
func NewCombatant(t *catalog.Template, side Side, skills SkillCatalog) (*Combatant, error) {
	if t == nil {
		return nil, errors.New("nil template")
	}
	if t.MaxHP <= 0 {
		return nil, errors.Errorf("template %q: max hp must be positive", t.ID)
	}
	if t.Attack <= 0 || t.Defense <= 0 {
		return nil, errors.Errorf("template %q: attack and defense must be positive", t.ID)
	}
	if len(t.Skills) == 0 {
		return nil, errors.Errorf("template %q: knows no skills", t.ID)
	}
	for _, id := range t.Skills {
		if _, ok := skills.Skill(id); !ok {
			return nil, errors.Errorf("template %q: unknown skill %q", t.ID, id)
		}
	}

	sp := t.InitialSP
	if sp > t.MaxSP {
		sp = t.MaxSP
	}

	return &Combatant{
		ID:         uuid.NewString(),
		TemplateID: t.ID,
		Name:       t.Name,
		Side:       side,
		Level:      t.Level,
		HP:         t.MaxHP,
		MaxHP:      t.MaxHP,
		Attack:     t.Attack,
		Defense:    t.Defense,
		SP:         sp,
		MaxSP:      t.MaxSP,
		Skills:     append([]catalog.SkillID(nil), t.Skills...),
	}, nil
}

// TakeDamage applies damage and returns how much HP was actually lost
func (c *Combatant) TakeDamage(damage int) int {
	if damage <= 0 || c.Defeated {
		return 0
	}
	if damage > c.HP {
		damage = c.HP
	}
	c.HP -= damage
	if c.HP == 0 {
		c.Defeated = true
		c.Statuses = nil
	}
	return damage
}

// Heal restores HP up to max and returns how much was restored
func (c *Combatant) Heal(amount int) int {
	if amount <= 0 || c.Defeated {
		return 0
	}
	if missing := c.MaxHP - c.HP; amount > missing {
		amount = missing
	}
	c.HP += amount
	return amount
}

// GainSP adds skill points up to max and returns how many were gained
func (c *Combatant) GainSP(amount int) int {
	if amount <= 0 || c.Defeated {
		return 0
	}
	if room := c.MaxSP - c.SP; amount > room {
		amount = room
	}
	c.SP += amount
	return amount
}

// SpendSP pays a skill cost
func (c *Combatant) SpendSP(cost int) error {
	if cost > c.SP {
		return errors.Errorf("%s needs %d SP but has %d", c.Name, cost, c.SP)
	}
	c.SP -= cost
	return nil
}

// Knows reports whether the combatant has learned a skill
func (c *Combatant) Knows(id catalog.SkillID) bool {
	return lo.Contains(c.Skills, id)
}

// CanAct reports whether the combatant can take an action
func (c *Combatant) CanAct() error {
	if c.Defeated {
		return errors.Errorf("%s has been defeated", c.Name)
	}
	return nil
}

// Status returns the active effect of a kind, or nil
func (c *Combatant) Status(kind catalog.StatusKind) *StatusEffect {
	e, _ := lo.Find(c.Statuses, func(e *StatusEffect) bool { return e.Kind == kind })
	return e
}

// ApplyStatus adds an effect, or refreshes it if one of the same kind is
// active. Returns true when an existing effect was refreshed.
func (c *Combatant) ApplyStatus(kind catalog.StatusKind, turns, magnitude int) bool {
	if existing := c.Status(kind); existing != nil {
		existing.Turns = turns
		existing.Magnitude = magnitude
		return true
	}
	c.Statuses = append(c.Statuses, &StatusEffect{Kind: kind, Turns: turns, Magnitude: magnitude})
	return false
}

// RemoveStatus drops the effect of a kind
func (c *Combatant) RemoveStatus(kind catalog.StatusKind) {
	c.Statuses = lo.Reject(c.Statuses, func(e *StatusEffect, _ int) bool { return e.Kind == kind })
}

// Guarded reports whether the combatant is defending
func (c *Combatant) Guarded() bool {
	return c.Status(catalog.StatusGuard) != nil
}

// AttackMultiplier is the net attack modifier from statuses
func (c *Combatant) AttackMultiplier() float64 {
	return c.multiplier(catalog.StatusAttackUp, catalog.StatusAttackDown)
}

// DefenseMultiplier is the net defense modifier from statuses
func (c *Combatant) DefenseMultiplier() float64 {
	return c.multiplier(catalog.StatusDefenseUp, catalog.StatusDefenseDown)
}

func (c *Combatant) multiplier(up, down catalog.StatusKind) float64 {
	m := 1.0
	if e := c.Status(up); e != nil {
		m += float64(e.Magnitude) / 100
	}
	if e := c.Status(down); e != nil {
		m -= float64(e.Magnitude) / 100
	}
	if m < minStatMultiplier {
		m = minStatMultiplier
	}
	return m
}

// HealthStatus buckets current HP for display
func (c *Combatant) HealthStatus() string {
	switch {
	case c.Defeated:
		return "Defeated"
	case c.HP*4 <= c.MaxHP:
		return "Critical"
	case c.HP < c.MaxHP:
		return "Wounded"
	default:
		return "Healthy"
	}
}

func (c *Combatant) clone() *Combatant {
	cp := *c
	cp.Skills = append([]catalog.SkillID(nil), c.Skills...)
	cp.Statuses = lo.Map(c.Statuses, func(e *StatusEffect, _ int) *StatusEffect {
		s := *e
		return &s
	})
	return &cp
}

func (c *Combatant) view(current bool) *CombatantView {
	return &CombatantView{
		ID:    c.ID,
		Name:  c.Name,
		Side:  c.Side,
		Level: c.Level,
		HP:    c.HP,
		MaxHP: c.MaxHP,
		SP:    c.SP,
		MaxSP: c.MaxSP,
		Skills: lo.Map(c.Skills, func(id catalog.SkillID, _ int) string {
			return string(id)
		}),
		Statuses: c.clone().Statuses,
		Defeated: c.Defeated,
		Current:  current,
		Status:   c.HealthStatus(),
	}
}
