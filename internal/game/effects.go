package game

import (
	"fmt"
	"math"

	"github.com/yourusername/monster-battle/internal/catalog"
)

const defaultCritMultiplier = 1.5

var statusLabels = map[catalog.StatusKind]string{
	catalog.StatusPoison:      "poison",
	catalog.StatusRegen:       "regeneration",
	catalog.StatusAttackUp:    "attack boost",
	catalog.StatusAttackDown:  "attack drop",
	catalog.StatusDefenseUp:   "defense boost",
	catalog.StatusDefenseDown: "defense drop",
	catalog.StatusGuard:       "guard",
}

func statusLabel(kind catalog.StatusKind) string {
	if label, ok := statusLabels[kind]; ok {
		return label
	}
	return string(kind)
}

// turnLog collects the lines of one turn and queues them on the session
type turnLog struct {
	s     *Session
	lines []string
}

func newTurnLog(s *Session) *turnLog {
	return &turnLog{s: s}
}

func (t *turnLog) add(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	t.lines = append(t.lines, line)
	t.s.log(line)
}

// applySkill resolves a validated skill against its targets, one log line
// per sub-effect
func (r *Resolver) applySkill(actor *Combatant, skill *catalog.Skill, targets []*Combatant, t *turnLog) {
	dealt := false

	for _, target := range targets {
		switch skill.Category {
		case catalog.CategoryDamage:
			if r.strike(actor, target, skill, t) > 0 {
				dealt = true
			}
		case catalog.CategoryHeal:
			restored := target.Heal(r.formula.Heal(target, skill))
			t.add("%s recovers %d HP. (%d/%d HP)", target.Name, restored, target.HP, target.MaxHP)
		}

		if skill.Status != nil && !target.Defeated {
			r.tryStatus(target, skill.Status, t)
		}
	}

	if dealt {
		if gained := actor.GainSP(SPGainOnAttack); gained > 0 {
			t.add("%s gains %d SP.", actor.Name, gained)
		}
	}
}

// strike lands every hit of a damage skill on one target and returns the
// total HP it lost
func (r *Resolver) strike(actor, target *Combatant, skill *catalog.Skill, t *turnLog) int {
	total := 0
	for hit := 0; hit < skill.HitCount() && !target.Defeated; hit++ {
		damage := r.hitDamage(actor, target, skill)

		crit := skill.CritChance > 0 && r.dice.Chance(skill.CritChance)
		if crit {
			mult := skill.CritMultiplier
			if mult <= 0 {
				mult = defaultCritMultiplier
			}
			damage = int(math.Round(float64(damage) * mult))
		}

		lost := target.TakeDamage(damage)
		total += lost
		verb := "hits"
		if skill.IgnoreDefense {
			verb = "pierces"
		}
		if crit {
			t.add("A critical hit! %s %s %s for %d damage! (%d/%d HP)",
				skill.Name, verb, target.Name, lost, target.HP, target.MaxHP)
		} else {
			t.add("%s %s %s for %d damage! (%d/%d HP)",
				skill.Name, verb, target.Name, lost, target.HP, target.MaxHP)
		}
	}

	if target.Defeated {
		t.add("%s has been defeated!", target.Name)
	} else if total > 0 {
		if gained := target.GainSP(SPGainOnDefend); gained > 0 {
			t.add("%s gains %d SP.", target.Name, gained)
		}
	}
	return total
}

// hitDamage is a single hit before crits. Defense-ignoring hits roll their
// range and skip defense, stat modifiers and guard.
func (r *Resolver) hitDamage(actor, target *Combatant, skill *catalog.Skill) int {
	if skill.IgnoreDefense {
		return r.dice.Between(skill.DamageRange())
	}
	return r.formula.Damage(actor, target, skill.Magnitude)
}

// tryStatus rolls the effect's trigger chance and applies it on success
func (r *Resolver) tryStatus(target *Combatant, spec *catalog.StatusSpec, t *turnLog) {
	if !spec.Certain() && !r.dice.Chance(spec.Chance) {
		t.add("The %s did not take hold on %s. (%d%% chance)",
			statusLabel(spec.Kind), target.Name, int(math.Round(spec.Chance*100)))
		return
	}
	applyStatus(target, spec, t)
}

func applyStatus(target *Combatant, spec *catalog.StatusSpec, t *turnLog) {
	if target.ApplyStatus(spec.Kind, spec.Duration, spec.Magnitude) {
		t.add("%s's %s is refreshed for %d turns.", target.Name, statusLabel(spec.Kind), spec.Duration)
		return
	}
	t.add("%s is affected by %s for %d turns.", target.Name, statusLabel(spec.Kind), spec.Duration)
}

// tickStatuses runs end-of-turn effects on a current combatant: poison and
// regeneration apply, then durations count down and expired effects go.
// Guard is not timed; it lasts until its owner acts again.
func tickStatuses(c *Combatant, t *turnLog) {
	effects := append([]*StatusEffect(nil), c.Statuses...)
	for _, e := range effects {
		switch e.Kind {
		case catalog.StatusPoison:
			lost := c.TakeDamage(e.Magnitude)
			t.add("%s takes %d damage from poison. (%d/%d HP)", c.Name, lost, c.HP, c.MaxHP)
		case catalog.StatusRegen:
			restored := c.Heal(e.Magnitude)
			t.add("%s regenerates %d HP. (%d/%d HP)", c.Name, restored, c.HP, c.MaxHP)
		}
		if c.Defeated {
			t.add("%s has been defeated!", c.Name)
			return
		}
	}

	for _, e := range effects {
		if e.Kind == catalog.StatusGuard {
			continue
		}
		e.Turns--
		if e.Turns <= 0 {
			c.RemoveStatus(e.Kind)
			t.add("%s's %s wore off.", c.Name, statusLabel(e.Kind))
		}
	}
}
