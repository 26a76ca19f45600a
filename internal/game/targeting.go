package game

import (
	"github.com/samber/lo"

	"github.com/yourusername/monster-battle/internal/catalog"
)

// legalTargets lists who actor may hit with a selector right now
func legalTargets(s *Session, actor *Combatant, selector catalog.Selector) []*Combatant {
	switch selector {
	case catalog.SelectorSelf:
		return []*Combatant{actor}
	case catalog.SelectorSingleEnemy:
		cur := s.Current(actor.Side.Opponent())
		if cur == nil || cur.Defeated {
			return nil
		}
		return []*Combatant{cur}
	case catalog.SelectorSingleAlly, catalog.SelectorAllAllies:
		return s.Living(actor.Side)
	case catalog.SelectorAllEnemies:
		return s.Living(actor.Side.Opponent())
	}
	return nil
}

// selectTargets validates targetID against the skill's selector and returns
// the combatants the skill will affect
func selectTargets(s *Session, actor *Combatant, skill *catalog.Skill, targetID string) ([]*Combatant, error) {
	legal := legalTargets(s, actor, skill.Target)
	if len(legal) == 0 {
		return nil, reject(ErrInvalidTarget, "%s has no valid target", skill.Name)
	}

	if targetID == "" {
		if skill.Target.Group() {
			return legal, nil
		}
		switch skill.Target {
		case catalog.SelectorSingleEnemy:
			return legal[:1], nil
		default:
			return []*Combatant{actor}, nil
		}
	}

	if _, ok := lo.Find(legal, func(c *Combatant) bool { return c.ID == targetID }); !ok {
		return nil, invalidTarget(s, skill, targetID)
	}
	if skill.Target.Group() {
		return legal, nil
	}
	target, _ := s.Combatant(targetID)
	return []*Combatant{target}, nil
}

func invalidTarget(s *Session, skill *catalog.Skill, targetID string) error {
	target, ok := s.Combatant(targetID)
	switch {
	case !ok:
		return reject(ErrInvalidTarget, "no combatant with id %q in this battle", targetID)
	case target.Defeated:
		return reject(ErrInvalidTarget, "%s has been defeated and cannot be targeted", target.Name)
	default:
		return reject(ErrInvalidTarget, "%s cannot be targeted by %s", target.Name, skill.Name)
	}
}

// usableSkills lists the skills actor knows, can afford, and can aim
func usableSkills(s *Session, actor *Combatant, skills SkillCatalog) []*catalog.Skill {
	out := make([]*catalog.Skill, 0, len(actor.Skills))
	for _, id := range actor.Skills {
		skill, ok := skills.Skill(id)
		if !ok || skill.Cost > actor.SP {
			continue
		}
		if len(legalTargets(s, actor, skill.Target)) == 0 {
			continue
		}
		out = append(out, skill)
	}
	return out
}
