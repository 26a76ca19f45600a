package game

import "github.com/yourusername/monster-battle/internal/catalog"

// Policy decides what an enemy does on its turn
type Policy interface {
	// Choose picks an action for actor. usable holds the skills the actor knows,
	// can afford, and has at least one legal target for.
	Choose(s *Session, actor *Combatant, usable []*catalog.Skill, dice *Dice) Action
}

// RandomPolicy picks a random usable skill and defends when nothing is usable
type RandomPolicy struct{}

// Choose implements Policy
func (RandomPolicy) Choose(_ *Session, _ *Combatant, usable []*catalog.Skill, dice *Dice) Action {
	if len(usable) == 0 {
		return Action{Kind: ActionDefend}
	}
	skill := usable[dice.Intn(len(usable))]
	// Empty target: single-enemy skills hit the player's current combatant,
	// self and single-ally skills land on the actor.
	return Action{Kind: ActionUseSkill, SkillID: skill.ID}
}
