package game

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yourusername/monster-battle/internal/catalog"
)

const testCatalogYAML = `
skills:
  - {id: strike20, name: Strike, category: damage, magnitude: 20, cost: 0, target: single_enemy}
  - {id: strike60, name: Smash, category: damage, magnitude: 60, cost: 0, target: single_enemy}
  - {id: heal, name: Heal, category: heal, magnitude: 20, heal_mode: flat, cost: 10, target: single_ally}
  - {id: burst, name: Burst, category: damage, magnitude: 10, cost: 0, target: all_enemies}
  - {id: triple, name: Triple, category: damage, magnitude: 5, hits: 3, cost: 0, target: single_enemy}
  - {id: pricey, name: Pricey, category: damage, magnitude: 30, cost: 50, target: single_enemy}
  - {id: mend, name: Mend, category: heal, magnitude: 50, heal_mode: percent, cost: 0, target: self}
  - {id: brutal, name: Brutal, category: damage, magnitude: 40, cost: 0, target: single_enemy}
  - id: venom
    name: Venom
    category: status
    cost: 0
    target: single_enemy
    status: {kind: poison, duration: 2, magnitude: 3}
  - id: weaken
    name: Weaken
    category: status
    cost: 0
    target: single_enemy
    status: {kind: attack_down, duration: 2, magnitude: 50}
  - {id: pierce, name: Pierce, category: damage, magnitude: 25, ignore_defense: true, cost: 0, target: single_enemy}
  - {id: gamble, name: Gamble, category: damage, magnitude: 5, max_magnitude: 15, ignore_defense: true, cost: 0, target: single_enemy}
  - id: fizzle
    name: Fizzle
    category: status
    cost: 0
    target: single_enemy
    status: {kind: poison, duration: 2, magnitude: 3, chance: 0.000000001}
  - id: coinflip
    name: Coin Flip
    category: status
    cost: 0
    target: single_enemy
    status: {kind: poison, duration: 2, magnitude: 3, chance: 0.5}
templates:
  - {id: hero, name: Hero, level: 5, max_hp: 50, attack: 10, defense: 10, max_sp: 100, initial_sp: 10,
     skills: [strike20, strike60, heal, burst, triple, pricey, mend, venom, weaken, pierce, gamble, fizzle, coinflip]}
  - {id: medic, name: Medic, level: 5, max_hp: 40, attack: 10, defense: 10, max_sp: 100, initial_sp: 0,
     skills: [heal, strike20]}
  - {id: dummy, name: Dummy, level: 5, max_hp: 50, attack: 10, defense: 10, max_sp: 100, initial_sp: 0,
     skills: [strike20]}
  - {id: brute, name: Brute, level: 5, max_hp: 80, attack: 40, defense: 10, max_sp: 100, initial_sp: 0,
     skills: [strike20, brutal]}
  - {id: wall, name: Wall, level: 5, max_hp: 80, attack: 10, defense: 50, max_sp: 100, initial_sp: 0,
     skills: [strike20]}
encounters:
  - {kind: wild, enemies: [dummy], min_level: 5, max_level: 5}
`

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Load(strings.NewReader(testCatalogYAML))
	require.NoError(t, err)
	return c
}

// fixedEncounters always spawns the same templates
type fixedEncounters struct {
	cat *catalog.Catalog
	ids []string
}

func (f fixedEncounters) Enemies(ctx context.Context, _ catalog.EncounterKind) ([]*catalog.Template, error) {
	out := make([]*catalog.Template, 0, len(f.ids))
	for _, id := range f.ids {
		tmpl, err := f.cat.Template(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, tmpl)
	}
	return out, nil
}

// defendPolicy never attacks
type defendPolicy struct{}

func (defendPolicy) Choose(*Session, *Combatant, []*catalog.Skill, *Dice) Action {
	return Action{Kind: ActionDefend}
}

// fixedPolicy always uses the same action
type fixedPolicy struct {
	action Action
}

func (p fixedPolicy) Choose(*Session, *Combatant, []*catalog.Skill, *Dice) Action {
	return p.action
}

// panicFormula simulates a defect inside effect computation
type panicFormula struct{}

func (panicFormula) Damage(*Combatant, *Combatant, int) int { panic("formula exploded") }
func (panicFormula) Heal(*Combatant, *catalog.Skill) int    { panic("formula exploded") }

func newTestResolver(t *testing.T, cat *catalog.Catalog, opts ...Option) *Resolver {
	t.Helper()
	base := []Option{WithSeed(1), WithPolicy(defendPolicy{})}
	return NewResolver(cat, cat, fixedEncounters{cat: cat, ids: []string{"dummy"}}, append(base, opts...)...)
}

func buildSide(t *testing.T, cat *catalog.Catalog, side Side, ids ...string) []*Combatant {
	t.Helper()
	out := make([]*Combatant, 0, len(ids))
	for _, id := range ids {
		tmpl, err := cat.Template(context.Background(), id)
		require.NoError(t, err)
		c, err := NewCombatant(tmpl, side, cat)
		require.NoError(t, err)
		out = append(out, c)
	}
	return out
}

func newBattle(t *testing.T, r *Resolver, party, enemies []*Combatant) *Session {
	t.Helper()
	s, err := r.StartSession(catalog.EncounterWild, party, enemies)
	require.NoError(t, err)
	s.DrainLog()
	return s
}

func useSkill(id catalog.SkillID, target string) Action {
	return Action{Kind: ActionUseSkill, SkillID: id, TargetID: target}
}
