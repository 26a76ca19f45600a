package game

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/yourusername/monster-battle/internal/catalog"
)

// Combat constants
const (
	MinDamage         = 1   // Minimum damage on a hit with positive magnitude
	GuardDivisor      = 2   // Guarding halves incoming damage
	SPGainOnAttack    = 15  // SP an attacker gains for landing a damaging skill
	SPGainOnDefend    = 10  // SP a defender gains when hit, or when it defends
	BossFleeChance    = 0.1 // Fleeing from a boss rarely works
	BaseFleeChance    = 0.5
	FleeChancePerLvl  = 0.05
	MinWildFleeChance = 0.3
	MaxWildFleeChance = 0.9

	ExpPerEnemyLevel  = 10 // Experience per level of a defeated enemy
	ExpPerLevelGap    = 5  // Added per level the enemy is above the lead, removed per level below
	MinExpPerEnemy    = 1
	BossExpMultiplier = 2.5
)

// Dice is a seeded random source safe for use by concurrent sessions
type Dice struct {
	mu     sync.Mutex
	random *rand.Rand
}

// NewDice creates dice with a fixed seed, making battles reproducible
func NewDice(seed int64) *Dice {
	return &Dice{random: rand.New(rand.NewSource(seed))}
}

// NewTimeDice creates dice seeded from the current time
func NewTimeDice() *Dice {
	return NewDice(time.Now().UnixNano())
}

// Intn returns a number in [0, n)
func (d *Dice) Intn(n int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.random.Intn(n)
}

// Chance returns true with probability p
func (d *Dice) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.random.Float64() < p
}

// Formula computes effect sizes. Swap it to rebalance the game.
type Formula interface {
	// Damage is the HP a single hit of magnitude takes from defender
	Damage(attacker, defender *Combatant, magnitude int) int
	// Heal is the HP a heal skill restores to target before clamping
	Heal(target *Combatant, skill *catalog.Skill) int
}

// StandardFormula scales magnitude by the attack/defense ratio:
//
//	damage = round(magnitude × attack×attackMod / (defense×defenseMod)), halved by guard, min 1
//	heal   = magnitude (flat) or magnitude% of max HP (percent)
//
// With equal attack and defense and no modifiers a hit deals exactly its magnitude.
type StandardFormula struct{}

// Damage implements Formula
func (StandardFormula) Damage(attacker, defender *Combatant, magnitude int) int {
	if magnitude <= 0 {
		return 0
	}

	attack := float64(attacker.Attack) * attacker.AttackMultiplier()
	defense := float64(defender.Defense) * defender.DefenseMultiplier()
	if defense < 1 {
		defense = 1
	}

	damage := float64(magnitude) * attack / defense
	if defender.Guarded() {
		damage /= GuardDivisor
	}

	n := int(math.Round(damage))
	if n < MinDamage {
		n = MinDamage
	}
	return n
}

// Heal implements Formula
func (StandardFormula) Heal(target *Combatant, skill *catalog.Skill) int {
	if skill.HealMode == catalog.HealPercent {
		return int(math.Round(float64(target.MaxHP) * float64(skill.Magnitude) / 100))
	}
	return skill.Magnitude
}

// Between returns a number in [min, max]
func (d *Dice) Between(min, max int) int {
	if max <= min {
		return min
	}
	return min + d.Intn(max-min+1)
}

// experienceFor is what each surviving party member earns for one defeated enemy
func experienceFor(enemyLevel, leadLevel int, boss bool) int {
	exp := enemyLevel*ExpPerEnemyLevel + (enemyLevel-leadLevel)*ExpPerLevelGap
	if exp < MinExpPerEnemy {
		exp = MinExpPerEnemy
	}
	if boss {
		exp = int(float64(exp) * BossExpMultiplier)
	}
	return exp
}

// fleeChance is the probability the player escapes this turn
func fleeChance(boss bool, playerLevel, enemyLevel int) float64 {
	if boss {
		return BossFleeChance
	}
	chance := BaseFleeChance + float64(playerLevel-enemyLevel)*FleeChancePerLvl
	return math.Max(MinWildFleeChance, math.Min(MaxWildFleeChance, chance))
}
