package game

import "github.com/yourusername/monster-battle/internal/catalog"

// Side is one of the two teams in a battle
type Side string

const (
	SidePlayer Side = "player"
	SideEnemy  Side = "enemy"
)

// Opponent returns the other side
func (s Side) Opponent() Side {
	if s == SidePlayer {
		return SideEnemy
	}
	return SidePlayer
}

// State is a battle session's lifecycle state
type State string

const (
	StateIdle       State = "idle"
	StateInProgress State = "in_progress"
	StateVictory    State = "victory"
	StateDefeat     State = "defeat"
	StateFled       State = "fled"
)

// Terminal reports whether the session has ended
func (s State) Terminal() bool {
	return s == StateVictory || s == StateDefeat || s == StateFled
}

// ActionKind is what the player chose to do this turn
type ActionKind string

const (
	ActionUseSkill ActionKind = "use_skill"
	ActionDefend   ActionKind = "defend"
	ActionFlee     ActionKind = "flee"
	ActionSwitch   ActionKind = "switch"
)

// Action is a single turn request
type Action struct {
	Kind     ActionKind      `json:"kind"`
	SkillID  catalog.SkillID `json:"skillId,omitempty"`
	TargetID string          `json:"targetId,omitempty"` // combatant ID; switch uses it for the incoming ally
}

// StatusEffect is an active status on a combatant
type StatusEffect struct {
	Kind      catalog.StatusKind `json:"kind"`
	Turns     int                `json:"turns"` // remaining
	Magnitude int                `json:"magnitude"`
}

// TurnResult is the outcome of one resolved turn
type TurnResult struct {
	Turn       int      `json:"turn"`
	Lines      []string `json:"lines"`
	State      State    `json:"state"`
	Experience int      `json:"experience,omitempty"` // per surviving party member, on victory
}

// === View Types for Frontend ===

// CombatantView is a frontend-friendly view of a combatant
type CombatantView struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Side     Side            `json:"side"`
	Level    int             `json:"level"`
	HP       int             `json:"hp"`
	MaxHP    int             `json:"maxHp"`
	SP       int             `json:"sp"`
	MaxSP    int             `json:"maxSp"`
	Skills   []string        `json:"skills"`
	Statuses []*StatusEffect `json:"statuses,omitempty"`
	Defeated bool            `json:"defeated"`
	Current  bool            `json:"current"`
	Status   string          `json:"status"` // "Healthy", "Wounded", "Critical", "Defeated"
}

// SessionSnapshot is the complete battle state for the frontend
type SessionSnapshot struct {
	ID         string                `json:"id"`
	Encounter  catalog.EncounterKind `json:"encounter"`
	State      State                 `json:"state"`
	Turn       int                   `json:"turn"`
	Experience int                   `json:"experience,omitempty"`
	Player     []*CombatantView      `json:"player"`
	Enemy      []*CombatantView      `json:"enemy"`
	GameOver   bool                  `json:"gameOver"`
}
