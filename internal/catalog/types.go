package catalog

// SkillID identifies a skill in the catalog
type SkillID string

// Category is what a skill does to its targets
type Category string

const (
	CategoryDamage Category = "damage"
	CategoryHeal   Category = "heal"
	CategoryStatus Category = "status"
)

// Selector decides which combatants a skill may target
type Selector string

const (
	SelectorSelf        Selector = "self"
	SelectorSingleEnemy Selector = "single_enemy"
	SelectorSingleAlly  Selector = "single_ally"
	SelectorAllAllies   Selector = "all_allies"
	SelectorAllEnemies  Selector = "all_enemies"
)

// Hostile reports whether the selector points at the opposing side
func (s Selector) Hostile() bool {
	return s == SelectorSingleEnemy || s == SelectorAllEnemies
}

// Group reports whether the selector hits a whole side
func (s Selector) Group() bool {
	return s == SelectorAllAllies || s == SelectorAllEnemies
}

func (s Selector) valid() bool {
	switch s {
	case SelectorSelf, SelectorSingleEnemy, SelectorSingleAlly, SelectorAllAllies, SelectorAllEnemies:
		return true
	}
	return false
}

// HealMode controls how a heal magnitude is read
type HealMode string

const (
	HealFlat    HealMode = "flat"    // magnitude is HP
	HealPercent HealMode = "percent" // magnitude is a percentage of max HP
)

// StatusKind names a status effect
type StatusKind string

const (
	StatusPoison      StatusKind = "poison"
	StatusRegen       StatusKind = "regen"
	StatusAttackUp    StatusKind = "attack_up"
	StatusAttackDown  StatusKind = "attack_down"
	StatusDefenseUp   StatusKind = "defense_up"
	StatusDefenseDown StatusKind = "defense_down"
	StatusGuard       StatusKind = "guard"
)

func (k StatusKind) valid() bool {
	switch k {
	case StatusPoison, StatusRegen, StatusAttackUp, StatusAttackDown,
		StatusDefenseUp, StatusDefenseDown, StatusGuard:
		return true
	}
	return false
}

// StatusSpec describes a status effect a skill applies
type StatusSpec struct {
	Kind      StatusKind `yaml:"kind" json:"kind"`
	Duration  int        `yaml:"duration" json:"duration"`   // turns
	Magnitude int        `yaml:"magnitude" json:"magnitude"` // HP per tick, or percent for modifiers
	// Chance is the probability the effect lands; 0 means always
	Chance    float64    `yaml:"chance,omitempty" json:"chance,omitempty"`
}

// Certain reports whether the effect lands without a roll
func (s *StatusSpec) Certain() bool {
	return s.Chance <= 0 || s.Chance >= 1
}

// Skill is a static skill definition. Skills are read-only once loaded.
type Skill struct {
	ID             SkillID     `yaml:"id" json:"id"`
	Name           string      `yaml:"name" json:"name"`
	Description    string      `yaml:"description,omitempty" json:"description,omitempty"`
	Quote          string      `yaml:"quote,omitempty" json:"quote,omitempty"`
	Category       Category    `yaml:"category" json:"category"`
	Magnitude      int         `yaml:"magnitude" json:"magnitude"`
	Cost           int         `yaml:"cost" json:"cost"` // SP
	Target         Selector    `yaml:"target" json:"target"`
	HealMode       HealMode    `yaml:"heal_mode,omitempty" json:"healMode,omitempty"`
	Hits           int         `yaml:"hits,omitempty" json:"hits,omitempty"`
	CritChance     float64     `yaml:"crit_chance,omitempty" json:"critChance,omitempty"` // 0..1
	CritMultiplier float64     `yaml:"crit_multiplier,omitempty" json:"critMultiplier,omitempty"`
	IgnoreDefense  bool        `yaml:"ignore_defense,omitempty" json:"ignoreDefense,omitempty"`
	MaxMagnitude   int         `yaml:"max_magnitude,omitempty" json:"maxMagnitude,omitempty"` // upper bound of an ignore_defense roll
	Status         *StatusSpec `yaml:"status,omitempty" json:"status,omitempty"`
}

// HitCount returns how many times a damage skill strikes
func (s *Skill) HitCount() int {
	if s.Hits < 1 {
		return 1
	}
	return s.Hits
}

// DamageRange is the span an ignore_defense hit is rolled in. Without a
// larger max the hit is fixed at the magnitude.
func (s *Skill) DamageRange() (min, max int) {
	if s.MaxMagnitude > s.Magnitude {
		return s.Magnitude, s.MaxMagnitude
	}
	return s.Magnitude, s.Magnitude
}

// Template is a roster entry combatants are built from
type Template struct {
	ID        string    `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	Level     int       `yaml:"level" json:"level"`
	MaxHP     int       `yaml:"max_hp" json:"maxHp"`
	Attack    int       `yaml:"attack" json:"attack"`
	Defense   int       `yaml:"defense" json:"defense"`
	MaxSP     int       `yaml:"max_sp" json:"maxSp"`
	InitialSP int       `yaml:"initial_sp" json:"initialSp"`
	Skills    []SkillID `yaml:"skills" json:"skills"`
}

// Copy returns a template that shares nothing mutable with t
func (t *Template) Copy() *Template {
	cp := *t
	cp.Skills = append([]SkillID(nil), t.Skills...)
	return &cp
}

// EncounterKind is the kind of battle an encounter starts
type EncounterKind string

const (
	EncounterWild      EncounterKind = "wild"
	EncounterMiniBoss  EncounterKind = "mini_boss"
	EncounterStageBoss EncounterKind = "stage_boss"
)

// Boss reports whether the encounter is against a boss
func (k EncounterKind) Boss() bool {
	return k == EncounterMiniBoss || k == EncounterStageBoss
}

// EncounterTable lists the enemies an encounter kind can spawn
type EncounterTable struct {
	Kind     EncounterKind `yaml:"kind" json:"kind"`
	Enemies  []string      `yaml:"enemies" json:"enemies"` // template IDs
	MinLevel int           `yaml:"min_level" json:"minLevel"`
	MaxLevel int           `yaml:"max_level" json:"maxLevel"`
}

// Data is the raw, unvalidated catalog contents
type Data struct {
	Skills     []*Skill          `yaml:"skills" json:"skills"`
	Templates  []*Template       `yaml:"templates" json:"templates"`
	Encounters []*EncounterTable `yaml:"encounters" json:"encounters"`
}
