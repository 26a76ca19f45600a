package game

import (
	"context"
	"fmt"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/yourusername/monster-battle/internal/catalog"
)

// SkillCatalog resolves skill identifiers to definitions
type SkillCatalog interface {
	Skill(id catalog.SkillID) (*catalog.Skill, bool)
}

// RosterProvider resolves roster identifiers to combatant templates
type RosterProvider interface {
	Template(ctx context.Context, id string) (*catalog.Template, error)
}

// EncounterSource produces the enemy line-up for an encounter kind
type EncounterSource interface {
	Enemies(ctx context.Context, kind catalog.EncounterKind) ([]*catalog.Template, error)
}

// Resolver starts battles and resolves their turns. It holds no per-battle
// state, so one resolver can serve many sessions.
type Resolver struct {
	skills     SkillCatalog
	roster     RosterProvider
	encounters EncounterSource
	formula    Formula
	policy     Policy
	dice       *Dice
}

// Option configures a Resolver
type Option func(*Resolver)

// WithSeed makes every random roll reproducible
func WithSeed(seed int64) Option {
	return func(r *Resolver) { r.dice = NewDice(seed) }
}

// WithFormula replaces the damage/heal formula
func WithFormula(f Formula) Option {
	return func(r *Resolver) { r.formula = f }
}

// WithPolicy replaces the enemy policy
func WithPolicy(p Policy) Option {
	return func(r *Resolver) { r.policy = p }
}

// NewResolver creates a resolver over a skill catalog, a roster and an
// encounter source
func NewResolver(skills SkillCatalog, roster RosterProvider, encounters EncounterSource, opts ...Option) *Resolver {
	r := &Resolver{
		skills:     skills,
		roster:     roster,
		encounters: encounters,
		formula:    StandardFormula{},
		policy:     RandomPolicy{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.dice == nil {
		r.dice = NewTimeDice()
	}
	return r
}

// BeginEncounter builds the party from roster IDs, generates the enemies for
// kind and returns a session that is in progress
func (r *Resolver) BeginEncounter(ctx context.Context, partyRoster []string, kind catalog.EncounterKind) (*Session, error) {
	if len(partyRoster) == 0 {
		return nil, ErrEmptyParty
	}
	if r.encounters == nil {
		return nil, errors.New("no encounter source configured")
	}

	party := make([]*Combatant, 0, len(partyRoster))
	for _, id := range partyRoster {
		tmpl, err := r.roster.Template(ctx, id)
		if err != nil {
			return nil, errors.Wrapf(err, "load party member %q", id)
		}
		c, err := NewCombatant(tmpl, SidePlayer, r.skills)
		if err != nil {
			return nil, err
		}
		party = append(party, c)
	}

	tmpls, err := r.encounters.Enemies(ctx, kind)
	if err != nil {
		return nil, errors.Wrapf(err, "generate %s encounter", kind)
	}
	enemies := make([]*Combatant, 0, len(tmpls))
	for _, tmpl := range tmpls {
		c, err := NewCombatant(tmpl, SideEnemy, r.skills)
		if err != nil {
			return nil, err
		}
		enemies = append(enemies, c)
	}

	return r.StartSession(kind, party, enemies)
}

// StartSession opens a battle between already-built combatants
func (r *Resolver) StartSession(kind catalog.EncounterKind, party, enemies []*Combatant) (*Session, error) {
	if len(party) == 0 || len(enemies) == 0 {
		return nil, errors.New("both sides need at least one combatant")
	}
	for _, c := range party {
		c.Side = SidePlayer
	}
	for _, c := range enemies {
		c.Side = SideEnemy
	}

	s := newSession(kind, party, enemies)
	for _, side := range []Side{SidePlayer, SideEnemy} {
		if s.AllDefeated(side) {
			return nil, errors.Errorf("%s side has no combatant able to fight", side)
		}
		s.promote(side)
	}
	if err := s.fire(eventStart); err != nil {
		return nil, errors.Wrap(err, "start session")
	}

	lead, foe := s.Current(SidePlayer), s.Current(SideEnemy)
	if kind.Boss() {
		s.log(
			fmt.Sprintf("The mighty %s (Lv.%d) appears!", foe.Name, foe.Level),
			"This is a boss battle!",
		)
	} else {
		s.log(fmt.Sprintf("A wild %s (Lv.%d) appeared!", foe.Name, foe.Level))
	}
	s.log(fmt.Sprintf("Go, %s!", lead.Name))

	glog.Infof("session %s: %s encounter started (%d vs %d)", s.ID, kind, len(party), len(enemies))
	return s, nil
}

// Suggest asks p for an action on behalf of the player's current combatant,
// for auto-play
func (r *Resolver) Suggest(s *Session, p Policy) Action {
	actor := s.Current(SidePlayer)
	if actor == nil || actor.Defeated {
		return Action{Kind: ActionDefend}
	}
	return p.Choose(s, actor, usableSkills(s, actor, r.skills), r.dice)
}

// ResolveTurn resolves one full turn for the player's current combatant.
// A turn either applies completely or is rejected with the session untouched.
func (r *Resolver) ResolveTurn(s *Session, a Action) (result *TurnResult, err error) {
	if s == nil {
		return nil, reject(ErrInvalidAction, "no battle session")
	}
	if st := s.State(); st != StateInProgress {
		return nil, reject(ErrSessionTerminal, "the battle is %s and accepts no further actions", st)
	}

	work := s.clone()
	defer func() {
		if p := recover(); p != nil {
			glog.Errorf("session %s: turn %d panicked: %v", s.ID, s.Turn+1, p)
			result, err = nil, reject(ErrInternal, "the turn could not be resolved")
		}
	}()

	lines, err := r.resolve(work, a)
	if err != nil {
		if rej, ok := IsRejection(err); ok {
			glog.V(1).Infof("session %s: rejected %s: %s", s.ID, a.Kind, rej.Message)
			return nil, err
		}
		glog.Errorf("session %s: turn %d failed: %+v", s.ID, s.Turn+1, err)
		return nil, reject(ErrInternal, "the turn could not be resolved")
	}

	s.commit(work)
	glog.V(1).Infof("session %s: turn %d resolved, state %s", s.ID, s.Turn, s.State())
	if s.State().Terminal() {
		glog.Infof("session %s: battle ended in %s after %d turns", s.ID, s.State(), s.Turn)
	}
	return &TurnResult{Turn: s.Turn, Lines: lines, State: s.State(), Experience: s.Experience}, nil
}

// resolve runs the whole turn on a working copy of the session
func (r *Resolver) resolve(s *Session, a Action) ([]string, error) {
	actor := s.Current(SidePlayer)
	if actor == nil {
		return nil, errors.New("player side has no current combatant")
	}
	if err := actor.CanAct(); err != nil {
		return nil, errors.Wrap(err, "current combatant cannot act")
	}

	p, err := r.plan(s, actor, a)
	if err != nil {
		return nil, err
	}

	t := newTurnLog(s)
	ended, err := r.execute(s, actor, p, t)
	if err != nil {
		return nil, err
	}

	if !ended {
		ended, err = r.enemyTurn(s, t)
		if err != nil {
			return nil, err
		}
	}

	if !ended {
		for _, side := range []Side{SidePlayer, SideEnemy} {
			if c := s.Current(side); c != nil && !c.Defeated {
				tickStatuses(c, t)
			}
		}
		if _, err := r.settle(s, t); err != nil {
			return nil, err
		}
	}

	s.Turn++
	return t.lines, nil
}

func (r *Resolver) enemyTurn(s *Session, t *turnLog) (bool, error) {
	enemy := s.Current(SideEnemy)
	if enemy == nil || enemy.Defeated {
		return false, errors.New("enemy side has no current combatant")
	}

	a := r.policy.Choose(s, enemy, usableSkills(s, enemy, r.skills), r.dice)
	p, err := r.plan(s, enemy, a)
	if err != nil {
		glog.Warningf("session %s: enemy policy chose %+v: %v; defending instead", s.ID, a, err)
		p = &turnPlan{kind: ActionDefend}
	}
	return r.execute(s, enemy, p, t)
}

// turnPlan is a validated action, ready to execute
type turnPlan struct {
	kind     ActionKind
	skill    *catalog.Skill
	targets  []*Combatant
	incoming *Combatant
}

// plan validates an action for actor without mutating anything
func (r *Resolver) plan(s *Session, actor *Combatant, a Action) (*turnPlan, error) {
	switch a.Kind {
	case ActionUseSkill:
		if a.SkillID == "" {
			return nil, reject(ErrInvalidSkill, "no skill selected")
		}
		skill, ok := r.skills.Skill(a.SkillID)
		if !ok {
			return nil, reject(ErrInvalidSkill, "unknown skill %q", a.SkillID)
		}
		if !actor.Knows(skill.ID) {
			return nil, reject(ErrInvalidSkill, "%s does not know %s", actor.Name, skill.Name)
		}
		if skill.Cost > actor.SP {
			return nil, reject(ErrInsufficientResource, "%s needs %d SP to use %s but has %d",
				actor.Name, skill.Cost, skill.Name, actor.SP)
		}
		targets, err := selectTargets(s, actor, skill, a.TargetID)
		if err != nil {
			return nil, err
		}
		return &turnPlan{kind: ActionUseSkill, skill: skill, targets: targets}, nil

	case ActionDefend:
		return &turnPlan{kind: ActionDefend}, nil

	case ActionFlee, ActionSwitch:
		if actor.Side != SidePlayer {
			return nil, reject(ErrInvalidAction, "only the player can %s", a.Kind)
		}
		if a.Kind == ActionFlee {
			return &turnPlan{kind: ActionFlee}, nil
		}
		incoming, ok := s.Combatant(a.TargetID)
		if !ok || incoming.Side != SidePlayer {
			return nil, reject(ErrInvalidTarget, "no party member with id %q", a.TargetID)
		}
		if incoming.Defeated {
			return nil, reject(ErrInvalidTarget, "%s has been defeated and cannot battle", incoming.Name)
		}
		if incoming == actor {
			return nil, reject(ErrInvalidTarget, "%s is already in battle", incoming.Name)
		}
		return &turnPlan{kind: ActionSwitch, incoming: incoming}, nil
	}

	return nil, reject(ErrInvalidAction, "unknown action %q", a.Kind)
}

// execute carries out a planned action and settles knockouts. Returns true
// when the session reached a terminal state.
func (r *Resolver) execute(s *Session, actor *Combatant, p *turnPlan, t *turnLog) (bool, error) {
	actor.RemoveStatus(catalog.StatusGuard)

	switch p.kind {
	case ActionUseSkill:
		if err := actor.SpendSP(p.skill.Cost); err != nil {
			return false, err
		}
		t.add("%s used %s!", actor.Name, p.skill.Name)
		if p.skill.Quote != "" {
			t.add("%s: \"%s\"", actor.Name, p.skill.Quote)
		}
		r.applySkill(actor, p.skill, p.targets, t)

	case ActionDefend:
		actor.ApplyStatus(catalog.StatusGuard, 1, 0)
		t.add("%s braces for the next attack!", actor.Name)
		if gained := actor.GainSP(SPGainOnDefend); gained > 0 {
			t.add("%s gains %d SP.", actor.Name, gained)
		}

	case ActionFlee:
		foe := s.Current(SideEnemy)
		if r.dice.Chance(fleeChance(s.Boss(), actor.Level, foe.Level)) {
			t.add("Got away safely!")
			return true, s.fire(eventFlee)
		}
		t.add("Couldn't get away!")

	case ActionSwitch:
		if !s.setCurrent(SidePlayer, p.incoming.ID) {
			return false, errors.Errorf("switch target %s vanished", p.incoming.ID)
		}
		t.add("%s, come back! Go, %s!", actor.Name, p.incoming.Name)

	default:
		return false, errors.Errorf("unplanned action %q", p.kind)
	}

	return r.settle(s, t)
}

// awardExperience gives every surviving party member the experience for all
// defeated enemies, scaled against the level of the current combatant
func awardExperience(s *Session, t *turnLog) {
	living := s.Living(SidePlayer)
	if len(living) == 0 {
		return
	}
	lead := s.Current(SidePlayer)
	if lead == nil || lead.Defeated {
		lead = living[0]
	}

	exp := 0
	for _, enemy := range s.Side(SideEnemy) {
		exp += experienceFor(enemy.Level, lead.Level, s.Boss())
	}
	s.Experience = exp

	if len(living) == 1 {
		t.add("%s gained %d experience!", living[0].Name, exp)
		return
	}
	t.add("%d party members each gained %d experience!", len(living), exp)
}

// settle checks for the end of the battle and replaces defeated current
// combatants. Returns true when the session reached a terminal state.
func (r *Resolver) settle(s *Session, t *turnLog) (bool, error) {
	if s.AllDefeated(SideEnemy) {
		t.add("All enemies have been defeated. Victory!")
		awardExperience(s, t)
		return true, s.fire(eventWin)
	}
	if s.AllDefeated(SidePlayer) {
		t.add("Your whole party has fallen...")
		return true, s.fire(eventLose)
	}

	if next := s.promote(SideEnemy); next != nil {
		t.add("The enemy sends out %s (Lv.%d)!", next.Name, next.Level)
	}
	if next := s.promote(SidePlayer); next != nil {
		t.add("Go, %s (Lv.%d)!", next.Name, next.Level)
	}
	return false, nil
}
