package game

import (
	"context"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/samber/lo"

	"github.com/yourusername/monster-battle/internal/catalog"
)

// Session lifecycle events
const (
	eventStart = "start"
	eventWin   = "win"
	eventLose  = "lose"
	eventFlee  = "flee"
)

func newMachine(initial State) *fsm.FSM {
	return fsm.NewFSM(
		string(initial),
		fsm.Events{
			{Name: eventStart, Src: []string{string(StateIdle)}, Dst: string(StateInProgress)},
			{Name: eventWin, Src: []string{string(StateInProgress)}, Dst: string(StateVictory)},
			{Name: eventLose, Src: []string{string(StateInProgress)}, Dst: string(StateDefeat)},
			{Name: eventFlee, Src: []string{string(StateInProgress)}, Dst: string(StateFled)},
		},
		fsm.Callbacks{},
	)
}

// Session holds all state for one battle, from encounter to outcome.
// A session is not safe for concurrent use; callers resolve one turn at a time.
type Session struct {
	ID         string
	Encounter  catalog.EncounterKind
	Turn       int
	// Experience is what each surviving party member earned for a victory
	Experience int

	sides      map[Side][]*Combatant
	current    map[Side]int
	machine    *fsm.FSM
	pending    []string
	transcript []string
}

// newSession creates an idle session. Both sides must have members.
func newSession(kind catalog.EncounterKind, party, enemies []*Combatant) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Encounter: kind,
		sides: map[Side][]*Combatant{
			SidePlayer: party,
			SideEnemy:  enemies,
		},
		current: map[Side]int{SidePlayer: 0, SideEnemy: 0},
		machine: newMachine(StateIdle),
	}
}

// State returns the session's lifecycle state
func (s *Session) State() State {
	return State(s.machine.Current())
}

// Boss reports whether the session is a boss battle
func (s *Session) Boss() bool {
	return s.Encounter.Boss()
}

// Side returns the combatants of a side in order
func (s *Session) Side(side Side) []*Combatant {
	return s.sides[side]
}

// Current returns the active combatant of a side
func (s *Session) Current(side Side) *Combatant {
	members := s.sides[side]
	idx := s.current[side]
	if idx < 0 || idx >= len(members) {
		return nil
	}
	return members[idx]
}

// Living returns the non-defeated combatants of a side
func (s *Session) Living(side Side) []*Combatant {
	return lo.Filter(s.sides[side], func(c *Combatant, _ int) bool { return !c.Defeated })
}

// AllDefeated reports whether every combatant of a side is down
func (s *Session) AllDefeated(side Side) bool {
	return lo.EveryBy(s.sides[side], func(c *Combatant) bool { return c.Defeated })
}

// Combatant finds a combatant on either side by ID
func (s *Session) Combatant(id string) (*Combatant, bool) {
	for _, side := range []Side{SidePlayer, SideEnemy} {
		if c, ok := lo.Find(s.sides[side], func(c *Combatant) bool { return c.ID == id }); ok {
			return c, true
		}
	}
	return nil, false
}

// setCurrent makes the combatant with id the active one of its side
func (s *Session) setCurrent(side Side, id string) bool {
	_, idx, ok := lo.FindIndexOf(s.sides[side], func(c *Combatant) bool { return c.ID == id })
	if !ok {
		return false
	}
	s.current[side] = idx
	return true
}

// promote replaces a defeated current combatant with the next living one.
// Returns the new current combatant, or nil if the side has none left.
func (s *Session) promote(side Side) *Combatant {
	cur := s.Current(side)
	if cur != nil && !cur.Defeated {
		return nil
	}
	next, idx, ok := lo.FindIndexOf(s.sides[side], func(c *Combatant) bool { return !c.Defeated })
	if !ok {
		return nil
	}
	s.current[side] = idx
	return next
}

func (s *Session) fire(event string) error {
	return s.machine.Event(context.Background(), event)
}

func (s *Session) log(lines ...string) {
	s.pending = append(s.pending, lines...)
	s.transcript = append(s.transcript, lines...)
}

// DrainLog returns and clears the queue of pending log messages
func (s *Session) DrainLog() []string {
	out := s.pending
	s.pending = nil
	return out
}

// Transcript returns every log line of the battle so far
func (s *Session) Transcript() []string {
	return append([]string(nil), s.transcript...)
}

// clone makes a deep copy that can be mutated without touching s
func (s *Session) clone() *Session {
	cp := &Session{
		ID:         s.ID,
		Encounter:  s.Encounter,
		Turn:       s.Turn,
		Experience: s.Experience,
		sides:      make(map[Side][]*Combatant, len(s.sides)),
		current:    make(map[Side]int, len(s.current)),
		machine:    newMachine(s.State()),
		pending:    append([]string(nil), s.pending...),
		transcript: append([]string(nil), s.transcript...),
	}
	for side, members := range s.sides {
		cp.sides[side] = lo.Map(members, func(c *Combatant, _ int) *Combatant { return c.clone() })
	}
	for side, idx := range s.current {
		cp.current[side] = idx
	}
	return cp
}

// commit replaces s with a fully resolved working copy
func (s *Session) commit(work *Session) {
	*s = *work
}

// Snapshot builds a frontend view of the session
func (s *Session) Snapshot() *SessionSnapshot {
	views := func(side Side) []*CombatantView {
		cur := s.Current(side)
		return lo.Map(s.sides[side], func(c *Combatant, _ int) *CombatantView {
			return c.view(c == cur)
		})
	}
	return &SessionSnapshot{
		ID:         s.ID,
		Encounter:  s.Encounter,
		State:      s.State(),
		Turn:       s.Turn,
		Experience: s.Experience,
		Player:     views(SidePlayer),
		Enemy:      views(SideEnemy),
		GameOver:   s.State().Terminal(),
	}
}
