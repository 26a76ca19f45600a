package mcp

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/yourusername/monster-battle/internal/game"
)

// ErrUnknownSession is returned for a session id the server never issued,
// or one that has since expired
var ErrUnknownSession = errors.New("unknown battle session")

// ErrUnknownEncounter is returned for an encounter kind other than wild,
// mini_boss or stage_boss
var ErrUnknownEncounter = errors.New("unknown encounter kind")

// Session retention defaults
const (
	DefaultFinishedTTL = 5 * time.Minute  // how long an ended battle stays readable
	DefaultIdleTTL     = 30 * time.Minute // how long an untouched battle in progress is kept
	DefaultMaxSessions = 1000
)

// sessionEntry serializes turns on one session. lastUsed and finished are
// guarded by the registry lock.
type sessionEntry struct {
	mu       sync.Mutex
	session  *game.Session
	lastUsed time.Time
	finished bool
}

// registry tracks live battle sessions by id and drops them once they have
// ended or gone idle for too long
type registry struct {
	mu          sync.RWMutex
	sessions    map[string]*sessionEntry
	finishedTTL time.Duration
	idleTTL     time.Duration
	max         int
	now         func() time.Time
}

func newRegistry() *registry {
	return &registry{
		sessions:    make(map[string]*sessionEntry),
		finishedTTL: DefaultFinishedTTL,
		idleTTL:     DefaultIdleTTL,
		max:         DefaultMaxSessions,
		now:         time.Now,
	}
}

// add registers s, expiring stale sessions first and evicting the least
// recently used one when the registry is full
func (r *registry) add(s *game.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked()
	for r.max > 0 && len(r.sessions) >= r.max {
		r.evictLocked()
	}
	r.sessions[s.ID] = &sessionEntry{session: s, lastUsed: r.now()}
}

func (r *registry) get(id string) (*sessionEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSession, "session %q", id)
	}
	return e, nil
}

// touch records activity on a session. An ended session keeps the time it
// ended, so reading it does not extend its grace period.
func (r *registry) touch(id string, finished bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok || e.finished {
		return
	}
	e.lastUsed = r.now()
	e.finished = finished
}

// sweep drops expired sessions and returns how many were removed
func (r *registry) sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked()
}

func (r *registry) sweepLocked() int {
	now := r.now()
	removed := 0
	for id, e := range r.sessions {
		ttl := r.idleTTL
		if e.finished {
			ttl = r.finishedTTL
		}
		if ttl > 0 && now.Sub(e.lastUsed) >= ttl {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

func (r *registry) evictLocked() {
	if len(r.sessions) == 0 {
		return
	}
	oldest := lo.MinBy(lo.Entries(r.sessions), func(a, b lo.Entry[string, *sessionEntry]) bool {
		return a.Value.lastUsed.Before(b.Value.lastUsed)
	})
	delete(r.sessions, oldest.Key)
}

// ids lists the sessions currently held
func (r *registry) ids() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.sessions)
}
