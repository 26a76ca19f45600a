package mcp

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/monster-battle/internal/catalog"
	"github.com/yourusername/monster-battle/internal/db"
	"github.com/yourusername/monster-battle/internal/game"
	"github.com/yourusername/monster-battle/internal/generator"
)

type memoryReports struct {
	mu      sync.Mutex
	reports []*db.Report
}

func (m *memoryReports) SaveReport(_ context.Context, r *db.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return nil
}

func (m *memoryReports) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reports)
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *memoryReports) {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)

	resolver := game.NewResolver(cat, cat, generator.NewEncounterGenerator(cat, 1), game.WithSeed(1))
	reports := &memoryReports{}
	base := []Option{WithReports(reports), WithDefaultParty([]string{"sparkit", "mossling"})}
	return NewServer(resolver, cat, append(base, opts...)...), reports
}

func text(r *ToolResult) string {
	var parts []string
	for _, c := range r.Content {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n")
}

func begin(t *testing.T, s *Server, args map[string]interface{}) *ToolResult {
	t.Helper()
	res, err := s.CallTool(context.Background(), "begin_encounter", args)
	require.NoError(t, err)
	require.False(t, res.IsError, text(res))
	require.NotNil(t, res.Battle)
	return res
}

func TestListTools(t *testing.T) {
	s, _ := newTestServer(t)

	var names []string
	for _, tool := range s.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{"begin_encounter", "resolve_turn", "battle_status", "list_skills"}, names)
}

func TestBeginEncounter(t *testing.T) {
	s, _ := newTestServer(t)

	res := begin(t, s, map[string]interface{}{
		"party":     []interface{}{"sparkit"},
		"encounter": "stage_boss",
	})
	assert.Contains(t, text(res), "=== BATTLE START ===")
	assert.Contains(t, text(res), "This is a boss battle!")
	assert.Contains(t, text(res), "Session: "+res.Battle.ID)
	assert.Equal(t, game.StateInProgress, res.Battle.State)
	assert.Len(t, res.Battle.Player, 1)
	assert.Equal(t, "The Auditor", res.Battle.Enemy[0].Name)
	assert.Contains(t, s.Sessions(), res.Battle.ID)

	// no party falls back to the default one
	res = begin(t, s, map[string]interface{}{})
	assert.Len(t, res.Battle.Player, 2)
	assert.Equal(t, catalog.EncounterWild, res.Battle.Encounter)
}

func TestBeginEncounterErrors(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	res, err := s.CallTool(ctx, "begin_encounter", map[string]interface{}{"party": []interface{}{"missingno"}})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "missingno")

	res, err = s.CallTool(ctx, "begin_encounter", map[string]interface{}{"encounter": "raid"})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	_, _, err = s.Begin(ctx, nil, "raid")
	assert.ErrorIs(t, err, ErrUnknownEncounter)

	_, err = s.CallTool(ctx, "begin_encounter", map[string]interface{}{"party": []interface{}{42}})
	assert.Error(t, err)

	_, err = s.CallTool(ctx, "summon", nil)
	assert.Error(t, err)
}

func TestRejectedTurnIsAnErrorResult(t *testing.T) {
	s, reports := newTestServer(t)
	ctx := context.Background()
	id := begin(t, s, map[string]interface{}{"party": []interface{}{"sparkit"}}).Battle.ID

	res, err := s.CallTool(ctx, "resolve_turn", map[string]interface{}{
		"session_id": id,
		"action":     "use_skill",
		"skill_id":   "nope",
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, `unknown skill "nope"`, text(res))
	require.NotNil(t, res.Battle)
	assert.Equal(t, 0, res.Battle.Turn)

	res, err = s.CallTool(ctx, "resolve_turn", map[string]interface{}{
		"session_id": id,
		"action":     "use_skill",
		"skill_id":   "final_deadline",
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "needs 50 SP")

	res, err = s.CallTool(ctx, "resolve_turn", map[string]interface{}{"session_id": "nope", "action": "defend"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "No battle")

	_, err = s.CallTool(ctx, "resolve_turn", map[string]interface{}{"session_id": id})
	assert.Error(t, err)

	assert.Zero(t, reports.count())
}

func TestBattleRunsToTheEndAndIsRecorded(t *testing.T) {
	s, reports := newTestServer(t)
	ctx := context.Background()
	id := begin(t, s, map[string]interface{}{"party": []interface{}{"sparkit", "mossling"}}).Battle.ID

	var last *ToolResult
	for i := 0; i < 200; i++ {
		res, err := s.CallTool(ctx, "resolve_turn", map[string]interface{}{
			"session_id": id,
			"action":     "use_skill",
			"skill_id":   "tackle",
		})
		require.NoError(t, err)
		require.False(t, res.IsError, text(res))
		last = res
		if last.Battle.GameOver {
			break
		}
	}

	require.NotNil(t, last)
	require.True(t, last.Battle.GameOver)
	assert.Contains(t, text(last), "===")
	assert.Equal(t, 1, reports.count())
	assert.Equal(t, id, reports.reports[0].ID)
	assert.Equal(t, last.Battle.State, reports.reports[0].Outcome)

	res, err := s.CallTool(ctx, "resolve_turn", map[string]interface{}{"session_id": id, "action": "defend"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "accepts no further actions")
	assert.Equal(t, 1, reports.count())
}

func TestBattleStatusAndSkills(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	id := begin(t, s, map[string]interface{}{"party": "sparkit,mossling"}).Battle.ID

	res, err := s.CallTool(ctx, "battle_status", map[string]interface{}{"session_id": id})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, text(res), "Your party:")
	assert.Contains(t, text(res), "* Sparkit")
	assert.Contains(t, text(res), "  Mossling")

	res, err = s.CallTool(ctx, "list_skills", nil)
	require.NoError(t, err)
	assert.Contains(t, text(res), "Tackle (tackle)")
	assert.Len(t, s.Skills(), 14)
}

func TestConcurrentTurnsAreSerialized(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	id := begin(t, s, map[string]interface{}{"party": []interface{}{"mossling"}}).Battle.ID

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.Turn(ctx, id, game.Action{Kind: game.ActionDefend})
			if err == nil {
				mu.Lock()
				applied++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, game.ErrSessionTerminal)
		}()
	}
	wg.Wait()

	snapshot, err := s.Status(id)
	require.NoError(t, err)
	assert.Equal(t, applied, snapshot.Turn)
}

// fakeClock lets tests move session expiry forward
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func fleeUntilOver(t *testing.T, s *Server, id string) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		_, snapshot, err := s.Turn(ctx, id, game.Action{Kind: game.ActionFlee})
		require.NoError(t, err)
		if snapshot.GameOver {
			return
		}
	}
	t.Fatalf("battle %s did not end", id)
}

func TestFinishedSessionsAreReleased(t *testing.T) {
	s, reports := newTestServer(t)
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	s.sessions.now = clock.Now
	ctx := context.Background()

	var ids []string
	for i := 0; i < 200; i++ {
		session, _, err := s.Begin(ctx, []string{"sparkit"}, catalog.EncounterWild)
		require.NoError(t, err)
		fleeUntilOver(t, s, session.ID)
		ids = append(ids, session.ID)
	}
	assert.Equal(t, 200, reports.count())

	// ended battles stay readable for a grace period, and reading them does not extend it
	clock.Advance(DefaultFinishedTTL - time.Second)
	_, err := s.Status(ids[0])
	require.NoError(t, err)
	_, _, err = s.Turn(ctx, ids[0], game.Action{Kind: game.ActionDefend})
	assert.ErrorIs(t, err, game.ErrSessionTerminal)
	assert.Zero(t, s.Sweep())
	assert.Len(t, s.Sessions(), 200)

	clock.Advance(time.Second)
	assert.Equal(t, 200, s.Sweep())
	assert.Empty(t, s.Sessions())

	_, err = s.Status(ids[0])
	assert.ErrorIs(t, err, ErrUnknownSession)
	assert.Equal(t, 200, reports.count())
}

func TestIdleSessionsExpire(t *testing.T) {
	s, _ := newTestServer(t)
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	s.sessions.now = clock.Now
	ctx := context.Background()

	active, _, err := s.Begin(ctx, []string{"sparkit"}, catalog.EncounterWild)
	require.NoError(t, err)
	idle, _, err := s.Begin(ctx, []string{"sparkit"}, catalog.EncounterWild)
	require.NoError(t, err)

	clock.Advance(DefaultIdleTTL - time.Minute)
	_, err = s.Status(active.ID)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, []string{active.ID}, s.Sessions())
	_, err = s.Status(idle.ID)
	assert.ErrorIs(t, err, ErrUnknownSession)

	// a new battle also clears out expired ones
	clock.Advance(DefaultIdleTTL)
	fresh, _, err := s.Begin(ctx, []string{"sparkit"}, catalog.EncounterWild)
	require.NoError(t, err)
	assert.Equal(t, []string{fresh.ID}, s.Sessions())
}

func TestSessionCapEvictsLeastRecentlyUsed(t *testing.T) {
	s, _ := newTestServer(t, WithMaxSessions(3), WithSessionTTL(0, 0))
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	s.sessions.now = clock.Now
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		session, _, err := s.Begin(ctx, []string{"sparkit"}, catalog.EncounterWild)
		require.NoError(t, err)
		ids = append(ids, session.ID)
		clock.Advance(time.Second)
	}

	// touching the oldest makes the second one the eviction candidate
	_, err := s.Status(ids[0])
	require.NoError(t, err)
	clock.Advance(time.Second)

	extra, _, err := s.Begin(ctx, []string{"sparkit"}, catalog.EncounterWild)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{ids[0], ids[2], extra.ID}, s.Sessions())
	assert.Zero(t, s.Sweep())
}
