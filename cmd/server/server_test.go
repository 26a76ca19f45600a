package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/monster-battle/internal/catalog"
	"github.com/yourusername/monster-battle/internal/config"
	"github.com/yourusername/monster-battle/internal/db"
	"github.com/yourusername/monster-battle/internal/game"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	c := config.Default()
	c.DBPath = ":memory:"
	c.Seed = 5

	a, err := openApp(context.Background(), c)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return newServer(a)
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func createBattle(t *testing.T, s *Server, party []string) *game.SessionSnapshot {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/v1/battles", createBattleRequest{Party: party})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp battleResponse
	decode(t, rec, &resp)
	require.NotNil(t, resp.Battle)
	assert.NotEmpty(t, resp.Lines)
	return resp.Battle
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/battles", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestBattleLifecycle(t *testing.T) {
	s := newTestServer(t)
	battle := createBattle(t, s, []string{"sparkit", "mossling"})
	assert.Equal(t, game.StateInProgress, battle.State)

	rec := do(t, s, http.MethodGet, "/api/v1/battles/"+battle.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var last turnResponse
	for i := 0; i < 200; i++ {
		rec = do(t, s, http.MethodPost, "/api/v1/battles/"+battle.ID+"/turns",
			game.Action{Kind: game.ActionUseSkill, SkillID: "tackle"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &last)
		if last.Battle.GameOver {
			break
		}
	}
	require.True(t, last.Battle.GameOver)
	assert.Equal(t, last.Battle.State, last.Result.State)
	assert.NotEmpty(t, last.Result.Lines)

	rec = do(t, s, http.MethodPost, "/api/v1/battles/"+battle.ID+"/turns", game.Action{Kind: game.ActionDefend})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/reports", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var reports struct {
		Reports []*db.Report `json:"reports"`
	}
	decode(t, rec, &reports)
	require.Len(t, reports.Reports, 1)
	assert.Equal(t, battle.ID, reports.Reports[0].ID)
	assert.Equal(t, []string{"sparkit", "mossling"}, reports.Reports[0].Party)
}

func TestTurnErrors(t *testing.T) {
	s := newTestServer(t)
	battle := createBattle(t, s, []string{"sparkit"})
	turns := "/api/v1/battles/" + battle.ID + "/turns"

	tests := []struct {
		name   string
		path   string
		action game.Action
		status int
	}{
		{"unknown session", "/api/v1/battles/nope/turns", game.Action{Kind: game.ActionDefend}, http.StatusNotFound},
		{"unknown skill", turns, game.Action{Kind: game.ActionUseSkill, SkillID: "nope"}, http.StatusUnprocessableEntity},
		{"not enough sp", turns, game.Action{Kind: game.ActionUseSkill, SkillID: "final_deadline"}, http.StatusUnprocessableEntity},
		{"bad target", turns, game.Action{Kind: game.ActionUseSkill, SkillID: "tackle", TargetID: "ghost"}, http.StatusUnprocessableEntity},
		{"unknown action", turns, game.Action{Kind: "dance"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.path, tt.action)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var body map[string]string
			decode(t, rec, &body)
			assert.NotEmpty(t, body["error"])
		})
	}

	rec := do(t, s, http.MethodGet, "/api/v1/battles/"+battle.ID, nil)
	var resp battleResponse
	decode(t, rec, &resp)
	assert.Equal(t, 0, resp.Battle.Turn, "rejected turns change nothing")

	req := httptest.NewRequest(http.MethodPost, turns, strings.NewReader("{"))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestCreateBattleErrors(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/battles", createBattleRequest{Party: []string{"missingno"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/battles", createBattleRequest{Encounter: "raid"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/battles/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/battles", createBattleRequest{Party: []string{}, Encounter: "raid"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown encounter kind")

	// empty party uses the configured default
	rec = do(t, s, http.MethodPost, "/api/v1/battles", createBattleRequest{Encounter: catalog.EncounterMiniBoss})
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp battleResponse
	decode(t, rec, &resp)
	assert.Len(t, resp.Battle.Player, 2)
	assert.Equal(t, "Ironjaw", resp.Battle.Enemy[0].Name)
}

func TestCreateBattleStoreFailureIsServerError(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.store.Close())

	rec := do(t, s, http.MethodPost, "/api/v1/battles", createBattleRequest{Party: []string{"sparkit"}})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal error")
}

func TestHealthCountsSessions(t *testing.T) {
	s := newTestServer(t)
	createBattle(t, s, []string{"sparkit"})

	rec := do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, 1, body.Sessions)
}

func TestMCPOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/mcp/tools", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "resolve_turn")

	rec = do(t, s, http.MethodPost, "/mcp/call", map[string]interface{}{
		"name":      "begin_encounter",
		"arguments": map[string]interface{}{"party": []string{"pebblor"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var result struct {
		IsError bool                  `json:"isError"`
		Battle  *game.SessionSnapshot `json:"battle"`
	}
	decode(t, rec, &result)
	assert.False(t, result.IsError)
	require.NotNil(t, result.Battle)

	rec = do(t, s, http.MethodPost, "/mcp/call", map[string]interface{}{"name": "summon"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSkillsEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/v1/skills", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Skills []*catalog.Skill `json:"skills"`
	}
	decode(t, rec, &body)
	assert.NotEmpty(t, body.Skills)
	assert.Equal(t, catalog.SkillID("tackle"), body.Skills[0].ID)

	rec = do(t, s, http.MethodGet, "/api/v1/reports?limit=x", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSimulate(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	var out bytes.Buffer
	session, err := simulate(context.Background(), &out, cat, []string{"sparkit"}, catalog.EncounterWild, 11, 300)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Go, Sparkit!")
	assert.Contains(t, out.String(), "-- Turn 1 --")
	assert.Contains(t, out.String(), "Result: "+string(session.State()))
}
