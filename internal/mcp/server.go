package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/yourusername/monster-battle/internal/catalog"
	"github.com/yourusername/monster-battle/internal/db"
	"github.com/yourusername/monster-battle/internal/game"
)

// SkillLister lists the skills the catalog knows
type SkillLister interface {
	Skills() []*catalog.Skill
}

// ReportStore records finished battles
type ReportStore interface {
	SaveReport(ctx context.Context, r *db.Report) error
}

// Server implements the MCP protocol for monster battles
type Server struct {
	resolver     *game.Resolver
	skills       SkillLister
	reports      ReportStore
	defaultParty []string
	sessions     *registry
}

// Option configures a Server
type Option func(*Server)

// WithReports records every finished battle in store
func WithReports(store ReportStore) Option {
	return func(s *Server) { s.reports = store }
}

// WithDefaultParty sets the roster used when begin_encounter names no party
func WithDefaultParty(ids []string) Option {
	return func(s *Server) { s.defaultParty = append([]string(nil), ids...) }
}

// WithSessionTTL sets how long ended battles stay readable and how long a
// battle in progress may sit untouched. Zero keeps them indefinitely.
func WithSessionTTL(finished, idle time.Duration) Option {
	return func(s *Server) {
		s.sessions.finishedTTL = finished
		s.sessions.idleTTL = idle
	}
}

// WithMaxSessions caps how many battles are held at once. Zero removes the cap.
func WithMaxSessions(n int) Option {
	return func(s *Server) { s.sessions.max = n }
}

// NewServer creates a new MCP server instance
func NewServer(resolver *game.Resolver, skills SkillLister, opts ...Option) *Server {
	s := &Server{
		resolver: resolver,
		skills:   skills,
		sessions: newRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tool represents an MCP tool definition
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"inputSchema"`
}

// ToolResult represents the result of a tool call
type ToolResult struct {
	Content []ContentBlock        `json:"content"`
	IsError bool                  `json:"isError,omitempty"`
	Battle  *game.SessionSnapshot `json:"battle,omitempty"`
}

// ContentBlock represents a content block in the result
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func textResult(text string) *ToolResult {
	return &ToolResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(text string) *ToolResult {
	r := textResult(text)
	r.IsError = true
	return r
}

// ListTools returns all available MCP tools
func (s *Server) ListTools() []Tool {
	sessionID := map[string]interface{}{
		"type":        "string",
		"description": "ID returned by begin_encounter",
	}
	return []Tool{
		{
			Name:        "begin_encounter",
			Description: "Start a battle between your party and a generated enemy line-up",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"party": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Roster template IDs for your party, in send-out order",
					},
					"encounter": map[string]interface{}{
						"type":        "string",
						"description": "Kind of encounter",
						"enum":        []string{string(catalog.EncounterWild), string(catalog.EncounterMiniBoss), string(catalog.EncounterStageBoss)},
					},
				},
			},
		},
		{
			Name:        "resolve_turn",
			Description: "Act with your current combatant; the enemy answers and end-of-turn effects apply",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionID,
					"action": map[string]interface{}{
						"type":        "string",
						"description": "What to do this turn",
						"enum": []string{string(game.ActionUseSkill), string(game.ActionDefend),
							string(game.ActionFlee), string(game.ActionSwitch)},
					},
					"skill_id": map[string]interface{}{
						"type":        "string",
						"description": "Skill to use (use_skill only)",
					},
					"target_id": map[string]interface{}{
						"type":        "string",
						"description": "Combatant to target, or the party member to switch in",
					},
				},
				"required": []string{"session_id", "action"},
			},
		},
		{
			Name:        "battle_status",
			Description: "Show both sides of a battle",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionID,
				},
				"required": []string{"session_id"},
			},
		},
		{
			Name:        "list_skills",
			Description: "List every skill in the catalog",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// CallTool executes an MCP tool. Player mistakes come back as an error
// result; the returned error is reserved for malformed calls.
func (s *Server) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*ToolResult, error) {
	result, err := s.callTool(ctx, name, arguments)
	if err != nil {
		glog.Warningf("mcp: %s: %v", name, err)
		return nil, err
	}
	if glog.V(2) {
		glog.Infof("mcp: %s result: %s", name, toJSON(result))
	}
	return result, nil
}

func (s *Server) callTool(ctx context.Context, name string, arguments map[string]interface{}) (*ToolResult, error) {
	switch name {
	case "begin_encounter":
		party, err := stringList(arguments["party"])
		if err != nil {
			return nil, errors.Wrap(err, "invalid party")
		}
		kind, _ := arguments["encounter"].(string)
		if kind == "" {
			kind = string(catalog.EncounterWild)
		}
		return s.handleBeginEncounter(ctx, party, catalog.EncounterKind(kind))
	case "resolve_turn":
		id, ok := arguments["session_id"].(string)
		if !ok {
			return nil, fmt.Errorf("invalid session_id")
		}
		kind, ok := arguments["action"].(string)
		if !ok {
			return nil, fmt.Errorf("invalid action")
		}
		skill, _ := arguments["skill_id"].(string)
		target, _ := arguments["target_id"].(string)
		return s.handleResolveTurn(ctx, id, game.Action{
			Kind:     game.ActionKind(kind),
			SkillID:  catalog.SkillID(skill),
			TargetID: target,
		})
	case "battle_status":
		id, ok := arguments["session_id"].(string)
		if !ok {
			return nil, fmt.Errorf("invalid session_id")
		}
		return s.handleBattleStatus(id)
	case "list_skills":
		return s.handleListSkills()
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// Begin starts a battle and registers its session. An empty party uses the
// default party.
func (s *Server) Begin(ctx context.Context, party []string, kind catalog.EncounterKind) (*game.Session, []string, error) {
	if len(party) == 0 {
		party = s.defaultParty
	}
	switch kind {
	case catalog.EncounterWild, catalog.EncounterMiniBoss, catalog.EncounterStageBoss:
	default:
		return nil, nil, errors.Wrapf(ErrUnknownEncounter, "%q", kind)
	}

	session, err := s.resolver.BeginEncounter(ctx, party, kind)
	if err != nil {
		return nil, nil, err
	}
	s.sessions.add(session)
	return session, session.DrainLog(), nil
}

// Turn resolves one turn on a registered session. Errors are either
// ErrUnknownSession or a game rejection.
func (s *Server) Turn(ctx context.Context, id string, a game.Action) (*game.TurnResult, *game.SessionSnapshot, error) {
	entry, err := s.sessions.get(id)
	if err != nil {
		return nil, nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	result, err := s.resolver.ResolveTurn(entry.session, a)
	s.sessions.touch(id, entry.session.State().Terminal())
	if err != nil {
		return nil, nil, err
	}
	entry.session.DrainLog()

	if result.State.Terminal() {
		s.record(ctx, entry.session)
	}
	return result, entry.session.Snapshot(), nil
}

// Status returns the current view of a registered session
func (s *Server) Status(id string) (*game.SessionSnapshot, error) {
	entry, err := s.sessions.get(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	s.sessions.touch(id, entry.session.State().Terminal())
	return entry.session.Snapshot(), nil
}

// Sessions lists the ids of every registered session
func (s *Server) Sessions() []string {
	return s.sessions.ids()
}

// Sweep drops battles that ended or went idle past their TTL and returns how
// many were removed
func (s *Server) Sweep() int {
	n := s.sessions.sweep()
	if n > 0 {
		glog.V(1).Infof("mcp: expired %d battle sessions", n)
	}
	return n
}

// Skills lists the catalog
func (s *Server) Skills() []*catalog.Skill {
	return s.skills.Skills()
}

func (s *Server) record(ctx context.Context, session *game.Session) {
	if s.reports == nil {
		return
	}
	report, err := db.NewReport(session)
	if err != nil {
		glog.Errorf("mcp: build report for %s: %v", session.ID, err)
		return
	}
	if err := s.reports.SaveReport(ctx, report); err != nil {
		glog.Errorf("mcp: save report for %s: %v", session.ID, err)
		return
	}
	glog.V(1).Infof("mcp: recorded %s battle %s (%s)", report.Encounter, report.ID, report.Outcome)
}

// handleBeginEncounter starts a new battle
func (s *Server) handleBeginEncounter(ctx context.Context, party []string, kind catalog.EncounterKind) (*ToolResult, error) {
	session, intro, err := s.Begin(ctx, party, kind)
	if err != nil {
		glog.Warningf("mcp: begin_encounter: %v", err)
		return errorResult(fmt.Sprintf("Could not start the battle: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("=== BATTLE START ===\n\n")
	sb.WriteString(strings.Join(intro, "\n"))
	sb.WriteString("\n\n")
	sb.WriteString(describeCurrent(session.Current(game.SidePlayer), session.Current(game.SideEnemy)))
	sb.WriteString(fmt.Sprintf("\nSession: %s", session.ID))

	return &ToolResult{
		Content: []ContentBlock{{Type: "text", Text: sb.String()}},
		Battle:  session.Snapshot(),
	}, nil
}

// handleResolveTurn plays one turn
func (s *Server) handleResolveTurn(ctx context.Context, id string, a game.Action) (*ToolResult, error) {
	result, snapshot, err := s.Turn(ctx, id, a)
	if err != nil {
		return s.rejection(id, err), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("=== TURN %d ===\n\n", result.Turn))
	sb.WriteString(strings.Join(result.Lines, "\n"))

	switch result.State {
	case game.StateVictory:
		sb.WriteString("\n\n*** VICTORY ***")
	case game.StateDefeat:
		sb.WriteString("\n\n*** DEFEAT ***")
	case game.StateFled:
		sb.WriteString("\n\nYou escaped the battle.")
	}

	return &ToolResult{
		Content: []ContentBlock{{Type: "text", Text: sb.String()}},
		Battle:  snapshot,
	}, nil
}

// rejection turns a refused turn into a player-facing result
func (s *Server) rejection(id string, err error) *ToolResult {
	if errors.Is(err, ErrUnknownSession) {
		return errorResult("No battle with that session id. Use 'begin_encounter' to start one.")
	}
	rej, ok := game.IsRejection(err)
	if !ok {
		glog.Errorf("mcp: session %s: %v", id, err)
		return errorResult("The turn could not be resolved.")
	}

	glog.Warningf("mcp: session %s: turn rejected: %s", id, rej.Message)
	result := errorResult(rej.Message)
	if snapshot, err := s.Status(id); err == nil {
		result.Battle = snapshot
	}
	return result
}

// handleBattleStatus shows both sides
func (s *Server) handleBattleStatus(id string) (*ToolResult, error) {
	snapshot, err := s.Status(id)
	if err != nil {
		return s.rejection(id, err), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("=== BATTLE (turn %d, %s) ===\n", snapshot.Turn, snapshot.State))
	sb.WriteString("\nYour party:\n")
	writeSide(&sb, snapshot.Player)
	sb.WriteString("\nEnemies:\n")
	writeSide(&sb, snapshot.Enemy)

	return &ToolResult{
		Content: []ContentBlock{{Type: "text", Text: sb.String()}},
		Battle:  snapshot,
	}, nil
}

// handleListSkills lists the catalog
func (s *Server) handleListSkills() (*ToolResult, error) {
	var sb strings.Builder
	sb.WriteString("=== SKILLS ===\n\n")
	for _, skill := range s.skills.Skills() {
		sb.WriteString(fmt.Sprintf("%s (%s): %s, %s, cost %d SP",
			skill.Name, skill.ID, skill.Category, skill.Target, skill.Cost))
		if skill.Description != "" {
			sb.WriteString(" - " + skill.Description)
		}
		sb.WriteString("\n")
	}
	return textResult(sb.String()), nil
}

func describeCurrent(player, enemy *game.Combatant) string {
	return fmt.Sprintf("%s (Lv.%d) HP %d/%d SP %d/%d vs %s (Lv.%d) HP %d/%d\n",
		player.Name, player.Level, player.HP, player.MaxHP, player.SP, player.MaxSP,
		enemy.Name, enemy.Level, enemy.HP, enemy.MaxHP)
}

func writeSide(sb *strings.Builder, side []*game.CombatantView) {
	for _, c := range side {
		marker := " "
		if c.Current {
			marker = "*"
		}
		sb.WriteString(fmt.Sprintf("%s %s (Lv.%d) [%s] HP %d/%d SP %d/%d  id=%s\n",
			marker, c.Name, c.Level, c.Status, c.HP, c.MaxHP, c.SP, c.MaxSP, c.ID))
		if len(c.Statuses) > 0 {
			kinds := lo.Map(c.Statuses, func(e *game.StatusEffect, _ int) string {
				return fmt.Sprintf("%s(%d)", e.Kind, e.Turns)
			})
			sb.WriteString("    effects: " + strings.Join(kinds, ", ") + "\n")
		}
		if c.Current && len(c.Skills) > 0 {
			sb.WriteString("    skills: " + strings.Join(c.Skills, ", ") + "\n")
		}
	}
}

// stringList reads a JSON array of strings from decoded tool arguments
func stringList(v interface{}) ([]string, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return list, nil
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			str, ok := item.(string)
			if !ok {
				return nil, errors.Errorf("expected string, got %T", item)
			}
			out = append(out, str)
		}
		return out, nil
	case string:
		return lo.Filter(strings.Split(list, ","), func(s string, _ int) bool { return s != "" }), nil
	}
	return nil, errors.Errorf("expected a list of strings, got %T", v)
}

// Helper to marshal to JSON for debugging
func toJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
