// Package mcp provides the MCP (Model Context Protocol) server implementation.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/xvierd/focus-cli/internal/domain"
	"github.com/xvierd/focus-cli/internal/ports"
)

const timeLayout = "2006-01-02T15:04:05"

// Server implements the MCP server using mark3labs/mcp-go.
type Server struct {
	server        *server.MCPServer
	stateProvider ports.MCPStateProvider
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewServer creates a new MCP server instance.
func NewServer(stateProvider ports.MCPStateProvider) *Server {
	s := &Server{
		stateProvider: stateProvider,
	}

	s.server = server.NewMCPServer(
		"focus-cli",
		"1.0.0",
		server.WithLogging(),
	)

	s.registerTools()

	return s
}

// registerTools registers all available MCP tools.
func (s *Server) registerTools() {
	s.server.AddTool(
		mcp.NewTool(
			"get_focus_state",
			mcp.WithDescription("Get the focus session phase, countdown, selected rule and today's stats"),
		),
		s.handleGetFocusState,
	)

	s.server.AddTool(
		mcp.NewTool(
			"list_rules",
			mcp.WithDescription("List every focus rule and which ones are shown in the picker"),
		),
		s.handleListRules,
	)

	selectTool := mcp.NewTool(
		"select_rule",
		mcp.WithDescription("Select the focus rule for the next session. Only allowed while idle."),
		mcp.WithString(
			"query",
			mcp.Required(),
			mcp.Description("Rule ID or (partial) rule name"),
		),
	)
	s.server.AddTool(selectTool, s.handleSelectRule)

	s.server.AddTool(
		mcp.NewTool(
			"start_focus",
			mcp.WithDescription("Start a focus session with the selected rule, or resume a paused one"),
		),
		s.handleStartFocus,
	)

	s.server.AddTool(
		mcp.NewTool(
			"pause_focus",
			mcp.WithDescription("Pause the local countdown of the running session"),
		),
		s.handlePauseFocus,
	)

	s.server.AddTool(
		mcp.NewTool(
			"resume_focus",
			mcp.WithDescription("Resume a paused focus session"),
		),
		s.handleResumeFocus,
	)

	s.server.AddTool(
		mcp.NewTool(
			"stop_focus",
			mcp.WithDescription("Stop the active session and switch the backend back to standard mode"),
		),
		s.handleStopFocus,
	)

	toggleTool := mcp.NewTool(
		"toggle_rule_display",
		mcp.WithDescription("Show or hide a rule in the picker (at most 3 are shown)"),
		mcp.WithString(
			"id",
			mcp.Required(),
			mcp.Description("The rule ID to toggle"),
		),
	)
	s.server.AddTool(toggleTool, s.handleToggleRuleDisplay)

	historyTool := mcp.NewTool(
		"recent_sessions",
		mcp.WithDescription("List finished focus sessions, newest first"),
		mcp.WithNumber(
			"limit",
			mcp.Description("Maximum number of sessions (default: 10)"),
		),
	)
	s.server.AddTool(historyTool, s.handleRecentSessions)
}

// Start begins serving MCP requests via stdio.
func (s *Server) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	return server.ServeStdio(s.server)
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// IsRunning returns true if the server is active.
func (s *Server) IsRunning() bool {
	if s.ctx == nil {
		return false
	}
	return s.ctx.Err() == nil
}

// Ensure Server implements ports.MCPHandler.
var _ ports.MCPHandler = (*Server)(nil)

func (s *Server) handleGetFocusState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := s.stateProvider.GetCurrentState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current state: %w", err)
	}
	return jsonResult(stateData(state))
}

func (s *Server) handleListRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rules, displayed, err := s.stateProvider.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}

	shown := make(map[string]bool, len(displayed))
	for _, id := range displayed {
		shown[id] = true
	}

	ruleList := make([]map[string]interface{}, 0, len(rules))
	for _, rule := range rules {
		data := ruleData(rule)
		data["displayed"] = shown[rule.ID]
		ruleList = append(ruleList, data)
	}

	return jsonResult(map[string]interface{}{
		"rules":       ruleList,
		"displayed":   displayed,
		"total_count": len(ruleList),
	})
}

func (s *Server) handleSelectRule(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required: " + err.Error()), nil
	}

	rule, err := s.stateProvider.SelectRule(ctx, query)
	if err != nil {
		if isUserError(err) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, fmt.Errorf("failed to select rule: %w", err)
	}

	return jsonResult(map[string]interface{}{
		"selected": ruleData(rule),
		"message":  fmt.Sprintf("Selected %s (%d minutes)", rule.Name, rule.DurationMinutes),
	})
}

func (s *Server) handleStartFocus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.transition(ctx, s.stateProvider.StartFocus, "start focus session")
}

func (s *Server) handlePauseFocus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.transition(ctx, s.stateProvider.PauseFocus, "pause focus session")
}

func (s *Server) handleResumeFocus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.transition(ctx, s.stateProvider.ResumeFocus, "resume focus session")
}

func (s *Server) handleStopFocus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.transition(ctx, s.stateProvider.StopFocus, "stop focus session")
}

// transition runs a session command. Backend failures are reported to the
// caller as tool errors along with the state the session ended up in.
func (s *Server) transition(ctx context.Context, fn func(context.Context) (*domain.CurrentState, error), action string) (*mcp.CallToolResult, error) {
	state, err := fn(ctx)
	if err != nil {
		msg := fmt.Sprintf("failed to %s: %v", action, err)
		if state != nil {
			msg += fmt.Sprintf(" (phase: %s)", state.Session.Phase)
		}
		return mcp.NewToolResultError(msg), nil
	}
	return jsonResult(stateData(state))
}

func (s *Server) handleToggleRuleDisplay(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id is required: " + err.Error()), nil
	}

	shown, err := s.stateProvider.ToggleRuleDisplay(ctx, id)
	if err != nil {
		if isUserError(err) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, fmt.Errorf("failed to toggle rule display: %w", err)
	}

	return jsonResult(map[string]interface{}{
		"id":        id,
		"displayed": shown,
	})
}

func (s *Server) handleRecentSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := int(request.GetFloat("limit", 10))

	records, err := s.stateProvider.RecentSessions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent sessions: %w", err)
	}

	sessions := make([]map[string]interface{}, 0, len(records))
	var focused int
	for _, r := range records {
		data := map[string]interface{}{
			"id":              r.ID,
			"rule_id":         r.RuleID,
			"rule_name":       r.RuleName,
			"outcome":         string(r.Outcome),
			"planned_seconds": r.PlannedSeconds,
			"focused_seconds": r.FocusedSeconds,
			"started_at":      r.StartedAt.Format(timeLayout),
			"ended_at":        r.EndedAt.Format(timeLayout),
		}
		if r.GitBranch != "" {
			data["git_branch"] = r.GitBranch
		}
		focused += r.FocusedSeconds
		sessions = append(sessions, data)
	}

	return jsonResult(map[string]interface{}{
		"sessions":         sessions,
		"total_count":      len(sessions),
		"total_focus_time": (time.Duration(focused) * time.Second).String(),
	})
}

func stateData(state *domain.CurrentState) map[string]interface{} {
	session := state.Session
	sessionData := map[string]interface{}{
		"phase":             string(session.Phase),
		"label":             domain.GetPhaseLabel(session.Phase),
		"remaining_seconds": session.RemainingSeconds,
		"total_seconds":     session.TotalSeconds,
		"remaining":         session.Remaining().String(),
		"progress":          session.Progress(),
	}
	if session.Active() {
		sessionData["session_id"] = session.SessionID
		sessionData["started_at"] = session.StartedAt.Format(timeLayout)
		if session.GitBranch != "" {
			sessionData["git_branch"] = session.GitBranch
		}
	}

	result := map[string]interface{}{
		"session":       sessionData,
		"selected_rule": nil,
		"can_start":     state.CanStart(),
		"today_stats": map[string]interface{}{
			"sessions":       state.Stats.TodaySessions,
			"focus_time":     state.Stats.FocusTimeLabel(),
			"current_streak": state.Stats.CurrentStreak,
		},
	}
	if state.SelectedRule != nil {
		result["selected_rule"] = ruleData(state.SelectedRule)
	}

	displayed := make([]string, 0, len(state.Displayed))
	for _, rule := range state.Displayed {
		displayed = append(displayed, rule.ID)
	}
	result["displayed"] = displayed

	return result
}

func ruleData(rule *domain.FocusRule) map[string]interface{} {
	return map[string]interface{}{
		"id":               rule.ID,
		"name":             rule.Name,
		"duration_minutes": rule.DurationMinutes,
		"strict_mode":      rule.StrictMode,
		"blocked_apps":     nonNil(rule.BlockedApps),
		"allowed_apps":     nonNil(rule.AllowedApps),
		"minimized_apps":   nonNil(rule.MinimizedApps),
	}
}

func nonNil(apps []string) []string {
	if apps == nil {
		return []string{}
	}
	return apps
}

func isUserError(err error) bool {
	return errors.Is(err, domain.ErrRuleNotFound) ||
		errors.Is(err, domain.ErrSessionLocked) ||
		errors.Is(err, domain.ErrDisplayFull) ||
		errors.Is(err, domain.ErrInvalidTransition)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
