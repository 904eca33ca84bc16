package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/xvierd/focus-cli/internal/domain"
)

// mockStateProvider is a mock implementation of ports.MCPStateProvider for testing.
type mockStateProvider struct {
	currentState   *domain.CurrentState
	rules          []*domain.FocusRule
	displayed      []string
	recentSessions []*domain.SessionRecord
	selectErr      error
	stopErr        error
	lastLimit      int
	toggled        string
}

func (m *mockStateProvider) GetCurrentState(ctx context.Context) (*domain.CurrentState, error) {
	return m.currentState, nil
}

func (m *mockStateProvider) ListRules(ctx context.Context) ([]*domain.FocusRule, []string, error) {
	return m.rules, m.displayed, nil
}

func (m *mockStateProvider) SelectRule(ctx context.Context, query string) (*domain.FocusRule, error) {
	if m.selectErr != nil {
		return nil, m.selectErr
	}
	for _, r := range m.rules {
		if r.ID == query {
			return r, nil
		}
	}
	return nil, domain.ErrRuleNotFound
}

func (m *mockStateProvider) StartFocus(ctx context.Context) (*domain.CurrentState, error) {
	m.currentState.Session.Phase = domain.PhaseRunning
	return m.currentState, nil
}

func (m *mockStateProvider) PauseFocus(ctx context.Context) (*domain.CurrentState, error) {
	m.currentState.Session.Phase = domain.PhasePaused
	return m.currentState, nil
}

func (m *mockStateProvider) ResumeFocus(ctx context.Context) (*domain.CurrentState, error) {
	m.currentState.Session.Phase = domain.PhaseRunning
	return m.currentState, nil
}

func (m *mockStateProvider) StopFocus(ctx context.Context) (*domain.CurrentState, error) {
	if m.stopErr != nil {
		return m.currentState, m.stopErr
	}
	m.currentState.Session.Phase = domain.PhaseIdle
	return m.currentState, nil
}

func (m *mockStateProvider) ToggleRuleDisplay(ctx context.Context, id string) (bool, error) {
	m.toggled = id
	if id == "missing" {
		return false, domain.ErrRuleNotFound
	}
	return true, nil
}

func (m *mockStateProvider) RecentSessions(ctx context.Context, limit int) ([]*domain.SessionRecord, error) {
	m.lastLimit = limit
	if len(m.recentSessions) > limit {
		return m.recentSessions[:limit], nil
	}
	return m.recentSessions, nil
}

func newMock() *mockStateProvider {
	rules := domain.DefaultRules()
	return &mockStateProvider{
		rules:     rules,
		displayed: domain.DefaultDisplayedRuleIDs(),
		currentState: &domain.CurrentState{
			Session:      domain.NewIdleState(rules[0]),
			SelectedRule: rules[0],
			Displayed:    rules[:3],
			Stats:        domain.SessionStats{TodaySessions: 2, TotalFocusTime: 135 * time.Minute, CurrentStreak: 2},
		},
	}
}

func callArgs(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func decodeText(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	if result == nil {
		t.Fatal("nil result")
	}
	if len(result.Content) == 0 {
		t.Fatal("empty content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want mcp.TextContent", result.Content[0])
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(text.Text), &out); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	return out
}

func TestNewServer(t *testing.T) {
	mock := newMock()
	server := NewServer(mock)

	if server == nil {
		t.Fatal("NewServer() returned nil")
	}

	if server.stateProvider != mock {
		t.Error("NewServer() did not set state provider correctly")
	}

	if server.server == nil {
		t.Error("NewServer() did not create MCP server")
	}
}

func TestServer_IsRunning(t *testing.T) {
	server := NewServer(newMock())

	if server.IsRunning() {
		t.Error("IsRunning() should return false before Start()")
	}
}

func TestServer_handleGetFocusState(t *testing.T) {
	server := NewServer(newMock())

	result, err := server.handleGetFocusState(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handleGetFocusState() error = %v", err)
	}

	out := decodeText(t, result)
	session := out["session"].(map[string]interface{})
	if session["phase"] != "idle" {
		t.Errorf("phase = %v, want idle", session["phase"])
	}
	if session["remaining_seconds"] != float64(5400) {
		t.Errorf("remaining_seconds = %v, want 5400", session["remaining_seconds"])
	}
	if _, ok := session["session_id"]; ok {
		t.Error("idle state should not carry a session id")
	}
	if out["can_start"] != true {
		t.Error("can_start should be true with a selected rule")
	}
	stats := out["today_stats"].(map[string]interface{})
	if stats["focus_time"] != "2h 15m" {
		t.Errorf("focus_time = %v, want 2h 15m", stats["focus_time"])
	}
	selected := out["selected_rule"].(map[string]interface{})
	if selected["id"] != "deep-work" {
		t.Errorf("selected_rule.id = %v, want deep-work", selected["id"])
	}
}

func TestServer_handleGetFocusState_NoRule(t *testing.T) {
	mock := newMock()
	mock.currentState = &domain.CurrentState{Session: domain.NewIdleState(nil)}
	server := NewServer(mock)

	result, err := server.handleGetFocusState(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handleGetFocusState() error = %v", err)
	}

	out := decodeText(t, result)
	if out["selected_rule"] != nil {
		t.Errorf("selected_rule = %v, want nil", out["selected_rule"])
	}
	if out["can_start"] != false {
		t.Error("can_start should be false without a rule")
	}
}

func TestServer_handleListRules(t *testing.T) {
	server := NewServer(newMock())

	result, err := server.handleListRules(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handleListRules() error = %v", err)
	}

	out := decodeText(t, result)
	if out["total_count"] != float64(5) {
		t.Errorf("total_count = %v, want 5", out["total_count"])
	}
	shown := 0
	for _, r := range out["rules"].([]interface{}) {
		if r.(map[string]interface{})["displayed"] == true {
			shown++
		}
	}
	if shown != 3 {
		t.Errorf("displayed rules = %d, want 3", shown)
	}
}

func TestServer_handleSelectRule(t *testing.T) {
	server := NewServer(newMock())

	result, err := server.handleSelectRule(context.Background(), callArgs(map[string]interface{}{
		"query": "study-mode",
	}))
	if err != nil {
		t.Fatalf("handleSelectRule() error = %v", err)
	}
	if result.IsError {
		t.Fatal("handleSelectRule() returned error result")
	}
	out := decodeText(t, result)
	if out["message"] != "Selected Study Mode (120 minutes)" {
		t.Errorf("message = %v", out["message"])
	}
}

func TestServer_handleSelectRule_Errors(t *testing.T) {
	tests := []struct {
		name      string
		args      map[string]interface{}
		selectErr error
		wantTool  bool
	}{
		{name: "missing query", args: map[string]interface{}{}, wantTool: true},
		{name: "unknown rule", args: map[string]interface{}{"query": "nope"}, wantTool: true},
		{name: "locked", args: map[string]interface{}{"query": "deep-work"}, selectErr: domain.ErrSessionLocked, wantTool: true},
		{name: "storage failure", args: map[string]interface{}{"query": "deep-work"}, selectErr: errors.New("disk full")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock()
			mock.selectErr = tt.selectErr
			server := NewServer(mock)

			result, err := server.handleSelectRule(context.Background(), callArgs(tt.args))
			if tt.wantTool {
				if err != nil {
					t.Fatalf("handleSelectRule() error = %v", err)
				}
				if !result.IsError {
					t.Error("expected error result")
				}
				return
			}
			if err == nil {
				t.Error("expected handler error")
			}
		})
	}
}

func TestServer_SessionTools(t *testing.T) {
	mock := newMock()
	server := NewServer(mock)
	ctx := context.Background()

	steps := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		want    string
	}{
		{"start", server.handleStartFocus, "running"},
		{"pause", server.handlePauseFocus, "paused"},
		{"resume", server.handleResumeFocus, "running"},
		{"stop", server.handleStopFocus, "idle"},
	}

	for _, step := range steps {
		result, err := step.handler(ctx, mcp.CallToolRequest{})
		if err != nil {
			t.Fatalf("%s: error = %v", step.name, err)
		}
		if result.IsError {
			t.Fatalf("%s: returned error result", step.name)
		}
		session := decodeText(t, result)["session"].(map[string]interface{})
		if session["phase"] != step.want {
			t.Errorf("%s: phase = %v, want %s", step.name, session["phase"], step.want)
		}
	}
}

func TestServer_handleStopFocus_BackendError(t *testing.T) {
	mock := newMock()
	mock.currentState.Session.Phase = domain.PhaseRunning
	mock.stopErr = errors.New("backend unreachable")
	server := NewServer(mock)

	result, err := server.handleStopFocus(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handleStopFocus() error = %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}
	text := result.Content[0].(mcp.TextContent).Text
	want := "failed to stop focus session: backend unreachable (phase: running)"
	if text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
}

func TestServer_handleToggleRuleDisplay(t *testing.T) {
	mock := newMock()
	server := NewServer(mock)

	result, err := server.handleToggleRuleDisplay(context.Background(), callArgs(map[string]interface{}{
		"id": "study-mode",
	}))
	if err != nil {
		t.Fatalf("handleToggleRuleDisplay() error = %v", err)
	}
	if mock.toggled != "study-mode" {
		t.Errorf("toggled = %q, want study-mode", mock.toggled)
	}
	if decodeText(t, result)["displayed"] != true {
		t.Error("expected displayed = true")
	}

	result, err = server.handleToggleRuleDisplay(context.Background(), callArgs(map[string]interface{}{
		"id": "missing",
	}))
	if err != nil {
		t.Fatalf("handleToggleRuleDisplay() error = %v", err)
	}
	if !result.IsError {
		t.Error("expected error result for unknown rule")
	}
}

func TestServer_handleRecentSessions(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	mock := newMock()
	mock.recentSessions = []*domain.SessionRecord{
		{ID: "a", RuleID: "deep-work", RuleName: "Deep Work", Outcome: domain.OutcomeCompleted, PlannedSeconds: 5400, FocusedSeconds: 5400, StartedAt: now.Add(-90 * time.Minute), EndedAt: now, GitBranch: "main"},
		{ID: "b", RuleID: "light-focus", RuleName: "Light Focus", Outcome: domain.OutcomeStopped, PlannedSeconds: 2700, FocusedSeconds: 600, StartedAt: now.Add(-3 * time.Hour), EndedAt: now.Add(-170 * time.Minute)},
	}
	server := NewServer(mock)

	result, err := server.handleRecentSessions(context.Background(), callArgs(map[string]interface{}{
		"limit": float64(1),
	}))
	if err != nil {
		t.Fatalf("handleRecentSessions() error = %v", err)
	}
	if mock.lastLimit != 1 {
		t.Errorf("limit = %d, want 1", mock.lastLimit)
	}
	out := decodeText(t, result)
	if out["total_count"] != float64(1) {
		t.Errorf("total_count = %v, want 1", out["total_count"])
	}
	if out["total_focus_time"] != "1h30m0s" {
		t.Errorf("total_focus_time = %v, want 1h30m0s", out["total_focus_time"])
	}

	if _, err := server.handleRecentSessions(context.Background(), mcp.CallToolRequest{}); err != nil {
		t.Fatalf("handleRecentSessions() error = %v", err)
	}
	if mock.lastLimit != 10 {
		t.Errorf("default limit = %d, want 10", mock.lastLimit)
	}
}
