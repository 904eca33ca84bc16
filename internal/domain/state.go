package domain

// CurrentState is the read model handed to the TUI, CLI and MCP adapters.
type CurrentState struct {
	Session      SessionState
	SelectedRule *FocusRule
	Displayed    []*FocusRule
	Stats        SessionStats
}

// IsSessionActive returns true if a focus session is in progress.
func (cs *CurrentState) IsSessionActive() bool {
	return cs.Session.Active()
}

// CanSelectRule returns true if the picker accepts input.
func (cs *CurrentState) CanSelectRule() bool {
	return cs.Session.Phase == PhaseIdle
}

// CanStart returns true if a new session can be started.
func (cs *CurrentState) CanStart() bool {
	return cs.Session.Phase == PhaseIdle && cs.SelectedRule != nil
}
