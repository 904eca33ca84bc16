package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xvierd/focus-cli/internal/domain"
	"github.com/xvierd/focus-cli/internal/ports"
)

// statsWindow bounds how many history records feed the streak.
const statsWindow = 500

// SessionController owns the focus session state machine. Its mutex is
// never held across a backend call; results that arrive for a superseded
// session are recognised by their generation and dropped.
type SessionController struct {
	rules    *RuleStore
	backend  ports.ModesBackend
	sessions ports.SessionRepository
	prefs    ports.PreferenceRepository
	git      ports.GitDetector
	notifier ports.Notifier
	logger   *zap.Logger
	now      func() time.Time
	workDir  string
	poller   *StatusPoller

	pollInterval time.Duration

	mu        sync.Mutex
	state     domain.SessionState
	stats     domain.SessionStats
	listeners []func(domain.SessionRecord)
}

// ControllerOption configures a SessionController.
type ControllerOption func(*SessionController)

// WithControllerLogger sets the logger.
func WithControllerLogger(logger *zap.Logger) ControllerOption {
	return func(c *SessionController) { c.logger = logger }
}

// WithClock replaces time.Now for session timestamps and stats.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *SessionController) { c.now = now }
}

// WithGitDetector records the branch of workDir on every session.
func WithGitDetector(git ports.GitDetector, workDir string) ControllerOption {
	return func(c *SessionController) {
		c.git = git
		c.workDir = workDir
	}
}

// WithNotifier sends a desktop notification on natural completion.
func WithNotifier(n ports.Notifier) ControllerOption {
	return func(c *SessionController) { c.notifier = n }
}

// WithPollInterval sets how often the backend timer is read.
func WithPollInterval(d time.Duration) ControllerOption {
	return func(c *SessionController) { c.pollInterval = d }
}

// NewSessionController creates an Idle controller. Call Init to restore the
// persisted selection.
func NewSessionController(storage ports.Storage, rules *RuleStore, backend ports.ModesBackend, opts ...ControllerOption) *SessionController {
	c := &SessionController{
		rules:    rules,
		backend:  backend,
		sessions: storage.Sessions(),
		prefs:    storage.Preferences(),
		logger:   zap.NewNop(),
		now:      time.Now,
		state:    domain.NewIdleState(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.poller = NewStatusPoller(backend, c.pollInterval, c.ApplyStatus, c.logger)
	return c
}

// Init restores the persisted selection, falling back to the default rule
// or the first stored rule, and loads stats.
func (c *SessionController) Init(ctx context.Context) error {
	id, _, err := c.prefs.Get(ctx, ports.PrefSelectedRule)
	if err != nil {
		return fmt.Errorf("failed to read selected rule: %w", err)
	}
	if !c.rules.Exists(id) {
		id = c.fallbackRuleID(domain.DefaultSelectedRuleID)
	}
	rule, _ := c.rules.Get(id)

	c.mu.Lock()
	c.state = domain.NewIdleState(rule)
	c.mu.Unlock()

	c.RefreshStats(ctx)
	return nil
}

// fallbackRuleID returns preferred if it exists, else the first stored ID
// in sorted order, else "".
func (c *SessionController) fallbackRuleID(preferred string) string {
	if preferred != "" && c.rules.Exists(preferred) {
		return preferred
	}
	if ids := c.rules.IDs(); len(ids) > 0 {
		return ids[0]
	}
	return ""
}

// transitionLocked moves to phase to when the table allows it.
func (c *SessionController) transitionLocked(to domain.SessionPhase) error {
	if !domain.CanTransition(c.state.Phase, to) {
		return domain.TransitionError(c.state.Phase, to)
	}
	c.state.Phase = to
	return nil
}

// resetLocked returns to Idle with the countdown of the selected rule.
func (c *SessionController) resetLocked() {
	rule, _ := c.rules.Get(c.state.SelectedRuleID)
	gen := c.state.Generation
	c.state = domain.NewIdleState(rule)
	c.state.Generation = gen
}

// Snapshot returns a copy of the session state.
func (c *SessionController) Snapshot() domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns the last computed stats.
func (c *SessionController) Stats() domain.SessionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// CurrentState assembles everything a UI renders.
func (c *SessionController) CurrentState() *domain.CurrentState {
	c.mu.Lock()
	session := c.state
	stats := c.stats
	c.mu.Unlock()

	selected, _ := c.rules.Get(session.SelectedRuleID)
	return &domain.CurrentState{
		Session:      session,
		SelectedRule: selected,
		Displayed:    c.rules.Displayed(),
		Stats:        stats,
	}
}

// OnComplete registers fn to run after every natural completion.
func (c *SessionController) OnComplete(fn func(domain.SessionRecord)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// SelectRule makes id the selected rule and resets the countdown to its
// duration. Only allowed while Idle.
func (c *SessionController) SelectRule(ctx context.Context, id string) error {
	rule, err := c.rules.Get(id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state.Phase != domain.PhaseIdle {
		c.mu.Unlock()
		return domain.ErrSessionLocked
	}
	c.state.ResetCountdown(rule)
	c.mu.Unlock()

	if err := c.prefs.Set(ctx, ports.PrefSelectedRule, id); err != nil {
		return fmt.Errorf("failed to persist selected rule: %w", err)
	}
	return nil
}

// Start switches the backend into the selected rule's focus mode and starts
// its timer. Any failure returns the controller to Idle.
func (c *SessionController) Start(ctx context.Context) error {
	c.mu.Lock()
	if !domain.CanTransition(c.state.Phase, domain.PhaseStarting) {
		defer c.mu.Unlock()
		return domain.TransitionError(c.state.Phase, domain.PhaseStarting)
	}
	rule, err := c.rules.Get(c.state.SelectedRuleID)
	if err != nil {
		c.mu.Unlock()
		return domain.ErrNoRuleSelected
	}
	c.state.Phase = domain.PhaseStarting
	c.mu.Unlock()

	log := c.logger.With(zap.String("rule", rule.ID))

	if err := c.backend.SwitchFocus(ctx, rule.FocusType()); err != nil {
		c.abortStart()
		log.Error("failed to switch to focus mode", zap.Error(err))
		return fmt.Errorf("failed to switch to focus mode: %w", err)
	}
	if err := c.backend.StartTimer(ctx, rule.DurationMinutes); err != nil {
		if revertErr := c.backend.SwitchStandard(ctx); revertErr != nil {
			log.Warn("failed to revert focus mode after timer error", zap.Error(revertErr))
		}
		c.abortStart()
		log.Error("failed to start backend timer", zap.Error(err))
		return fmt.Errorf("failed to start timer: %w", err)
	}

	branch := c.detectBranch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.transitionLocked(domain.PhaseRunning); err != nil {
		return err
	}
	c.state.SelectedRuleID = rule.ID
	c.state.TotalSeconds = rule.TotalSeconds()
	c.state.RemainingSeconds = c.state.TotalSeconds
	c.state.Generation++
	c.state.SessionID = domain.NewSessionID()
	c.state.StartedAt = c.now()
	c.state.GitBranch = branch
	c.poller.Start(c.state.Generation)

	log.Info("focus session started",
		zap.Uint64("generation", c.state.Generation),
		zap.Int("minutes", rule.DurationMinutes),
	)
	return nil
}

func (c *SessionController) abortStart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase == domain.PhaseStarting {
		c.state.Phase = domain.PhaseIdle
	}
}

func (c *SessionController) detectBranch(ctx context.Context) string {
	if c.git == nil {
		return ""
	}
	info, err := c.git.Detect(ctx, c.workDir)
	if err != nil || info == nil {
		return ""
	}
	return info.Branch
}

// Pause freezes the local countdown. The backend timer is not touched.
func (c *SessionController) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != domain.PhaseRunning {
		return domain.TransitionError(c.state.Phase, domain.PhasePaused)
	}
	return c.transitionLocked(domain.PhasePaused)
}

// Resume continues a paused session.
func (c *SessionController) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != domain.PhasePaused {
		return domain.TransitionError(c.state.Phase, domain.PhaseRunning)
	}
	return c.transitionLocked(domain.PhaseRunning)
}

// StartOrResume resumes a paused session and starts one otherwise.
func (c *SessionController) StartOrResume(ctx context.Context) error {
	if c.Snapshot().Phase == domain.PhasePaused {
		return c.Resume()
	}
	return c.Start(ctx)
}

// Stop ends the session on request. Polling is cancelled before any backend
// call. If the timer cannot be stopped the previous phase is restored.
func (c *SessionController) Stop(ctx context.Context) error {
	c.mu.Lock()
	prior := c.state.Phase
	if err := c.transitionLocked(domain.PhaseStopping); err != nil {
		c.mu.Unlock()
		return err
	}
	c.state.Generation++
	c.poller.Stop()
	ruleID := c.state.SelectedRuleID
	c.mu.Unlock()

	log := c.logger.With(zap.String("rule", ruleID))

	if err := c.backend.StopTimer(ctx); err != nil {
		c.mu.Lock()
		c.state.Phase = prior
		c.poller.Start(c.state.Generation)
		c.mu.Unlock()
		log.Error("failed to stop backend timer", zap.Error(err))
		return fmt.Errorf("failed to stop timer: %w", err)
	}

	standardErr := c.backend.SwitchStandard(ctx)

	c.mu.Lock()
	record := c.recordLocked(domain.OutcomeStopped)
	c.resetLocked()
	c.mu.Unlock()

	c.persist(ctx, record)
	log.Info("focus session stopped", zap.Int("focused_seconds", record.FocusedSeconds))

	if standardErr != nil {
		log.Error("timer stopped but standard mode was not restored", zap.Error(standardErr))
		return fmt.Errorf("timer stopped but failed to restore standard mode: %w", standardErr)
	}
	return nil
}

// RevertMode asks the backend to return to standard mode.
func (c *SessionController) RevertMode(ctx context.Context) error {
	if err := c.backend.SwitchStandard(ctx); err != nil {
		return fmt.Errorf("failed to restore standard mode: %w", err)
	}
	return nil
}

// Tick advances the local countdown by one second while Running. It never
// completes a session; only the backend reading does.
func (c *SessionController) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase == domain.PhaseRunning && c.state.RemainingSeconds > 0 {
		c.state.RemainingSeconds--
	}
}

// ApplyStatus reconciles a backend timer reading. Readings for another
// generation, or that arrive when not Running, are dropped.
func (c *SessionController) ApplyStatus(ctx context.Context, generation uint64, status *ports.TimerStatus) {
	if status == nil {
		return
	}

	c.mu.Lock()
	if generation != c.state.Generation || c.state.Phase != domain.PhaseRunning {
		phase := c.state.Phase
		c.mu.Unlock()
		c.logger.Debug("discarded timer status",
			zap.Uint64("generation", generation),
			zap.String("phase", string(phase)),
		)
		return
	}

	remaining := domain.RemainingFromStatus(status.ElapsedSeconds, status.TimeLimit)
	if status.IsTiming && remaining > 0 {
		c.state.RemainingSeconds = remaining
		c.mu.Unlock()
		return
	}

	c.poller.Stop()
	if status.IsTiming || status.ElapsedSeconds >= status.TimeLimit*60 || remaining == 0 {
		c.state.RemainingSeconds = 0
		c.state.Phase = domain.PhaseCompleting
		c.mu.Unlock()
		c.completeNaturally(context.WithoutCancel(ctx))
		return
	}

	// The backend timer stopped before its limit without us asking.
	c.state.RemainingSeconds = remaining
	record := c.recordLocked(domain.OutcomeEnded)
	c.resetLocked()
	c.mu.Unlock()

	c.logger.Info("backend timer ended early", zap.String("rule", record.RuleID))
	c.persist(context.WithoutCancel(ctx), record)
}

func (c *SessionController) completeNaturally(ctx context.Context) {
	if err := c.backend.SwitchStandard(ctx); err != nil {
		c.logger.Error("failed to restore standard mode after completion", zap.Error(err))
	}

	c.mu.Lock()
	record := c.recordLocked(domain.OutcomeCompleted)
	rule, _ := c.rules.Get(c.state.SelectedRuleID)
	c.state.ResetCountdown(rule)
	c.state.SessionID = ""
	c.state.StartedAt = time.Time{}
	c.state.GitBranch = ""
	listeners := append([]func(domain.SessionRecord){}, c.listeners...)
	c.mu.Unlock()

	c.persist(ctx, record)
	c.logger.Info("focus session completed",
		zap.String("rule", record.RuleID),
		zap.Int("focused_seconds", record.FocusedSeconds),
	)

	if c.notifier != nil && c.notifier.IsEnabled() {
		if err := c.notifier.NotifyFocusComplete(record.RuleName, record.PlannedSeconds/60); err != nil {
			c.logger.Debug("completion notification failed", zap.Error(err))
		}
	}
	for _, fn := range listeners {
		fn(*record)
	}

	c.mu.Lock()
	if err := c.transitionLocked(domain.PhaseIdle); err != nil {
		c.logger.Error("unexpected phase after completion", zap.Error(err))
	}
	c.mu.Unlock()
}

// recordLocked builds the history entry for the session being closed.
func (c *SessionController) recordLocked(outcome domain.SessionOutcome) *domain.SessionRecord {
	name := c.state.SelectedRuleID
	if rule, err := c.rules.Get(c.state.SelectedRuleID); err == nil {
		name = rule.Name
	}
	return domain.NewSessionRecord(c.state, name, outcome, c.now())
}

// persist writes the record and refreshes stats. Storage failures are
// logged; they never undo the state change.
func (c *SessionController) persist(ctx context.Context, record *domain.SessionRecord) {
	if err := c.sessions.Record(ctx, record); err != nil {
		c.logger.Warn("failed to record session", zap.String("session", record.ID), zap.Error(err))
	}
	c.RefreshStats(ctx)
}

// RefreshStats recomputes stats from the session history.
func (c *SessionController) RefreshStats(ctx context.Context) {
	records, err := c.sessions.FindRecent(ctx, statsWindow)
	if err != nil {
		c.logger.Warn("failed to load session history", zap.Error(err))
		return
	}
	stats := domain.ComputeStats(records, c.now())

	c.mu.Lock()
	c.stats = stats
	c.mu.Unlock()
}

// Recover adopts a backend timer that is already running, for example one
// started by another focus process, using the persisted selection.
func (c *SessionController) Recover(ctx context.Context) (bool, error) {
	c.mu.Lock()
	phase := c.state.Phase
	c.mu.Unlock()
	if phase != domain.PhaseIdle {
		return false, nil
	}

	status, err := c.backend.TimerStatus(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read backend timer: %w", err)
	}
	if !status.IsTiming {
		return false, nil
	}

	branch := c.detectBranch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	rule, err := c.rules.Get(c.state.SelectedRuleID)
	if err != nil {
		return false, domain.ErrNoRuleSelected
	}
	// Another caller started or adopted a session meanwhile.
	if c.state.Phase != domain.PhaseIdle {
		return false, nil
	}
	if err := c.transitionLocked(domain.PhaseStarting); err != nil {
		return false, err
	}
	if err := c.transitionLocked(domain.PhaseRunning); err != nil {
		return false, err
	}

	total := rule.TotalSeconds()
	if status.TimeLimit > 0 {
		total = int(status.TimeLimit * 60)
	}
	c.state.TotalSeconds = total
	c.state.RemainingSeconds = domain.RemainingFromStatus(status.ElapsedSeconds, status.TimeLimit)
	c.state.Generation++
	c.state.SessionID = domain.NewSessionID()
	c.state.StartedAt = c.now().Add(-time.Duration(status.ElapsedSeconds) * time.Second)
	c.state.GitBranch = branch
	c.poller.Start(c.state.Generation)

	c.logger.Info("adopted running backend timer",
		zap.String("rule", rule.ID),
		zap.Int("remaining_seconds", c.state.RemainingSeconds),
	)
	return true, nil
}

// CreateRule adds a rule. When nothing is selected the new rule becomes
// the selection.
func (c *SessionController) CreateRule(ctx context.Context, in RuleInput) (*domain.FocusRule, error) {
	rule, err := c.rules.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	adopt := c.state.Phase == domain.PhaseIdle && c.state.SelectedRuleID == ""
	c.mu.Unlock()
	if adopt {
		if err := c.SelectRule(ctx, rule.ID); err != nil {
			return rule, err
		}
	}
	return rule, nil
}

// UpdateRule replaces a rule. The selected rule is locked while a session
// is in progress; updating it while Idle re-derives the countdown.
func (c *SessionController) UpdateRule(ctx context.Context, rule *domain.FocusRule) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rule.ID == c.state.SelectedRuleID && c.state.Phase != domain.PhaseIdle {
		return domain.ErrSessionLocked
	}
	if err := c.rules.Upsert(ctx, rule); err != nil {
		return err
	}
	if rule.ID == c.state.SelectedRuleID {
		c.resetLocked()
	}
	return nil
}

// PullRule merges the backend's settings for rule id into the local rule,
// under the same lock as UpdateRule. The bool reports whether a merge was
// applied; an unreachable backend is not an error.
func (c *SessionController) PullRule(ctx context.Context, id string) (bool, error) {
	if c.lockedRule(id) {
		return false, domain.ErrSessionLocked
	}
	merged, ok, err := c.rules.FetchFromBackend(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	if err := c.UpdateRule(ctx, merged); err != nil {
		return false, err
	}
	return true, nil
}

// PullAllRules runs PullRule for every rule. The selected rule is skipped
// while a session is in progress.
func (c *SessionController) PullAllRules(ctx context.Context) (ImportResult, error) {
	var res ImportResult
	for _, id := range c.rules.IDs() {
		ok, err := c.PullRule(ctx, id)
		if errors.Is(err, domain.ErrSessionLocked) {
			res.Skipped = append(res.Skipped, fmt.Errorf("%s: %w", id, err))
			continue
		}
		if err != nil {
			return res, err
		}
		if ok {
			res.Updated++
		}
	}
	return res, nil
}

// lockedRule reports whether id is the selected rule of an active session.
func (c *SessionController) lockedRule(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return id == c.state.SelectedRuleID && c.state.Phase != domain.PhaseIdle
}

// DeleteRule removes a rule. Deleting the selected rule moves the selection
// to the first remaining rule in ID order, or to none.
func (c *SessionController) DeleteRule(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == c.state.SelectedRuleID && c.state.Phase != domain.PhaseIdle {
		return domain.ErrSessionLocked
	}
	if err := c.rules.Remove(ctx, id); err != nil {
		return err
	}
	if id != c.state.SelectedRuleID {
		return nil
	}

	next := c.fallbackRuleID("")
	rule, _ := c.rules.Get(next)
	c.state.ResetCountdown(rule)
	if err := c.prefs.Set(ctx, ports.PrefSelectedRule, next); err != nil {
		return fmt.Errorf("failed to persist selected rule: %w", err)
	}
	return nil
}

// ToggleDisplay toggles a rule in the displayed subset.
func (c *SessionController) ToggleDisplay(ctx context.Context, id string) (bool, error) {
	return c.rules.ToggleDisplay(ctx, id)
}

// Close stops polling.
func (c *SessionController) Close() {
	c.poller.Stop()
}

// IsLocked reports whether err means the operation was refused because a
// session is in progress.
func IsLocked(err error) bool {
	return errors.Is(err, domain.ErrSessionLocked) || errors.Is(err, domain.ErrInvalidTransition)
}
