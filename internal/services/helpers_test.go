package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/xvierd/focus-cli/internal/adapters/storage"
	"github.com/xvierd/focus-cli/internal/ports"
)

var errBackendDown = errors.New("backend unavailable")

// fakeBackend records calls and fails the ones listed in failures.
type fakeBackend struct {
	mu       sync.Mutex
	calls    []string
	failures map[string]error
	status   ports.TimerStatus
	settings map[string]*ports.ModeSettings
	updates  map[string]any
	focus    string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		failures: make(map[string]error),
		settings: make(map[string]*ports.ModeSettings),
		updates:  make(map[string]any),
	}
}

func (f *fakeBackend) fail(call string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[call] = err
}

func (f *fakeBackend) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.failures[call]
}

func (f *fakeBackend) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeBackend) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) SwitchFocus(ctx context.Context, focusType string) error {
	if err := f.record("focus"); err != nil {
		return err
	}
	f.mu.Lock()
	f.focus = focusType
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) SwitchStandard(ctx context.Context) error {
	return f.record("standard")
}

func (f *fakeBackend) StartTimer(ctx context.Context, minutes int) error {
	if err := f.record("start"); err != nil {
		return err
	}
	f.mu.Lock()
	f.status = ports.TimerStatus{IsTiming: true, TimeLimit: float64(minutes)}
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) StopTimer(ctx context.Context) error {
	return f.record("stop")
}

func (f *fakeBackend) TimerStatus(ctx context.Context) (*ports.TimerStatus, error) {
	if err := f.record("status"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	status := f.status
	return &status, nil
}

func (f *fakeBackend) setStatus(status ports.TimerStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

func (f *fakeBackend) GetSettings(ctx context.Context, modeKey string) (*ports.ModeSettings, error) {
	if err := f.record("settings"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.settings[modeKey]; ok {
		return s, nil
	}
	return &ports.ModeSettings{}, nil
}

func (f *fakeBackend) UpdateSetting(ctx context.Context, modeKey, setting string, value any) error {
	if err := f.record("update:" + setting); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[modeKey+"/"+setting] = value
	return nil
}

type fixture struct {
	store      ports.Storage
	backend    *fakeBackend
	rules      *RuleStore
	controller *SessionController
	clock      *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupTestStorage(t *testing.T) ports.Storage {
	t.Helper()
	store, err := storage.NewMemory()
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// newFixture builds a seeded store and an initialised controller. The poll
// interval is long so tests drive reconciliation through ApplyStatus.
func newFixture(t *testing.T, opts ...ControllerOption) *fixture {
	t.Helper()
	ctx := context.Background()
	store := setupTestStorage(t)
	backend := newFakeBackend()
	rules := NewRuleStore(store, backend, zap.NewNop())
	if err := rules.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := rules.SeedDefaults(ctx); err != nil {
		t.Fatalf("SeedDefaults() error = %v", err)
	}

	clock := &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.Local)}
	opts = append([]ControllerOption{WithClock(clock.Now), WithPollInterval(time.Hour)}, opts...)
	controller := NewSessionController(store, rules, backend, opts...)
	if err := controller.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(controller.Close)

	return &fixture{store: store, backend: backend, rules: rules, controller: controller, clock: clock}
}
