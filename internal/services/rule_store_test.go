package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xvierd/focus-cli/internal/domain"
	"github.com/xvierd/focus-cli/internal/ports"
)

func TestRuleStore_SeedDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, []string{"deep-work", "light-focus", "meeting-mode", "study-mode", "writing-mode"}, f.rules.IDs())
	assert.Equal(t, domain.DefaultDisplayedRuleIDs(), f.rules.DisplayedIDs())

	seeded, err := f.rules.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.False(t, seeded, "second seed should be a no-op")

	for _, id := range f.rules.IDs() {
		require.NoError(t, f.rules.Remove(ctx, id))
	}
	seeded, err = f.rules.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.False(t, seeded, "an emptied store stays empty")
	assert.Empty(t, f.rules.List())
}

func TestRuleStore_LoadSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rules.ToggleDisplay(ctx, "light-focus")
	require.NoError(t, err)

	reopened := NewRuleStore(f.store, f.backend, zap.NewNop())
	require.NoError(t, reopened.Load(ctx))
	assert.Equal(t, []string{"deep-work", "meeting-mode"}, reopened.DisplayedIDs())
	assert.Len(t, reopened.List(), 5)
}

func TestRuleStore_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		input   RuleInput
		wantID  string
		wantErr error
	}{
		{
			name:   "derives slug",
			input:  RuleInput{Name: "  Night   Owl ", DurationMinutes: 30, BlockedApps: []string{"Steam", " Steam", ""}},
			wantID: "night-owl",
		},
		{
			name:    "empty name",
			input:   RuleInput{Name: "   ", DurationMinutes: 30},
			wantErr: domain.ErrEmptyRuleName,
		},
		{
			name:    "zero duration",
			input:   RuleInput{Name: "Quick", DurationMinutes: 0},
			wantErr: domain.ErrInvalidRuleDuration,
		},
		{
			name:    "slug collision",
			input:   RuleInput{Name: "deep WORK", DurationMinutes: 10},
			wantErr: domain.ErrRuleIDConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := f.rules.Create(ctx, tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, rule)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, rule.ID)
			assert.Equal(t, []string{"Steam"}, rule.BlockedApps)
		})
	}

	// The colliding create must not have touched the existing rule.
	deep, err := f.rules.Get("deep-work")
	require.NoError(t, err)
	assert.Equal(t, 90, deep.DurationMinutes)
}

func TestRuleStore_GetReturnsCopy(t *testing.T) {
	f := newFixture(t)

	rule, err := f.rules.Get("deep-work")
	require.NoError(t, err)
	rule.DurationMinutes = 1
	rule.BlockedApps[0] = "changed"

	again, err := f.rules.Get("deep-work")
	require.NoError(t, err)
	assert.Equal(t, 90, again.DurationMinutes)
	assert.Equal(t, "Discord", again.BlockedApps[0])

	_, err = f.rules.Get("nope")
	assert.ErrorIs(t, err, domain.ErrRuleNotFound)
}

func TestRuleStore_ToggleDisplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	shown, err := f.rules.ToggleDisplay(ctx, "study-mode")
	assert.ErrorIs(t, err, domain.ErrDisplayFull)
	assert.False(t, shown)
	assert.Equal(t, domain.DefaultDisplayedRuleIDs(), f.rules.DisplayedIDs())

	shown, err = f.rules.ToggleDisplay(ctx, "meeting-mode")
	require.NoError(t, err)
	assert.False(t, shown)

	shown, err = f.rules.ToggleDisplay(ctx, "study-mode")
	require.NoError(t, err)
	assert.True(t, shown)
	assert.Equal(t, []string{"deep-work", "light-focus", "study-mode"}, f.rules.DisplayedIDs())

	_, err = f.rules.ToggleDisplay(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrRuleNotFound)

	names := []string{}
	for _, r := range f.rules.Displayed() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Deep Work", "Light Focus", "Study Mode"}, names)
}

func TestRuleStore_RemoveDropsDisplayed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.rules.Remove(ctx, "light-focus"))
	assert.Equal(t, []string{"deep-work", "meeting-mode"}, f.rules.DisplayedIDs())
	assert.False(t, f.rules.Exists("light-focus"))
	assert.ErrorIs(t, f.rules.Remove(ctx, "light-focus"), domain.ErrRuleNotFound)
}

func TestRuleStore_Find(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		query string
		want  string
	}{
		{"deep-work", "deep-work"},
		{"Study Mode", "study-mode"},
		{"writing mode", "writing-mode"},
		{"meet", "meeting-mode"},
		{"lght", "light-focus"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rule, err := f.rules.Find(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rule.ID)
		})
	}

	_, err := f.rules.Find("zzzz")
	assert.ErrorIs(t, err, domain.ErrRuleNotFound)
	_, err = f.rules.Find("  ")
	assert.ErrorIs(t, err, domain.ErrRuleNotFound)
}

func TestRuleStore_FetchFromBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("backend values override", func(t *testing.T) {
		f := newFixture(t)
		duration := 50
		off := false
		f.backend.settings["standard_focus_deep"] = &ports.ModeSettings{
			BlockedApps:        []string{"Steam"},
			AllowedApps:        []string{},
			Duration:           &duration,
			DistractionBlocker: &off,
		}

		rule, ok, err := f.rules.FetchFromBackend(ctx, "deep-work")
		require.NoError(t, err)
		require.True(t, ok)

		assert.Equal(t, []string{"Steam"}, rule.BlockedApps)
		assert.Empty(t, rule.AllowedApps)
		assert.Equal(t, []string{"VLC Media Player", "YouTube"}, rule.MinimizedApps, "absent field keeps local value")
		assert.Equal(t, 50, rule.DurationMinutes)
		assert.False(t, rule.StrictMode, "backend false overrides local true")

		stored, _ := f.rules.Get("deep-work")
		assert.Equal(t, 90, stored.DurationMinutes, "fetch does not save")
	})

	t.Run("backend failure keeps local rule", func(t *testing.T) {
		f := newFixture(t)
		f.backend.fail("settings", errBackendDown)

		rule, ok, err := f.rules.FetchFromBackend(ctx, "deep-work")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, rule)
	})

	t.Run("invalid backend duration rejected", func(t *testing.T) {
		f := newFixture(t)
		zero := 0
		f.backend.settings["standard_focus_light"] = &ports.ModeSettings{Duration: &zero}

		_, ok, err := f.rules.FetchFromBackend(ctx, "light-focus")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown rule", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.rules.FetchFromBackend(ctx, "ghost")
		assert.ErrorIs(t, err, domain.ErrRuleNotFound)
	})
}

func TestRuleStore_SaveToBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("pushes every setting", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.rules.SaveToBackend(ctx, "deep-work"))

		assert.Equal(t, 90, f.backend.updates["standard_focus_deep/duration"])
		assert.Equal(t, true, f.backend.updates["standard_focus_deep/distraction_blocker"])
		assert.Len(t, f.backend.updates, 5)
	})

	t.Run("joins failures and keeps local state", func(t *testing.T) {
		f := newFixture(t)
		f.backend.fail("update:duration", errBackendDown)
		f.backend.fail("update:blocked_apps", errBackendDown)

		err := f.rules.SaveToBackend(ctx, "deep-work")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errBackendDown))
		assert.Contains(t, err.Error(), "duration")
		assert.Contains(t, err.Error(), "blocked_apps")
		assert.Len(t, f.backend.updates, 3)

		rule, _ := f.rules.Get("deep-work")
		assert.Equal(t, 90, rule.DurationMinutes)
	})
}
