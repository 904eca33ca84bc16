package integration

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xvierd/focus-cli/internal/adapters/devserver"
	"github.com/xvierd/focus-cli/internal/domain"
	"github.com/xvierd/focus-cli/internal/services"
)

var _ = Describe("Focus session against the stand-in backend", func() {
	var (
		h   *harness
		ctx context.Context
	)

	BeforeEach(func() {
		h = newHarness()
		ctx = context.Background()
	})

	phase := func() domain.SessionPhase {
		return h.controller.Snapshot().Phase
	}

	recent := func() []*domain.SessionRecord {
		records, err := h.storage.Sessions().FindRecent(ctx, 10)
		Expect(err).NotTo(HaveOccurred())
		return records
	}

	Context("on first run", func() {
		It("seeds the default rules and selects Deep Work", func() {
			Expect(h.rules.IDs()).To(Equal([]string{
				"deep-work", "light-focus", "meeting-mode", "study-mode", "writing-mode",
			}))
			Expect(h.rules.DisplayedIDs()).To(Equal(domain.DefaultDisplayedRuleIDs()))

			state := h.controller.Snapshot()
			Expect(state.Phase).To(Equal(domain.PhaseIdle))
			Expect(state.SelectedRuleID).To(Equal("deep-work"))
			Expect(state.RemainingSeconds).To(Equal(90 * 60))
		})
	})

	Context("when a session runs to its end", func() {
		It("completes, restores standard mode and records the session", func() {
			Expect(h.controller.SelectRule(ctx, "light-focus")).To(Succeed())

			completed := make(chan domain.SessionRecord, 1)
			h.controller.OnComplete(func(r domain.SessionRecord) { completed <- r })

			Expect(h.controller.Start(ctx)).To(Succeed())
			Expect(phase()).To(Equal(domain.PhaseRunning))

			mode, focusType := h.backend.Mode()
			Expect(mode).To(Equal(devserver.ModeFocus))
			Expect(focusType).To(Equal("light_focus"))

			h.clock.Advance(10 * time.Minute)
			Eventually(func() int {
				return h.controller.Snapshot().RemainingSeconds
			}).Should(Equal(35 * 60))

			h.clock.Advance(36 * time.Minute)

			var record domain.SessionRecord
			Eventually(completed).Should(Receive(&record))
			Expect(record.RuleID).To(Equal("light-focus"))
			Expect(record.Outcome).To(Equal(domain.OutcomeCompleted))
			Expect(record.FocusedSeconds).To(Equal(45 * 60))

			Eventually(phase).Should(Equal(domain.PhaseIdle))
			mode, _ = h.backend.Mode()
			Expect(mode).To(Equal(devserver.ModeStandard))

			state := h.controller.Snapshot()
			Expect(state.SelectedRuleID).To(Equal("light-focus"))
			Expect(state.RemainingSeconds).To(Equal(45 * 60))

			Expect(recent()).To(HaveLen(1))
			Expect(h.controller.Stats().TodaySessions).To(Equal(1))
			Expect(h.controller.Stats().CurrentStreak).To(Equal(1))
		})
	})

	Context("when the user stops the session", func() {
		It("stops the timer before switching modes and records a stopped session", func() {
			Expect(h.controller.Start(ctx)).To(Succeed())
			h.clock.Advance(5 * time.Minute)
			Eventually(func() int {
				return h.controller.Snapshot().RemainingSeconds
			}).Should(Equal(85 * 60))

			Expect(h.controller.Stop(ctx)).To(Succeed())
			Expect(phase()).To(Equal(domain.PhaseIdle))

			calls := h.backend.Calls()
			stopAt, standardAt := -1, -1
			for i, c := range calls {
				switch c {
				case "POST /api/modes/timer/stop":
					stopAt = i
				case "POST /api/modes/standard/normal":
					standardAt = i
				}
			}
			Expect(stopAt).To(BeNumerically(">=", 0))
			Expect(standardAt).To(BeNumerically(">", stopAt))

			records := recent()
			Expect(records).To(HaveLen(1))
			Expect(records[0].Outcome).To(Equal(domain.OutcomeStopped))
			Expect(records[0].FocusedSeconds).To(Equal(5 * 60))
			Expect(h.controller.Stats().TodaySessions).To(BeZero())
		})

		It("keeps the session when the timer cannot be stopped", func() {
			Expect(h.controller.Start(ctx)).To(Succeed())
			h.backend.FailWith("POST", "/api/modes/timer/stop", 500)

			Expect(h.controller.Stop(ctx)).To(MatchError(ContainSubstring("failed to stop timer")))
			Expect(phase()).To(Equal(domain.PhaseRunning))
			mode, _ := h.backend.Mode()
			Expect(mode).To(Equal(devserver.ModeFocus))

			h.backend.ClearFailures()
			Expect(h.controller.Stop(ctx)).To(Succeed())
		})
	})

	Context("when starting fails", func() {
		It("rolls back focus mode and stays idle", func() {
			h.backend.FailWith("POST", "/api/modes/timer/start", 503)

			Expect(h.controller.Start(ctx)).To(HaveOccurred())
			Expect(phase()).To(Equal(domain.PhaseIdle))
			mode, _ := h.backend.Mode()
			Expect(mode).To(Equal(devserver.ModeStandard))
			Expect(recent()).To(BeEmpty())
		})
	})

	Context("while paused", func() {
		It("ignores backend readings until resumed", func() {
			Expect(h.controller.Start(ctx)).To(Succeed())
			Expect(h.controller.Pause()).To(Succeed())
			before := h.controller.Snapshot().RemainingSeconds

			h.clock.Advance(30 * time.Minute)
			Consistently(func() int {
				return h.controller.Snapshot().RemainingSeconds
			}, 10*pollInterval, pollInterval).Should(Equal(before))
			Expect(phase()).To(Equal(domain.PhasePaused))

			Expect(h.controller.Resume()).To(Succeed())
			Eventually(func() int {
				return h.controller.Snapshot().RemainingSeconds
			}).Should(Equal(60 * 60))
		})

		It("refuses rule changes until the session ends", func() {
			Expect(h.controller.Start(ctx)).To(Succeed())
			Expect(h.controller.Pause()).To(Succeed())

			Expect(h.controller.SelectRule(ctx, "study-mode")).To(MatchError(domain.ErrSessionLocked))
			Expect(h.controller.DeleteRule(ctx, "deep-work")).To(MatchError(domain.ErrSessionLocked))

			Expect(h.controller.Stop(ctx)).To(Succeed())
			Expect(h.controller.SelectRule(ctx, "study-mode")).To(Succeed())
		})
	})

	Context("when the backend timer is stopped elsewhere", func() {
		It("ends the session early", func() {
			Expect(h.controller.Start(ctx)).To(Succeed())
			h.clock.Advance(20 * time.Minute)
			Expect(h.client.StopTimer(ctx)).To(Succeed())

			Eventually(phase).Should(Equal(domain.PhaseIdle))
			records := recent()
			Expect(records).To(HaveLen(1))
			Expect(records[0].Outcome).To(Equal(domain.OutcomeEnded))
			Expect(records[0].FocusedSeconds).To(Equal(20 * 60))
		})
	})

	Context("when another process started the session", func() {
		It("adopts the running timer", func() {
			Expect(h.controller.SelectRule(ctx, "meeting-mode")).To(Succeed())
			Expect(h.controller.Start(ctx)).To(Succeed())
			h.clock.Advance(15 * time.Minute)

			other := h.newController()
			adopted, err := other.Recover(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(adopted).To(BeTrue())

			state := other.Snapshot()
			Expect(state.Phase).To(Equal(domain.PhaseRunning))
			Expect(state.SelectedRuleID).To(Equal("meeting-mode"))
			Expect(state.TotalSeconds).To(Equal(60 * 60))
			Expect(state.RemainingSeconds).To(Equal(45 * 60))

			Expect(other.Stop(ctx)).To(Succeed())
			mode, _ := h.backend.Mode()
			Expect(mode).To(Equal(devserver.ModeStandard))
		})

		It("does nothing when no timer runs", func() {
			adopted, err := h.controller.Recover(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(adopted).To(BeFalse())
			Expect(phase()).To(Equal(domain.PhaseIdle))
		})
	})
})

var _ = Describe("Rule settings on the backend", func() {
	var (
		h   *harness
		ctx context.Context
	)

	BeforeEach(func() {
		h = newHarness()
		ctx = context.Background()
	})

	It("pushes a new rule under its mode key", func() {
		rule, err := h.controller.CreateRule(ctx, services.RuleInput{
			Name:            "Code Review",
			DurationMinutes: 30,
			BlockedApps:     []string{"Slack"},
			StrictMode:      true,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(h.rules.SaveToBackend(ctx, rule.ID)).To(Succeed())

		settings := h.backend.Settings("standard_focus_code")
		Expect(settings).To(HaveKeyWithValue("duration", 30))
		Expect(settings).To(HaveKeyWithValue("distraction_blocker", true))
		Expect(settings).To(HaveKeyWithValue("blocked_apps", []string{"Slack"}))
		Expect(settings).To(HaveKeyWithValue("allowed_apps", []string{}))
	})

	It("merges settings the backend already holds", func() {
		h.backend.PutSettings("standard_focus_writing", map[string]any{
			"duration":      25,
			"minimized_apps": []string{"Music"},
		})

		res, err := h.controller.PullAllRules(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Updated).To(Equal(5))
		Expect(res.Skipped).To(BeEmpty())

		rule, err := h.rules.Get("writing-mode")
		Expect(err).NotTo(HaveOccurred())
		Expect(rule.DurationMinutes).To(Equal(25))
		Expect(rule.MinimizedApps).To(Equal([]string{"Music"}))
		Expect(rule.BlockedApps).To(ContainElement("News"))
	})

	It("keeps local rules when the backend is unreachable", func() {
		h.server.Close()

		ok, err := h.controller.PullRule(ctx, "deep-work")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())

		rule, err := h.rules.Get("deep-work")
		Expect(err).NotTo(HaveOccurred())
		Expect(rule.DurationMinutes).To(Equal(90))
	})

	It("leaves the rule of a running session alone", func() {
		h.backend.PutSettings("standard_focus_deep", map[string]any{"duration": 15})
		Expect(h.controller.Start(ctx)).To(Succeed())

		_, err := h.controller.PullRule(ctx, "deep-work")
		Expect(err).To(MatchError(domain.ErrSessionLocked))

		res, err := h.controller.PullAllRules(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Updated).To(Equal(4))
		Expect(res.Skipped).To(HaveLen(1))
		Expect(res.Skipped[0]).To(MatchError(domain.ErrSessionLocked))

		rule, err := h.rules.Get("deep-work")
		Expect(err).NotTo(HaveOccurred())
		Expect(rule.DurationMinutes).To(Equal(90))
		Expect(h.controller.Snapshot().TotalSeconds).To(Equal(90 * 60))
	})
})
