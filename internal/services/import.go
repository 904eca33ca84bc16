package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xvierd/focus-cli/internal/domain"
)

// ImportResult summarises a bulk rule import.
type ImportResult struct {
	Created int
	Updated int
	Skipped []error
}

// ImportRules upserts rules by ID through the controller, so the selected
// rule stays locked while a session runs. A non-empty displayed list
// replaces the displayed subset once the rules are in place.
func (c *SessionController) ImportRules(ctx context.Context, rules []*domain.FocusRule, displayed []string) (ImportResult, error) {
	var res ImportResult
	for _, rule := range rules {
		existed := c.rules.Exists(rule.ID)
		if err := c.UpdateRule(ctx, rule); err != nil {
			res.Skipped = append(res.Skipped, fmt.Errorf("%s: %w", rule.ID, err))
			continue
		}
		if existed {
			res.Updated++
		} else {
			res.Created++
		}
	}

	if len(displayed) > 0 {
		if err := c.rules.SetDisplayed(ctx, displayed); err != nil {
			return res, fmt.Errorf("failed to apply displayed rules: %w", err)
		}
	}

	c.mu.Lock()
	adopt := c.state.Phase == domain.PhaseIdle && c.state.SelectedRuleID == ""
	c.mu.Unlock()
	if adopt {
		if id := c.fallbackRuleID(domain.DefaultSelectedRuleID); id != "" {
			if err := c.SelectRule(ctx, id); err != nil {
				return res, err
			}
		}
	}

	c.logger.Info("rules imported",
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}
