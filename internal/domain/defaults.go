package domain

// DefaultCountdownSeconds is shown when no rule is selected.
const DefaultCountdownSeconds = 25 * 60

// DefaultSelectedRuleID is selected on first run.
const DefaultSelectedRuleID = "deep-work"

// DefaultDisplayedRuleIDs is the picker content on first run.
func DefaultDisplayedRuleIDs() []string {
	return []string{"deep-work", "light-focus", "meeting-mode"}
}

// DefaultRules returns the built-in focus profiles.
func DefaultRules() []*FocusRule {
	return []*FocusRule{
		{
			ID:              "deep-work",
			Name:            "Deep Work",
			DurationMinutes: 90,
			BlockedApps:     []string{"Discord", "Steam", "Spotify", "Facebook", "Reddit", "Twitter", "WhatsApp"},
			AllowedApps:     []string{"Visual Studio Code", "Notion", "Slack", "Figma", "Obsidian", "Microsoft Teams", "Trello"},
			MinimizedApps:   []string{"VLC Media Player", "YouTube"},
			StrictMode:      true,
		},
		{
			ID:              "light-focus",
			Name:            "Light Focus",
			DurationMinutes: 45,
			BlockedApps:     []string{"Facebook", "TikTok", "Instagram"},
			AllowedApps:     []string{"Visual Studio Code", "Notion", "Slack", "YouTube", "Spotify"},
			MinimizedApps:   []string{"Discord"},
		},
		{
			ID:              "meeting-mode",
			Name:            "Meeting Mode",
			DurationMinutes: 60,
			BlockedApps:     []string{"Games", "Social Media", "Entertainment"},
			AllowedApps:     []string{"Microsoft Teams", "Zoom", "Slack", "Notion", "Calendar"},
			MinimizedApps:   []string{"YouTube", "Spotify"},
		},
		{
			ID:              "study-mode",
			Name:            "Study Mode",
			DurationMinutes: 120,
			BlockedApps:     []string{"YouTube", "Facebook", "Twitter", "Instagram", "TikTok", "Games", "Discord"},
			AllowedApps:     []string{"Notion", "Obsidian", "Anki", "PDF Reader", "Calculator"},
			MinimizedApps:   []string{"Spotify"},
			StrictMode:      true,
		},
		{
			ID:              "writing-mode",
			Name:            "Writing Mode",
			DurationMinutes: 60,
			BlockedApps:     []string{"Social Media", "News", "Entertainment"},
			AllowedApps:     []string{"Notion", "Google Docs", "Scrivener", "Grammarly"},
			MinimizedApps:   []string{"YouTube", "Spotify"},
		},
	}
}
