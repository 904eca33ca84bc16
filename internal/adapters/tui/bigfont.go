package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// digitMap holds the block glyph of every countdown character.
var digitMap = map[rune][5]string{
	'0': {
		"████",
		"█  █",
		"█  █",
		"█  █",
		"████",
	},
	'1': {
		" █ ",
		"██ ",
		" █ ",
		" █ ",
		"███",
	},
	'2': {
		"████",
		"   █",
		"████",
		"█   ",
		"████",
	},
	'3': {
		"████",
		"   █",
		"████",
		"   █",
		"████",
	},
	'4': {
		"█  █",
		"█  █",
		"████",
		"   █",
		"   █",
	},
	'5': {
		"████",
		"█   ",
		"████",
		"   █",
		"████",
	},
	'6': {
		"████",
		"█   ",
		"████",
		"█  █",
		"████",
	},
	'7': {
		"████",
		"   █",
		"  █ ",
		" █  ",
		" █  ",
	},
	'8': {
		"████",
		"█  █",
		"████",
		"█  █",
		"████",
	},
	'9': {
		"████",
		"█  █",
		"████",
		"   █",
		"████",
	},
	':': {
		" ",
		"█",
		" ",
		"█",
		" ",
	},
}

// renderBigTime renders a countdown like "89:59" in block glyphs, five rows
// high. Narrow terminals get a single bold line instead.
func renderBigTime(timeStr string, color lipgloss.Color, width int) string {
	style := lipgloss.NewStyle().Bold(true).Foreground(color)
	if width < bigTimeWidth(timeStr)+4 {
		return style.Render(timeStr)
	}

	var rows [5][]string
	for _, ch := range timeStr {
		glyph, ok := digitMap[ch]
		if !ok {
			continue
		}
		for i := range rows {
			rows[i] = append(rows[i], glyph[i])
		}
	}

	styled := make([]string, len(rows))
	for i, row := range rows {
		styled[i] = style.Render(strings.Join(row, " "))
	}
	return strings.Join(styled, "\n")
}

// bigTimeWidth returns the rendered width of timeStr in block glyphs.
func bigTimeWidth(timeStr string) int {
	w := 0
	n := 0
	for _, ch := range timeStr {
		glyph, ok := digitMap[ch]
		if !ok {
			continue
		}
		w += len([]rune(glyph[0]))
		n++
	}
	if n > 1 {
		w += n - 1
	}
	return w
}
