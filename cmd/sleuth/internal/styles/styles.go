// Package styles holds the TUI's lipgloss styles.
package styles

import "github.com/charmbracelet/lipgloss"

// Terminal palette.
var (
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#656d76", Dark: "#8b949e"}
	ColorAccent  = lipgloss.AdaptiveColor{Light: "#0969da", Dark: "#58a6ff"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#cf222e", Dark: "#f85149"}
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#1a7f37", Dark: "#3fb950"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#9a6700", Dark: "#d29922"}
	ColorMagenta = lipgloss.AdaptiveColor{Light: "#8250df", Dark: "#bc8cff"}
)

var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

	UserPrefixStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	AnswerPrefixStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorSuccess)

	ToolNameStyle   = lipgloss.NewStyle().Bold(true)
	ToolResultStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	ToolErrorStyle  = lipgloss.NewStyle().Foreground(ColorError)

	SpinnerStyle = lipgloss.NewStyle().Foreground(ColorMagenta)

	DimStyle     = lipgloss.NewStyle().Foreground(ColorMuted)
	StatusStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	InfoStyle    = lipgloss.NewStyle().Foreground(ColorAccent)
	WarningStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)

	ErrorBlockStyle = lipgloss.NewStyle().
			PaddingLeft(1).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(ColorError)

	FocusedBorder  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(ColorAccent)
	DisabledBorder = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(ColorMuted)
)

// Tree-drawing characters for tool progress lines.
const (
	TreeCorner = "└ "
	TreeTee    = "├ "
)
