// Package format renders agent output for the terminal.
package format

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	"github.com/germanamz/sleuth/cmd/sleuth/internal/styles"
	"github.com/germanamz/sleuth/pkg/chats/content"
	"github.com/mattn/go-runewidth"
)

// IsDarkBG is set once before bubbletea starts so that glamour never issues
// its own OSC 11 query while the program is running.
var IsDarkBG bool

// ThinkingMessages are displayed while the agent is researching.
var ThinkingMessages = []string{
	"Thinking...",
	"Researching...",
	"Consulting sources...",
	"Cross-checking facts...",
	"Following leads...",
	"Weighing the evidence...",
	"Reading the fine print...",
}

var (
	mdRenderer      *glamour.TermRenderer
	mdRendererMu    sync.Mutex
	mdRendererWidth int
)

// InitMarkdownRenderer initializes the glamour renderer at the given width.
func InitMarkdownRenderer(width int) {
	if width <= 0 {
		width = 100
	}
	mdRendererMu.Lock()
	defer mdRendererMu.Unlock()
	if width == mdRendererWidth && mdRenderer != nil {
		return
	}
	// glamour.WithAutoStyle() must not be used: it queries the terminal
	// (OSC 11), which races with bubbletea's input handling.
	style := glamourstyles.LightStyleConfig
	if IsDarkBG {
		style = glamourstyles.DarkStyleConfig
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return
	}
	mdRenderer = r
	mdRendererWidth = width
}

// RenderMarkdown converts markdown text to terminal-formatted output. Before
// InitMarkdownRenderer the text is returned unchanged.
func RenderMarkdown(text string) string {
	mdRendererMu.Lock()
	r := mdRenderer
	mdRendererMu.Unlock()
	if r == nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// Truncate shortens s to at most width terminal cells, appending "…" when
// cut. Newlines become spaces for single-line display.
func Truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// FmtTokens formats a token count for display, using k/M suffixes.
func FmtTokens(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// FmtDuration formats a duration for display.
func FmtDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

// ToolCall renders a running tool call as one line of at most width cells.
func ToolCall(call content.ToolCall, width int) string {
	prefix := styles.TreeTee + styles.ToolNameStyle.Render(call.Name) + " "
	args := call.Arguments
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	room := width - runewidth.StringWidth(styles.TreeTee+call.Name+" ")
	return prefix + styles.DimStyle.Render(Truncate(args, room))
}

// ToolResult renders a finished tool call as one line of at most width
// cells.
func ToolResult(call content.ToolCall, result content.ToolResult, d time.Duration, width int) string {
	head := fmt.Sprintf("%s%s (%s) ", styles.TreeCorner, call.Name, FmtDuration(d))
	room := width - runewidth.StringWidth(head)

	if result.Failed {
		return styles.ToolErrorStyle.Render(head + Truncate(result.ErrorDetail, room))
	}
	return styles.ToolResultStyle.Render(head + Truncate(result.Content, room))
}

// Question formats a user question for the scrollback.
func Question(text string) string {
	return styles.UserPrefixStyle.Render("? ") + text
}

// Answer formats a final answer for the scrollback.
func Answer(text string) string {
	if strings.TrimSpace(text) == "" {
		return styles.DimStyle.Render("(no answer)")
	}
	return RenderMarkdown(text)
}

// Remaining describes the question quota; remaining < 0 means unlimited.
func Remaining(remaining int) string {
	switch {
	case remaining < 0:
		return "unlimited questions"
	case remaining == 1:
		return "1 question remaining"
	default:
		return fmt.Sprintf("%d questions remaining", remaining)
	}
}

// RandomThinkingMessage returns a random thinking message.
func RandomThinkingMessage() string {
	return ThinkingMessages[rand.IntN(len(ThinkingMessages))] //nolint:gosec // cosmetic randomness
}
