package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/germanamz/sleuth/cmd/sleuth/internal/format"
	"github.com/germanamz/sleuth/cmd/sleuth/internal/styles"
	"github.com/germanamz/sleuth/pkg/modeladapter"
)

// statusBarModel shows the question quota, token usage and timing.
type statusBarModel struct {
	completer modeladapter.Completer
	remaining int
	duration  time.Duration
}

func newStatusBar(completer modeladapter.Completer, remaining int) statusBarModel {
	return statusBarModel{completer: completer, remaining: remaining}
}

func (m statusBarModel) View() string {
	parts := []string{format.Remaining(m.remaining)}

	if ur, ok := m.completer.(modeladapter.UsageReporter); ok {
		total := ur.UsageTracker().Total()
		if total.InputTokens+total.OutputTokens > 0 {
			parts = append(parts, fmt.Sprintf("tokens: ↑%s ↓%s",
				format.FmtTokens(total.InputTokens),
				format.FmtTokens(total.OutputTokens),
			))
		}
		if maxTok := ur.ModelMaxTokens(); maxTok > 0 {
			parts = append(parts, "limit: "+format.FmtTokens(maxTok))
		}
	}

	if m.duration > 0 {
		parts = append(parts, "last: "+format.FmtDuration(m.duration))
	}

	return styles.StatusStyle.Render(" " + strings.Join(parts, " · "))
}
