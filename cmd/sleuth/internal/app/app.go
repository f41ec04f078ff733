// Package app implements the interactive research TUI.
package app

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/germanamz/sleuth/cmd/sleuth/internal/bridge"
	"github.com/germanamz/sleuth/cmd/sleuth/internal/format"
	"github.com/germanamz/sleuth/cmd/sleuth/internal/msgs"
	"github.com/germanamz/sleuth/cmd/sleuth/internal/styles"
	"github.com/germanamz/sleuth/pkg/agent"
	"github.com/germanamz/sleuth/pkg/engine"
	"github.com/germanamz/sleuth/pkg/modeladapter"
)

// Asker answers questions within a quota. *engine.Session implements it.
type Asker interface {
	ID() string
	Ask(ctx context.Context, question string) (agent.Result, error)
	Remaining() int
}

type appState int

const (
	stateIdle appState = iota
	stateProcessing
	stateDone
)

// Model is the root bubbletea model.
type Model struct {
	ctx    context.Context
	sess   Asker
	events *engine.EventBus

	input     textinput.Model
	spinner   spinner.Model
	viewport  viewport.Model
	statusBar statusBarModel

	blocks       []string
	state        appState
	ready        bool
	thinking     string
	askStart     time.Time
	cancelBridge context.CancelFunc
	width        int
	height       int
}

// New creates the model. completer may be nil; when it reports usage the
// status bar shows token counts.
func New(ctx context.Context, sess Asker, events *engine.EventBus, completer modeladapter.Completer) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask a research question..."
	ti.Prompt = ""
	ti.CharLimit = 0

	sp := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	sp.Style = styles.SpinnerStyle

	m := Model{
		ctx:       ctx,
		sess:      sess,
		events:    events,
		input:     ti,
		spinner:   sp,
		viewport:  viewport.New(80, 20),
		statusBar: newStatusBar(completer, sess.Remaining()),
	}
	m.blocks = append(m.blocks, styles.TitleStyle.Render("sleuth")+" "+
		styles.DimStyle.Render(format.Remaining(sess.Remaining())+" · /help for commands"))
	if sess.Remaining() == 0 {
		m.state = stateDone
	}
	return m
}

func (m Model) Init() tea.Cmd {
	// Focusing waits until stale terminal escape-sequence replies are
	// drained.
	return tea.Tick(200*time.Millisecond, func(time.Time) tea.Msg {
		return msgs.InitDrainMsg{}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		format.InitMarkdownRenderer(m.width - 4)
		m.input.Width = max(m.width-4, 10)
		m.recalcLayout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case msgs.InitDrainMsg:
		m.ready = true
		if m.state == stateIdle {
			return m, m.input.Focus()
		}
		return m, nil

	case msgs.ProgramReadyMsg:
		if m.events != nil {
			m.cancelBridge = bridge.Start(m.ctx, msg.Program, m.sess.ID(), m.events)
		}
		return m, nil

	case msgs.ReasoningMsg:
		m.thinking = format.RandomThinkingMessage()
		return m, nil

	case msgs.ToolStartMsg:
		m.appendBlock(format.ToolCall(msg.Call, m.lineWidth()))
		return m, nil

	case msgs.ToolEndMsg:
		m.appendBlock(format.ToolResult(msg.Call, msg.Result, msg.Duration, m.lineWidth()))
		return m, nil

	case msgs.AskCompleteMsg:
		return m.handleComplete(msg)

	case spinner.TickMsg:
		if m.state != stateProcessing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		m.inputView(),
		m.statusBar.View(),
	)
}

func (m Model) inputView() string {
	switch m.state {
	case stateProcessing:
		return styles.DisabledBorder.Width(max(m.width-2, 1)).
			Render(m.spinner.View() + " " + styles.DimStyle.Render(m.thinking))
	case stateDone:
		return styles.DisabledBorder.Width(max(m.width-2, 1)).
			Render(styles.WarningStyle.Render(engine.UserMessage(engine.ErrQuotaExhausted)))
	default:
		return styles.FocusedBorder.Width(max(m.width-2, 1)).Render(m.input.View())
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m.quit()
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case tea.KeyEnter:
		if m.state == stateIdle && m.ready {
			return m.handleSubmit(m.input.Value())
		}
		return m, nil
	}

	if m.state != stateIdle || !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSubmit(raw string) (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(raw)
	m.input.Reset()

	switch text {
	case "":
		return m, nil
	case "/quit", "/exit":
		return m.quit()
	case "/help":
		m.appendBlock(helpText())
		return m, nil
	}

	m.appendBlock(format.Question(text))
	m.state = stateProcessing
	m.thinking = format.RandomThinkingMessage()
	m.input.Blur()
	m.askStart = time.Now()
	m.recalcLayout()

	sess, ctx, start := m.sess, m.ctx, m.askStart
	ask := func() tea.Msg {
		res, err := sess.Ask(ctx, text)
		return msgs.AskCompleteMsg{Result: res, Err: err, Duration: time.Since(start)}
	}

	return m, tea.Batch(ask, m.spinner.Tick)
}

func (m Model) handleComplete(msg msgs.AskCompleteMsg) (tea.Model, tea.Cmd) {
	m.statusBar.duration = msg.Duration
	m.statusBar.remaining = m.sess.Remaining()

	if msg.Err != nil {
		if m.ctx.Err() != nil {
			return m, nil
		}
		m.appendBlock(styles.ErrorBlockStyle.Render(engine.UserMessage(msg.Err)))
	} else {
		m.appendBlock(styles.AnswerPrefixStyle.Render("» ") + format.Answer(msg.Result.FinalText))
	}

	if m.sess.Remaining() == 0 {
		m.state = stateDone
		m.appendBlock(styles.WarningStyle.Render(engine.UserMessage(engine.ErrQuotaExhausted)))
		m.recalcLayout()
		return m, nil
	}

	m.state = stateIdle
	m.recalcLayout()
	return m, m.input.Focus()
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.cancelBridge != nil {
		m.cancelBridge()
	}
	return m, tea.Quit
}

func (m *Model) appendBlock(s string) {
	m.blocks = append(m.blocks, s)
	m.viewport.SetContent(strings.Join(m.blocks, "\n\n"))
	m.viewport.GotoBottom()
}

func (m *Model) recalcLayout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	inputHeight := lipgloss.Height(m.inputView())
	statusHeight := 1
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-inputHeight-statusHeight, 1)
	m.viewport.SetContent(strings.Join(m.blocks, "\n\n"))
	m.viewport.GotoBottom()
}

func (m Model) lineWidth() int {
	if m.width <= 0 {
		return 80
	}
	return m.width
}

func helpText() string {
	return styles.DimStyle.Render(
		"Commands:\n" +
			"  /help          Show this help message\n" +
			"  /quit          Exit\n\n" +
			"Shortcuts:\n" +
			"  Enter          Ask the question\n" +
			"  PgUp/PgDown    Scroll\n" +
			"  Ctrl+C, Esc    Exit",
	)
}
