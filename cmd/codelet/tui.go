package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sengac/codelet"
	"github.com/sengac/codelet/streaming"
)

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	toolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	meterStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// chunkMsg delivers one session chunk to the TUI.
type chunkMsg struct{ chunk streaming.Chunk }

type chatModel struct {
	session  *codelet.Session
	keys     chan<- codelet.KeyEvent
	viewport viewport.Model
	input    textarea.Model
	spin     spinner.Model

	// chunks carries output from the Prompt goroutine; the terminal
	// chunk on it marks the end of a stream.
	chunks chan streaming.Chunk

	transcript string
	streaming  bool
	ready      bool
	tokenLine  string
	statusLine string
}

func newChatModel(session *codelet.Session, keys chan<- codelet.KeyEvent) chatModel {
	ta := textarea.New()
	ta.Placeholder = "Ask anything. Enter sends, Esc interrupts, Ctrl+C quits."
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return chatModel{
		session: session,
		keys:    keys,
		input:   ta,
		spin:    sp,
		chunks:  make(chan streaming.Chunk, 64),
		tokenLine: meterStyle.Render(
			fmt.Sprintf("backend: %s  window: %s tokens",
				session.CurrentBackend(), humanCount(int64(session.ContextWindow())))),
	}
}

func (m chatModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		inputHeight := m.input.Height() + 2
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-inputHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - inputHeight
		}
		m.input.SetWidth(msg.Width)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEsc:
			if m.streaming {
				select {
				case m.keys <- codelet.KeyEvent{Key: msg.String()}:
				default:
				}
				return m, nil
			}
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.Reset()
			if m.streaming {
				// Typed mid-stream: queue it, the Interrupted chunk or
				// the next turn picks it up.
				m.session.QueueInput(text)
				m.appendLine(statusStyle.Render("queued: " + text))
				return m, nil
			}
			return m.submit(text)
		}

	case chunkMsg:
		m.handleChunk(msg.chunk)
		if m.streaming {
			return m, m.waitForChunk()
		}
		return m, nil

	case spinner.TickMsg:
		if m.streaming {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit dispatches a slash command or starts a prompt stream.
func (m chatModel) submit(text string) (tea.Model, tea.Cmd) {
	if strings.HasPrefix(text, "/") {
		return m.runCommand(text)
	}

	m.appendLine(userStyle.Render("you") + "  " + text)
	m.appendLine(assistantStyle.Render(m.session.CurrentBackend()))
	m.streaming = true
	m.statusLine = ""

	session, chunks := m.session, m.chunks
	go func() {
		// The terminal chunk carries any failure; nothing else to report.
		_ = session.Prompt(context.Background(), text, func(c streaming.Chunk) {
			chunks <- c
		})
	}()
	return m, tea.Batch(m.waitForChunk(), m.spin.Tick)
}

func (m chatModel) runCommand(text string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(text)
	switch fields[0] {
	case "/quit", "/exit":
		return m, tea.Quit

	case "/clear":
		m.session.ClearHistory()
		m.transcript = ""
		m.appendLine(statusStyle.Render("history cleared"))

	case "/compact":
		result, err := m.session.Compact(context.Background())
		if err != nil {
			m.appendLine(errorStyle.Render("compaction failed: " + err.Error()))
			break
		}
		m.appendLine(statusStyle.Render(fmt.Sprintf(
			"compacted: %d turns summarized, %d kept, %.0f%% compression",
			result.Metrics.TurnsSummarized,
			result.Metrics.TurnsKept,
			result.Metrics.CompressionPercent())))

	case "/backend":
		if len(fields) < 2 {
			m.appendLine(statusStyle.Render(
				"backends: " + strings.Join(m.session.AvailableBackends(), ", ") +
					" (active: " + m.session.CurrentBackend() + ")"))
			break
		}
		if err := m.session.SwitchBackend(fields[1]); err != nil {
			m.appendLine(errorStyle.Render(err.Error()))
			break
		}
		m.appendLine(statusStyle.Render("switched to " + fields[1]))

	case "/tokens":
		usage := m.session.TokenUsage()
		m.appendLine(statusStyle.Render(fmt.Sprintf(
			"input %s, output %s, cache read %s, total %s of %s",
			humanCount(usage.InputTokens),
			humanCount(usage.OutputTokens),
			humanCount(usage.CacheReadTokens),
			humanCount(usage.Total()),
			humanCount(int64(m.session.ContextWindow())))))

	default:
		m.appendLine(statusStyle.Render("unknown command: " + fields[0] +
			" (try /compact, /clear, /backend, /tokens, /quit)"))
	}
	return m, nil
}

func (m chatModel) waitForChunk() tea.Cmd {
	chunks := m.chunks
	return func() tea.Msg {
		return chunkMsg{chunk: <-chunks}
	}
}

func (m *chatModel) handleChunk(c streaming.Chunk) {
	switch chunk := c.(type) {
	case *streaming.Text:
		m.transcript += chunk.Content
		m.refresh()

	case *streaming.ToolCall:
		m.appendLine(toolStyle.Render(fmt.Sprintf("⚙ %s %s", chunk.Name, compactJSON(chunk.Input))))

	case *streaming.ToolResult:
		marker := "→"
		if chunk.IsError {
			marker = "✗"
		}
		m.appendLine(toolStyle.Render(fmt.Sprintf("%s %s", marker, firstLine(chunk.Output))))

	case *streaming.Status:
		m.statusLine = statusStyle.Render(chunk.Message)

	case *streaming.TokenUpdate:
		m.tokenLine = renderTokenMeter(chunk)

	case *streaming.Interrupted:
		m.streaming = false
		m.statusLine = ""
		m.appendLine(statusStyle.Render("— interrupted —"))
		for _, queued := range chunk.QueuedInputs {
			m.input.SetValue(queued)
		}
		m.appendLine("")

	case *streaming.Done:
		m.streaming = false
		m.statusLine = ""
		m.appendLine("")

	case *streaming.Error:
		m.streaming = false
		m.statusLine = ""
		m.appendLine(errorStyle.Render("error: " + chunk.Err.Error()))
		m.appendLine("")
	}
}

func (m *chatModel) appendLine(line string) {
	if m.transcript != "" && !strings.HasSuffix(m.transcript, "\n") {
		m.transcript += "\n"
	}
	m.transcript += line + "\n"
	m.refresh()
}

func (m *chatModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.transcript)
	m.viewport.GotoBottom()
}

func (m chatModel) View() string {
	if !m.ready {
		return "starting..."
	}

	status := m.tokenLine
	if m.streaming {
		status = m.spin.View() + " " + status
		if m.statusLine != "" {
			status += "  " + m.statusLine
		}
	}

	return fmt.Sprintf("%s\n%s\n%s", m.viewport.View(), status, m.input.View())
}

func renderTokenMeter(u *streaming.TokenUpdate) string {
	total := u.Usage.Total()
	pct := 0.0
	if u.ContextWindow > 0 {
		pct = float64(total) / float64(u.ContextWindow) * 100
	}
	line := fmt.Sprintf("tokens %s / %s (%.0f%%)",
		humanCount(total), humanCount(int64(u.ContextWindow)), pct)
	if total >= int64(u.Threshold) && u.Threshold > 0 {
		return errorStyle.Render(line + " — compacting soon")
	}
	return meterStyle.Render(line)
}

func humanCount(n int64) string {
	if n >= 1000 {
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	}
	return fmt.Sprintf("%d", n)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}

func compactJSON(raw []byte) string {
	s := string(raw)
	if len(s) > 80 {
		s = s[:80] + "..."
	}
	return s
}
