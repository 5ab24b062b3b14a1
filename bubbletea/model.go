package bubbletea

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/fwojciec/chatstream"
	"github.com/mattn/go-runewidth"
)

var _ tea.Model = Model{}

// Model is the Bubble Tea model for the multi-output viewer. One output is
// shown at a time; left and right switch between them.
type Model struct {
	// Viewport is the scrollable output area. Exported for test access.
	Viewport viewport.Model

	stream StreamFunc
	theme  chatstream.Theme
	styles Styles

	panes     []*outputPane
	active    int
	usage     *chatstream.Usage
	citations []string

	// parent is the context the stream runs under, set by Run.
	parent  context.Context
	running bool
	done    bool
	cancel  context.CancelFunc
	msgCh   chan tea.Msg
	doneCh  chan error
	exited  chan struct{} // closed once the stream function has returned
	err     error
	ready   bool
}

// New creates a Model that runs stream when the program starts.
func New(stream StreamFunc, theme chatstream.Theme) Model {
	return Model{
		stream: stream,
		theme:  theme,
		styles: NewStyles(theme),
	}
}

// Running returns whether the stream is still being processed.
func (m Model) Running() bool { return m.running }

// Err returns the stream error, if any. Cancellation is not an error.
func (m Model) Err() error { return m.err }

// Active returns the index of the output currently shown.
func (m Model) Active() int { return m.active }

// Outputs returns the number of outputs seen so far.
func (m Model) Outputs() int { return len(m.panes) }

// startMsg triggers the stream from Init, where the model cannot be modified.
type startMsg struct{}

// streamMsg wraps a message received from the stream goroutine.
type streamMsg struct {
	msg tea.Msg
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return func() tea.Msg { return startMsg{} }
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case startMsg:
		return m.start()

	case streamMsg:
		m = m.apply(msg.msg)
		m = m.refresh()
		return m, listen(m.msgCh, m.doneCh)

	case ChunkMsg, TokenMsg, PhaseDoneMsg, ToolCallsMsg, InlineCitationsMsg, UsageMsg, CitationsMsg:
		m = m.apply(msg)
		return m.refresh(), nil

	case DoneMsg:
		m.running = false
		m.done = true
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.msgCh = nil
		m.doneCh = nil
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			m.err = msg.Err
		}
		return m.refresh(), nil
	}

	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	return m.Viewport.View() + "\n" + m.statusLine()
}

func (m Model) start() (tea.Model, tea.Cmd) {
	if m.running || m.done || m.stream == nil {
		return m, nil
	}
	parent := m.parent
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	m.cancel = cancel
	m.msgCh = make(chan tea.Msg, 256)
	m.doneCh = make(chan error, 1)
	m.exited = make(chan struct{})
	m.running = true
	go runStream(ctx, m.stream, m.msgCh, m.doneCh, m.exited)
	return m, listen(m.msgCh, m.doneCh)
}

// stop cancels a running stream and waits for the stream function to return.
func (m Model) stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.exited != nil {
		<-m.exited
	}
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	statusHeight := 1
	borderHeight := 1
	vpHeight := max(msg.Height-statusHeight-borderHeight, 1)

	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
	}
	m.Viewport.SetContent(m.renderContent())
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.running {
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
		return m, tea.Quit

	case tea.KeyLeft:
		return m.focus(m.active - 1), nil

	case tea.KeyRight:
		return m.focus(m.active + 1), nil

	case tea.KeyTab:
		if p := m.activePane(); p != nil {
			p.collapsed = !p.collapsed
			m.Viewport.SetContent(m.renderContent())
		}
		return m, nil

	case tea.KeyRunes:
		s := string(msg.Runes)
		if s == "q" && !m.running {
			return m, tea.Quit
		}
		if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= len(m.panes) {
			return m.focus(n - 1), nil
		}
	}

	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	return m, cmd
}

// focus shows output i, wrapping around at both ends.
func (m Model) focus(i int) Model {
	if len(m.panes) == 0 {
		return m
	}
	m.active = (i%len(m.panes) + len(m.panes)) % len(m.panes)
	m.Viewport.SetContent(m.renderContent())
	m.Viewport.GotoTop()
	return m
}

// apply routes a stream message to the pane it belongs to. Messages for an
// output index outside [0, chatstream.MaxOutputs) are dropped.
func (m Model) apply(msg tea.Msg) Model {
	if i := output(msg); i < 0 || i >= chatstream.MaxOutputs {
		return m
	}
	switch e := msg.(type) {
	case ChunkMsg:
		m = m.ensure(min(e.Chunk.TotalOutputs, chatstream.MaxOutputs))
		for _, d := range e.Chunk.Outputs {
			if d.Finished() && d.Index >= 0 && d.Index < chatstream.MaxOutputs {
				m = m.ensure(d.Index + 1)
				m.panes[d.Index].finish = d.FinishReason
			}
		}
	case TokenMsg:
		m = m.ensure(e.Output + 1)
		p := m.panes[e.Output]
		if e.Phase == PhaseReasoning {
			p.reasoning.WriteString(e.Text)
		} else {
			p.content.WriteString(e.Text)
		}
	case PhaseDoneMsg:
		m = m.ensure(e.Output + 1)
		p := m.panes[e.Output]
		if e.Phase == PhaseReasoning {
			p.reasoningDone = true
		} else {
			p.contentDone = true
		}
	case ToolCallsMsg:
		m = m.ensure(e.Output + 1)
		m.panes[e.Output].addCalls(e.Calls)
	case InlineCitationsMsg:
		m = m.ensure(e.Output + 1)
		p := m.panes[e.Output]
		p.citations = append(p.citations, e.Citations...)
	case UsageMsg:
		u := e.Usage
		m.usage = &u
	case CitationsMsg:
		m.citations = append([]string(nil), e.URLs...)
	}
	return m
}

func output(msg tea.Msg) int {
	switch e := msg.(type) {
	case TokenMsg:
		return e.Output
	case PhaseDoneMsg:
		return e.Output
	case ToolCallsMsg:
		return e.Output
	case InlineCitationsMsg:
		return e.Output
	}
	return 0
}

// ensure grows the pane list to at least n outputs.
func (m Model) ensure(n int) Model {
	for len(m.panes) < n {
		m.panes = append(m.panes, newOutputPane())
	}
	return m
}

func (m Model) activePane() *outputPane {
	if m.active < 0 || m.active >= len(m.panes) {
		return nil
	}
	return m.panes[m.active]
}

// refresh re-renders the viewport, following the stream while it runs.
func (m Model) refresh() Model {
	if !m.ready {
		return m
	}
	m.Viewport.SetContent(m.renderContent())
	if m.running {
		m.Viewport.GotoBottom()
	}
	return m
}

func (m Model) renderContent() string {
	p := m.activePane()
	if p == nil {
		return ""
	}
	width := max(m.Viewport.Width, 1)
	view := p.view(m.active, width, m.styles, m.theme)
	if len(m.citations) > 0 {
		lines := []string{m.styles.Muted.Render("Sources")}
		for i, url := range m.citations {
			lines = append(lines, m.styles.Citation.Render(runewidth.Truncate(fmt.Sprintf("%d. %s", i+1, url), width, "…")))
		}
		view += "\n\n" + strings.Join(lines, "\n")
	}
	return view
}

func (m Model) statusLine() string {
	var tabs []string
	for i := range m.panes {
		label := " " + strconv.Itoa(i+1) + " "
		if i == m.active {
			tabs = append(tabs, m.styles.ActiveTab.Render(label))
		} else {
			tabs = append(tabs, m.styles.Muted.Render(label))
		}
	}

	var status string
	switch {
	case m.err != nil:
		status = m.styles.Error.Render(fmt.Sprintf("Error: %v", m.err))
	case m.running:
		status = m.styles.Muted.Render("Generating...")
	case m.usage != nil:
		status = m.styles.Muted.Render(fmt.Sprintf("%d prompt · %d completion · %d total tokens · q to quit",
			m.usage.PromptTokens, m.usage.CompletionTokens, m.usage.TotalTokens))
	default:
		status = m.styles.Muted.Render("q to quit")
	}

	line := strings.Join(tabs, "")
	if line != "" {
		line += " "
	}
	return ansi.Truncate(line+status, max(m.Viewport.Width, 1), "…")
}

// runStream runs the stream and signals completion. It is started in its own
// goroutine so it is running before the program can exit.
func runStream(ctx context.Context, stream StreamFunc, msgCh chan<- tea.Msg, doneCh chan<- error, exited chan<- struct{}) {
	defer close(exited)
	err := stream(ctx, NewForwarder(ctx, msgCh))
	close(msgCh)
	doneCh <- err
}

// listen waits for the next message from the stream. When the channel closes
// it reads the error from doneCh and returns DoneMsg.
func listen(ch <-chan tea.Msg, doneCh <-chan error) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return DoneMsg{Err: <-doneCh}
		}
		return streamMsg{msg: msg}
	}
}
