package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agentchat/internal/app"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type focusArea int

const (
	focusInput focusArea = iota
	focusChat
	focusSidebar
)

type spinMsg struct{}

type sendResultMsg struct {
	sessionID string
	res       app.SendResult
	err       error
}

type loadResultMsg struct {
	sessionID string
	res       app.LoadResult
	err       error
}

type listResultMsg struct {
	summaries []app.ConversationSummary
	err       error
}

type deleteResultMsg struct {
	sessionID string
	err       error
}

type renameResultMsg struct {
	sessionID string
	title     string
	err       error
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type MainModel struct {
	app   *app.Application
	theme Theme
	keys  keyMap

	width  int
	height int
	ready  bool

	focus focusArea

	// display is the transcript currently on screen. It tracks the cache
	// through the store's outcomes; during a load with no cached entry it
	// deliberately keeps showing the previous transcript.
	display      []app.Message
	sessionStart time.Time

	input    textarea.Model
	chatVP   viewport.Model
	markdown *MarkdownRenderer

	showSidebar bool
	sidebarSel  int
	sidebarOff  int

	sending    bool
	loading    bool
	statusText string
	spinnerPos int

	renameTarget  string
	pendingDelete string
}

func New(application *app.Application) *MainModel {
	ta := textarea.New()
	ta.Placeholder = "Ask the agent, then press Enter."
	ta.Focus()
	ta.CharLimit = 8000
	ta.SetHeight(1)
	ta.Prompt = " "
	ta.ShowLineNumbers = false
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.BlurredStyle.CursorLine = lipgloss.NewStyle()

	theme := NewTheme(application.Config.Theme)
	m := &MainModel{
		app:         application,
		theme:       theme,
		keys:        defaultKeyMap(),
		width:       100,
		height:      30,
		focus:       focusInput,
		input:       ta,
		markdown:    NewMarkdownRenderer(theme),
		showSidebar: true,
		statusText:  "Ready",
	}

	// Resume the persisted session; a cached transcript (same process) is
	// shown immediately, the authoritative load follows in Init.
	id := application.Store.Resume()
	if cached, start, ok := application.Store.Select(id); ok {
		m.display = cached
		m.sessionStart = start
	}
	return m
}

func (m *MainModel) Init() tea.Cmd {
	m.loading = true
	return tea.Batch(
		textarea.Blink,
		m.loadCmd(m.app.Store.Active()),
		m.listCmd(),
	)
}

func (m *MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		layout := m.computeLayout()
		if !m.ready {
			m.chatVP = viewport.New(layout.ChatW, layout.ChatH)
			m.ready = true
		} else {
			m.chatVP.Width = layout.ChatW
			m.chatVP.Height = layout.ChatH
		}
		m.input.SetWidth(maxInt(10, layout.InputW))
		m.updateChatViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case sendResultMsg:
		m.sending = false
		m.statusText = "Ready"
		if msg.err != nil {
			m.app.Store.AppendSendFailure(msg.sessionID, msg.err)
		} else {
			rt := msg.res.ResponseTime
			m.app.Store.AppendAssistant(msg.sessionID, msg.res.Text, &rt)
		}
		if msg.sessionID == m.app.Store.Active() {
			m.display = m.app.Store.Transcript(msg.sessionID)
			m.updateChatViewport()
			m.chatVP.GotoBottom()
		}
		return m, nil

	case loadResultMsg:
		m.loading = false
		if msg.err != nil {
			// Transport failure: keep whatever is on screen.
			m.app.Logger.Error("load failed", map[string]interface{}{"session": msg.sessionID, "error": msg.err.Error()})
			return m, nil
		}
		outcome, transcript := m.app.Store.ApplyLoad(msg.sessionID, msg.res)
		switch outcome {
		case app.LoadStale:
			// A later session switch won the race; drop this response.
		case app.LoadApplied:
			m.display = transcript
			if start, ok := m.app.Store.SessionStart(msg.sessionID); ok {
				m.sessionStart = start
			} else {
				m.sessionStart = time.Time{}
			}
			m.updateChatViewport()
			m.chatVP.GotoBottom()
		case app.LoadKeptCache:
			m.display = transcript
			m.updateChatViewport()
		case app.LoadNoData:
			m.display = nil
			m.sessionStart = time.Time{}
			m.updateChatViewport()
		}
		return m, nil

	case listResultMsg:
		if msg.err != nil {
			m.app.Logger.Error("list failed", map[string]interface{}{"error": msg.err.Error()})
			return m, nil
		}
		m.app.Store.SetSummaries(msg.summaries)
		m.clampSidebar()
		return m, nil

	case deleteResultMsg:
		if msg.err != nil {
			// Destructive op failed remotely: trust the backend and
			// resynchronize the listing instead of guessing.
			m.statusText = "Delete failed"
			return m, m.listCmd()
		}
		wasActive := m.app.Store.RemoveLocal(msg.sessionID)
		m.clampSidebar()
		if wasActive {
			m.startNewSession()
		}
		return m, nil

	case renameResultMsg:
		if msg.err != nil {
			m.statusText = "Rename failed"
			return m, nil
		}
		m.app.Store.PatchTitle(msg.sessionID, msg.title)
		return m, m.listCmd()

	case spinMsg:
		m.spinnerPos = (m.spinnerPos + 1) % len(spinnerFrames)
		if m.sending {
			return m, m.spinTick()
		}
		return m, nil
	}

	return m.updateChildren(msg)
}

func (m *MainModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Pending delete confirmation swallows the next key.
	if m.pendingDelete != "" {
		id := m.pendingDelete
		m.pendingDelete = ""
		m.statusText = "Ready"
		if msg.String() == "y" {
			m.statusText = "Deleting…"
			return m, m.deleteCmd(id)
		}
		return m, nil
	}

	if m.renameTarget != "" {
		switch {
		case key.Matches(msg, m.keys.Escape):
			return m, m.exitRenameMode()
		case key.Matches(msg, m.keys.Enter):
			title := strings.TrimSpace(m.input.Value())
			target := m.renameTarget
			cmd := m.exitRenameMode()
			if title == "" {
				return m, cmd
			}
			m.statusText = "Renaming…"
			return m, tea.Batch(cmd, m.renameCmd(target, title))
		}
		return m.updateChildren(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.FocusNext):
		m.cycleFocus()
		return m, nil

	case key.Matches(msg, m.keys.NewSession):
		m.startNewSession()
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		if m.focus == focusSidebar {
			return m, m.selectFromSidebar()
		}
		if m.focus == focusInput {
			return m, m.onSubmit()
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete) && m.focus == focusSidebar:
		if sum, ok := m.selectedSummary(); ok {
			m.pendingDelete = sum.SessionID
			m.statusText = fmt.Sprintf("Delete %q? y/n", truncate(sum.Title, 24))
		}
		return m, nil

	case key.Matches(msg, m.keys.Rename) && m.focus == focusSidebar:
		if sum, ok := m.selectedSummary(); ok {
			m.enterRenameMode(sum)
		}
		return m, nil

	case msg.Type == tea.KeyUp:
		if m.focus == focusSidebar {
			m.moveSidebar(-1)
			return m, nil
		}
		if m.focus == focusChat {
			m.chatVP.LineUp(1)
			return m, nil
		}
	case msg.Type == tea.KeyDown:
		if m.focus == focusSidebar {
			m.moveSidebar(1)
			return m, nil
		}
		if m.focus == focusChat {
			m.chatVP.LineDown(1)
			return m, nil
		}
	case msg.Type == tea.KeyPgUp:
		m.chatVP.ViewUp()
		return m, nil
	case msg.Type == tea.KeyPgDown:
		m.chatVP.ViewDown()
		return m, nil
	}

	return m.updateChildren(msg)
}

func (m *MainModel) updateChildren(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	if m.focus == focusInput || m.renameTarget != "" {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.chatVP, cmd = m.chatVP.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// onSubmit sends the typed message: optimistic local echo first, then the
// network call as a command.
func (m *MainModel) onSubmit() tea.Cmd {
	val := strings.TrimSpace(m.input.Value())
	if val == "" {
		return nil
	}
	if m.sending {
		m.statusText = "Still waiting on the agent…"
		return nil
	}

	id := m.app.Store.Active()
	m.app.Store.AppendUser(val)
	m.display = m.app.Store.Transcript(id)
	m.input.Reset()
	m.updateChatViewport()
	m.chatVP.GotoBottom()

	m.sending = true
	m.statusText = "Waiting for the agent…"
	m.spinnerPos = 0
	return tea.Batch(m.sendCmd(id, val), m.spinTick())
}

// selectFromSidebar runs the three-step switch: pointer moves at once, the
// cache is restored optimistically, and the authoritative load is issued.
func (m *MainModel) selectFromSidebar() tea.Cmd {
	sum, ok := m.selectedSummary()
	if !ok {
		return nil
	}
	if cached, start, ok := m.app.Store.Select(sum.SessionID); ok {
		m.display = cached
		m.sessionStart = start
		m.updateChatViewport()
		m.chatVP.GotoBottom()
	}
	// No cache: the previous transcript stays on screen until the load
	// resolves, so the pane never flashes blank.
	m.loading = true
	m.focus = focusInput
	m.input.Focus()
	return m.loadCmd(sum.SessionID)
}

func (m *MainModel) startNewSession() {
	m.app.Store.StartNew()
	m.display = nil
	m.sessionStart = time.Time{}
	m.statusText = "New chat"
	m.updateChatViewport()
}

func (m *MainModel) enterRenameMode(sum app.ConversationSummary) {
	m.renameTarget = sum.SessionID
	m.input.Reset()
	m.input.Placeholder = "New title…"
	m.input.SetValue(sum.Title)
	m.input.Focus()
	m.statusText = "Rename: Enter to confirm, Esc to cancel"
}

func (m *MainModel) exitRenameMode() tea.Cmd {
	m.renameTarget = ""
	m.input.Reset()
	m.input.Placeholder = "Ask the agent, then press Enter."
	m.statusText = "Ready"
	if m.focus == focusInput {
		return textarea.Blink
	}
	m.input.Blur()
	return nil
}

func (m *MainModel) selectedSummary() (app.ConversationSummary, bool) {
	sums := m.app.Store.Summaries()
	if m.sidebarSel < 0 || m.sidebarSel >= len(sums) {
		return app.ConversationSummary{}, false
	}
	return sums[m.sidebarSel], true
}

func (m *MainModel) cycleFocus() {
	next := m.focus + 1
	if next > focusSidebar {
		next = focusInput
	}
	if next == focusSidebar && !m.showSidebar {
		next = focusInput
	}
	m.focus = next
	if m.focus == focusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m *MainModel) moveSidebar(delta int) {
	count := len(m.app.Store.Summaries())
	if count == 0 {
		return
	}
	m.sidebarSel += delta
	m.clampSidebar()
}

func (m *MainModel) clampSidebar() {
	count := len(m.app.Store.Summaries())
	if m.sidebarSel >= count {
		m.sidebarSel = count - 1
	}
	if m.sidebarSel < 0 {
		m.sidebarSel = 0
	}
	visible := m.computeLayout().SidebarListH / 2
	if visible < 1 {
		visible = 1
	}
	if m.sidebarSel < m.sidebarOff {
		m.sidebarOff = m.sidebarSel
	}
	if m.sidebarSel >= m.sidebarOff+visible {
		m.sidebarOff = m.sidebarSel - visible + 1
	}
	if m.sidebarOff < 0 {
		m.sidebarOff = 0
	}
}

// Commands. Each closes over the session ID it was issued for; the store
// decides at resolution time whether the response is still relevant.

func (m *MainModel) sendCmd(sessionID, message string) tea.Cmd {
	client := m.app.Client
	timeout := app.RequestTimeout(m.app.Config)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := client.Send(ctx, sessionID, message)
		return sendResultMsg{sessionID: sessionID, res: res, err: err}
	}
}

func (m *MainModel) loadCmd(sessionID string) tea.Cmd {
	client := m.app.Client
	timeout := app.RequestTimeout(m.app.Config)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := client.Load(ctx, sessionID)
		return loadResultMsg{sessionID: sessionID, res: res, err: err}
	}
}

func (m *MainModel) listCmd() tea.Cmd {
	client := m.app.Client
	timeout := app.RequestTimeout(m.app.Config)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		sums, err := client.List(ctx)
		return listResultMsg{summaries: sums, err: err}
	}
}

func (m *MainModel) deleteCmd(sessionID string) tea.Cmd {
	client := m.app.Client
	timeout := app.RequestTimeout(m.app.Config)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return deleteResultMsg{sessionID: sessionID, err: client.Delete(ctx, sessionID)}
	}
}

func (m *MainModel) renameCmd(sessionID, title string) tea.Cmd {
	client := m.app.Client
	timeout := app.RequestTimeout(m.app.Config)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return renameResultMsg{sessionID: sessionID, title: title, err: client.Rename(ctx, sessionID, title)}
	}
}

func (m *MainModel) spinTick() tea.Cmd {
	return tea.Tick(90*time.Millisecond, func(_ time.Time) tea.Msg { return spinMsg{} })
}
