package tui

import (
	"fmt"
	"strings"
	"time"

	"agentchat/internal/app"

	"github.com/charmbracelet/lipgloss"
)

type layoutInfo struct {
	TopH  int
	FootH int
	MainH int

	ChatW int
	ChatH int

	SidebarW     int
	SidebarListH int

	InputH int
	InputW int
}

func (m *MainModel) computeLayout() layoutInfo {
	top := 1
	foot := 1
	inputH := 3
	mainH := m.height - top - foot - inputH
	if mainH < 3 {
		mainH = 3
	}

	showSidebar := m.showSidebar && m.width >= 80
	chatW := m.width
	sidebarW := 0
	if showSidebar {
		gap := 1
		sidebarW = m.width / 3
		if sidebarW > 42 {
			sidebarW = 42
		}
		if sidebarW < 28 {
			sidebarW = 28
		}
		chatW = m.width - gap - sidebarW
	}

	return layoutInfo{
		TopH: top, FootH: foot, MainH: mainH,
		ChatW: chatW, ChatH: mainH,
		SidebarW:     sidebarW,
		SidebarListH: maxInt(1, mainH-3),
		InputH:       inputH,
		InputW:       chatW - 4,
	}
}

func (m *MainModel) View() string {
	if !m.ready {
		return "…"
	}
	layout := m.computeLayout()
	top := m.renderTopBar()
	main := m.renderMain(layout)
	input := m.renderInputArea(layout)
	footer := m.renderFooter()
	return lipgloss.JoinVertical(lipgloss.Left, top, main, input, footer)
}

func (m *MainModel) renderTopBar() string {
	left := m.theme.TopBarTitle.Render("agentchat")
	if m.app.Mock {
		left += " " + m.theme.TopBarBadge.Render("MOCK")
	}
	if !m.app.Store.Connected() {
		left += " " + m.theme.Disconnected.Render("OFFLINE")
	}

	status := m.statusText
	if m.sending || m.loading {
		status = m.theme.Spinner.Render(spinnerFrames[m.spinnerPos] + " " + status)
	} else {
		status = m.theme.TopBarMeta.Render(status)
	}

	right := ""
	if !m.sessionStart.IsZero() {
		right = m.theme.TopBarMeta.Render("since " + m.sessionStart.Format("Jan 2 15:04"))
	} else {
		right = m.theme.TopBarMeta.Render(time.Now().Format("15:04"))
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(status) - lipgloss.Width(right)
	if gap < 2 {
		gap = 2
	}
	a := gap / 2
	b := gap - a
	return m.theme.TopBar.Render(left + strings.Repeat(" ", a) + status + strings.Repeat(" ", b) + right)
}

func (m *MainModel) renderFooter() string {
	hints := "Tab focus  Enter send/open  Ctrl+N new  d delete  r rename  Ctrl+C quit"
	if m.width < 80 {
		hints = "Tab focus  Enter send  Ctrl+N new  Ctrl+C quit"
	}
	return m.theme.Footer.Width(m.width).Render(hints)
}

func (m *MainModel) renderMain(l layoutInfo) string {
	chat := m.renderChatPane(l)
	if l.SidebarW <= 0 {
		return chat
	}
	sidebar := m.renderSidebar(l)
	sep := m.theme.PaneDivider.Render("│")
	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, sep, chat)
}

func (m *MainModel) renderChatPane(l layoutInfo) string {
	title := "Chat"
	if m.focus == focusChat {
		title = m.theme.PaneTitleF.Render(title)
	} else {
		title = m.theme.PaneTitle.Render(title)
	}
	box := m.theme.Pane
	if m.focus == focusChat {
		box = m.theme.PaneFocused
	}
	return box.Width(l.ChatW).Height(l.ChatH).Render(title + "\n" + m.chatVP.View())
}

func (m *MainModel) renderSidebar(l layoutInfo) string {
	sums := m.app.Store.Summaries()
	titleText := fmt.Sprintf("Conversations (%d)", len(sums))
	box := m.theme.Pane
	var title string
	if m.focus == focusSidebar {
		box = m.theme.PaneFocused
		title = m.theme.PaneTitleF.Render(titleText)
	} else {
		title = m.theme.PaneTitle.Render(titleText)
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	if len(sums) == 0 {
		b.WriteString(m.theme.SidebarMeta.Render("No conversations yet."))
	} else {
		b.WriteString(m.renderSidebarList(sums, l))
	}
	return box.Width(l.SidebarW).Height(l.MainH).Render(b.String())
}

func (m *MainModel) renderSidebarList(sums []app.ConversationSummary, l layoutInfo) string {
	visible := l.SidebarListH / 2
	if visible < 1 {
		visible = 1
	}
	start := m.sidebarOff
	end := start + visible
	if end > len(sums) {
		end = len(sums)
	}

	active := m.app.Store.Active()
	now := time.Now()
	innerW := maxInt(12, l.SidebarW-4)

	var b strings.Builder
	for i := start; i < end; i++ {
		s := sums[i]
		prefix := "  "
		titleStyle := m.theme.SidebarItem
		if s.SessionID == active {
			prefix = "• "
		}
		if i == m.sidebarSel && m.focus == focusSidebar {
			prefix = "> "
			titleStyle = m.theme.SidebarSel
		}
		title := s.Title
		if strings.TrimSpace(title) == "" {
			title = "New Chat"
		}
		b.WriteString(titleStyle.Render(prefix + truncate(oneLine(title), innerW-2)))
		b.WriteString("\n")
		meta := fmt.Sprintf("  %s · %d msgs", app.RelativeTime(s.Timestamp, now), s.MessageCount)
		b.WriteString(m.theme.SidebarMeta.Render(truncate(meta, innerW)))
		if i != end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m *MainModel) renderInputArea(l layoutInfo) string {
	box := m.theme.InputBox
	if m.focus == focusInput || m.renameTarget != "" {
		box = m.theme.InputBoxF
	}
	return box.Width(maxInt(10, m.width-2)).Render(m.input.View())
}

func (m *MainModel) updateChatViewport() {
	if !m.ready {
		return
	}
	width := m.computeLayout().ChatW - 4
	if width < 20 {
		width = 20
	}
	var b strings.Builder
	if len(m.display) == 0 {
		b.WriteString(m.theme.RoleSys.Render("No messages yet. Say hello."))
	}
	for i, msg := range m.display {
		b.WriteString(m.renderMessage(msg, width))
		if i != len(m.display)-1 {
			b.WriteString("\n\n")
		}
	}
	m.chatVP.SetContent(b.String())
}

func (m *MainModel) renderMessage(msg app.Message, width int) string {
	roleStyle := m.theme.RoleSys
	roleLabel := "SYS"
	switch {
	case msg.Role == app.RoleUser:
		roleStyle = m.theme.RoleYou
		roleLabel = "YOU"
	case app.IsErrorMessage(msg):
		roleStyle = m.theme.RoleErr
		roleLabel = "ERR"
	case msg.Role == app.RoleAssistant:
		roleStyle = m.theme.RoleAI
		roleLabel = "AGT"
	}

	meta := msg.Timestamp.Format("15:04")
	if msg.ResponseTime != nil {
		meta += fmt.Sprintf(" · %.1fs", *msg.ResponseTime)
	}
	header := roleStyle.Render(roleLabel) + " " + m.theme.TopBarMeta.Render(meta)

	var body string
	if msg.Role == app.RoleAssistant && !app.IsErrorMessage(msg) {
		body = m.markdown.Render(msg.Content, width)
	} else {
		style := lipgloss.NewStyle().Foreground(m.theme.TextPrimary)
		if app.IsErrorMessage(msg) {
			style = lipgloss.NewStyle().Foreground(m.theme.Error)
		}
		body = style.Width(width).Render(msg.Content)
	}
	return header + "\n" + body
}

func truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	if maxRunes <= 1 {
		return string(r[:maxRunes])
	}
	return string(r[:maxRunes-1]) + "…"
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
