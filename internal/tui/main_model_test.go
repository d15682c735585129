package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"agentchat/internal/app"

	tea "github.com/charmbracelet/bubbletea"
)

func newTestModel(t *testing.T) *MainModel {
	t.Helper()
	cfg := app.DefaultConfig()
	cfg.StateDir = t.TempDir()
	application := app.NewApplication(cfg, true)
	m := New(application)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func transcript(contents ...string) []app.Message {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]app.Message, 0, len(contents))
	for i, c := range contents {
		role := app.RoleUser
		if i%2 == 1 {
			role = app.RoleAssistant
		}
		out = append(out, app.Message{Role: role, Content: c, Timestamp: base.Add(time.Duration(i) * time.Second)})
	}
	return out
}

func TestStaleLoadDoesNotClobberDisplay(t *testing.T) {
	m := newTestModel(t)

	m.app.Store.Select("session-b")
	m.Update(loadResultMsg{sessionID: "session-b", res: app.LoadResult{Messages: transcript("b question", "b answer")}})
	if len(m.display) != 2 || m.display[0].Content != "b question" {
		t.Fatalf("display after load for b = %+v", m.display)
	}

	// A slow response for a previously selected session resolves late.
	m.Update(loadResultMsg{sessionID: "session-a", res: app.LoadResult{Messages: transcript("intruder")}})
	if len(m.display) != 2 || m.display[0].Content != "b question" {
		t.Fatalf("stale response changed the display: %+v", m.display)
	}
	if got := m.app.Store.Transcript("session-a"); len(got) != 0 {
		t.Fatalf("stale response populated the cache: %+v", got)
	}
}

func TestEmptyRemoteLoadClearsNonEmptyDisplay(t *testing.T) {
	m := newTestModel(t)

	m.app.Store.Select("session-a")
	m.Update(loadResultMsg{sessionID: "session-a", res: app.LoadResult{Messages: transcript("hello", "hi")}})
	if len(m.display) != 2 {
		t.Fatalf("display = %+v, want 2 messages", m.display)
	}

	m.Update(loadResultMsg{sessionID: "session-a", res: app.LoadResult{Messages: []app.Message{}}})
	if len(m.display) != 0 {
		t.Fatalf("display after empty authoritative load = %+v, want empty", m.display)
	}
	if !m.sessionStart.IsZero() {
		t.Fatalf("session start survived an empty load")
	}
}

func TestMalformedLoadKeepsDisplay(t *testing.T) {
	m := newTestModel(t)

	m.app.Store.Select("session-a")
	m.Update(loadResultMsg{sessionID: "session-a", res: app.LoadResult{Messages: transcript("keep", "me")}})
	m.Update(loadResultMsg{sessionID: "session-a", res: app.LoadResult{Malformed: true}})
	if len(m.display) != 2 || m.display[0].Content != "keep" {
		t.Fatalf("malformed load disturbed the display: %+v", m.display)
	}
}

func TestFailedSendAppendsVisibleError(t *testing.T) {
	m := newTestModel(t)
	id := m.app.Store.Active()

	m.input.SetValue("are you there?")
	if cmd := m.onSubmit(); cmd == nil {
		t.Fatalf("onSubmit returned no command")
	}
	if len(m.display) != 1 || m.display[0].Role != app.RoleUser {
		t.Fatalf("optimistic echo missing: %+v", m.display)
	}

	m.Update(sendResultMsg{sessionID: id, err: errors.New("connection refused")})
	if len(m.display) != 2 {
		t.Fatalf("display length = %d, want user + error message", len(m.display))
	}
	last := m.display[1]
	if !strings.HasPrefix(last.Content, app.ErrorMarker) {
		t.Fatalf("failure message = %q, want %q prefix", last.Content, app.ErrorMarker)
	}
	if m.app.Store.Connected() {
		t.Fatalf("store still reports connected after a failed send")
	}

	// The disconnected flag is display-only: the next send still goes out.
	m.input.SetValue("retry")
	if cmd := m.onSubmit(); cmd == nil {
		t.Fatalf("disconnected flag blocked a send")
	}
}

func TestSendResultForBackgroundSessionDoesNotSwitchDisplay(t *testing.T) {
	m := newTestModel(t)
	id := m.app.Store.Active()

	m.input.SetValue("slow question")
	m.onSubmit()

	// User switches away while the send is in flight.
	m.app.Store.Select("session-other")
	m.Update(loadResultMsg{sessionID: "session-other", res: app.LoadResult{Messages: transcript("other chat")}})

	rt := 2.0
	m.Update(sendResultMsg{sessionID: id, res: app.SendResult{Text: "late answer", ResponseTime: rt}})

	if len(m.display) != 1 || m.display[0].Content != "other chat" {
		t.Fatalf("late send result hijacked the display: %+v", m.display)
	}
	// The reply still landed in the original session's cache.
	if got := m.app.Store.Transcript(id); len(got) != 2 || got[1].Content != "late answer" {
		t.Fatalf("late reply missing from its own session: %+v", got)
	}
}

func TestDeleteActiveSessionStartsNew(t *testing.T) {
	m := newTestModel(t)
	id := m.app.Store.Active()
	m.app.Store.AppendUser("about to go")

	m.Update(deleteResultMsg{sessionID: id})

	if m.app.Store.Active() == id {
		t.Fatalf("active session unchanged after deleting it")
	}
	if len(m.display) != 0 {
		t.Fatalf("display = %+v, want empty new session", m.display)
	}
}

func TestRenameSuccessPatchesAndResyncs(t *testing.T) {
	m := newTestModel(t)
	m.app.Store.SetSummaries([]app.ConversationSummary{{SessionID: "s1", Title: "Old"}})

	_, cmd := m.Update(renameResultMsg{sessionID: "s1", title: "Foo"})
	if got := m.app.Store.Summaries()[0].Title; got != "Foo" {
		t.Fatalf("title = %q, want local patch applied", got)
	}
	if cmd == nil {
		t.Fatalf("rename success did not trigger a listing resync")
	}
}

func TestSidebarRendersRelativeTimesAndSelection(t *testing.T) {
	m := newTestModel(t)
	now := time.Now()
	m.app.Store.SetSummaries([]app.ConversationSummary{
		{SessionID: "s1", Title: "Fresh chat", Timestamp: now.Add(-30 * time.Second), MessageCount: 2},
		{SessionID: "s2", Title: strings.Repeat("very long title ", 8), Timestamp: now.Add(-25 * time.Hour), MessageCount: 6},
	})
	m.focus = focusSidebar

	out := m.renderSidebarList(m.app.Store.Summaries(), m.computeLayout())
	if !strings.Contains(out, "Just now") {
		t.Fatalf("sidebar missing relative time, got:\n%s", out)
	}
	if !strings.Contains(out, "1 day ago") {
		t.Fatalf("sidebar missing day-granularity time, got:\n%s", out)
	}
	if !strings.Contains(out, "> Fresh chat") {
		t.Fatalf("sidebar missing selection marker, got:\n%s", out)
	}
	if strings.Contains(out, strings.Repeat("very long title ", 8)) {
		t.Fatalf("long title was not truncated")
	}
}
