package app

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *ConversationStore {
	t.Helper()
	return NewConversationStore(NewPointer(t.TempDir()), NewLogger(io.Discard))
}

func msgs(contents ...string) []Message {
	out := make([]Message, 0, len(contents))
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, c := range contents {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		out = append(out, Message{Role: role, Content: c, Timestamp: base.Add(time.Duration(i) * time.Second)})
	}
	return out
}

func TestStartNew_EmptyTranscriptAndFreshID(t *testing.T) {
	store := newTestStore(t)

	a := store.StartNew()
	store.AppendUser("hello")
	b := store.StartNew()

	if a == b {
		t.Fatalf("StartNew reused session ID %q", a)
	}
	if got := store.Transcript(b); len(got) != 0 {
		t.Fatalf("new session transcript has %d messages, want 0", len(got))
	}
	if store.Active() != b {
		t.Fatalf("Active() = %q, want %q", store.Active(), b)
	}
}

func TestSelect_SetsPointerImmediately(t *testing.T) {
	pointer := NewPointer(t.TempDir())
	store := NewConversationStore(pointer, NewLogger(io.Discard))

	store.Select("session-a")
	if got := pointer.Read(); got != "session-a" {
		t.Fatalf("pointer after Select = %q, want %q", got, "session-a")
	}
}

func TestSelect_OptimisticCacheRestore(t *testing.T) {
	store := newTestStore(t)
	store.Select("session-a")
	store.ApplyLoad("session-a", LoadResult{Messages: msgs("hi", "hello back")})

	cached, start, ok := store.Select("session-a")
	if !ok {
		t.Fatalf("Select returned no cache for a populated session")
	}
	if len(cached) != 2 {
		t.Fatalf("cached transcript length = %d, want 2", len(cached))
	}
	if !start.Equal(cached[0].Timestamp) {
		t.Fatalf("session start = %v, want first message's %v", start, cached[0].Timestamp)
	}
}

func TestSelect_NoCacheKeepsDisplay(t *testing.T) {
	store := newTestStore(t)
	if _, _, ok := store.Select("never-seen"); ok {
		t.Fatalf("Select reported a cache for an unknown session")
	}
}

func TestApplyLoad_StaleResponseDiscarded(t *testing.T) {
	store := newTestStore(t)
	store.Select("session-b")
	store.ApplyLoad("session-b", LoadResult{Messages: msgs("b says hi", "reply")})

	// A slow response for session-a resolves after the user moved to b.
	outcome, _ := store.ApplyLoad("session-a", LoadResult{Messages: msgs("a content")})
	if outcome != LoadStale {
		t.Fatalf("outcome = %v, want LoadStale", outcome)
	}
	if got := store.Transcript("session-b"); len(got) != 2 || got[0].Content != "b says hi" {
		t.Fatalf("session-b transcript was disturbed by a stale response: %+v", got)
	}
	if got := store.Transcript("session-a"); len(got) != 0 {
		t.Fatalf("stale response populated session-a cache: %+v", got)
	}
}

func TestApplyLoad_EmptyRemoteOverwritesCache(t *testing.T) {
	store := newTestStore(t)
	store.Select("session-a")
	store.ApplyLoad("session-a", LoadResult{Messages: msgs("old", "cache")})

	outcome, display := store.ApplyLoad("session-a", LoadResult{Messages: []Message{}})
	if outcome != LoadApplied {
		t.Fatalf("outcome = %v, want LoadApplied", outcome)
	}
	if len(display) != 0 {
		t.Fatalf("display = %+v, want empty transcript", display)
	}
	if got := store.Transcript("session-a"); len(got) != 0 {
		t.Fatalf("cache = %+v, want overwritten with empty transcript", got)
	}
	if _, ok := store.SessionStart("session-a"); ok {
		t.Fatalf("session start survived an empty authoritative load")
	}
}

func TestApplyLoad_MalformedNeverTouchesCache(t *testing.T) {
	store := newTestStore(t)
	store.Select("session-a")
	store.ApplyLoad("session-a", LoadResult{Messages: msgs("keep", "me")})

	outcome, display := store.ApplyLoad("session-a", LoadResult{Malformed: true})
	if outcome != LoadKeptCache {
		t.Fatalf("outcome = %v, want LoadKeptCache", outcome)
	}
	if len(display) != 2 {
		t.Fatalf("display length = %d, want the cached 2", len(display))
	}

	store.Select("session-empty")
	outcome, display = store.ApplyLoad("session-empty", LoadResult{Malformed: true})
	if outcome != LoadNoData {
		t.Fatalf("outcome = %v, want LoadNoData", outcome)
	}
	if len(display) != 0 {
		t.Fatalf("display = %+v, want empty fallback", display)
	}
}

func TestAppendSendFailure_VisibleErrorMessage(t *testing.T) {
	store := newTestStore(t)
	id := store.StartNew()

	store.AppendUser("are you there?")
	before := len(store.Transcript(id))
	store.AppendSendFailure(id, errors.New("connection refused"))

	ts := store.Transcript(id)
	if len(ts) != before+1 || len(ts) != 2 {
		t.Fatalf("transcript length = %d, want 2 (user + synthetic error)", len(ts))
	}
	last := ts[len(ts)-1]
	if !strings.HasPrefix(last.Content, ErrorMarker) {
		t.Fatalf("failure message = %q, want %q prefix", last.Content, ErrorMarker)
	}
	if !IsErrorMessage(last) {
		t.Fatalf("IsErrorMessage(%+v) = false, want true", last)
	}
	if store.Connected() {
		t.Fatalf("Connected() = true after a failed send")
	}

	rt := 1.5
	store.AppendAssistant(id, "back online", &rt)
	if !store.Connected() {
		t.Fatalf("Connected() = false after a successful reply")
	}
}

func TestRefreshSummary_DerivedAndRenameSafe(t *testing.T) {
	store := newTestStore(t)
	id := store.StartNew()

	store.AppendUser("First question about trains")
	sums := store.Summaries()
	if len(sums) != 1 {
		t.Fatalf("summary count = %d, want 1", len(sums))
	}
	if sums[0].Title != "First question about trains" {
		t.Fatalf("derived title = %q", sums[0].Title)
	}

	// Rename confirmed remotely, patched locally, then the resync listing
	// lands. Either order must leave "Foo" in place.
	store.PatchTitle(id, "Foo")
	store.AppendUser("second message")
	if got := store.Summaries()[0].Title; got != "Foo" {
		t.Fatalf("title after derivation = %q, want rename preserved", got)
	}

	store.SetSummaries([]ConversationSummary{{SessionID: id, Title: "Foo", MessageCount: 2}})
	if got := store.Summaries()[0].Title; got != "Foo" {
		t.Fatalf("title after resync = %q, want %q", got, "Foo")
	}
}

func TestRemoveLocal_DropsEverything(t *testing.T) {
	store := newTestStore(t)
	id := store.StartNew()
	store.AppendUser("hello")

	wasActive := store.RemoveLocal(id)
	if !wasActive {
		t.Fatalf("RemoveLocal(active) = false, want true")
	}
	if len(store.Transcript(id)) != 0 {
		t.Fatalf("transcript survived RemoveLocal")
	}
	if _, ok := store.SessionStart(id); ok {
		t.Fatalf("session start survived RemoveLocal")
	}
	if len(store.Summaries()) != 0 {
		t.Fatalf("summary survived RemoveLocal")
	}
}

func TestResume_FallsBackToNewSession(t *testing.T) {
	dir := t.TempDir()
	pointer := NewPointer(dir)
	store := NewConversationStore(pointer, NewLogger(io.Discard))

	id := store.Resume()
	if id == "" {
		t.Fatalf("Resume with no pointer returned empty ID")
	}

	// Second process run resumes the same session.
	store2 := NewConversationStore(NewPointer(dir), NewLogger(io.Discard))
	if got := store2.Resume(); got != id {
		t.Fatalf("Resume = %q, want persisted %q", got, id)
	}
}
