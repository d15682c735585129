package app

import (
	"strings"
	"time"
)

// LoadOutcome says what ApplyLoad did with a resolved load response.
type LoadOutcome int

const (
	// LoadStale means the active session moved on while the request was in
	// flight; the response was discarded without touching any state.
	LoadStale LoadOutcome = iota
	// LoadApplied means the response was a valid transcript and replaced
	// the cache entry for the session.
	LoadApplied
	// LoadKeptCache means the response was malformed but a cached
	// transcript exists; the cache was left as-is.
	LoadKeptCache
	// LoadNoData means the response was malformed and nothing was cached;
	// the caller should show an empty transcript.
	LoadNoData
)

// ConversationStore owns every piece of local conversation state: the
// transcript cache, per-session start instants, the summary list, and the
// active-session pointer (mirrored into the durable Pointer). All methods
// are called from the UI event loop, so there is no locking.
//
// The cache contract: a transcript entry is only ever replaced by a valid
// remote response for a still-active session, or extended by optimistic
// appends. A failed load never erases a non-empty cache.
type ConversationStore struct {
	transcripts map[string][]Message
	starts      map[string]time.Time
	summaries   []ConversationSummary

	active  string
	pointer *Pointer

	connected bool
	logger    *Logger
}

func NewConversationStore(pointer *Pointer, logger *Logger) *ConversationStore {
	return &ConversationStore{
		transcripts: make(map[string][]Message),
		starts:      make(map[string]time.Time),
		pointer:     pointer,
		connected:   true,
		logger:      logger,
	}
}

func (c *ConversationStore) Active() string { return c.active }

// Connected reports the display-only connectivity flag. It flips false when
// a send fails and back true on the next success; it never blocks sends.
func (c *ConversationStore) Connected() bool { return c.connected }

// StartNew creates a fresh session, makes it active, and gives it an empty
// transcript. The remote store is not contacted.
func (c *ConversationStore) StartNew() string {
	id := NewSessionID()
	c.setActive(id)
	c.transcripts[id] = nil
	delete(c.starts, id)
	c.logger.Info("session started", map[string]interface{}{"session": id})
	return id
}

// Resume restores the persisted active session on startup, or starts a new
// one when no pointer was ever written.
func (c *ConversationStore) Resume() string {
	id := c.pointer.Read()
	if id == "" {
		return c.StartNew()
	}
	c.setActive(id)
	return id
}

// Select switches the active session. The pointer moves immediately — the
// UI reflects the switch with no delay — and a cached transcript, when one
// exists and is non-empty, is returned for optimistic display. The caller
// then issues the async load and feeds its result to ApplyLoad. When ok is
// false the caller keeps whatever transcript is currently on screen; that
// avoids a blank flash during the round trip.
func (c *ConversationStore) Select(id string) (cached []Message, start time.Time, ok bool) {
	c.setActive(id)
	ts := c.transcripts[id]
	if len(ts) == 0 {
		return nil, time.Time{}, false
	}
	return copyMessages(ts), c.starts[id], true
}

// ApplyLoad reconciles a resolved load response against the cache. The
// durable pointer is re-read here: it is the single generation token, and a
// response for a session the user has navigated away from is discarded
// wholesale. Valid responses overwrite the cache — an empty one too, since
// the remote store is authoritative once it answers. Malformed responses
// never touch the cache.
func (c *ConversationStore) ApplyLoad(id string, res LoadResult) (LoadOutcome, []Message) {
	if c.pointer.Read() != id {
		c.logger.Info("stale load discarded", map[string]interface{}{"session": id})
		return LoadStale, nil
	}

	if res.Malformed {
		if ts := c.transcripts[id]; len(ts) > 0 {
			return LoadKeptCache, copyMessages(ts)
		}
		return LoadNoData, nil
	}

	c.transcripts[id] = copyMessages(res.Messages)
	if len(res.Messages) > 0 {
		c.starts[id] = res.Messages[0].Timestamp
	} else {
		delete(c.starts, id)
	}
	return LoadApplied, copyMessages(res.Messages)
}

// AppendUser appends a user message to the active transcript before the
// network call resolves (optimistic echo).
func (c *ConversationStore) AppendUser(content string) Message {
	msg := Message{
		ID:        NewMessageID(RoleUser),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
	c.append(c.active, msg)
	return msg
}

// AppendAssistant records a successful agent reply for the given session
// and restores the connectivity flag.
func (c *ConversationStore) AppendAssistant(sessionID, content string, responseTime *float64) Message {
	msg := Message{
		ID:           NewMessageID(RoleAssistant),
		Role:         RoleAssistant,
		Content:      content,
		Timestamp:    time.Now(),
		ResponseTime: responseTime,
	}
	c.append(sessionID, msg)
	c.connected = true
	return msg
}

// AppendSendFailure records a failed send as a synthetic assistant message
// carrying the error text, so the failure is visible in the thread rather
// than swallowed. Flips the connectivity flag; further sends still go out.
func (c *ConversationStore) AppendSendFailure(sessionID string, err error) Message {
	text := "Error: unable to reach the agent"
	if err != nil {
		text = "Error: " + err.Error()
	}
	msg := Message{
		ID:        NewMessageID(RoleAssistant),
		Role:      RoleAssistant,
		Content:   text,
		Timestamp: time.Now(),
	}
	c.append(sessionID, msg)
	c.connected = false
	c.logger.Error("send failed", map[string]interface{}{"session": sessionID, "error": text})
	return msg
}

func (c *ConversationStore) append(sessionID string, msg Message) {
	if sessionID == "" {
		return
	}
	c.transcripts[sessionID] = append(c.transcripts[sessionID], msg)
	if _, ok := c.starts[sessionID]; !ok {
		c.starts[sessionID] = msg.Timestamp
	}
	if sessionID == c.active {
		c.refreshSummary()
	}
}

// Transcript returns a copy of a session's cached transcript.
func (c *ConversationStore) Transcript(sessionID string) []Message {
	return copyMessages(c.transcripts[sessionID])
}

func (c *ConversationStore) SessionStart(sessionID string) (time.Time, bool) {
	t, ok := c.starts[sessionID]
	return t, ok
}

func (c *ConversationStore) Summaries() []ConversationSummary {
	out := make([]ConversationSummary, len(c.summaries))
	copy(out, c.summaries)
	return out
}

// SetSummaries replaces the summary list with a fresh remote listing.
func (c *ConversationStore) SetSummaries(summaries []ConversationSummary) {
	c.summaries = make([]ConversationSummary, len(summaries))
	copy(c.summaries, summaries)
}

// RemoveLocal drops every local trace of a session after the remote store
// confirmed its deletion. Returns true when the removed session was active,
// in which case the caller starts a new one.
func (c *ConversationStore) RemoveLocal(sessionID string) bool {
	delete(c.transcripts, sessionID)
	delete(c.starts, sessionID)
	for i, s := range c.summaries {
		if s.SessionID == sessionID {
			c.summaries = append(c.summaries[:i], c.summaries[i+1:]...)
			break
		}
	}
	return sessionID == c.active
}

// PatchTitle applies a confirmed rename locally. The caller still re-lists
// afterwards; the patch just keeps the sidebar honest until that resolves.
func (c *ConversationStore) PatchTitle(sessionID, title string) {
	for i := range c.summaries {
		if c.summaries[i].SessionID == sessionID {
			c.summaries[i].Title = title
			return
		}
	}
}

// refreshSummary re-derives the active session's summary from its
// transcript: updated in place when present, prepended when new. A title
// that already exists — including one the user set via rename — is never
// overwritten by derivation.
func (c *ConversationStore) refreshSummary() {
	ts := c.transcripts[c.active]
	if len(ts) == 0 {
		return
	}
	for i := range c.summaries {
		if c.summaries[i].SessionID == c.active {
			c.summaries[i] = DeriveSummary(c.active, c.summaries[i].Title, ts)
			return
		}
	}
	c.summaries = append([]ConversationSummary{DeriveSummary(c.active, "", ts)}, c.summaries...)
}

func (c *ConversationStore) setActive(id string) {
	c.active = id
	if err := c.pointer.Write(id); err != nil {
		c.logger.Error("pointer write failed", map[string]interface{}{"error": err.Error()})
	}
}

func copyMessages(in []Message) []Message {
	if in == nil {
		return nil
	}
	out := make([]Message, len(in))
	copy(out, in)
	return out
}

// ErrorMarker is the prefix synthetic failure messages start with; the UI
// styles matching messages as errors.
const ErrorMarker = "Error:"

// IsErrorMessage reports whether a transcript entry is a synthetic send
// failure rather than a real agent reply.
func IsErrorMessage(m Message) bool {
	return m.Role == RoleAssistant && strings.HasPrefix(m.Content, ErrorMarker)
}
