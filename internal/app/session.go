package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	titleMaxRunes       = 50
	lastMessageMaxRunes = 100
)

// Message is a single entry in a conversation transcript. Messages are
// append-only: once in a transcript they are never edited or removed
// individually.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	// ResponseTime is how long the agent took to answer, in seconds. Only
	// set on assistant messages, and only when the reply was measured.
	ResponseTime *float64 `json:"responseTime,omitempty"`
}

// ConversationSummary is the sidebar view of a conversation. It is derived
// data: everything in it can be rebuilt from the transcript.
type ConversationSummary struct {
	SessionID    string    `json:"sessionId"`
	Title        string    `json:"title"`
	LastMessage  string    `json:"lastMessage"`
	Timestamp    time.Time `json:"timestamp"`
	MessageCount int       `json:"messageCount"`
}

// NewSessionID generates a client-side session identifier in the form
// <unix-milliseconds>-<random-suffix>. Uniqueness is probabilistic; two
// clients starting a session in the same millisecond can collide and the
// backend keys history purely by this string. Accepted risk.
func NewSessionID() string {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), suffix)
}

func NewMessageID(role string) string {
	return fmt.Sprintf("%s-%d", role, time.Now().UnixNano())
}

// DeriveTitle returns the conversation title implied by its opening message.
func DeriveTitle(first Message) string {
	return truncateRunes(first.Content, titleMaxRunes)
}

// DeriveSummary rebuilds a summary from a non-empty transcript. An existing
// title (user-set or previously derived) is kept; a derived title is only
// filled in when none exists yet.
func DeriveSummary(sessionID, existingTitle string, transcript []Message) ConversationSummary {
	last := transcript[len(transcript)-1]
	title := existingTitle
	if title == "" {
		title = DeriveTitle(transcript[0])
	}
	return ConversationSummary{
		SessionID:    sessionID,
		Title:        title,
		LastMessage:  truncateRunes(last.Content, lastMessageMaxRunes),
		Timestamp:    last.Timestamp,
		MessageCount: len(transcript),
	}
}

func truncateRunes(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes])
}
