package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockStore is an in-memory RemoteStore used when no endpoint is configured
// and by tests. It mirrors the backend's behavior: send records the user
// message and a canned reply, load for an unknown session returns an empty
// transcript, list derives summaries from stored transcripts.
type MockStore struct {
	mu       sync.Mutex
	sessions map[string]*mockConversation
	// Failing makes every call return an error, for exercising the
	// disconnected paths.
	Failing bool
	// ReplyFn overrides the canned reply when set.
	ReplyFn func(message string) string
}

type mockConversation struct {
	title    string
	messages []Message
}

func NewMockStore() *MockStore {
	return &MockStore{sessions: make(map[string]*mockConversation)}
}

func (m *MockStore) Send(_ context.Context, sessionID, message string) (SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Failing {
		return SendResult{}, fmt.Errorf("mock agent unavailable")
	}

	reply := "[mock] You said: " + message
	if m.ReplyFn != nil {
		reply = m.ReplyFn(message)
	}

	conv := m.sessions[sessionID]
	if conv == nil {
		conv = &mockConversation{title: truncateRunes(message, titleMaxRunes)}
		m.sessions[sessionID] = conv
	}
	now := time.Now()
	conv.messages = append(conv.messages,
		Message{Role: RoleUser, Content: message, Timestamp: now},
		Message{Role: RoleAssistant, Content: reply, Timestamp: now.Add(time.Millisecond)},
	)
	return SendResult{Text: reply, ResponseTime: 0.01}, nil
}

func (m *MockStore) Load(_ context.Context, sessionID string) (LoadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Failing {
		return LoadResult{}, fmt.Errorf("mock agent unavailable")
	}
	conv := m.sessions[sessionID]
	if conv == nil {
		return LoadResult{Messages: []Message{}}, nil
	}
	return LoadResult{Messages: copyMessages(conv.messages)}, nil
}

func (m *MockStore) List(_ context.Context) ([]ConversationSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Failing {
		return nil, fmt.Errorf("mock agent unavailable")
	}
	summaries := make([]ConversationSummary, 0, len(m.sessions))
	for id, conv := range m.sessions {
		if len(conv.messages) == 0 {
			continue
		}
		summaries = append(summaries, DeriveSummary(id, conv.title, conv.messages))
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Timestamp.After(summaries[j].Timestamp)
	})
	return summaries, nil
}

func (m *MockStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Failing {
		return fmt.Errorf("mock agent unavailable")
	}
	delete(m.sessions, sessionID)
	return nil
}

func (m *MockStore) Rename(_ context.Context, sessionID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Failing {
		return fmt.Errorf("mock agent unavailable")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title required")
	}
	if conv := m.sessions[sessionID]; conv != nil {
		conv.title = title
	}
	return nil
}

// Seed installs a ready-made conversation, for tests.
func (m *MockStore) Seed(sessionID, title string, messages []Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = &mockConversation{title: title, messages: copyMessages(messages)}
}
