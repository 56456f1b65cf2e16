package domain

import (
	"time"
)

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation history.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationSession holds the state of one visitor conversation. It is
// owned by the session registry; other components only borrow it for a turn.
type ConversationSession struct {
	ID        string       `json:"id"`
	ProductID string       `json:"productId"`
	Step      StepTag      `json:"step"`
	Draft     *OrderDraft  `json:"draft,omitempty"`
	LastOrder *OrderDraft  `json:"lastOrder,omitempty"`
	History   []Message    `json:"history"`
	Profile   *UserProfile `json:"profile"`

	// ResumeStep is where "retry" returns to after error recovery.
	ResumeStep StepTag `json:"resumeStep,omitempty"`
	// Offered holds the product ids of the last recommendations shown.
	Offered []string `json:"offered,omitempty"`

	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// NewConversationSession creates an empty session at the initial step.
func NewConversationSession(id string, now time.Time) *ConversationSession {
	return &ConversationSession{
		ID:           id,
		Step:         StepInitial,
		Profile:      NewUserProfile(),
		CreatedAt:    now,
		LastActivity: now,
	}
}

// Record appends a message to the history, keeping at most maxHistory entries.
func (s *ConversationSession) Record(msg Message, maxHistory int) {
	s.History = append(s.History, msg)
	if maxHistory > 0 && len(s.History) > maxHistory {
		s.History = append([]Message(nil), s.History[len(s.History)-maxHistory:]...)
	}
	s.LastActivity = msg.Timestamp
}

// RecentHistory returns the last n messages.
func (s *ConversationSession) RecentHistory(n int) []Message {
	if n <= 0 || n >= len(s.History) {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// Idle reports whether the session has been inactive for longer than maxAge.
func (s *ConversationSession) Idle(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.LastActivity) > maxAge
}

// ResetDraft drops the order in progress.
func (s *ConversationSession) ResetDraft() {
	s.Draft = nil
	s.ResumeStep = ""
}

// Snapshot returns a deep copy safe to hand outside the session lock.
func (s *ConversationSession) Snapshot() *ConversationSession {
	c := *s
	c.Draft = s.Draft.Clone()
	c.LastOrder = s.LastOrder.Clone()
	c.History = append([]Message(nil), s.History...)
	c.Profile = s.Profile.Clone()
	c.Offered = append([]string(nil), s.Offered...)
	return &c
}
