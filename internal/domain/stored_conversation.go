package domain

import (
	"time"
)

// StoredConversation is the persisted snapshot of a ConversationSession.
type StoredConversation struct {
	SessionID   string
	ProductID   string
	Step        StepTag
	SessionJSON string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
