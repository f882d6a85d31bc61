package history

import (
	"time"

	"github.com/google/uuid"
)

// Roles a conversation turn may carry. The store enforces the same set
// with a CHECK constraint.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Turn is one role-tagged message in a conversation's history.
// Turns are append-only; nothing in this service mutates or deletes them.
type Turn struct {
	ID             uuid.UUID `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// ValidRole reports whether role is one of the three allowed values.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}
