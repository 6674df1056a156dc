package profile

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message persists a single conversation turn entry.
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	UserID    string `json:"userId,omitempty"`
	Platform  string `json:"platform,omitempty"`
}

// NewMessage builds an immutable message with a generation-time identifier.
// The ID combines the millisecond timestamp with a random suffix; collisions
// are negligible rather than impossible.
func NewMessage(userID string, role Role, content string) Message {
	now := time.Now().UnixMilli()
	return Message{
		ID:        fmt.Sprintf("%d-%s", now, uuid.NewString()[:8]),
		Role:      role,
		Content:   content,
		Timestamp: now,
		UserID:    userID,
	}
}
