package profile

import "time"

// CommunicationStyle selects the tone of generated replies.
type CommunicationStyle string

const (
	StyleFormal CommunicationStyle = "formal"
	StyleCasual CommunicationStyle = "casual"
)

// Preferences carries the per-user settings that steer prompt building.
// Partial updates merge field-by-field; empty values leave the stored
// preference untouched.
type Preferences struct {
	CommunicationStyle CommunicationStyle `json:"communicationStyle,omitempty"`
	Language           string             `json:"language,omitempty"`
	FavoriteTools      []string           `json:"favoriteTools,omitempty"`
	WorkingHours       string             `json:"workingHours,omitempty"`
}

// Merge applies the non-zero fields of patch on top of the receiver.
func (p Preferences) Merge(patch Preferences) Preferences {
	if patch.CommunicationStyle != "" {
		p.CommunicationStyle = patch.CommunicationStyle
	}
	if patch.Language != "" {
		p.Language = patch.Language
	}
	if patch.FavoriteTools != nil {
		p.FavoriteTools = patch.FavoriteTools
	}
	if patch.WorkingHours != "" {
		p.WorkingHours = patch.WorkingHours
	}
	return p
}

// UserProfile owns the durable state of one user: preferences plus the
// bounded conversation history. Mutated only through the store.
type UserProfile struct {
	UserID              string      `json:"userId"`
	Preferences         Preferences `json:"preferences"`
	ConversationHistory []Message   `json:"conversationHistory"`
	CreatedAt           int64       `json:"createdAt"`
	UpdatedAt           int64       `json:"updatedAt"`
}

// NewUserProfile returns the default profile created on first access.
func NewUserProfile(userID string) *UserProfile {
	now := time.Now().UnixMilli()
	return &UserProfile{
		UserID: userID,
		Preferences: Preferences{
			CommunicationStyle: StyleCasual,
			Language:           "zh-CN",
		},
		ConversationHistory: make([]Message, 0, 16),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}
