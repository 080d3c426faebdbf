// Package filter implements the message-augmentation pipeline: an inlet
// hook that prepends retrieved memories to the latest user message and
// records it, and an outlet hook that records assistant replies.
package filter

// Message roles as used by the chat host.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single conversation entry owned by the host
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Body is the conversation payload the host passes through the hooks.
// The pipeline only ever rewrites the content of the last message.
type Body struct {
	Model    string    `json:"model,omitempty"`
	ChatID   string    `json:"chat_id,omitempty"`
	Messages []Message `json:"messages"`
}

// LastMessage returns the most recent message, or nil for an empty body
func (b *Body) LastMessage() *Message {
	if b == nil || len(b.Messages) == 0 {
		return nil
	}
	return &b.Messages[len(b.Messages)-1]
}

// User identifies the requester. Valves carries the loosely structured
// per-user settings exactly as the host supplied them.
type User struct {
	ID     string         `json:"id"`
	Name   string         `json:"name,omitempty"`
	Valves map[string]any `json:"valves,omitempty"`
}

// Identity returns the user ID, mapping an absent user to "default"
func (u *User) Identity() string {
	if u == nil || u.ID == "" {
		return "default"
	}
	return u.ID
}

// Settings resolves the user's loose valve map into typed settings
func (u *User) Settings() UserValves {
	if u == nil {
		return DefaultUserValves()
	}
	return UserValvesFromMap(u.Valves)
}
