package model

// Conversation role constants.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ConversationTurn is one caller-supplied message. History is owned by the
// caller and resent on every turn.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LastUserMessage returns the content of the most recent user turn, or "".
func LastUserMessage(turns []ConversationTurn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleUser {
			return turns[i].Content
		}
	}
	return ""
}
