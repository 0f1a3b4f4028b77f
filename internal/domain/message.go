package domain

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single turn in an interview transcript. Messages are
// append-only; the transcript order is the single source of truth for all
// derived session state.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserTurnCount returns the number of user-authored messages in a
// transcript. A failed assistant reply never inflates this: the count is
// defined purely over role == user.
func UserTurnCount(messages []Message) int {
	n := 0
	for _, m := range messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}
