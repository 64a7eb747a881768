package domain

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one conversation record scoped to a session ID. Sessions own
// an ordered sequence of turns, bounded in count and age; the oldest
// turns are evicted first.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
