// Package events holds the payloads exchanged between services over Kafka.
package events

import "time"

const (
	UserCreated = "auth.user.created.v1"
	UserUpdated = "auth.user.updated.v1"
)

// UserTopics lists the topics a user projection subscribes to.
func UserTopics() []string {
	return []string{UserCreated, UserUpdated}
}

// User is the payload of both user events. UpdatedAt orders versions of the
// same user.
type User struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Timezone  string    `json:"timezone,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
