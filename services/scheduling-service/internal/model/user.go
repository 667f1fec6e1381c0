package model

import "time"

// User is the scheduling-side projection of an account owned by auth-service.
type User struct {
	ID        string
	Name      string
	Username  string
	Email     string
	Timezone  string
	UpdatedAt time.Time
}

// Profile is the public part of a user attached to bookings and month results.
type Profile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

func (u User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Username: u.Username}
}
