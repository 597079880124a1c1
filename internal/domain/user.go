package domain

import "time"

// User represents a registered account. Password is kept exactly as submitted.
type User struct {
	ID        int64
	Username  string
	Email     string
	Password  string
	CreatedAt time.Time
}
