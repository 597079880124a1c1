package domain

import "time"

// Appointment is a doctor booking request. Date and Time are free-form text.
type Appointment struct {
	ID         int64
	Name       string
	Email      string
	Department string
	Date       string
	Time       string
	CreatedAt  time.Time
}
