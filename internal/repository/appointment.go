package repository

import (
	"context"

	"threpsi/internal/domain"
)

// AppointmentRepository exposes persistence operations for appointments.
type AppointmentRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, appt *domain.Appointment) (int64, error)
	// List returns every appointment, most recently created first.
	List(ctx context.Context) ([]domain.Appointment, error)
}
