package service

import (
	"context"
	"fmt"

	"threpsi/internal/domain"
	"threpsi/internal/repository"
)

// AppointmentService books and lists doctor appointments.
type AppointmentService interface {
	Book(ctx context.Context, appt domain.Appointment) (*domain.Appointment, error)
	List(ctx context.Context) ([]domain.Appointment, error)
}

type appointmentService struct {
	appointments repository.AppointmentRepository
}

func NewAppointmentService(appointments repository.AppointmentRepository) AppointmentService {
	return &appointmentService{appointments: appointments}
}

func (s *appointmentService) Book(ctx context.Context, appt domain.Appointment) (*domain.Appointment, error) {
	appt.ID = 0
	if _, err := s.appointments.Create(ctx, &appt); err != nil {
		return nil, fmt.Errorf("book appointment: %w", err)
	}
	return &appt, nil
}

func (s *appointmentService) List(ctx context.Context) ([]domain.Appointment, error) {
	appts, err := s.appointments.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}
