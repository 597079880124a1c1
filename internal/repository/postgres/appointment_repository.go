package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"threpsi/internal/domain"
	"threpsi/internal/repository"
)

const createAppointmentsTable = `
CREATE TABLE IF NOT EXISTS appointments (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	department TEXT NOT NULL,
	date TEXT NOT NULL,
	time TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

type AppointmentRepository struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepository(pool *pgxpool.Pool) repository.AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Init(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createAppointmentsTable); err != nil {
		return fmt.Errorf("create appointments table: %w", err)
	}
	return nil
}

func (r *AppointmentRepository) Create(ctx context.Context, appt *domain.Appointment) (int64, error) {
	appt.CreatedAt = time.Now().UTC()

	err := r.pool.QueryRow(ctx, `
INSERT INTO appointments (name, email, department, date, time, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`,
		appt.Name, appt.Email, appt.Department, appt.Date, appt.Time, appt.CreatedAt,
	).Scan(&appt.ID)
	if err != nil {
		return 0, fmt.Errorf("insert appointment: %w", err)
	}
	return appt.ID, nil
}

func (r *AppointmentRepository) List(ctx context.Context) ([]domain.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, name, email, department, date, time, created_at
FROM appointments
ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	appts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Appointment, error) {
		var a domain.Appointment
		err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Department, &a.Date, &a.Time, &a.CreatedAt)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan appointments: %w", err)
	}
	return appts, nil
}
