package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"threpsi/internal/domain"
	"threpsi/internal/repository"
)

const createAppointmentsTable = `
CREATE TABLE IF NOT EXISTS appointments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	department TEXT NOT NULL,
	date TEXT NOT NULL,
	time TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

type AppointmentRepository struct {
	db *sql.DB
}

func NewAppointmentRepository(db *sql.DB) repository.AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createAppointmentsTable); err != nil {
		return fmt.Errorf("create appointments table: %w", err)
	}
	return nil
}

func (r *AppointmentRepository) Create(ctx context.Context, appt *domain.Appointment) (int64, error) {
	appt.CreatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
INSERT INTO appointments (name, email, department, date, time, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		appt.Name,
		appt.Email,
		appt.Department,
		appt.Date,
		appt.Time,
		appt.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert appointment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("appointment last insert id: %w", err)
	}
	appt.ID = id
	return id, nil
}

func (r *AppointmentRepository) List(ctx context.Context) ([]domain.Appointment, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, email, department, date, time, created_at
FROM appointments
ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var appts []domain.Appointment
	for rows.Next() {
		var a domain.Appointment
		if err := rows.Scan(
			&a.ID,
			&a.Name,
			&a.Email,
			&a.Department,
			&a.Date,
			&a.Time,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appts = append(appts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointments: %w", err)
	}
	return appts, nil
}
