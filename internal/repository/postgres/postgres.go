package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/careportal/internal/repository"
)

type appointmentRepository struct {
	db *sqlx.DB
}

type profileRepository struct {
	db *sqlx.DB
}

type recordRepository struct {
	db *sqlx.DB
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{db: db}
}

func NewProfileRepository(db *sqlx.DB) repository.ProfileRepository {
	return &profileRepository{db: db}
}

func NewRecordRepository(db *sqlx.DB) repository.RecordRepository {
	return &recordRepository{db: db}
}
