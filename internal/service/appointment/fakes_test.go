package appointment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careportal/internal/model"
	"github.com/jwalitptl/careportal/internal/repository"
)

type fakeAppointments struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.Appointment
}

func newFakeAppointments(rows ...*model.Appointment) *fakeAppointments {
	f := &fakeAppointments{rows: map[uuid.UUID]*model.Appointment{}}
	for _, r := range rows {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		f.rows[r.ID] = r
	}
	return f
}

func (f *fakeAppointments) Create(_ context.Context, a *model.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	f.rows[a.ID] = &cp
	return nil
}

func (f *fakeAppointments) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAppointments) list(match func(*model.Appointment) bool) []*model.Appointment {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Appointment{}
	for _, a := range f.rows {
		if match(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (f *fakeAppointments) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	return f.list(func(a *model.Appointment) bool { return a.PatientID == patientID }), nil
}

func (f *fakeAppointments) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]*model.Appointment, error) {
	return f.list(func(a *model.Appointment) bool { return a.DoctorID == doctorID }), nil
}

func (f *fakeAppointments) ListDoctorWindow(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	return f.list(func(a *model.Appointment) bool {
		return a.DoctorID == doctorID && !a.IsCancelled() && !a.Date.Before(from) && a.Date.Before(to)
	}), nil
}

func (f *fakeAppointments) FindUpcomingByPatient(_ context.Context, patientID uuid.UUID) (*model.Appointment, error) {
	found := f.list(func(a *model.Appointment) bool {
		return a.PatientID == patientID && a.Status == model.AppointmentStatusUpcoming
	})
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return found[0], nil
}

func (f *fakeAppointments) ExistsUpcomingAt(_ context.Context, doctorID uuid.UUID, at time.Time) (bool, error) {
	found := f.list(func(a *model.Appointment) bool {
		return a.DoctorID == doctorID && a.Date.Equal(at) && a.Status == model.AppointmentStatusUpcoming
	})
	return len(found) > 0, nil
}

func (f *fakeAppointments) Cancel(_ context.Context, id, actorID uuid.UUID) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok || (a.PatientID != actorID && a.DoctorID != actorID) {
		return nil, repository.ErrNotFound
	}
	a.Status = model.AppointmentStatusCancelled
	a.Cancelled = true
	cp := *a
	return &cp, nil
}

func (f *fakeAppointments) Reschedule(_ context.Context, id, actorID uuid.UUID, at time.Time) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok || (a.PatientID != actorID && a.DoctorID != actorID) || a.IsCancelled() {
		return nil, repository.ErrNotFound
	}
	a.Date = at
	cp := *a
	return &cp, nil
}

func (f *fakeAppointments) CompletePast(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, a := range f.rows {
		if a.Status == model.AppointmentStatusUpcoming && !a.Cancelled && a.Date.Before(now) {
			a.Status = model.AppointmentStatusCompleted
			n++
		}
	}
	return n, nil
}

type fakeRecords struct {
	mu      sync.Mutex
	rows    []*model.Record
	touched []uuid.UUID
	err     error
}

func (f *fakeRecords) Create(_ context.Context, r *model.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	r.ID = uuid.New()
	f.rows = append(f.rows, r)
	return nil
}

func (f *fakeRecords) FindByPair(_ context.Context, patientID, doctorID uuid.UUID) (*model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.rows {
		if r.PatientID == patientID && r.DoctorID == doctorID {
			return r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRecords) Touch(_ context.Context, id, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeRecords) ListByPatient(context.Context, uuid.UUID) ([]*model.Record, error) {
	return nil, errors.New("not used")
}

type fakeProfiles struct {
	repository.ProfileRepository
	mu    sync.Mutex
	roles map[uuid.UUID]model.Role
}

func (f *fakeProfiles) add(role model.Role) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.roles[id] = role
	return id
}

func (f *fakeProfiles) Get(_ context.Context, id uuid.UUID) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &model.Profile{Base: model.Base{ID: id}, Role: role}, nil
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []model.EventType
}

func (f *fakeEmitter) Emit(_ context.Context, t model.EventType, _ interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, t)
	return nil
}
