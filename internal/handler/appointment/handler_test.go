package appointment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/careportal/internal/handler"
	"github.com/jwalitptl/careportal/internal/middleware"
	"github.com/jwalitptl/careportal/internal/model"
	"github.com/jwalitptl/careportal/internal/service/appointment"
	apperrors "github.com/jwalitptl/careportal/pkg/errors"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	args := m.Called(ctx, doctorID, date)
	slots, _ := args.Get(0).([]string)
	return slots, args.Error(1)
}

func (m *MockService) Book(ctx context.Context, in appointment.BookingInput) (*model.Appointment, error) {
	args := m.Called(ctx, in)
	appt, _ := args.Get(0).(*model.Appointment)
	return appt, args.Error(1)
}

func (m *MockService) List(ctx context.Context, userID uuid.UUID, role model.Role, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	args := m.Called(ctx, userID, role, filter)
	appts, _ := args.Get(0).([]*model.Appointment)
	return appts, args.Error(1)
}

func (m *MockService) Cancel(ctx context.Context, id, actorID uuid.UUID) (*model.Appointment, error) {
	args := m.Called(ctx, id, actorID)
	appt, _ := args.Get(0).(*model.Appointment)
	return appt, args.Error(1)
}

func (m *MockService) Reschedule(ctx context.Context, id, actorID uuid.UUID, date, slot string) (*model.Appointment, error) {
	args := m.Called(ctx, id, actorID, date, slot)
	appt, _ := args.Get(0).(*model.Appointment)
	return appt, args.Error(1)
}

func withSession(session *model.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		handler.SetSession(c, session)
		c.Next()
	}
}

func setup(t *testing.T, session *model.Session) (*gin.Engine, *MockService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, middleware.RegisterValidators())

	svc := new(MockService)
	h := NewHandler(svc, 5)
	r := gin.New()
	dash := r.Group("/api/v1/dashboard", withSession(session))
	h.RegisterPatientRoutes(dash.Group("/patient"))
	h.RegisterDoctorRoutes(dash.Group("/doctor"))
	return r, svc
}

func request(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPatientBooksForThemselves(t *testing.T) {
	patient, doctor := uuid.New(), uuid.New()
	r, svc := setup(t, &model.Session{UserID: patient, Role: model.RolePatient})

	want := appointment.BookingInput{
		PatientID: patient, DoctorID: doctor, Date: "2026-10-20", Time: "09:30", Reason: "checkup", BookedBy: model.RolePatient,
	}
	svc.On("Book", mock.Anything, want).Return(&model.Appointment{PatientID: patient, DoctorID: doctor}, nil)

	body := `{"doctor_id":"` + doctor.String() + `","date":"2026-10-20","time":"09:30","reason":"checkup"}`
	w := request(r, http.MethodPost, "/api/v1/dashboard/patient/appointments", body)

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestBookingRejectsOffGridSlot(t *testing.T) {
	r, svc := setup(t, &model.Session{UserID: uuid.New(), Role: model.RolePatient})

	body := `{"doctor_id":"` + uuid.NewString() + `","date":"2026-10-20","time":"09:45","reason":"checkup"}`
	w := request(r, http.MethodPost, "/api/v1/dashboard/patient/appointments", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "time must be a half-hour slot")
	svc.AssertNotCalled(t, "Book", mock.Anything, mock.Anything)
}

func TestBookingConflictIs409(t *testing.T) {
	r, svc := setup(t, &model.Session{UserID: uuid.New(), Role: model.RolePatient})
	msg := "You already have an upcoming appointment on 2026-10-18. Please cancel or reschedule your existing appointment before booking a new one."
	svc.On("Book", mock.Anything, mock.Anything).Return(nil, apperrors.NewConflict(msg))

	body := `{"doctor_id":"` + uuid.NewString() + `","date":"2026-10-20","time":"09:30","reason":"checkup"}`
	w := request(r, http.MethodPost, "/api/v1/dashboard/patient/appointments", body)

	assert.Equal(t, http.StatusConflict, w.Code)
	var resp handler.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, msg, resp.Message)
}

func TestDoctorBooksForPatientFromQuery(t *testing.T) {
	doctor, patient := uuid.New(), uuid.New()
	r, svc := setup(t, &model.Session{UserID: doctor, Role: model.RoleDoctor})

	svc.On("Book", mock.Anything, appointment.BookingInput{
		PatientID: patient, DoctorID: doctor, Date: "2026-10-20", Time: "10:00", Reason: "review", BookedBy: model.RoleDoctor,
	}).Return(&model.Appointment{}, nil)

	w := request(r, http.MethodPost, "/api/v1/dashboard/doctor/appointments?patient_id="+patient.String(),
		`{"date":"2026-10-20","time":"10:00","reason":"review"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = request(r, http.MethodPost, "/api/v1/dashboard/doctor/appointments?patient_id=nope",
		`{"date":"2026-10-20","time":"10:00","reason":"review"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNumberOfCalls(t, "Book", 1)
}

func TestListPaginatesByFive(t *testing.T) {
	patient := uuid.New()
	r, svc := setup(t, &model.Session{UserID: patient, Role: model.RolePatient})

	appts := make([]*model.Appointment, 7)
	for i := range appts {
		appts[i] = &model.Appointment{Base: model.Base{ID: uuid.New()}, Date: time.Now().Add(time.Duration(i) * time.Hour)}
	}
	svc.On("List", mock.Anything, patient, model.RolePatient, model.FilterUpcoming).Return(appts, nil)

	w := request(r, http.MethodGet, "/api/v1/dashboard/patient/appointments?filter=upcoming&page=2", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Items      []model.Appointment `json:"items"`
			Pagination struct {
				Page  int `json:"page"`
				Total int `json:"total"`
			} `json:"pagination"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Items, 2)
	assert.Equal(t, 2, resp.Data.Pagination.Page)
	assert.Equal(t, 7, resp.Data.Pagination.Total)

	w = request(r, http.MethodGet, "/api/v1/dashboard/patient/appointments?filter=soon", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelAndReschedule(t *testing.T) {
	patient, id := uuid.New(), uuid.New()
	r, svc := setup(t, &model.Session{UserID: patient, Role: model.RolePatient})

	svc.On("Cancel", mock.Anything, id, patient).Return(&model.Appointment{Status: model.AppointmentStatusCancelled}, nil)
	svc.On("Reschedule", mock.Anything, id, patient, "2026-10-21", "11:00").
		Return(nil, apperrors.NewConflict("Cancelled appointments cannot be rescheduled."))

	w := request(r, http.MethodPost, "/api/v1/dashboard/patient/appointments/"+id.String()+"/cancel", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(r, http.MethodPost, "/api/v1/dashboard/patient/appointments/"+id.String()+"/reschedule", `{"date":"2026-10-21","time":"11:00"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = request(r, http.MethodPost, "/api/v1/dashboard/patient/appointments/not-a-uuid/cancel", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSlots(t *testing.T) {
	doctor := uuid.New()
	r, svc := setup(t, &model.Session{UserID: doctor, Role: model.RoleDoctor})
	svc.On("AvailableSlots", mock.Anything, doctor, "2026-10-20").Return([]string{"09:00", "09:30"}, nil)

	w := request(r, http.MethodGet, "/api/v1/dashboard/doctor/slots?date=2026-10-20", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"09:30"`)
}
