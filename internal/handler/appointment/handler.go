package appointment

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/careportal/internal/handler"
	"github.com/jwalitptl/careportal/internal/model"
	"github.com/jwalitptl/careportal/internal/service/appointment"
	"github.com/jwalitptl/careportal/pkg/httputil"
)

type Service interface {
	AvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error)
	Book(ctx context.Context, in appointment.BookingInput) (*model.Appointment, error)
	List(ctx context.Context, userID uuid.UUID, role model.Role, filter model.AppointmentFilter) ([]*model.Appointment, error)
	Cancel(ctx context.Context, id, actorID uuid.UUID) (*model.Appointment, error)
	Reschedule(ctx context.Context, id, actorID uuid.UUID, date, slot string) (*model.Appointment, error)
}

type Handler struct {
	service  Service
	pageSize int
}

func NewHandler(service Service, pageSize int) *Handler {
	return &Handler{service: service, pageSize: pageSize}
}

// RegisterPatientRoutes mounts the patient screens. r must already require the patient role.
func (h *Handler) RegisterPatientRoutes(r *gin.RouterGroup) {
	r.GET("/slots", h.PatientSlots)
	appointments := r.Group("/appointments")
	{
		appointments.GET("", h.ListAppointments)
		appointments.POST("", h.BookAppointment)
		appointments.POST("/:id/cancel", h.CancelAppointment)
		appointments.POST("/:id/reschedule", h.RescheduleAppointment)
	}
}

// RegisterDoctorRoutes mounts the doctor screens. r must already require the doctor role.
func (h *Handler) RegisterDoctorRoutes(r *gin.RouterGroup) {
	r.GET("/slots", h.DoctorSlots)
	appointments := r.Group("/appointments")
	{
		appointments.GET("", h.ListAppointments)
		appointments.POST("", h.BookForPatient)
		appointments.POST("/:id/cancel", h.CancelAppointment)
		appointments.POST("/:id/reschedule", h.RescheduleAppointment)
	}
}

func (h *Handler) PatientSlots(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Query("doctor_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
		return
	}
	h.slots(c, doctorID)
}

func (h *Handler) DoctorSlots(c *gin.Context) {
	session, _ := handler.CurrentSession(c)
	h.slots(c, session.UserID)
}

func (h *Handler) slots(c *gin.Context, doctorID uuid.UUID) {
	slots, err := h.service.AvailableSlots(c.Request.Context(), doctorID, c.Query("date"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(slots))
}

func (h *Handler) BookAppointment(c *gin.Context) {
	var req model.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	session, _ := handler.CurrentSession(c)

	appt, err := h.service.Book(c.Request.Context(), appointment.BookingInput{
		PatientID: session.UserID,
		DoctorID:  req.DoctorID,
		Date:      req.Date,
		Time:      req.Time,
		Reason:    req.Reason,
		BookedBy:  model.RolePatient,
	})
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(appt))
}

func (h *Handler) BookForPatient(c *gin.Context) {
	patientID, err := uuid.Parse(c.Query("patient_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient ID"))
		return
	}

	var req model.DoctorBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	session, _ := handler.CurrentSession(c)

	appt, err := h.service.Book(c.Request.Context(), appointment.BookingInput{
		PatientID: patientID,
		DoctorID:  session.UserID,
		Date:      req.Date,
		Time:      req.Time,
		Reason:    req.Reason,
		BookedBy:  model.RoleDoctor,
	})
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(appt))
}

func (h *Handler) ListAppointments(c *gin.Context) {
	filter, err := model.ParseAppointmentFilter(c.Query("filter"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	session, _ := handler.CurrentSession(c)

	appointments, err := h.service.List(c.Request.Context(), session.UserID, session.Role, filter)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	page := httputil.Paginate(appointments, httputil.ParsePage(c.Query("page")), h.pageSize)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(page))
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}
	session, _ := handler.CurrentSession(c)

	appt, err := h.service.Cancel(c.Request.Context(), id, session.UserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appt))
}

func (h *Handler) RescheduleAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	var req model.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	session, _ := handler.CurrentSession(c)

	appt, err := h.service.Reschedule(c.Request.Context(), id, session.UserID, req.Date, req.Time)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appt))
}
