package profile

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/careportal/internal/handler"
	"github.com/jwalitptl/careportal/internal/model"
)

type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	Update(ctx context.Context, id uuid.UUID, update model.ProfileUpdate) (*model.Profile, error)
	ListDoctors(ctx context.Context) ([]*model.DoctorSummary, error)
	ListPatientsForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.PatientSummary, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the routes open to any signed-in role.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/doctors", h.ListDoctors)
}

// RegisterProfileRoutes mounts the caller's own profile screen.
func (h *Handler) RegisterProfileRoutes(r *gin.RouterGroup) {
	r.GET("/profile", h.GetProfile)
	r.PATCH("/profile", h.UpdateProfile)
}

func (h *Handler) RegisterDoctorRoutes(r *gin.RouterGroup) {
	h.RegisterProfileRoutes(r)
	r.GET("/patients", h.ListPatients)
}

func (h *Handler) GetProfile(c *gin.Context) {
	session, _ := handler.CurrentSession(c)

	profile, err := h.service.Get(c.Request.Context(), session.UserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(profile))
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req model.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	session, _ := handler.CurrentSession(c)

	profile, err := h.service.Update(c.Request.Context(), session.UserID, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(profile))
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.service.ListDoctors(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctors))
}

func (h *Handler) ListPatients(c *gin.Context) {
	session, _ := handler.CurrentSession(c)

	patients, err := h.service.ListPatientsForDoctor(c.Request.Context(), session.UserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(patients))
}
