package record

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/careportal/internal/handler"
	"github.com/jwalitptl/careportal/internal/model"
	"github.com/jwalitptl/careportal/internal/service/record"
)

type Service interface {
	Upload(ctx context.Context, up record.Upload) (*model.Record, error)
	UploadHistory(ctx context.Context, up record.Upload) (*model.Record, error)
	List(ctx context.Context, patientID uuid.UUID, audience model.Role) ([]*model.Record, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPatientRoutes(r *gin.RouterGroup) {
	records := r.Group("/records")
	{
		records.GET("", h.ListRecords)
		records.POST("", h.UploadRecord)
		records.POST("/history", h.UploadHistory)
	}
}

// RegisterDoctorRoutes mounts the same screens, scoped by ?patient_id=.
func (h *Handler) RegisterDoctorRoutes(r *gin.RouterGroup) {
	h.RegisterPatientRoutes(r)
}

// patientID is the caller for patients and the patient_id query for doctors.
func patientID(c *gin.Context, session *model.Session) (uuid.UUID, bool) {
	if session.Role != model.RoleDoctor {
		return session.UserID, true
	}
	id, err := uuid.Parse(c.Query("patient_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient ID"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) ListRecords(c *gin.Context) {
	session, _ := handler.CurrentSession(c)
	pid, ok := patientID(c, session)
	if !ok {
		return
	}

	records, err := h.service.List(c.Request.Context(), pid, session.Role)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(records))
}

func (h *Handler) UploadRecord(c *gin.Context) {
	h.upload(c, h.service.Upload)
}

func (h *Handler) UploadHistory(c *gin.Context) {
	h.upload(c, h.service.UploadHistory)
}

func (h *Handler) upload(c *gin.Context, store func(context.Context, record.Upload) (*model.Record, error)) {
	session, _ := handler.CurrentSession(c)
	pid, ok := patientID(c, session)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, handler.NewErrorResponse("file is too large"))
			return
		}
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("a file is required in the \"file\" field"))
		return
	}

	f, err := fh.Open()
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	defer f.Close()

	rec, err := store(c.Request.Context(), record.Upload{
		PatientID:    pid,
		UploaderID:   session.UserID,
		UploaderRole: session.Role,
		FileName:     fh.Filename,
		ContentType:  fh.Header.Get("Content-Type"),
		Size:         fh.Size,
		Body:         f,
		Summary:      c.PostForm("summary"),
	})
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(rec))
}
