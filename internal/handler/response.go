package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/careportal/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondError writes err in the response envelope. Errors that are not an
// AppError are logged and reported as 500 without their details.
func RespondError(c *gin.Context, err error) {
	if appErr, ok := apperrors.As(err); ok {
		status := appErr.StatusCode()
		if status >= http.StatusInternalServerError {
			logError(c, err)
		}
		c.JSON(status, NewErrorResponse(appErr.Message))
		return
	}

	logError(c, err)
	c.JSON(http.StatusInternalServerError, NewErrorResponse("internal server error"))
}

var validationMessages = map[string]string{
	"required":       "is required",
	"email":          "must be a valid email address",
	"max":            "is too long",
	"oneof":          "has an unsupported value",
	"caldate":        "must be a date in YYYY-MM-DD format",
	"timeslot":       "must be a half-hour slot between 09:00 and 14:00",
	"phone10":        "must be exactly 10 digits",
	"strongpassword": "must be at least 8 characters with upper and lower case letters, a number and a special character",
}

// RespondBindError reports a request that failed binding or validation.
func RespondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, NewErrorResponse("invalid request body"))
		return
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msg, ok := validationMessages[e.Tag()]
		if !ok {
			msg = "is invalid"
		}
		msgs = append(msgs, e.Field()+" "+msg)
	}
	c.JSON(http.StatusBadRequest, NewErrorResponse(strings.Join(msgs, "; ")))
}

func logError(c *gin.Context, err error) {
	_ = c.Error(err)
	log.Error().
		Err(err).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Str("request_id", c.GetString("request_id")).
		Msg("Request failed")
}
