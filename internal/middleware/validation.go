package middleware

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/careportal/internal/service/appointment"
	"github.com/jwalitptl/careportal/pkg/security"
)

// Validators are the custom binding tags used by request models.
var Validators = map[string]validator.Func{
	"timeslot": func(fl validator.FieldLevel) bool {
		return appointment.IsSlot(fl.Field().String())
	},
	"caldate": func(fl validator.FieldLevel) bool {
		return appointment.IsCalendarDate(fl.Field().String())
	},
	"phone10": func(fl validator.FieldLevel) bool {
		return security.IsPhoneNumber(fl.Field().String())
	},
	"strongpassword": func(fl validator.FieldLevel) bool {
		return security.ValidatePasswordStrength(fl.Field().String()) == nil
	},
}

// RegisterValidators installs the custom tags on gin's validator and reports
// field names by their json tag.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
	}

	for tag, fn := range Validators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return nil
}
