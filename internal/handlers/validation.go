package handlers

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/flowtask/taskd/internal/recurrence"
)

func init() {
	binding.EnableDecoderDisallowUnknownFields = true

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("rrule", validRRule)
	}
}

// validRRule accepts any rule the normalizer can bring into canonical form.
func validRRule(fl validator.FieldLevel) bool {
	_, ok := recurrence.Normalize(fl.Field().String())
	return ok
}
