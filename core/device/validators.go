package device

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/vericlock/vericlock/core"
)

var (
	deviceModeTag  = "devicemode"
	deviceModeText = "mode must be one of Enrollment or Attendance"
)

// InitValidators registers the device validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(deviceModeTag, deviceModeValidation)
	core.RegisterCustomTranslation(validate, translator, deviceModeTag, deviceModeText)
}

// Custom Validators

func deviceModeValidation(fl validator.FieldLevel) bool {
	mode := fl.Field().String()
	for _, m := range Modes {
		if mode == m {
			return true
		}
	}
	return false
}
