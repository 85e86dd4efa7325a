package service

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const isoDateLayout = "2006-01-02"

// NewValidator returns a validator with the engine's custom tags registered:
// clock (24h HH:MM) and isodate (YYYY-MM-DD).
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := ParseClock(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(isoDateLayout, fl.Field().String())
		return err == nil
	})
	return v
}
