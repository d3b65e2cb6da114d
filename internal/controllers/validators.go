package controllers

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"travel_tracker/internal/models"
)

var registerOnce sync.Once

// registerValidators adds the enum rules used in request binding tags.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			panic("gin binding validator is not go-playground/validator")
		}
		must(v.RegisterValidation("checkpoint_type", func(fl validator.FieldLevel) bool {
			return models.CheckpointType(fl.Field().String()).Valid()
		}))
		must(v.RegisterValidation("verification_method", func(fl validator.FieldLevel) bool {
			return models.VerificationMethod(fl.Field().String()).Valid()
		}))
		must(v.RegisterValidation("completion_method", func(fl validator.FieldLevel) bool {
			return models.CompletionMethod(fl.Field().String()).Valid()
		}))
	})
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
