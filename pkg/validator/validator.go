// pkg/validator/validator.go

package validator

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// Init sets up the shared validator instance. Safe to call more than once.
func Init() {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
}

// Validate checks a struct against its `validate` tags.
func Validate(s interface{}) error {
	Init()
	return validate.Struct(s)
}

// Var validates a single value against a tag expression.
func Var(field interface{}, tag string) error {
	Init()
	return validate.Var(field, tag)
}
