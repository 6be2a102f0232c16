package login

import (
	"errors"
	"sync"

	v10 "github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *v10.Validate
)

// Messages per struct field for the "required" rule. Only presence is
// checked, no e-mail shape or password strength.
var requiredMessages = map[string]struct {
	field   string
	message string
}{
	"Email":    {FieldEmail, "Email is required"},
	"Password": {FieldPassword, "Password is required"},
}

func validator() *v10.Validate {
	validateOnce.Do(func() {
		validate = v10.New()
	})
	return validate
}

// Validate checks the form state and returns the failing fields. An empty
// map means the form may be submitted.
func Validate(state FormState) ErrorMap {
	errs := ErrorMap{}
	err := validator().Struct(state)
	if err == nil {
		return errs
	}
	var fieldErrs v10.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errs
	}
	for _, fe := range fieldErrs {
		msg, ok := requiredMessages[fe.StructField()]
		if !ok || fe.Tag() != "required" {
			continue
		}
		errs[msg.field] = msg.message
	}
	return errs
}
