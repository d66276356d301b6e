package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const maxJobIDLength = 256

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails for an empty tag or a nil func.
	_ = v.RegisterValidation("jobid", validJobID)
	return v
}

// validJobID accepts any non-blank printable identifier up to maxJobIDLength.
func validJobID(fl validator.FieldLevel) bool {
	id := strings.TrimSpace(fl.Field().String())
	if id == "" || len(id) > maxJobIDLength {
		return false
	}
	for _, r := range id {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// Validate checks a dispatch request before it is forwarded.
func (r *DispatchRequest) Validate() error {
	if strings.TrimSpace(r.JobID) == "" {
		return ErrMissingJobID
	}
	if err := validate.Struct(r); err != nil {
		return structError(err)
	}
	if r.AnalysisTarget() == "" {
		return ErrMissingTarget
	}
	return nil
}

// Validate checks a worker callback before its result is stored.
func (r *CallbackRequest) Validate() error {
	if strings.TrimSpace(r.JobID) == "" {
		return ErrMissingJobID
	}
	if err := validate.Struct(r); err != nil {
		return structError(err)
	}
	return nil
}

func structError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: field %s failed %q", ErrValidation, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
