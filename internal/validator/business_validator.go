package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError describes one rejected field.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

// Validator wraps go-playground/validator with the engine's custom rules.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
	v.registerBusinessRules()
	return v
}

// Validate checks struct tags. It returns ValidationErrors or nil.
func (v *Validator) Validate(s interface{}) error {
	if errs := v.toValidationErrors(v.validate.Struct(s)); len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateQuestionCreate applies struct rules plus the answer-set rules.
// Each answer's correctness flag is taken exactly as submitted.
func (v *Validator) ValidateQuestionCreate(req *QuestionCreateRequest) error {
	var errs ValidationErrors
	if err := v.Validate(req); err != nil {
		var ve ValidationErrors
		if errors.As(err, &ve) {
			errs = append(errs, ve...)
		} else {
			return err
		}
	}

	correct := 0
	for _, a := range req.Answers {
		if a.IsCorrect {
			correct++
		}
	}
	if len(req.Answers) > 0 && correct == 0 {
		errs = append(errs, ValidationError{
			Field:   "answers",
			Message: "must contain at least one correct answer",
			Rule:    "has_correct_answer",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *Validator) registerBusinessRules() {
	v.validate.RegisterValidation("move_direction", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "up", "down", "to_top", "to_bottom":
			return true
		}
		return false
	})

	v.validate.RegisterValidation("not_blank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

func (v *Validator) toValidationErrors(err error) ValidationErrors {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{{Field: "request", Message: err.Error()}}
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Message: v.getErrorMessage(fe),
			Value:   fe.Value(),
			Rule:    fe.Tag(),
		})
	}
	return out
}

func (v *Validator) getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", err.Param())
	case "move_direction":
		return "must be one of up, down, to_top, to_bottom"
	case "not_blank":
		return "must not be blank"
	default:
		return fmt.Sprintf("failed on %s", err.Tag())
	}
}
