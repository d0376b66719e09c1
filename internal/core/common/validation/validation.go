package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/frahmantamala/menu-authz/internal"
)

// MenuKeyPattern is the slug grammar for menu keys: lower-case letters,
// digits, dot, dash and underscore, starting with a letter or digit.
var MenuKeyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

const MaxMenuKeyLength = 64

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = validate.RegisterValidation("menukey", func(fl validator.FieldLevel) bool {
			return IsMenuKey(fl.Field().String())
		})
	})
	return validate
}

// IsMenuKey reports whether key satisfies the menu key grammar.
func IsMenuKey(key string) bool {
	return len(key) <= MaxMenuKeyLength && MenuKeyPattern.MatchString(key)
}

// Struct validates v against its `validate` tags and converts failures into a
// single validation AppError carrying one entry per failing field.
func Struct(v interface{}) *apperrors.AppError {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError(err.Error(), apperrors.ErrCodeValidationFailed)
	}

	details := make([]apperrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, apperrors.ValidationError{
			Field:   fieldPath(fe),
			Message: message(fe),
			Code:    string(codeFor(fe)),
		})
	}

	return apperrors.NewValidationError("Validation failed", apperrors.ErrCodeValidationFailed).
		WithDetails(apperrors.ValidationErrors{Errors: details})
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "menukey":
		return fmt.Sprintf("%s must be a lower-case slug of at most %d characters", field, MaxMenuKeyLength)
	case "max":
		return fmt.Sprintf("%s must not exceed %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed on %s", field, fe.Tag())
	}
}

func codeFor(fe validator.FieldError) apperrors.ErrorCode {
	if fe.Tag() == "menukey" {
		return apperrors.ErrCodeInvalidMenuKey
	}
	return apperrors.ErrCodeValidationFailed
}
