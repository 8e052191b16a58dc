package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// + followed by country code and subscriber number, 7-15 digits total
	phoneRegex = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
	otpRegex   = regexp.MustCompile(`^\d{4,10}$`)
)

// Validator wraps the go-playground validator
type Validator struct {
	validator *validator.Validate
}

// ValidationError carries one message per failing field, keyed by json name
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	messages := make([]string, 0, len(names))
	for _, name := range names {
		messages = append(messages, e.Fields[name])
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// New creates a new validator instance
func New() *Validator {
	v := validator.New()

	// Register custom tag name function to use json tags for field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("phone_number", validatePhoneNumber)
	_ = v.RegisterValidation("otp_code", validateOTPCode)

	return &Validator{
		validator: v,
	}
}

// ValidateStruct validates a struct. Field failures come back as *ValidationError.
func (v *Validator) ValidateStruct(s interface{}) error {
	if s == nil {
		return fmt.Errorf("input cannot be nil")
	}

	if err := v.validator.Struct(s); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			fields := make(map[string]string, len(validationErrors))
			for _, validationErr := range validationErrors {
				if _, seen := fields[validationErr.Field()]; !seen {
					fields[validationErr.Field()] = v.formatFieldError(validationErr)
				}
			}
			return &ValidationError{Fields: fields}
		}
		// Handle other validation errors (like InvalidValidationError)
		return fmt.Errorf("validation error: %v", err)
	}
	return nil
}

// Validate satisfies echo.Validator
func (v *Validator) Validate(i interface{}) error {
	return v.ValidateStruct(i)
}

// formatFieldError formats a single field validation error
func (v *Validator) formatFieldError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_without":
		return fmt.Sprintf("%s is required when %s is not present", field, strings.ToLower(param))
	case "min":
		if err.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters long", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if err.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters long", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters long", field, param)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "phone_number":
		return fmt.Sprintf("%s must be a valid phone number (format: +1234567890)", field)
	case "otp_code":
		return fmt.Sprintf("%s must be 4 to 10 digits", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// validatePhoneNumber accepts international format starting with + followed by
// country code and number, e.g. +1234567890
func validatePhoneNumber(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(fl.Field().String())
}

func validateOTPCode(fl validator.FieldLevel) bool {
	return otpRegex.MatchString(fl.Field().String())
}
