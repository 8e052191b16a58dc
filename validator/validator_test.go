package validator

import (
	"errors"
	"testing"

	"clinic-auth/entity"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	v := New()

	assert.NotNil(t, v)
	assert.NotNil(t, v.validator)
}

func TestValidator_ValidateStruct_Success(t *testing.T) {
	v := New()

	req := entity.VerifyPhoneRequest{
		Phone: "+1234567890",
	}

	err := v.ValidateStruct(&req)
	assert.NoError(t, err)
}

func TestValidator_ValidateStruct_ValidationError(t *testing.T) {
	v := New()

	req := entity.VerifyPhoneRequest{
		Phone: "invalid-phone",
	}

	err := v.ValidateStruct(&req)
	require.Error(t, err)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Contains(t, validationErr.Fields, "phone")
	assert.Contains(t, err.Error(), "must be a valid phone number")
}

func TestValidator_ValidateStruct_MissingPhone(t *testing.T) {
	v := New()

	req := entity.VerifyPhoneRequest{}

	err := v.ValidateStruct(&req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phone is required")
}

func TestValidator_ValidatePhoneNumber_Valid(t *testing.T) {
	v := New()

	validPhones := []string{
		"+1234567890",
		"+12345678901",
		"+123456789012",
		"+12345678901234",
		"+987654321098765",
		"+449876543210",
		"+8613912345678",
		"+34612345678",
		"+5511987654321",
		"+4915123456789",
		"+81901234567",
	}

	for _, phone := range validPhones {
		req := entity.VerifyPhoneRequest{Phone: phone}
		err := v.ValidateStruct(&req)
		assert.NoError(t, err, "Phone number %s should be valid", phone)
	}
}

func TestValidator_ValidatePhoneNumber_Invalid(t *testing.T) {
	v := New()

	invalidPhones := []string{
		"",                      // empty
		"1234567890",            // missing +
		"+0234567890",           // starts with 0 after +
		"+12345",                // too short
		"+123456789012345678",   // too long
		"+abc1234567890",        // contains letters
		"++1234567890",          // double +
		"+1-234-567-890",        // contains dashes
		"+1 234 567 890",        // contains spaces
		"(123) 456-7890",        // US format with parentheses
		"+",                     // just +
		"+12345678901234567890", // way too long
		"+ 1234567890",          // space after +
	}

	for _, phone := range invalidPhones {
		req := entity.VerifyPhoneRequest{Phone: phone}
		err := v.ValidateStruct(&req)
		assert.Error(t, err, "Phone number %s should be invalid", phone)
	}
}

func TestValidator_VerifyOTPRequest(t *testing.T) {
	v := New()

	testCases := []struct {
		name      string
		req       entity.VerifyOTPRequest
		errorText string
	}{
		{
			name: "valid six digits",
			req:  entity.VerifyOTPRequest{Phone: "+15551234567", Code: "012345"},
		},
		{
			name: "valid four digits",
			req:  entity.VerifyOTPRequest{Phone: "+15551234567", Code: "0000"},
		},
		{
			name:      "missing code",
			req:       entity.VerifyOTPRequest{Phone: "+15551234567"},
			errorText: "code is required",
		},
		{
			name:      "letters in code",
			req:       entity.VerifyOTPRequest{Phone: "+15551234567", Code: "12ab56"},
			errorText: "code must be 4 to 10 digits",
		},
		{
			name:      "code too short",
			req:       entity.VerifyOTPRequest{Phone: "+15551234567", Code: "123"},
			errorText: "code must be 4 to 10 digits",
		},
		{
			name:      "missing phone",
			req:       entity.VerifyOTPRequest{Code: "123456"},
			errorText: "phone is required",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.ValidateStruct(&tc.req)

			if tc.errorText == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errorText)
		})
	}
}

func TestValidator_LoginRequest(t *testing.T) {
	v := New()

	testCases := []struct {
		name        string
		req         entity.LoginRequest
		expectError bool
		fields      []string
	}{
		{
			name: "email login",
			req:  entity.LoginRequest{Email: "doctor@clinic.test", Password: "secret123"},
		},
		{
			name: "phone login",
			req:  entity.LoginRequest{Phone: "+15551234567", Password: "secret123"},
		},
		{
			name:        "neither email nor phone",
			req:         entity.LoginRequest{Password: "secret123"},
			expectError: true,
			fields:      []string{"email", "phone"},
		},
		{
			name:        "malformed email",
			req:         entity.LoginRequest{Email: "not-an-email", Password: "secret123"},
			expectError: true,
			fields:      []string{"email"},
		},
		{
			name:        "short password",
			req:         entity.LoginRequest{Email: "doctor@clinic.test", Password: "123"},
			expectError: true,
			fields:      []string{"password"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.ValidateStruct(&tc.req)

			if !tc.expectError {
				assert.NoError(t, err)
				return
			}

			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr))
			for _, field := range tc.fields {
				assert.Contains(t, validationErr.Fields, field)
			}
		})
	}
}

func TestValidator_RequiredWithoutMessage(t *testing.T) {
	v := New()

	err := v.ValidateStruct(&entity.LoginRequest{Password: "secret123"})

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "email is required when phone is not present", validationErr.Fields["email"])
}

func TestValidator_ValidateStruct_NilInput(t *testing.T) {
	v := New()

	err := v.ValidateStruct(nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "input cannot be nil")
}

func TestValidator_ValidateStruct_NonStruct(t *testing.T) {
	v := New()

	err := v.ValidateStruct("not a struct")
	assert.Error(t, err)

	var validationErr *ValidationError
	assert.False(t, errors.As(err, &validationErr))
}

func TestValidationError_MessageIsSorted(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{
		"phone": "phone is required",
		"code":  "code is required",
	}}

	assert.Equal(t, "validation failed: code is required; phone is required", err.Error())
}

// Test the direct validation functions
func TestCustomRules_Direct(t *testing.T) {
	v := validator.New()
	require.NoError(t, v.RegisterValidation("phone_number", validatePhoneNumber))
	require.NoError(t, v.RegisterValidation("otp_code", validateOTPCode))

	assert.NoError(t, v.Var("+1234567890", "phone_number"))
	assert.Error(t, v.Var("1234567890", "phone_number"))

	assert.NoError(t, v.Var("123456", "otp_code"))
	assert.NoError(t, v.Var("0123456789", "otp_code"))
	assert.Error(t, v.Var("01234567890", "otp_code"))
	assert.Error(t, v.Var("12 456", "otp_code"))
}
