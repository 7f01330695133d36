package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contact struct {
	Name  string `json:"name"  validate:"required,max=5"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required,phone"`
	Note  string `json:"-"     validate:"max=3"`
}

func TestStruct_Valid(t *testing.T) {
	err := Struct(contact{Name: "Ana", Email: "ana@example.com", Phone: "(555) 123-4567"})
	assert.NoError(t, err)
}

func TestStruct_PerFieldMessages(t *testing.T) {
	err := Struct(contact{Name: "Anastasia", Email: "nope", Phone: "555-1234"})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{
		"name":  "must be at most 5 characters",
		"email": "must be a valid email address",
		"phone": "must contain at least 10 digits",
	}, verr.Fields)
	assert.Contains(t, verr.Error(), "email: must be a valid email address")
}

func TestStruct_Required(t *testing.T) {
	var verr *Error
	require.ErrorAs(t, Struct(contact{}), &verr)
	assert.Equal(t, "is required", verr.Fields["name"])
	assert.Equal(t, "is required", verr.Fields["phone"])
}

func TestPhoneDigits(t *testing.T) {
	assert.Equal(t, 10, PhoneDigits("+1 (555) 123-456"))
	assert.Equal(t, 0, PhoneDigits("call me"))
}
