package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type codeBody struct {
	Email string `validate:"required,email"`
	Code  string `validate:"required,otp"`
}

func TestStruct_OTPTag(t *testing.T) {
	assert.NoError(t, Struct(codeBody{Email: "a@b.com", Code: "482913"}))
	assert.NoError(t, Struct(codeBody{Email: "a@b.com", Code: "000000"}))

	err := Struct(codeBody{Email: "a@b.com", Code: "48291"})
	assert.ErrorContains(t, err, "field 'Code' failed 'otp'")

	err = Struct(codeBody{Email: "a@b.com", Code: "48291a"})
	assert.ErrorContains(t, err, "failed 'otp'")
}

func TestStruct_JoinsMessages(t *testing.T) {
	err := Struct(codeBody{})
	assert.ErrorContains(t, err, "field 'Email' failed 'required'")
	assert.ErrorContains(t, err, "field 'Code' failed 'required'")
}
