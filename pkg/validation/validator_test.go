package validation

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,pwd"`
}

func TestToDetailsUsesJSONFieldNames(t *testing.T) {
	Init()
	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)

	err := v.Struct(sample{Email: "not-an-email", Password: "short"})
	require.Error(t, err)

	details := ToDetails(err)
	require.Equal(t, "must be a valid email", details["email"])
	require.Equal(t, "min length 8", details["password"])
}

func TestToDetailsNilError(t *testing.T) {
	require.Nil(t, ToDetails(nil))
}

func TestToDetailsUnknownError(t *testing.T) {
	details := ToDetails(errUnknown{})
	require.Equal(t, map[string]string{"payload": "invalid payload"}, details)
}

type errUnknown struct{}

func (errUnknown) Error() string { return "boom" }
