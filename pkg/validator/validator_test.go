package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createRoomInput struct {
	Name       string `json:"name" validate:"required,max=8"`
	Visibility string `json:"visibility" validate:"oneof=public private"`
}

func TestValidateUsesJSONNames(t *testing.T) {
	v := NewValidator()

	errs, ok := v.Validate(createRoomInput{Name: "", Visibility: "hidden"})
	require.False(t, ok)
	require.Len(t, errs, 2)
	assert.Equal(t, "name", errs[0].Field)
	assert.Equal(t, "REQUIRED", errs[0].Code)
	assert.Equal(t, "visibility", errs[1].Field)
	assert.Equal(t, "ONEOF", errs[1].Code)

	_, ok = v.Validate(createRoomInput{Name: "lofi", Visibility: "public"})
	assert.True(t, ok)
}

func TestVar(t *testing.T) {
	v := NewValidator()

	verr, ok := v.Var("maxDuration", -1, "gte=0")
	assert.False(t, ok)
	assert.Equal(t, "maxDuration", verr.Field)
	assert.Equal(t, "GTE", verr.Code)

	_, ok = v.Var("suggestionMode", "manual", "oneof=auto manual")
	assert.True(t, ok)
}
