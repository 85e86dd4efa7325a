package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	err := fmt.Errorf("reserve seat: %w", Clone(ErrCapacity, "class c1 is full"))

	appErr := FromError(err)

	assert.Equal(t, ErrCapacity.Code, appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, "class c1 is full", appErr.Message)
}

func TestFromErrorWrapsUnknownAsInternal(t *testing.T) {
	appErr := FromError(errors.New("boom"))

	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, "internal server error: boom", appErr.Error())
}

func TestIsComparesCodes(t *testing.T) {
	err := Wrap(errors.New("cause"), ErrInvalidTransition.Code, ErrInvalidTransition.Status, "cannot approve")

	assert.True(t, Is(err, ErrInvalidTransition))
	assert.False(t, Is(err, ErrCapacity))
	assert.False(t, Is(nil, ErrCapacity))
}

func TestWithDetailsLeavesSentinelUntouched(t *testing.T) {
	payload := map[string]string{"suggested_class_id": "c2"}

	err := WithDetails(ErrPolicyRejected, payload)

	assert.Equal(t, payload, err.Details)
	assert.Nil(t, ErrPolicyRejected.Details)
	assert.Nil(t, WithDetails(nil, payload))
}
