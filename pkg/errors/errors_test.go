package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesWrappedAppError(t *testing.T) {
	err := fmt.Errorf("loading proposal: %w", NotFound("Custom order", nil))

	assert.True(t, Is(err, CodeNotFound))
	assert.True(t, IsNotFound(err))
	assert.False(t, Is(err, CodeConflict))
	assert.False(t, Is(fmt.Errorf("plain"), CodeNotFound))
}

func TestConstructorsSetStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, NotFound("Conversation", nil).Status)
	assert.Equal(t, http.StatusConflict, Conflict("already accepted", nil).Status)
	assert.Equal(t, http.StatusBadRequest, Validation("items required").Status)
	assert.Equal(t, http.StatusTooManyRequests, TooManyRequests("slow down", 0).Status)
	assert.Equal(t, "Conversation not found", NotFound("Conversation", nil).Message)
}

func TestErrorIncludesCause(t *testing.T) {
	cause := fmt.Errorf("deadline exceeded")
	err := Internal("Failed to send message", cause)

	assert.Contains(t, err.Error(), "deadline exceeded")
	assert.ErrorIs(t, err, cause)
}
