package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", NewInvalidInput("no media", nil), http.StatusBadRequest},
		{"not found", NewNotFound("story", "abc"), http.StatusNotFound},
		{"permission", NewPermissionDenied("not the owner"), http.StatusForbidden},
		{"unauthorized", NewUnauthorized("missing token", nil), http.StatusUnauthorized},
		{"upload", NewUpload("cloudinary down", errors.New("timeout")), http.StatusInternalServerError},
		{"wrapped not found", fmt.Errorf("get story: %w", NewNotFound("story", "abc")), http.StatusNotFound},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ToHTTPStatus(tc.err))
		})
	}
}

func TestAppErrorKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewUpload("upload of media 0 failed", cause)

	assert.ErrorIs(t, err, ErrUpload)
	assert.Equal(t, cause, err.Cause())
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, "upload failed", err.ToJSON()["error"])
}
