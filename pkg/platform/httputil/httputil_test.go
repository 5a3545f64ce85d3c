package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "qrlink/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "internal", body["error"])
		assert.NotContains(t, body, "error_description")
	})

	t.Run("invalid input includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "user id is required"))

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "invalid_input", body["error"])
		assert.Equal(t, "user id is required", body["error_description"])
	})

	t.Run("unclassified error maps to internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, assert.AnError)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestStatusOf(t *testing.T) {
	cases := map[dErrors.Code]int{
		dErrors.CodeNotFound:        http.StatusNotFound,
		dErrors.CodeConflict:        http.StatusConflict,
		dErrors.CodeTooManyRequests: http.StatusTooManyRequests,
		dErrors.CodeProfileRejected: http.StatusUnprocessableEntity,
		dErrors.CodeUnavailable:     http.StatusBadGateway,
		dErrors.CodeTimeout:         http.StatusGatewayTimeout,
	}
	for code, want := range cases {
		assert.Equal(t, want, StatusOf(code), string(code))
	}
}
