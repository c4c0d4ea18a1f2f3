package common

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/khanghh/konbase/internal/dbtest"
	"github.com/stretchr/testify/assert"
)

func TestHealthCheckHandler(t *testing.T) {
	handler := NewHealthCheckHandler(nil, dbtest.Open(t))

	for _, path := range []string{"/livez", "/readyz", "/metrics"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
