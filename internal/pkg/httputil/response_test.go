package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFound(rec, "dataset not found: xyz")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":false,"error":"dataset not found: xyz"}`, rec.Body.String())
}

func TestInternalErrorHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	InternalError(rec, errors.New("open /srv/secret: permission denied"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "/srv/secret")
}

func TestQueryParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/available-years?id=educ", nil)
	assert.Equal(t, "educ", QueryParam(req, "dataset", "id"))
	assert.Equal(t, "", QueryParam(req, "theme"))
}
