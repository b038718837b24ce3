package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/peterldowns/testy/check"
)

func protected(apiKey string) http.Handler {
	return AdminAuth(apiKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAdminAuthAcceptsAPIKeyHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/audit", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	protected("secret").ServeHTTP(rec, req)
	check.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAuthAcceptsBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/audit", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	protected("secret").ServeHTTP(rec, req)
	check.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAuthRejectsWrongKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/audit", nil)
	req.Header.Set("X-API-Key", "nope")
	rec := httptest.NewRecorder()
	protected("secret").ServeHTTP(rec, req)
	check.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminAuthRejectsMissingKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/audit", nil)
	rec := httptest.NewRecorder()
	protected("secret").ServeHTTP(rec, req)
	check.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminAuthDisabledWithoutKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/audit", nil)
	req.Header.Set("X-API-Key", "")
	rec := httptest.NewRecorder()
	protected("").ServeHTTP(rec, req)
	check.Equal(t, http.StatusForbidden, rec.Code)
}
