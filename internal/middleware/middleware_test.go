package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technoclass/campus-vms/internal/middleware"
	"github.com/technoclass/campus-vms/internal/tokens"
)

func okHandler(t *testing.T, captured **middleware.AuthContext) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			ac, _ := middleware.GetAuthContext(r.Context())
			*captured = ac
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWTAuthInjectsContext(t *testing.T) {
	mgr := tokens.NewManager("mw-test-secret")
	token, err := mgr.GenerateAccessToken("user-1", "school-1", tokens.RoleSchoolAdmin)
	require.NoError(t, err)

	var captured *middleware.AuthContext
	handler := middleware.NewJWTAuth(mgr).Middleware(okHandler(t, &captured))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "school-1", captured.SchoolID)
	assert.Equal(t, "user-1", captured.UserID)
	assert.Equal(t, tokens.RoleSchoolAdmin, captured.Role)
}

func TestJWTAuthRejectsMissingAndMalformed(t *testing.T) {
	mgr := tokens.NewManager("mw-test-secret")
	handler := middleware.NewJWTAuth(mgr).Middleware(okHandler(t, nil))

	for _, header := range []string{"", "Token abc", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestJWTAuthRejectsRefreshToken(t *testing.T) {
	mgr := tokens.NewManager("mw-test-secret")
	token, err := mgr.GenerateRefreshToken("user-1", "school-1", tokens.RoleGuard)
	require.NoError(t, err)

	handler := middleware.NewJWTAuth(mgr).Middleware(okHandler(t, nil))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	gate := middleware.RequireRole(tokens.RoleSchoolAdmin)

	tests := []struct {
		role string
		want int
	}{
		{tokens.RoleSchoolAdmin, http.StatusOK},
		{tokens.RoleSuperAdmin, http.StatusOK},
		{tokens.RoleGuard, http.StatusForbidden},
	}
	for _, tt := range tests {
		handler := gate(okHandler(t, nil))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(middleware.WithAuthContext(req.Context(), &middleware.AuthContext{Role: tt.role}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, tt.want, rec.Code, "role %s", tt.role)
	}
}

func TestRequireRoleWithoutContext(t *testing.T) {
	handler := middleware.RequireRole(tokens.RoleSchoolAdmin)(okHandler(t, nil))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
