package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/oakmart/storefront-api/internal/auth"
	"github.com/oakmart/storefront-api/internal/common"
)

func loginAs(t *testing.T, svc *auth.Service, users *fakeUsers, roles ...string) string {
	t.Helper()
	ctx := context.Background()
	u, err := svc.Register(ctx, "Jo", uuid.NewString()+"@example.com", "hunter2hunter2")
	require.NoError(t, err)
	if len(roles) > 0 {
		id := uuid.MustParse(u.ID)
		stored := users.byID[id]
		stored.Roles = roles
		users.byID[id] = stored
		users.byEmail[stored.Email] = stored
	}
	result, err := svc.Login(ctx, u.Email, "hunter2hunter2")
	require.NoError(t, err)
	return result.AccessToken
}

func TestRequireAuth(t *testing.T) {
	users := newFakeUsers()
	svc := newService(t, users)
	mw := auth.Middleware{Service: svc}

	var seenUser string
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser, _ = common.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token := loginAs(t, svc, users)
	req = httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, seenUser)
}

func TestRequireRole(t *testing.T) {
	users := newFakeUsers()
	svc := newService(t, users)
	mw := auth.Middleware{Service: svc}

	handler := mw.RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	customerToken := loginAs(t, svc, users)
	req := httptest.NewRequest(http.MethodPatch, "/admin/orders/x/status", nil)
	req.Header.Set("Authorization", "Bearer "+customerToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	adminToken := loginAs(t, svc, users, "customer", "admin")
	req = httptest.NewRequest(http.MethodPatch, "/admin/orders/x/status", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticatePassthrough(t *testing.T) {
	users := newFakeUsers()
	svc := newService(t, users)
	mw := auth.Middleware{Service: svc}

	var hadUser bool
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadUser = common.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, hadUser)
}

var _ auth.UserStore = (*fakeUsers)(nil)
