package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// keyResolver maps tokens to tenants; err, when set, fails every lookup.
type keyResolver struct {
	keys map[string]string
	err  error
}

func (r *keyResolver) ResolveTenant(_ context.Context, token string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	if tenantID, ok := r.keys[token]; ok {
		return tenantID, nil
	}
	return "", ErrUnauthorized
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		resolver *keyResolver
		header   string
		status   int
	}{
		{"known key", &keyResolver{keys: map[string]string{"k1": "acme"}}, "Bearer k1", http.StatusOK},
		{"unknown key", &keyResolver{keys: map[string]string{"k1": "acme"}}, "Bearer k2", http.StatusUnauthorized},
		{"resolver failure", &keyResolver{err: errors.New("db down")}, "Bearer k1", http.StatusUnauthorized},
		{"empty tenant", &keyResolver{keys: map[string]string{"k1": ""}}, "Bearer k1", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AuthMiddleware(tt.resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tenantID, ok := TenantFromContext(r.Context())
				require.True(t, ok)
				require.Equal(t, "acme", tenantID)
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/contracts/c1", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				require.Contains(t, rec.Body.String(), `"code":"UNAUTHORIZED"`)
			}
		})
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	handler := AuthMiddleware(&keyResolver{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a token")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "missing bearer token")
}

func TestStaticTenantAndActor(t *testing.T) {
	handler := StaticTenant("default")(actorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := TenantFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, "default", tenantID)
		require.Equal(t, "olivia", ActorFromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ActorHeader, " olivia ")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}
