package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yxm4nsy/pay2win-backend/internal/model"
)

func TestAuthMiddleware(t *testing.T) {
	auth := NewAuthMiddleware("test-secret", time.Hour)

	token, _, err := auth.IssueToken(42, model.RoleCashier)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	other := NewAuthMiddleware("other-secret", time.Hour)
	foreignToken, _, err := other.IssueToken(42, model.RoleCashier)
	if err != nil {
		t.Fatalf("issue foreign token: %v", err)
	}

	expired := NewAuthMiddleware("test-secret", -time.Hour)
	expiredToken, _, err := expired.IssueToken(42, model.RoleCashier)
	if err != nil {
		t.Fatalf("issue expired token: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUserID int64
		wantRole   model.Role
	}{
		{
			name:       "valid token",
			header:     "Bearer " + token,
			wantStatus: http.StatusOK,
			wantUserID: 42,
			wantRole:   model.RoleCashier,
		},
		{
			name:       "missing header",
			header:     "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "not a bearer scheme",
			header:     "Basic " + token,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong signature",
			header:     "Bearer " + foreignToken,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "expired token",
			header:     "Bearer " + expiredToken,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "garbage token",
			header:     "Bearer not.a.token",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUserID int64
			var gotRole model.Role
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUserID, _ = GetUserIDFromContext(r.Context())
				gotRole, _ = GetRoleFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			auth.Middleware(next).ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			if res.StatusCode != tt.wantStatus {
				t.Fatalf("status: got %d want %d", res.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if gotUserID != tt.wantUserID {
					t.Errorf("userID: got %d want %d", gotUserID, tt.wantUserID)
				}
				if gotRole != tt.wantRole {
					t.Errorf("role: got %q want %q", gotRole, tt.wantRole)
				}
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	auth := NewAuthMiddleware("test-secret", time.Hour)

	tests := []struct {
		name       string
		role       model.Role
		minimum    model.Role
		wantStatus int
	}{
		{"equal role passes", model.RoleManager, model.RoleManager, http.StatusOK},
		{"higher role passes", model.RoleSuperuser, model.RoleCashier, http.StatusOK},
		{"lower role refused", model.RoleRegular, model.RoleCashier, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, _, err := auth.IssueToken(7, tt.role)
			if err != nil {
				t.Fatalf("issue token: %v", err)
			}

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/transactions", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()

			auth.Middleware(RequireRole(tt.minimum)(next)).ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			if res.StatusCode != tt.wantStatus {
				t.Fatalf("status: got %d want %d", res.StatusCode, tt.wantStatus)
			}
		})
	}
}
