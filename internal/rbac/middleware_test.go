package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PewPewSlowMo/SmartCallCenter/internal/auth"

	"github.com/gin-gonic/gin"
)

func doRequest(t *testing.T, role string, mw gin.HandlerFunc) int {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if role != "" {
		r.Use(func(c *gin.Context) {
			c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), "u1", role))
			c.Next()
		})
	}
	r.GET("/x", mw, func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireAnyRole(t *testing.T) {
	tests := []struct {
		name    string
		role    string
		allowed []string
		want    int
	}{
		{"missing role", "", []string{RoleSupervisor}, http.StatusUnauthorized},
		{"allowed role", RoleSupervisor, []string{RoleSupervisor}, http.StatusOK},
		{"denied role", RoleOperator, []string{RoleSupervisor}, http.StatusForbidden},
		{"admin bypass", RoleAdmin, []string{RoleSupervisor}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := doRequest(t, tt.role, RequireAnyRole(tt.allowed...)); got != tt.want {
				t.Fatalf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSupervisoryRoles(t *testing.T) {
	for _, r := range SupervisoryRoles() {
		if !IsKnown(r) {
			t.Fatalf("supervisory role %q not known", r)
		}
		if r == RoleOperator {
			t.Fatalf("operator must not be supervisory")
		}
	}
}
