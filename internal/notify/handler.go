package notify

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PewPewSlowMo/SmartCallCenter/internal/auth"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/rbac"
)

// AttachHandler upgrades authenticated requests into hub subscriptions.
// It runs behind the access-token middleware, so the identity is always
// present; an unknown role is still rejected.
func AttachHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := auth.UserID(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		role, err := auth.Role(c.Request.Context())
		if err != nil || !rbac.IsKnown(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "unknown role"})
			return
		}
		hub.Attach(c.Writer, c.Request, userID, role)
	}
}
