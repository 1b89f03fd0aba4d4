package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"rentals/internal/app/policies"
)

const (
	principalContextKey = "rentals.principal"

	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

// HeaderIdentity trusts the identity asserted by the gateway in front of the
// service: X-User-ID names the caller and X-User-Role: admin grants admin.
type HeaderIdentity struct{}

func (HeaderIdentity) Handle(c *gin.Context) {
	id := strings.TrimSpace(c.GetHeader(headerUserID))
	if id == "" {
		c.Next()
		return
	}
	setPrincipal(c, policies.Principal{
		UserID: id,
		Admin:  hasRole(c.GetHeader(headerUserRole), "admin"),
	})
	c.Next()
}

func hasRole(header, role string) bool {
	for _, r := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(r), role) {
			return true
		}
	}
	return false
}

func setPrincipal(c *gin.Context, p policies.Principal) {
	c.Set(principalContextKey, p)
}

func currentPrincipal(c *gin.Context) (policies.Principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return policies.Principal{}, false
	}
	p, ok := val.(policies.Principal)
	return p, ok
}

func requirePrincipal(c *gin.Context) (policies.Principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok || !p.Authenticated() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return policies.Principal{}, false
	}
	return p, true
}
