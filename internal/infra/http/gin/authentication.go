package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"rentalcore/internal/app/handlers/support"
	"rentalcore/internal/infra/security"
)

const principalContextKey = "rentalcore.principal"

type principal struct {
	ID    string
	Roles []string
}

func (p principal) HasRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	for _, r := range p.Roles {
		if strings.ToLower(r) == role {
			return true
		}
	}
	return false
}

func (p principal) Actor() support.Actor {
	return support.Actor{ID: p.ID, Admin: p.HasRole(security.RoleAdmin)}
}

// TokenValidator checks bearer tokens.
type TokenValidator interface {
	Validate(token string) (*security.Claims, error)
}

// AuthMiddleware resolves the bearer token into a principal. Requests without
// a valid token continue anonymously; handlers that need a caller reject them.
type AuthMiddleware struct {
	Tokens TokenValidator
	Logger *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || m.Tokens == nil {
		c.Next()
		return
	}
	claims, err := m.Tokens.Validate(token)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		c.Next()
		return
	}
	setPrincipal(c, principal{ID: claims.Subject, Roles: claims.Roles})
	c.Next()
}

func setPrincipal(c *gin.Context, p principal) {
	c.Set(principalContextKey, p)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

// requireActor answers 401 when the request carries no principal.
func requireActor(c *gin.Context) (support.Actor, bool) {
	p, ok := currentPrincipal(c)
	if !ok || p.ID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return support.Actor{}, false
	}
	return p.Actor(), true
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	token := strings.TrimSpace(header[7:])
	return token
}
