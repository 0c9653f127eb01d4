package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kirieshkistudios/park-backend/internal/domain"
	"github.com/kirieshkistudios/park-backend/internal/logging"
)

const (
	AuthorizationHeaderKey  = "Authorization"
	AuthorizationTypeBearer = "Bearer"
	PrincipalKey            = "principal"
)

// Authenticator turns a bearer token into a principal.
type Authenticator interface {
	Authenticate(token string) (*domain.Principal, error)
}

type AuthMiddleware struct {
	authenticator Authenticator
}

func NewAuthMiddleware(authenticator Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. It returns "" when the header is missing or malformed.
func BearerToken(c *gin.Context) string {
	fields := strings.Fields(c.GetHeader(AuthorizationHeaderKey))
	if len(fields) != 2 || !strings.EqualFold(fields[0], AuthorizationTypeBearer) {
		return ""
	}
	return fields[1]
}

func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(AuthorizationHeaderKey) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		token := BearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		principal, err := m.authenticator.Authenticate(token)
		if err != nil {
			logging.Ctx(c.Request.Context()).Info().Err(err).Str("path", c.FullPath()).Msg("rejected bearer token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(PrincipalKey, principal)
		c.Next()
	}
}

// AuthorizeSuperior must run after Authenticate.
func (m *AuthMiddleware) AuthorizeSuperior() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			logging.Ctx(c.Request.Context()).Warn().Msg("AuthorizeSuperior: no principal in context, Authenticate() missing")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		if !principal.IsSuperior {
			logging.Ctx(c.Request.Context()).Info().Int("user_id", principal.UserID).Str("path", c.FullPath()).Msg("non-superior user denied")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "superior privileges required"})
			return
		}
		c.Next()
	}
}

func PrincipalFrom(c *gin.Context) (*domain.Principal, bool) {
	v, exists := c.Get(PrincipalKey)
	if !exists {
		return nil, false
	}
	principal, ok := v.(*domain.Principal)
	return principal, ok
}
