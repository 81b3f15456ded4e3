package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/uniport/uap-leave-api/internal/models"
	"github.com/uniport/uap-leave-api/internal/service"
	appErrors "github.com/uniport/uap-leave-api/pkg/errors"
	"github.com/uniport/uap-leave-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// bearerToken extracts the token from an Authorization header. The second
// return is false when the header is absent or not a Bearer scheme.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

// JWT protects routes by requiring a valid access token issued by the
// university identity service.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing or malformed authorization header"))
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// CurrentUser extracts the authenticated claims set by JWT. The second return
// is false on unauthenticated requests.
func CurrentUser(c *gin.Context) (*models.JWTClaims, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok
}
