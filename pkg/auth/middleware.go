package auth

import (
	"civicrelay/pkg/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const identityContextKey = "civicrelay.identity"

// Authenticate attaches the caller's identity to the gin context when a
// valid bearer token is present. It never rejects on its own.
func Authenticate(tm *TokenManager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}

		identity, err := tm.ValidateToken(raw)
		if err != nil {
			logger.Debug("Rejected identity token",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			c.Next()
			return
		}

		c.Set(identityContextKey, identity)
		c.Next()
	}
}

// GetIdentity returns the identity Authenticate attached, if any.
func GetIdentity(c *gin.Context) (*Identity, bool) {
	v, ok := c.Get(identityContextKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*Identity)
	return identity, ok
}

// RequireIdentity aborts with 401 unless the request is authenticated.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetIdentity(c); !ok {
			abort(c, errs.Wrap(errs.KindUnauthenticated, "Authentication required", ErrUnauthorized))
			return
		}
		c.Next()
	}
}

// RequireAdmin aborts with 401 for anonymous callers and 403 for
// authenticated callers that are not the administrator.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			abort(c, errs.Wrap(errs.KindUnauthenticated, "Authentication required", ErrUnauthorized))
			return
		}
		if !identity.Admin {
			abort(c, errs.New(errs.KindForbidden, "Admins only"))
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(errs.HTTPStatus(err), gin.H{"error": errs.Message(err)})
}
