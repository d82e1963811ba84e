package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/mi42hq/mi42/internal/auth/domain"
	obscontext "github.com/mi42hq/mi42/internal/observability/context"
	userdomain "github.com/mi42hq/mi42/internal/user/domain"
)

const userContextKey = "mi42.user"

// AuthRequired resolves the bearer token and stores the user on the request
// context. Requests without a valid session never reach the handler.
func AuthRequired(sessions authdomain.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			AbortWithError(c, authdomain.ErrInvalidSession)
			return
		}

		user, err := sessions.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(userContextKey, user)
		ctx := obscontext.WithUserID(c.Request.Context(), user.ID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AdminRequired gates admin-only routes. It must run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			AbortWithError(c, authdomain.ErrInvalidSession)
			return
		}
		if user.Role != userdomain.RoleAdmin {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil outside AuthRequired.
func CurrentUser(c *gin.Context) *userdomain.User {
	value, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	user, ok := value.(*userdomain.User)
	if !ok {
		return nil
	}
	return user
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
