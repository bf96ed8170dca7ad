package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"reportit/models"
	"reportit/utils"
)

const (
	ctxUserID = "userID"
	ctxRole   = "role"
)

type TokenValidator interface {
	ValidateToken(signedToken string) (*utils.JWTClaim, error)
}

func bearerToken(c *gin.Context) (string, string) {
	if token, err := c.Cookie("token"); err == nil && token != "" {
		return token, ""
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "Authorization token not provided"
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Invalid Authorization header format"
	}
	return parts[1], ""
}

// AuthMiddleware requires a valid token. When roles are given the token's
// role must be one of them.
func AuthMiddleware(tokens TokenValidator, roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, problem := bearerToken(c)
		if problem != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": problem})
			return
		}

		claims, err := tokens.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization token"})
			return
		}
		userID, err := primitive.ObjectIDFromHex(claims.ID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization token"})
			return
		}

		role := models.Role(claims.Role)
		if len(roles) > 0 && !hasRole(roles, role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxRole, role)
		c.Next()
	}
}

func hasRole(roles []models.Role, role models.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// CurrentUser returns the identity AuthMiddleware stored on the context.
func CurrentUser(c *gin.Context) (primitive.ObjectID, models.Role, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return primitive.NilObjectID, "", false
	}
	id, ok := v.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, "", false
	}
	role, _ := c.Get(ctxRole)
	r, _ := role.(models.Role)
	return id, r, true
}
