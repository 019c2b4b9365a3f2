package middleware

import (
	"errors"
	"strings"

	"coop-ledger/internal/core/domain"
	"coop-ledger/internal/pkg/jwt"
	"coop-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const actorKey = "actor"

// bearerToken reads the access token from the cookie or the Authorization header
func bearerToken(c *fiber.Ctx) string {
	if token := c.Cookies("access_token"); token != "" {
		return token
	}
	authHeader := c.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	// EventSource cannot set headers
	return c.Query("access_token")
}

// AuthMiddleware validates the access token and stores the caller as a domain.Actor
func AuthMiddleware(signer *jwt.Signer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := bearerToken(c)
		if accessToken == "" {
			return response.Unauthorized(c, "Access token required")
		}

		claims, err := signer.ParseAccess(accessToken)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return response.Unauthorized(c, "Access token expired")
			}
			return response.Unauthorized(c, "Invalid access token")
		}

		role, err := domain.ParseRole(claims.Role)
		if err != nil {
			return response.Unauthorized(c, "Invalid access token")
		}

		c.Locals(actorKey, domain.Actor{ID: claims.UserID, Role: role})
		c.Locals("userID", claims.UserID)
		c.Locals("username", claims.Username)
		return c.Next()
	}
}

// CurrentActor returns the authenticated caller. ok is false on unprotected routes.
func CurrentActor(c *fiber.Ctx) (domain.Actor, bool) {
	actor, ok := c.Locals(actorKey).(domain.Actor)
	return actor, ok
}

// RoleMiddleware creates role-based authorization middleware
func RoleMiddleware(allowedRoles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := CurrentActor(c)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}

		for _, allowedRole := range allowedRoles {
			if actor.Role == allowedRole {
				return c.Next()
			}
		}

		return response.Forbidden(c, "You don't have permission to access this resource")
	}
}

// AdminOnly middleware allows only the admin role
func AdminOnly() fiber.Handler {
	return RoleMiddleware(domain.RoleAdmin)
}

// StaffOnly middleware allows teller or admin roles
func StaffOnly() fiber.Handler {
	return RoleMiddleware(domain.RoleTeller, domain.RoleAdmin)
}
