// Package middleware provides the HTTP middleware chain: caller identity,
// structured logging, rate limiting, tracing and metrics.
package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"agora/internal/config"
	"agora/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const callerLocal = "caller"

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

// ForumClaims are the claims the identity provider issues for forum callers.
type ForumClaims struct {
	Role string `json:"role"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

var (
	errInvalidToken   = errors.New("invalid token")
	errMissingSubject = errors.New("invalid token structure - missing subject")
	errBadSubject     = errors.New("invalid user ID in token")
	errBadRole        = errors.New("invalid role in token")
)

// ParseCaller validates a bearer token and returns the caller it names.
func ParseCaller(tokenString string) (models.Caller, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}
	if cfg.JWTAudience != "" {
		opts = append(opts, jwt.WithAudience(cfg.JWTAudience))
	}

	claims := &ForumClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}, opts...)
	if err != nil {
		return models.Caller{}, err
	}
	if !token.Valid {
		return models.Caller{}, errInvalidToken
	}

	if claims.Subject == "" {
		return models.Caller{}, errMissingSubject
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || userID == 0 {
		return models.Caller{}, errBadSubject
	}

	role := models.Role(claims.Role)
	if role == "" {
		role = models.RoleStudent
	}
	if !role.Valid() {
		return models.Caller{}, errBadRole
	}

	return models.Caller{UserID: uint(userID), DisplayName: claims.Name, Role: role}, nil
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setCaller(c *fiber.Ctx, caller models.Caller) {
	c.Locals("userID", caller.UserID)
	c.Locals(callerLocal, caller)
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, caller.UserID))
}

// CallerFrom returns the authenticated caller, if any.
func CallerFrom(c *fiber.Ctx) (models.Caller, bool) {
	caller, ok := c.Locals(callerLocal).(models.Caller)
	return caller, ok
}

func unauthorized(c *fiber.Ctx, message string) error {
	return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(message))
}

// AuthRequired is a middleware that enforces authentication for protected routes.
func AuthRequired(c *fiber.Ctx) error {
	if c.Get("Authorization") == "" {
		return unauthorized(c, "Authorization header required")
	}
	token, ok := bearerToken(c)
	if !ok {
		return unauthorized(c, "Invalid authorization header format")
	}

	caller, err := ParseCaller(token)
	if err != nil {
		return unauthorized(c, "Invalid or expired token")
	}
	setCaller(c, caller)

	return c.Next()
}

// OptionalAuth attaches the caller when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuth(c *fiber.Ctx) error {
	if token, ok := bearerToken(c); ok {
		if caller, err := ParseCaller(token); err == nil {
			setCaller(c, caller)
		}
	}
	return c.Next()
}

// WebSocketAuthRequired validates a token from the query string, falling back to the header.
// Browsers cannot set headers on websocket upgrades.
func WebSocketAuthRequired(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		var ok bool
		if token, ok = bearerToken(c); !ok {
			return unauthorized(c, "Token required")
		}
	}

	caller, err := ParseCaller(token)
	if err != nil {
		return unauthorized(c, "Invalid or expired token")
	}
	setCaller(c, caller)

	return c.Next()
}

// ModeratorRequired rejects callers whose role cannot moderate. Run after AuthRequired.
func ModeratorRequired(c *fiber.Ctx) error {
	caller, ok := CallerFrom(c)
	if !ok {
		return unauthorized(c, "Authorization header required")
	}
	if !caller.IsModerator() {
		return models.RespondWithError(c, fiber.StatusForbidden, models.NewForbiddenError("moderator role required"))
	}
	return c.Next()
}
