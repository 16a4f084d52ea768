package middleware

import (
	"context"
	"strings"

	"github.com/Success-Framework/SFManagers-sub001/internal/errs"
	"github.com/Success-Framework/SFManagers-sub001/internal/httpx"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// CredentialVerifier resolves an access token to an existing user id.
type CredentialVerifier interface {
	VerifyCredential(ctx context.Context, token string) (uint, error)
}

func AuthRequired(verifier CredentialVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := extractToken(c, false)
		if !ok {
			return httpx.Unauthorized(c, "invalid_authorization", "Invalid authorization format")
		}
		if tokenString == "" {
			return httpx.Unauthorized(c, "missing_access_token", "Missing access token")
		}

		userID, err := verifier.VerifyCredential(c.UserContext(), tokenString)
		if err != nil {
			return rejectCredential(c, err)
		}

		c.Locals("userID", userID)
		return c.Next()
	}
}

// WebSocketUpgrade gates the realtime endpoint. A credential from the header,
// the om_access cookie or the token query is verified here; without one the
// upgrade proceeds and the gateway expects an auth frame.
func WebSocketUpgrade(verifier CredentialVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return httpx.Error(c, fiber.StatusUpgradeRequired, "upgrade_required", "WebSocket upgrade required")
		}

		tokenString, ok := extractToken(c, true)
		if !ok {
			return httpx.Unauthorized(c, "invalid_authorization", "Invalid authorization format")
		}
		if tokenString != "" {
			userID, err := verifier.VerifyCredential(c.UserContext(), tokenString)
			if err != nil {
				return rejectCredential(c, err)
			}
			c.Locals("userID", userID)
		}
		return c.Next()
	}
}

// extractToken reads "Bearer <token>", then the om_access cookie, then
// (for upgrades only) the token query parameter. ok is false for a
// malformed Authorization header.
func extractToken(c *fiber.Ctx, allowQuery bool) (string, bool) {
	if authHeader := c.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", false
		}
		return parts[1], true
	}
	if cookie := c.Cookies("om_access"); cookie != "" {
		return cookie, true
	}
	if allowQuery {
		return c.Query("token"), true
	}
	return "", true
}

func rejectCredential(c *fiber.Ctx, err error) error {
	if errs.Is(err, errs.CodeUnauthenticated) {
		return httpx.Unauthorized(c, "invalid_access_token", "Invalid or expired token")
	}
	return httpx.FromError(c, err)
}
