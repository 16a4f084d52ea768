package middleware

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/Success-Framework/SFManagers-sub001/internal/httpx"
	"github.com/gofiber/fiber/v2"
)

// CSRFMode selects how cookie-authenticated writes are protected.
type CSRFMode string

const (
	CSRFToken  CSRFMode = "token"  // header must echo the cookie
	CSRFOrigin CSRFMode = "origin" // origin policy only
	CSRFOff    CSRFMode = "off"
)

const (
	CSRFCookie = "om_csrf"
	CSRFHeader = "X-OM-CSRF"
)

// ParseCSRFMode maps a config value to a mode; empty means CSRFToken.
func ParseCSRFMode(s string) (CSRFMode, error) {
	switch m := CSRFMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return CSRFToken, nil
	case CSRFToken, CSRFOrigin, CSRFOff:
		return m, nil
	default:
		return "", fmt.Errorf("unknown CSRF mode %q", s)
	}
}

// CSRFRequired guards state-changing browser requests. Safe methods, clients
// authenticating with an Authorization header, and requests without an Origin
// are not cookie-driven browser writes and pass through.
func CSRFRequired(mode CSRFMode, policy OriginPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if mode == CSRFOff || !cookieWrite(c) {
			return c.Next()
		}
		if !policy.Allows(c.Get(fiber.HeaderOrigin)) {
			return httpx.Forbidden(c, "forbidden_origin", "Origin not allowed")
		}
		if mode == CSRFOrigin {
			return c.Next()
		}

		cookie, header := c.Cookies(CSRFCookie), c.Get(CSRFHeader)
		switch {
		case cookie == "" || header == "":
			return httpx.Forbidden(c, "csrf_required", "Missing CSRF token")
		case subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1:
			return httpx.Forbidden(c, "csrf_invalid", "Invalid CSRF token")
		}
		return c.Next()
	}
}

func cookieWrite(c *fiber.Ctx) bool {
	switch c.Method() {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
		return false
	}
	return c.Get(fiber.HeaderAuthorization) == "" && c.Get(fiber.HeaderOrigin) != ""
}
