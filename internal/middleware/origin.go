package middleware

import (
	"strings"

	"github.com/Success-Framework/SFManagers-sub001/internal/httpx"
	"github.com/gofiber/fiber/v2"
)

// OriginPolicy is the browser Origin allow-list shared by the origin and CSRF
// checks. An empty list or "*" admits any origin, matching the CORS setup.
type OriginPolicy struct {
	any     bool
	origins map[string]struct{}
}

// NewOriginPolicy parses a comma-separated list such as ALLOWED_ORIGINS.
func NewOriginPolicy(list string) OriginPolicy {
	p := OriginPolicy{origins: make(map[string]struct{})}
	for _, part := range strings.Split(list, ",") {
		o := normalizeOrigin(part)
		switch o {
		case "":
		case "*":
			p.any = true
		default:
			p.origins[o] = struct{}{}
		}
	}
	if len(p.origins) == 0 {
		p.any = true
	}
	return p
}

// Allows reports whether origin may call the API.
func (p OriginPolicy) Allows(origin string) bool {
	if p.any {
		return true
	}
	_, ok := p.origins[normalizeOrigin(origin)]
	return ok
}

func normalizeOrigin(o string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
}

// OriginAllowed rejects browser requests from origins outside policy.
// Requests without an Origin header are not from a browser and pass.
func OriginAllowed(policy OriginPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		if origin == "" || policy.Allows(origin) {
			return c.Next()
		}
		return httpx.Forbidden(c, "forbidden_origin", "Origin not allowed")
	}
}
