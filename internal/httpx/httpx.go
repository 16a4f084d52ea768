package httpx

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Success-Framework/SFManagers-sub001/internal/errs"
	"github.com/gofiber/fiber/v2"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func requestID(c *fiber.Ctx) string {
	if v := c.Locals("requestid"); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func Error(c *fiber.Ctx, status int, code string, message string) error {
	if message == "" {
		message = "Request failed"
	}
	return c.Status(status).JSON(ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestID(c),
	})
}

func BadRequest(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusBadRequest, code, message)
}

func Unauthorized(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusUnauthorized, code, message)
}

func Forbidden(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusForbidden, code, message)
}

func Internal(c *fiber.Ctx, code string) error {
	return Error(c, fiber.StatusInternalServerError, code, "Internal server error")
}

func NotFound(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusNotFound, code, message)
}

// FromError maps a domain error to its HTTP status. Unclassified errors are
// logged and reported as internal without detail.
func FromError(c *fiber.Ctx, err error) error {
	var e *errs.Error
	if !errors.As(err, &e) {
		slog.ErrorContext(c.UserContext(), "unclassified error", "path", c.Path(), "request_id", requestID(c), "err", err)
		return Internal(c, "internal_error")
	}

	switch e.Code {
	case errs.CodeNotFound:
		return Error(c, fiber.StatusNotFound, "not_found", e.Message)
	case errs.CodeForbidden:
		return Error(c, fiber.StatusForbidden, "forbidden", e.Message)
	case errs.CodeInvalidArgument:
		return Error(c, fiber.StatusBadRequest, "invalid_argument", e.Message)
	case errs.CodeConflict:
		return Error(c, fiber.StatusConflict, "conflict", e.Message)
	case errs.CodeUnauthenticated:
		return Error(c, fiber.StatusUnauthorized, "unauthenticated", e.Message)
	case errs.CodeUnavailable:
		slog.WarnContext(c.UserContext(), "dependency unavailable", "path", c.Path(), "request_id", requestID(c), "err", err)
		return Error(c, fiber.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable")
	default:
		slog.ErrorContext(c.UserContext(), "request failed", "path", c.Path(), "request_id", requestID(c), "err", err)
		return Internal(c, "internal_error")
	}
}

// ParamUint parses a positive numeric route parameter.
func ParamUint(c *fiber.Ctx, name string) (uint, error) {
	n, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || n == 0 {
		return 0, errs.InvalidArgument(fmt.Sprintf("invalid %s", name))
	}
	return uint(n), nil
}

// QueryUint parses an optional numeric query value; absent means zero.
func QueryUint(c *fiber.Ctx, name string) (uint, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, errs.InvalidArgument(fmt.Sprintf("invalid %s", name))
	}
	return uint(n), nil
}

func LocalUint(c *fiber.Ctx, key string) (uint, error) {
	v := c.Locals(key)
	if v == nil {
		return 0, fmt.Errorf("missing local %s", key)
	}
	u, ok := v.(uint)
	if !ok {
		return 0, fmt.Errorf("invalid local %s", key)
	}
	return u, nil
}
