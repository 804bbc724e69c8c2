package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rewardhub/rewardhub/internal/ledger"
	"github.com/rewardhub/rewardhub/internal/logging"
	"github.com/rewardhub/rewardhub/internal/metrics"
)

const (
	localsUserID = "user_id"
	localsRole   = "role"
)

// requireAuth validates the bearer token and stashes the caller's identity
// in request locals.
func (s *Server) requireAuth(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, "Bearer ") {
		return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
	}

	claims, err := s.tokens.Validate(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
	}

	c.Locals(localsUserID, claims.Subject)
	c.Locals(localsRole, claims.Role)
	return c.Next()
}

// requireRole gates a route group to the given roles. Must run after
// requireAuth.
func requireRole(roles ...ledger.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		have, _ := c.Locals(localsRole).(string)
		for _, r := range roles {
			if string(r) == have {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "insufficient role")
	}
}

// currentUser loads the authenticated user's row.
func (s *Server) currentUser(c *fiber.Ctx) (*ledger.User, error) {
	id, _ := c.Locals(localsUserID).(string)
	user, err := s.store.UserByID(c.Context(), id)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "account no longer exists")
	}
	return user, nil
}

// observe records request metrics and an access log line per request.
func observe(collector *metrics.Collector) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		route := c.Route().Path
		elapsed := time.Since(start)
		collector.RecordHTTPRequest(route, strconv.Itoa(status), elapsed)

		logging.Debug("request handled",
			"method", c.Method(),
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			logging.Component("api"))

		return err
	}
}
