package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rewardhub/rewardhub/internal/ledger"
	"github.com/rewardhub/rewardhub/internal/logging"
	"golang.org/x/crypto/bcrypt"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *ledger.User `json:"user"`
}

func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" || req.Email == "" || len(req.Password) < 8 {
		return fiber.NewError(fiber.StatusBadRequest, "name, email, and a password of at least 8 characters are required")
	}

	role := ledger.RoleStudent
	switch ledger.Role(req.Role) {
	case ledger.RoleFaculty:
		role = ledger.RoleFaculty
	case ledger.RoleStudent, "":
	default:
		return fiber.NewError(fiber.StatusBadRequest, "role must be student or faculty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := &ledger.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.store.CreateUser(c.Context(), user); err != nil {
		return fiber.NewError(fiber.StatusConflict, "email already registered")
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return err
	}

	logging.Info("account registered",
		logging.Student(user.ID),
		"role", string(user.Role),
		logging.Component("api"))

	return c.Status(fiber.StatusCreated).JSON(authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	user, err := s.store.UserByEmail(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
		}
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return err
	}
	return c.JSON(authResponse{Token: token, User: user})
}
