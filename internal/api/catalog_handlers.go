package api

import (
	"github.com/gofiber/fiber/v2"
)

type catalogEntryRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	TokenReward int64  `json:"token_reward"`
	TokenCost   int64  `json:"token_cost"`
}

func (s *Server) handleListAchievements(c *fiber.Ctx) error {
	activeOnly := c.QueryBool("active", true)
	achievements, err := s.store.ListAchievements(c.Context(), activeOnly)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"achievements": achievements})
}

func (s *Server) handleListPerks(c *fiber.Ctx) error {
	activeOnly := c.QueryBool("active", true)
	perks, err := s.store.ListPerks(c.Context(), activeOnly)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"perks": perks})
}

func (s *Server) handleCreateAchievement(c *fiber.Ctx) error {
	var req catalogEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Title == "" || req.TokenReward <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "title and a positive token_reward are required")
	}

	a, err := s.svc.Catalog.CreateAchievement(c.Context(), req.Title, req.Description, req.TokenReward)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

func (s *Server) handleUpdateAchievement(c *fiber.Ctx) error {
	var req catalogEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Title == "" || req.TokenReward <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "title and a positive token_reward are required")
	}

	a, err := s.svc.Catalog.UpdateAchievement(c.Context(), c.Params("id"), req.Title, req.Description, req.TokenReward)
	if err != nil {
		return err
	}
	return c.JSON(a)
}

func (s *Server) handleDeactivateAchievement(c *fiber.Ctx) error {
	if err := s.svc.Catalog.DeactivateAchievement(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deactivated": true})
}

func (s *Server) handleCreatePerk(c *fiber.Ctx) error {
	var req catalogEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Title == "" || req.TokenCost <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "title and a positive token_cost are required")
	}

	p, err := s.svc.Catalog.CreatePerk(c.Context(), req.Title, req.Description, req.TokenCost)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (s *Server) handleUpdatePerk(c *fiber.Ctx) error {
	var req catalogEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Title == "" || req.TokenCost <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "title and a positive token_cost are required")
	}

	p, err := s.svc.Catalog.UpdatePerk(c.Context(), c.Params("id"), req.Title, req.Description, req.TokenCost)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (s *Server) handleDeactivatePerk(c *fiber.Ctx) error {
	if err := s.svc.Catalog.DeactivatePerk(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deactivated": true})
}
