package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rewardhub/rewardhub/internal/logging"
)

type redeemRequest struct {
	PerkID string `json:"perk_id"`
}

type awardRequest struct {
	StudentID     string `json:"student_id"`
	AchievementID string `json:"achievement_id"`
}

func (s *Server) handleRedeem(c *fiber.Ctx) error {
	var req redeemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.PerkID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "perk_id is required")
	}

	user, err := s.currentUser(c)
	if err != nil {
		return err
	}

	redemption, err := s.svc.Redeemer.Redeem(c.Context(), user, req.PerkID)
	if err != nil {
		return err
	}

	logging.Audit(logging.AuditEvent{
		Operation: "perk_redeemed",
		Actor:     user.ID,
		Target:    req.PerkID,
		Result:    "success",
		Details:   string(redemption.Status),
	})
	return c.Status(fiber.StatusCreated).JSON(redemption)
}

func (s *Server) handleMyRedemptions(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return err
	}

	redemptions, err := s.store.RedemptionsByStudent(c.Context(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"redemptions": redemptions})
}

func (s *Server) handleAward(c *fiber.Ctx) error {
	var req awardRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.StudentID == "" || req.AchievementID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "student_id and achievement_id are required")
	}

	facultyID, _ := c.Locals(localsUserID).(string)
	award, err := s.svc.Granter.Award(c.Context(), facultyID, req.StudentID, req.AchievementID)
	if err != nil {
		return err
	}

	logging.Audit(logging.AuditEvent{
		Operation: "achievement_awarded",
		Actor:     facultyID,
		Target:    req.AchievementID,
		Result:    "success",
		Details:   string(award.Status),
	})
	return c.Status(fiber.StatusCreated).JSON(award)
}

func (s *Server) handleFacultyStats(c *fiber.Ctx) error {
	facultyID, _ := c.Locals(localsUserID).(string)
	stats, err := s.store.StatsForFaculty(c.Context(), facultyID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"stats": stats})
}

func (s *Server) handleRecentActivity(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 10)
	if limit < 1 || limit > 100 {
		limit = 10
	}

	awards, err := s.store.RecentAwards(c.Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"activities": awards})
}

func (s *Server) handleDashboardStats(c *fiber.Ctx) error {
	stats, err := s.svc.Aggregator.Stats(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

func (s *Server) handleAllRedemptions(c *fiber.Ctx) error {
	redemptions, err := s.store.AllRedemptions(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"redemptions": redemptions})
}
