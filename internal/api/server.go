package api

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/rewardhub/rewardhub/internal/ledger"
	"github.com/rewardhub/rewardhub/internal/metrics"
	"github.com/rewardhub/rewardhub/internal/rewards"
)

// StudentRegistrar is the chain surface wallet connection needs: best-effort
// on-chain registration of freshly connected wallets.
type StudentRegistrar interface {
	RegisterStudent(ctx context.Context, student common.Address) (string, error)
	IsStudentRegistered(ctx context.Context, student common.Address) bool
}

// Config tunes the HTTP server.
type Config struct {
	JWTSecret        string
	SessionExpiry    time.Duration
	ChallengeTimeout time.Duration
}

// Services bundles the domain services the handlers dispatch to.
type Services struct {
	Reconciler *rewards.Reconciler
	Redeemer   *rewards.Redeemer
	Granter    *rewards.Granter
	Aggregator *rewards.Aggregator
	Catalog    *rewards.Catalog
}

// Server is the HTTP surface of the platform.
type Server struct {
	app       *fiber.App
	store     *ledger.Store
	tokens    *TokenIssuer
	wallets   *ChallengeManager
	registrar StudentRegistrar
	svc       Services
}

// NewServer builds the server and registers all routes.
func NewServer(cfg Config, store *ledger.Store, svc Services, registrar StudentRegistrar, collector *metrics.Collector) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "rewardhub",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s := &Server{
		app:       app,
		store:     store,
		tokens:    NewTokenIssuer(cfg.JWTSecret, cfg.SessionExpiry),
		wallets:   NewChallengeManager(cfg.ChallengeTimeout),
		registrar: registrar,
		svc:       svc,
	}

	if collector != nil {
		app.Use(observe(collector))
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.handleHealth)

	api := s.app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", s.handleRegister)
	auth.Post("/login", s.handleLogin)

	wallet := api.Group("/wallet")
	wallet.Get("/nonce", s.handleWalletNonce)
	wallet.Post("/verify", s.requireAuth, s.handleWalletVerify)
	wallet.Post("/disconnect", s.requireAuth, s.handleWalletDisconnect)
	wallet.Get("/status", s.requireAuth, s.handleWalletStatus)
	wallet.Get("/balance", s.requireAuth, requireRole(ledger.RoleStudent), s.handleWalletBalance)

	api.Get("/achievements", s.requireAuth, s.handleListAchievements)
	api.Get("/perks", s.requireAuth, s.handleListPerks)

	api.Post("/redemptions", s.requireAuth, requireRole(ledger.RoleStudent), s.handleRedeem)
	api.Get("/redemptions/mine", s.requireAuth, requireRole(ledger.RoleStudent), s.handleMyRedemptions)

	faculty := api.Group("/faculty", s.requireAuth, requireRole(ledger.RoleFaculty, ledger.RoleAdmin))
	faculty.Post("/awards", s.handleAward)
	faculty.Get("/stats", s.handleFacultyStats)
	faculty.Get("/recent-activity", s.handleRecentActivity)

	admin := api.Group("/admin", s.requireAuth, requireRole(ledger.RoleAdmin))
	admin.Get("/dashboard-stats", s.handleDashboardStats)
	admin.Post("/achievements", s.handleCreateAchievement)
	admin.Put("/achievements/:id", s.handleUpdateAchievement)
	admin.Delete("/achievements/:id", s.handleDeactivateAchievement)
	admin.Post("/perks", s.handleCreatePerk)
	admin.Put("/perks/:id", s.handleUpdatePerk)
	admin.Delete("/perks/:id", s.handleDeactivatePerk)
	admin.Get("/redemptions", s.handleAllRedemptions)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops the server and the challenge sweep.
func (s *Server) Shutdown() error {
	s.wallets.Close()
	return s.app.Shutdown()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// errorHandler renders every error as a JSON envelope, mapping well-known
// domain errors to their status codes.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, ledger.ErrNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, rewards.ErrInsufficientBalance),
		errors.Is(err, rewards.ErrNoWallet),
		errors.Is(err, rewards.ErrPerkInactive),
		errors.Is(err, rewards.ErrAchievementInactive):
		code = fiber.StatusBadRequest
	}

	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
