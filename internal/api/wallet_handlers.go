package api

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/rewardhub/rewardhub/internal/logging"
)

type walletVerifyRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// handleWalletNonce issues the signing challenge for a wallet address.
func (s *Server) handleWalletNonce(c *fiber.Ctx) error {
	address := c.Query("address")
	if address == "" {
		return fiber.NewError(fiber.StatusBadRequest, "address query parameter is required")
	}

	message, err := s.wallets.CreateChallenge(address)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{"message": message})
}

// handleWalletVerify checks the challenge signature and binds the wallet to
// the authenticated account. Registration on-chain is best-effort; a dead
// provider must not block connecting a wallet.
func (s *Server) handleWalletVerify(c *fiber.Ctx) error {
	var req walletVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	challenge, ok := s.wallets.ChallengeFor(req.Address)
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "no outstanding challenge for this address; request a nonce first")
	}

	verified, err := s.wallets.VerifySignature(challenge.Message, req.Signature, req.Address)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}
	s.wallets.Consume(req.Address)

	user, err := s.currentUser(c)
	if err != nil {
		return err
	}
	if err := s.store.AttachWallet(c.Context(), user.ID, verified); err != nil {
		return fiber.NewError(fiber.StatusConflict, "wallet is already connected to another account")
	}

	if s.registrar != nil {
		addr := common.HexToAddress(verified)
		if !s.registrar.IsStudentRegistered(c.Context(), addr) {
			if _, err := s.registrar.RegisterStudent(c.Context(), addr); err != nil {
				logging.Warn("on-chain student registration failed",
					logging.Wallet(verified),
					logging.Err(err))
			}
		}
	}

	logging.Audit(logging.AuditEvent{
		Operation: "wallet_connected",
		Actor:     user.ID,
		Target:    verified,
		Result:    "success",
	})

	return c.JSON(fiber.Map{"wallet_address": verified, "verified": true})
}

func (s *Server) handleWalletDisconnect(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return err
	}
	if err := s.store.DetachWallet(c.Context(), user.ID); err != nil {
		return err
	}

	logging.Audit(logging.AuditEvent{
		Operation: "wallet_disconnected",
		Actor:     user.ID,
		Result:    "success",
	})
	return c.JSON(fiber.Map{"disconnected": true})
}

func (s *Server) handleWalletStatus(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return err
	}

	resp := fiber.Map{"connected": false}
	if user.WalletAddress != nil {
		resp["connected"] = true
		resp["wallet_address"] = *user.WalletAddress
		resp["verified"] = user.WalletVerified
	}
	return c.JSON(resp)
}

// handleWalletBalance returns the reconciled spendable balance.
func (s *Server) handleWalletBalance(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return err
	}

	view, err := s.svc.Reconciler.AvailableBalance(c.Context(), user)
	if err != nil {
		return err
	}
	return c.JSON(view)
}
