package api

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rewardhub/rewardhub/internal/logging"
)

// ChallengeManager issues and verifies wallet ownership challenges. A student
// proves control of an address by signing a single-use nonce message; only
// then is the wallet bound to the account.
type ChallengeManager struct {
	challenges map[string]*Challenge
	mu         sync.RWMutex
	timeout    time.Duration
	quit       chan struct{}
	closeOnce  sync.Once
}

// Challenge is one outstanding signing request for an address.
type Challenge struct {
	Nonce     string
	Address   string
	Message   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewChallengeManager creates a manager and starts its expiry sweep.
func NewChallengeManager(timeout time.Duration) *ChallengeManager {
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	m := &ChallengeManager{
		challenges: make(map[string]*Challenge),
		timeout:    timeout,
		quit:       make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// Close stops the expiry sweep.
func (m *ChallengeManager) Close() {
	m.closeOnce.Do(func() { close(m.quit) })
}

// CreateChallenge issues a signing challenge for a wallet address. An
// unexpired existing challenge is returned as-is, so repeated requests
// cannot overwrite a nonce mid-flow.
func (m *ChallengeManager) CreateChallenge(address string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	address = strings.ToLower(address)
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid wallet address format")
	}

	if existing, ok := m.challenges[address]; ok && time.Now().Before(existing.ExpiresAt) {
		return existing.Message, nil
	}

	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonceHex := hex.EncodeToString(nonce)

	message := fmt.Sprintf("Sign this message to connect your wallet to RewardHub.\n\nWallet: %s\nNonce: %s\nTimestamp: %d",
		address, nonceHex, time.Now().Unix())

	m.challenges[address] = &Challenge{
		Nonce:     nonceHex,
		Address:   address,
		Message:   message,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(m.timeout),
	}

	logging.Debug("wallet challenge created",
		logging.Wallet(address),
		"expires_in", m.timeout.String(),
		logging.Component("api"))

	return message, nil
}

// VerifySignature recovers the signer of an EIP-191 personal_sign signature
// and checks it matches the claimed address. Returns the checksummed address.
func (m *ChallengeManager) VerifySignature(message, signature, claimedAddress string) (string, error) {
	claimedAddress = strings.ToLower(claimedAddress)
	if !common.IsHexAddress(claimedAddress) {
		return "", fmt.Errorf("invalid claimed address format")
	}

	sigBytes, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid signature format: %w", err)
	}
	if len(sigBytes) != 65 {
		return "", fmt.Errorf("invalid signature length: expected 65, got %d", len(sigBytes))
	}

	prefixedMessage := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	hash := crypto.Keccak256Hash([]byte(prefixedMessage))

	// personal_sign sets V to 27/28; recovery wants 0/1.
	if sigBytes[64] >= 27 {
		sigBytes[64] -= 27
	}

	pubKey, err := crypto.SigToPub(hash.Bytes(), sigBytes)
	if err != nil {
		return "", fmt.Errorf("failed to recover public key: %w", err)
	}

	recovered := crypto.PubkeyToAddress(*pubKey)
	if strings.ToLower(recovered.Hex()) != claimedAddress {
		logging.Warn("wallet signature mismatch",
			"claimed", claimedAddress,
			"recovered", strings.ToLower(recovered.Hex()),
			logging.Component("api"))
		return "", fmt.Errorf("signature does not match claimed address")
	}

	return recovered.Hex(), nil
}

// ChallengeFor returns the outstanding unexpired challenge for an address.
func (m *ChallengeManager) ChallengeFor(address string) (*Challenge, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.challenges[strings.ToLower(address)]
	if !ok || time.Now().After(c.ExpiresAt) {
		return nil, false
	}
	return c, true
}

// Consume removes the challenge for an address after a successful
// verification, making the nonce single-use.
func (m *ChallengeManager) Consume(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.challenges, strings.ToLower(address))
}

// CleanupExpired drops expired challenges.
func (m *ChallengeManager) CleanupExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for addr, c := range m.challenges {
		if now.After(c.ExpiresAt) {
			delete(m.challenges, addr)
		}
	}
}

func (m *ChallengeManager) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.quit:
			return
		case <-ticker.C:
			m.CleanupExpired()
		}
	}
}
