package api

import (
	"crypto/ecdsa"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signPersonal produces an EIP-191 personal_sign signature the way wallets do.
func signPersonal(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	hash := crypto.Keccak256Hash([]byte(prefixed))
	sig, err := crypto.Sign(hash.Bytes(), key)
	require.NoError(t, err)
	sig[64] += 27
	return "0x" + fmt.Sprintf("%x", sig)
}

func TestChallengeRoundTrip(t *testing.T) {
	m := NewChallengeManager(time.Minute)
	defer m.Close()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	message, err := m.CreateChallenge(address)
	require.NoError(t, err)
	assert.Contains(t, message, strings.ToLower(address))

	verified, err := m.VerifySignature(message, signPersonal(t, key, message), address)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), verified)
}

func TestChallengeStableUntilExpiry(t *testing.T) {
	m := NewChallengeManager(time.Minute)
	defer m.Close()

	first, err := m.CreateChallenge("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	second, err := m.CreateChallenge("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, first, second, "repeated requests must not rotate the nonce")
}

func TestChallengeConsumedAfterUse(t *testing.T) {
	m := NewChallengeManager(time.Minute)
	defer m.Close()

	addr := "0x1111111111111111111111111111111111111111"
	_, err := m.CreateChallenge(addr)
	require.NoError(t, err)

	_, ok := m.ChallengeFor(addr)
	require.True(t, ok)

	m.Consume(addr)
	_, ok = m.ChallengeFor(addr)
	assert.False(t, ok)
}

func TestVerifySignatureRejectsWrongSigner(t *testing.T) {
	m := NewChallengeManager(time.Minute)
	defer m.Close()

	signer, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	claimed := crypto.PubkeyToAddress(other.PublicKey).Hex()

	message, err := m.CreateChallenge(claimed)
	require.NoError(t, err)

	_, err = m.VerifySignature(message, signPersonal(t, signer, message), claimed)
	assert.Error(t, err)
}

func TestVerifySignatureRejectsMalformed(t *testing.T) {
	m := NewChallengeManager(time.Minute)
	defer m.Close()

	addr := "0x1111111111111111111111111111111111111111"
	_, err := m.VerifySignature("msg", "0xdead", addr)
	assert.Error(t, err)

	_, err = m.VerifySignature("msg", "not hex", addr)
	assert.Error(t, err)

	_, err = m.VerifySignature("msg", "0x00", "not an address")
	assert.Error(t, err)
}

func TestCleanupExpired(t *testing.T) {
	m := NewChallengeManager(time.Millisecond)
	defer m.Close()

	addr := "0x1111111111111111111111111111111111111111"
	_, err := m.CreateChallenge(addr)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	m.CleanupExpired()

	_, ok := m.ChallengeFor(addr)
	assert.False(t, ok)
}
