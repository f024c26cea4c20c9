// Package crypto holds the commit-reveal primitives used by the VRF
// orchestrator and the simulated chain.
package crypto

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"vrfGameServer/config"
)

const SecretSize = 32

// GenerateSecret returns a fresh 32-byte secret as 0x-prefixed hex.
func GenerateSecret() (string, error) {
	b := make([]byte, SecretSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hexutil.Encode(b), nil
}

// Commitment is keccak256(secret || requestID). Binding the request id stops
// a commitment from being replayed against another request.
func Commitment(secretHex, requestID string) (common.Hash, error) {
	secret, err := decodeSecret(secretHex)
	if err != nil {
		return common.Hash{}, err
	}
	return ethcrypto.Keccak256Hash(secret, []byte(requestID)), nil
}

// VerifyCommitment checks that secretHex opens commitment for requestID.
func VerifyCommitment(secretHex, requestID string, commitment common.Hash) bool {
	h, err := Commitment(secretHex, requestID)
	if err != nil {
		return false
	}
	return h == commitment
}

// RevealSeed mixes the revealed secret with chain entropy (a block hash)
// into a seed. Neither party controls both inputs.
func RevealSeed(secretHex, requestID string, entropy common.Hash) (uint64, error) {
	secret, err := decodeSecret(secretHex)
	if err != nil {
		return 0, err
	}
	h := ethcrypto.Keccak256(secret, []byte(requestID), entropy.Bytes())
	return binary.BigEndian.Uint64(h[:8]), nil
}

// RandomUint64 draws a seed from the OS CSPRNG.
func RandomUint64() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// NewRequestID returns "vrf_<unix-ms>_<suffix>".
func NewRequestID(now time.Time) string {
	return fmt.Sprintf("%s%d_%s", config.RequestIDPrefix, now.UnixMilli(), shortID())
}

// NewSessionID returns "session_<unix-ms>_<suffix>".
func NewSessionID(now time.Time) string {
	return fmt.Sprintf("%s%d_%s", config.SessionIDPrefix, now.UnixMilli(), shortID())
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}

func decodeSecret(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid secret: %w", err)
	}
	if len(b) != SecretSize {
		return nil, fmt.Errorf("invalid secret: want %d bytes, got %d", SecretSize, len(b))
	}
	return b, nil
}
