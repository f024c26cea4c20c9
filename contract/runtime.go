// Package contract is the boundary to the chain that hosts the VRF consumer,
// leaderboard and achievement contract.
package contract

import (
	"context"
	"fmt"
	"time"
)

// Script names a contract entry point. Callers treat scripts as opaque and
// pass ABI-typed arguments: string, [32]byte and *big.Int.
type Script string

const (
	ScriptCommit          Script = "commit"          // (requestId string, commitment bytes32)
	ScriptReveal          Script = "reveal"          // (requestId string, secret bytes32)
	ScriptRandomResult    Script = "randomResult"    // (requestId string) -> (seed uint256, fulfilled bool)
	ScriptSaveProgress    Script = "saveProgress"    // (userId, gameType, data string)
	ScriptProgressOf      Script = "progressOf"      // (userId, gameType string) -> (data string)
	ScriptSubmitScore     Script = "submitScore"     // (userId, gameType string, score uint256, culture string)
	ScriptTopScores       Script = "topScores"       // (gameType, culture string, limit uint256) -> (users string[], scores uint256[])
	ScriptMintAchievement Script = "mintAchievement" // (userId, achievementId, metadata string)
	ScriptAchievementsOf  Script = "achievementsOf"  // (userId string) -> (metadata string[], tokenIds uint256[])
	ScriptSaveStats       Script = "saveStats"       // (userId, data string)
	ScriptPlayerStats     Script = "playerStats"     // (userId string) -> (data string)
)

type SealStatus int

const (
	SealUnknown SealStatus = iota
	SealPending
	SealSealed
	SealFailed
)

func (s SealStatus) String() string {
	switch s {
	case SealPending:
		return "pending"
	case SealSealed:
		return "sealed"
	case SealFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Runtime submits transactions, polls them to finality and runs read-only queries.
type Runtime interface {
	Submit(ctx context.Context, script Script, args ...any) (txID string, err error)
	PollSeal(ctx context.Context, txID string) (SealStatus, error)
	Query(ctx context.Context, script Script, args ...any) ([]any, error)
	BlockHeight(ctx context.Context, txID string) (uint64, error)
	Address() string
}

// ErrSealTimeout is returned when a transaction is still pending after the
// last poll attempt.
type ErrSealTimeout struct {
	TxID     string
	Attempts int
}

func (e *ErrSealTimeout) Error() string {
	return fmt.Sprintf("transaction %s not sealed after %d attempts", e.TxID, e.Attempts)
}

// ErrTxFailed is returned when a transaction was sealed with a failure status.
type ErrTxFailed struct {
	TxID string
}

func (e *ErrTxFailed) Error() string {
	return fmt.Sprintf("transaction %s failed", e.TxID)
}

// WaitForSeal polls txID every interval, at most attempts times, until it is
// sealed. Poll errors are treated as pending; only the attempt budget and
// ctx end the wait.
func WaitForSeal(ctx context.Context, rt Runtime, txID string, interval time.Duration, attempts int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for i := 0; i < attempts; i++ {
		status, err := rt.PollSeal(ctx, txID)
		switch {
		case err != nil:
			lastErr = err
		case status == SealSealed:
			return nil
		case status == SealFailed:
			return &ErrTxFailed{TxID: txID}
		}

		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	if lastErr != nil {
		return fmt.Errorf("%w (last poll error: %v)", &ErrSealTimeout{TxID: txID, Attempts: attempts}, lastErr)
	}
	return &ErrSealTimeout{TxID: txID, Attempts: attempts}
}

// SubmitAndWait submits script and blocks until the transaction is sealed.
func SubmitAndWait(ctx context.Context, rt Runtime, interval time.Duration, attempts int, script Script, args ...any) (string, error) {
	txID, err := rt.Submit(ctx, script, args...)
	if err != nil {
		return "", fmt.Errorf("failed to submit %s: %w", script, err)
	}
	if err := WaitForSeal(ctx, rt, txID, interval, attempts); err != nil {
		return txID, fmt.Errorf("failed to seal %s: %w", script, err)
	}
	return txID, nil
}
