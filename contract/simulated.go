package contract

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"vrfGameServer/crypto"
)

type simTx struct {
	script  Script
	block   uint64
	polls   int
	reverts bool
}

type simScore struct {
	user     string
	gameType string
	culture  string
	score    uint64
	seq      int
}

type simToken struct {
	metadata string
	tokenID  uint64
}

// SimulatedChain is an in-process Runtime that follows the contract's rules:
// reveals must open their commitment, seeds mix the secret with the block hash.
// Transactions seal after SealAfter polls.
type SimulatedChain struct {
	mu      sync.Mutex
	address string
	height  uint64
	txs     map[string]*simTx

	commits  map[string]common.Hash
	results  map[string]uint64
	progress map[string]string
	stats    map[string]string
	scores   []simScore
	tokens   map[string][]simToken
	minted   map[string]bool
	nextTok  uint64

	// Test hooks
	SealAfter     int              // polls returning pending before a tx seals
	FailSubmit    map[Script]error // Submit returns this error
	RevertScripts map[Script]bool  // tx seals with failure
	FailQuery     map[Script]error // Query returns this error
	NeverSeal     map[Script]bool  // tx stays pending forever
}

func NewSimulatedChain(address string) *SimulatedChain {
	return &SimulatedChain{
		address:       address,
		txs:           map[string]*simTx{},
		commits:       map[string]common.Hash{},
		results:       map[string]uint64{},
		progress:      map[string]string{},
		stats:         map[string]string{},
		tokens:        map[string][]simToken{},
		minted:        map[string]bool{},
		FailSubmit:    map[Script]error{},
		RevertScripts: map[Script]bool{},
		FailQuery:     map[Script]error{},
		NeverSeal:     map[Script]bool{},
	}
}

func (c *SimulatedChain) Address() string { return c.address }

func (c *SimulatedChain) Submit(ctx context.Context, script Script, args ...any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.FailSubmit[script]; err != nil {
		return "", err
	}

	c.height++
	txID := ethcrypto.Keccak256Hash(
		[]byte(script),
		[]byte(fmt.Sprint(args...)),
		binary.BigEndian.AppendUint64(nil, c.height),
	).Hex()

	tx := &simTx{script: script, block: c.height, reverts: c.RevertScripts[script]}
	c.txs[txID] = tx
	if tx.reverts {
		return txID, nil
	}

	if err := c.apply(script, args); err != nil {
		// Bad arguments or a failed check revert the transaction on chain.
		tx.reverts = true
	}
	return txID, nil
}

func (c *SimulatedChain) apply(script Script, args []any) error {
	switch script {
	case ScriptCommit:
		id, commitment, err := stringAndBytes32(args)
		if err != nil {
			return err
		}
		if _, exists := c.commits[id]; exists {
			return fmt.Errorf("request %s already committed", id)
		}
		c.commits[id] = commitment

	case ScriptReveal:
		id, secret, err := stringAndBytes32(args)
		if err != nil {
			return err
		}
		commitment, ok := c.commits[id]
		if !ok {
			return fmt.Errorf("request %s not committed", id)
		}
		if _, done := c.results[id]; done {
			return fmt.Errorf("request %s already revealed", id)
		}
		secretHex := hexutil.Encode(secret[:])
		if !crypto.VerifyCommitment(secretHex, id, commitment) {
			return fmt.Errorf("reveal does not match commitment")
		}
		seed, err := crypto.RevealSeed(secretHex, id, c.blockHash(c.height))
		if err != nil {
			return err
		}
		c.results[id] = seed

	case ScriptSaveProgress:
		s, err := strings3(args)
		if err != nil {
			return err
		}
		c.progress[s[0]+"|"+s[1]] = s[2]

	case ScriptSubmitScore:
		if len(args) != 4 {
			return fmt.Errorf("submitScore wants 4 args")
		}
		user, ok1 := args[0].(string)
		gameType, ok2 := args[1].(string)
		score, ok3 := args[2].(*big.Int)
		culture, ok4 := args[3].(string)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return fmt.Errorf("submitScore: bad argument types")
		}
		c.scores = append(c.scores, simScore{user, gameType, culture, score.Uint64(), len(c.scores)})

	case ScriptMintAchievement:
		s, err := strings3(args)
		if err != nil {
			return err
		}
		key := s[0] + "|" + s[1]
		if c.minted[key] {
			return fmt.Errorf("achievement %s already minted", s[1])
		}
		c.minted[key] = true
		c.nextTok++
		c.tokens[s[0]] = append(c.tokens[s[0]], simToken{metadata: s[2], tokenID: c.nextTok})

	case ScriptSaveStats:
		if len(args) != 2 {
			return fmt.Errorf("saveStats wants 2 args")
		}
		user, ok1 := args[0].(string)
		data, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return fmt.Errorf("saveStats: bad argument types")
		}
		c.stats[user] = data

	default:
		return fmt.Errorf("unknown transaction script %s", script)
	}
	return nil
}

func (c *SimulatedChain) PollSeal(ctx context.Context, txID string) (SealStatus, error) {
	if err := ctx.Err(); err != nil {
		return SealUnknown, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, ok := c.txs[txID]
	if !ok {
		return SealUnknown, fmt.Errorf("unknown transaction %s", txID)
	}
	if c.NeverSeal[tx.script] {
		return SealPending, nil
	}
	tx.polls++
	if tx.polls <= c.SealAfter {
		return SealPending, nil
	}
	if tx.reverts {
		return SealFailed, nil
	}
	return SealSealed, nil
}

func (c *SimulatedChain) Query(ctx context.Context, script Script, args ...any) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.FailQuery[script]; err != nil {
		return nil, err
	}

	switch script {
	case ScriptRandomResult:
		id, err := oneString(args)
		if err != nil {
			return nil, err
		}
		seed, ok := c.results[id]
		return []any{new(big.Int).SetUint64(seed), ok}, nil

	case ScriptProgressOf:
		if len(args) != 2 {
			return nil, fmt.Errorf("progressOf wants 2 args")
		}
		user, _ := args[0].(string)
		gameType, _ := args[1].(string)
		return []any{c.progress[user+"|"+gameType]}, nil

	case ScriptPlayerStats:
		user, err := oneString(args)
		if err != nil {
			return nil, err
		}
		return []any{c.stats[user]}, nil

	case ScriptAchievementsOf:
		user, err := oneString(args)
		if err != nil {
			return nil, err
		}
		meta := []string{}
		ids := []*big.Int{}
		for _, t := range c.tokens[user] {
			meta = append(meta, t.metadata)
			ids = append(ids, new(big.Int).SetUint64(t.tokenID))
		}
		return []any{meta, ids}, nil

	case ScriptTopScores:
		if len(args) != 3 {
			return nil, fmt.Errorf("topScores wants 3 args")
		}
		gameType, _ := args[0].(string)
		culture, _ := args[1].(string)
		limit, ok := args[2].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("topScores: bad limit")
		}
		return c.topScores(gameType, culture, int(limit.Int64())), nil
	}
	return nil, fmt.Errorf("unknown query script %s", script)
}

func (c *SimulatedChain) topScores(gameType, culture string, limit int) []any {
	rows := make([]simScore, 0, len(c.scores))
	for _, s := range c.scores {
		if s.gameType != gameType {
			continue
		}
		if culture != "" && s.culture != culture {
			continue
		}
		rows = append(rows, s)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].score != rows[j].score {
			return rows[i].score > rows[j].score
		}
		return rows[i].seq < rows[j].seq
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	users := make([]string, len(rows))
	scores := make([]*big.Int, len(rows))
	for i, r := range rows {
		users[i] = r.user
		scores[i] = new(big.Int).SetUint64(r.score)
	}
	return []any{users, scores}
}

func (c *SimulatedChain) BlockHeight(ctx context.Context, txID string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx, ok := c.txs[txID]
	if !ok {
		return 0, fmt.Errorf("unknown transaction %s", txID)
	}
	return tx.block, nil
}

func (c *SimulatedChain) blockHash(n uint64) common.Hash {
	return ethcrypto.Keccak256Hash([]byte(c.address), binary.BigEndian.AppendUint64(nil, n))
}

func oneString(args []any) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("want 1 arg, got %d", len(args))
	}
	s, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("want string arg, got %T", args[0])
	}
	return s, nil
}

func strings3(args []any) ([3]string, error) {
	var out [3]string
	if len(args) != 3 {
		return out, fmt.Errorf("want 3 args, got %d", len(args))
	}
	for i, a := range args {
		s, ok := a.(string)
		if !ok {
			return out, fmt.Errorf("arg %d: want string, got %T", i, a)
		}
		out[i] = s
	}
	return out, nil
}

func stringAndBytes32(args []any) (string, [32]byte, error) {
	if len(args) != 2 {
		return "", [32]byte{}, fmt.Errorf("want 2 args, got %d", len(args))
	}
	id, ok := args[0].(string)
	if !ok {
		return "", [32]byte{}, fmt.Errorf("want string request id, got %T", args[0])
	}
	b, ok := args[1].([32]byte)
	if !ok {
		return "", [32]byte{}, fmt.Errorf("want bytes32, got %T", args[1])
	}
	return id, b, nil
}
