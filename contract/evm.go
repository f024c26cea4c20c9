package contract

import (
	"context"
	"crypto/ecdsa"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"vrfGameServer/config"
)

//go:embed MemoryGame.json
var embeddedABI []byte

// EVMConfig holds what is needed to reach the contract on an EVM chain.
type EVMConfig struct {
	RPCURL      string
	ChainID     int64
	Address     string
	PrivateKey  string
	ABIPath     string // optional override of the embedded ABI
	GasLimit    uint64 // fallback when estimation fails
	MaxGasPrice *big.Int
}

// EVMRuntime implements Runtime with go-ethereum. The server key signs and
// pays for every transaction.
type EVMRuntime struct {
	Client      *ethclient.Client
	Contract    *bind.BoundContract
	ABI         abi.ABI
	ContractAt  common.Address
	PrivateKey  *ecdsa.PrivateKey
	FromAddress common.Address
	chainID     *big.Int
	cfg         EVMConfig
	nonces      nonceTracker
}

// nonceTracker serializes sends from the one server key. It follows the
// node's pending nonce but never hands out a nonce it already used, since
// the pool may not have caught up with the previous send yet.
type nonceTracker struct {
	mu     sync.Mutex
	next   uint64
	synced bool
}

// send runs fn with the next nonce while holding the lock. A failed send
// drops the local count so the next one resyncs from the node.
func (n *nonceTracker) send(ctx context.Context, pending func(context.Context) (uint64, error), fn func(nonce uint64) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	nonce, err := pending(ctx)
	if err != nil {
		return fmt.Errorf("failed to get nonce: %w", err)
	}
	if n.synced && n.next > nonce {
		nonce = n.next
	}
	if err := fn(nonce); err != nil {
		n.synced = false
		return err
	}
	n.next, n.synced = nonce+1, true
	return nil
}

// ABIFile structure
type ABIFile struct {
	ABI json.RawMessage `json:"abi"`
}

// LoadABI parses an {"abi": [...]} artifact. An empty path loads the embedded one.
func LoadABI(path string) (abi.ABI, error) {
	raw := embeddedABI
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return abi.ABI{}, fmt.Errorf("failed to read ABI file: %w", err)
		}
		raw = b
	}

	var f ABIFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI JSON: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(string(f.ABI)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse contract ABI: %w", err)
	}
	return parsed, nil
}

// NewEVMRuntime dials the RPC endpoint and binds the contract.
func NewEVMRuntime(cfg EVMConfig) (*EVMRuntime, error) {
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("SERVER_PRIVATE_KEY environment variable not set")
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = config.DefaultGasLimit
	}
	if cfg.MaxGasPrice == nil {
		cfg.MaxGasPrice = big.NewInt(config.MaxGasPrice)
	}

	contractABI, err := LoadABI(cfg.ABIPath)
	if err != nil {
		return nil, err
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	fromAddress := crypto.PubkeyToAddress(privateKey.PublicKey)

	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	contractAddress := common.HexToAddress(cfg.Address)
	bound := bind.NewBoundContract(contractAddress, contractABI, client, client, client)

	log.Printf("✅ Contract client initialized - Address: %s, Signer: %s", contractAddress.Hex(), fromAddress.Hex())

	return &EVMRuntime{
		Client:      client,
		Contract:    bound,
		ABI:         contractABI,
		ContractAt:  contractAddress,
		PrivateKey:  privateKey,
		FromAddress: fromAddress,
		chainID:     big.NewInt(cfg.ChainID),
		cfg:         cfg,
	}, nil
}

// Submit signs and sends a transaction calling script. It returns as soon as
// the transaction is in the pool; use WaitForSeal for finality.
func (r *EVMRuntime) Submit(ctx context.Context, script Script, args ...any) (string, error) {
	method := string(script)
	if _, ok := r.ABI.Methods[method]; !ok {
		return "", fmt.Errorf("abi does not contain %s", method)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(r.PrivateKey, r.chainID)
	if err != nil {
		return "", fmt.Errorf("failed to create transactor: %w", err)
	}
	auth.Context = ctx
	auth.Value = big.NewInt(0)

	gasPrice, err := r.Client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get gas price: %w", err)
	}
	if r.cfg.MaxGasPrice != nil && gasPrice.Cmp(r.cfg.MaxGasPrice) > 0 {
		gasPrice = r.cfg.MaxGasPrice
	}
	auth.GasPrice = gasPrice

	input, err := r.ABI.Pack(method, args...)
	if err != nil {
		return "", fmt.Errorf("failed to pack input: %w", err)
	}

	gasLimit, err := r.Client.EstimateGas(ctx, ethereum.CallMsg{
		From: r.FromAddress,
		To:   &r.ContractAt,
		Data: input,
	})
	if err != nil {
		log.Printf("⚠️ Gas estimation failed for %s, using default: %v", method, err)
		auth.GasLimit = r.cfg.GasLimit
	} else {
		auth.GasLimit = gasLimit + (gasLimit * config.GasEstimateBuffer / 100)
	}

	// Orchestrator rounds and adapter writes share the signer; nonce read and
	// send must not interleave.
	var tx *types.Transaction
	err = r.nonces.send(ctx, r.pendingNonce, func(nonce uint64) error {
		auth.Nonce = new(big.Int).SetUint64(nonce)
		var sendErr error
		tx, sendErr = r.Contract.Transact(auth, method, args...)
		return sendErr
	})
	if err != nil {
		log.Printf("❌ %s failed: %v", method, err)
		return "", err
	}

	log.Printf("📤 %s tx sent: %s", method, tx.Hash().Hex())
	return tx.Hash().Hex(), nil
}

func (r *EVMRuntime) pendingNonce(ctx context.Context) (uint64, error) {
	return r.Client.PendingNonceAt(ctx, r.FromAddress)
}

// PollSeal reads the receipt. A missing receipt means the transaction is
// still pending.
func (r *EVMRuntime) PollSeal(ctx context.Context, txID string) (SealStatus, error) {
	receipt, err := r.Client.TransactionReceipt(ctx, common.HexToHash(txID))
	if errors.Is(err, ethereum.NotFound) {
		return SealPending, nil
	}
	if err != nil {
		return SealUnknown, fmt.Errorf("failed to get receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return SealFailed, nil
	}
	return SealSealed, nil
}

func (r *EVMRuntime) Query(ctx context.Context, script Script, args ...any) ([]any, error) {
	var out []any
	if err := r.Contract.Call(&bind.CallOpts{Context: ctx}, &out, string(script), args...); err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", script, err)
	}
	return out, nil
}

func (r *EVMRuntime) BlockHeight(ctx context.Context, txID string) (uint64, error) {
	receipt, err := r.Client.TransactionReceipt(ctx, common.HexToHash(txID))
	if err != nil {
		return 0, fmt.Errorf("failed to get receipt: %w", err)
	}
	return receipt.BlockNumber.Uint64(), nil
}

func (r *EVMRuntime) Address() string {
	return r.ContractAt.Hex()
}

// Close closes the client connection
func (r *EVMRuntime) Close() {
	r.Client.Close()
}
