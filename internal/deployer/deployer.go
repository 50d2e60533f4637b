// Package deployer executes deployment plans against one network.
package deployer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/EngrMohsinAzam/OwlCoin/internal/artifact"
	"github.com/EngrMohsinAzam/OwlCoin/internal/chain"
	"github.com/EngrMohsinAzam/OwlCoin/internal/journal"
	"github.com/EngrMohsinAzam/OwlCoin/internal/module"
	"github.com/EngrMohsinAzam/OwlCoin/internal/network"
	"github.com/EngrMohsinAzam/OwlCoin/internal/signer"
)

// Sentinel errors
var (
	ErrChainIDMismatch = errors.New("deployer: chain id mismatch")
	ErrNoBalance       = errors.New("deployer: deployer account has no balance")
	ErrReverted        = errors.New("deployer: contract creation reverted")
	ErrNoAccount       = errors.New("deployer: no deployer account")
	ErrArgsChanged     = errors.New("deployer: constructor arguments differ from the recorded deployment")
)

// FallbackGasLimit is used when gas estimation fails.
const FallbackGasLimit uint64 = 10_000_000

// Config wires a Deployer.
type Config struct {
	Network   *network.Resolved
	Backend   chain.Backend
	Artifacts artifact.Source
	// Journal records deployed futures. Nil, or a simulated network, disables it.
	Journal journal.Store
	// Signer overrides the signer built from the network's first key.
	Signer signer.TransactionSigner
	// Reset discards the network's journal before deploying.
	Reset  bool
	Logger *slog.Logger
}

// Deployer sends the contract-creation transactions of a plan.
type Deployer struct {
	network   *network.Resolved
	backend   chain.Backend
	artifacts artifact.Source
	journal   journal.Store
	signer    signer.TransactionSigner
	reset     bool
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Deployer.
func New(cfg Config) *Deployer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store := cfg.Journal
	if cfg.Network.Simulated {
		store = nil
	}
	return &Deployer{
		network:   cfg.Network,
		backend:   cfg.Backend,
		artifacts: cfg.Artifacts,
		journal:   store,
		signer:    cfg.Signer,
		reset:     cfg.Reset,
		logger:    logger.With(slog.String("network", cfg.Network.Name)),
		now:       time.Now,
	}
}

// Result describes the outcome of one Deploy call.
type Result struct {
	ModuleID string `json:"moduleId"`
	Network  string `json:"network"`
	ChainID  int64  `json:"chainId"`
	RunID    string `json:"runId"`
	Deployer string `json:"deployer"`
	// Contracts holds a record for every future of the plan, in order.
	Contracts []*journal.Record `json:"contracts"`
	// Skipped lists futures found in the journal.
	Skipped []string `json:"skipped,omitempty"`
	// Addresses maps the names the module exposes to contract addresses.
	Addresses map[string]string `json:"addresses"`
}

// Deploy executes every future of plan in order. The network timeout, when
// set, bounds the whole call.
func (d *Deployer) Deploy(ctx context.Context, plan *module.Plan) (*Result, error) {
	if d.network.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.network.Timeout)
		defer cancel()
	}

	chainID, err := d.checkChain(ctx)
	if err != nil {
		return nil, err
	}

	s, err := d.signerFor(chainID)
	if err != nil {
		return nil, err
	}

	if err := d.checkBalance(ctx, s.Address()); err != nil {
		return nil, err
	}

	if d.reset && d.journal != nil {
		d.logger.Info("resetting journal", slog.Int64("chain_id", chainID.Int64()))
		if err := d.journal.Reset(ctx, chainID.Int64()); err != nil {
			return nil, err
		}
	}

	result := &Result{
		ModuleID:  plan.ModuleID,
		Network:   d.network.Name,
		ChainID:   chainID.Int64(),
		RunID:     uuid.NewString(),
		Deployer:  s.Address().Hex(),
		Addresses: make(map[string]string, len(plan.Results)),
	}

	byFuture := make(map[string]*journal.Record, len(plan.Futures))
	for _, f := range plan.Futures {
		c, err := d.prepare(f)
		if err != nil {
			return result, fmt.Errorf("%s: %w", f.ID, err)
		}

		if rec, ok := d.recorded(ctx, chainID.Int64(), f.ID); ok {
			if rec.ArgsHash != "" && rec.ArgsHash != c.argsHash {
				return result, fmt.Errorf("%s: %w: %s was deployed with arguments %s, now %s; reset the journal to deploy again",
					f.ID, ErrArgsChanged, rec.Address, rec.ArgsHash, c.argsHash)
			}
			d.logger.Info("already deployed, skipping",
				slog.String("future", f.ID),
				slog.String("address", rec.Address),
			)
			result.Contracts = append(result.Contracts, rec)
			result.Skipped = append(result.Skipped, f.ID)
			byFuture[f.ID] = rec
			continue
		}

		rec, err := d.deployFuture(ctx, s, chainID, result.RunID, f, c)
		if err != nil {
			return result, fmt.Errorf("%s: %w", f.ID, err)
		}
		result.Contracts = append(result.Contracts, rec)
		byFuture[f.ID] = rec

		if d.journal != nil {
			if err := d.journal.Put(ctx, rec); err != nil {
				return result, fmt.Errorf("%s: record deployment: %w", f.ID, err)
			}
		}
	}

	for name, f := range plan.Results {
		if rec, ok := byFuture[f.ID]; ok {
			result.Addresses[name] = rec.Address
		}
	}

	return result, nil
}

func (d *Deployer) checkChain(ctx context.Context) (*big.Int, error) {
	chainID, err := d.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	if d.network.ChainID != 0 && chainID.Int64() != d.network.ChainID {
		return nil, fmt.Errorf("%w: %s expects %d, node reports %s",
			ErrChainIDMismatch, d.network.Name, d.network.ChainID, chainID)
	}
	d.logger.Info("connected", slog.Int64("chain_id", chainID.Int64()))
	return chainID, nil
}

func (d *Deployer) signerFor(chainID *big.Int) (signer.TransactionSigner, error) {
	if d.signer != nil {
		if d.signer.ChainID().Cmp(chainID) != 0 {
			return nil, fmt.Errorf("%w: signer uses %s, node reports %s",
				ErrChainIDMismatch, d.signer.ChainID(), chainID)
		}
		return d.signer, nil
	}
	if len(d.network.Keys) == 0 {
		return nil, fmt.Errorf("%w on %s", ErrNoAccount, d.network.Name)
	}
	return signer.NewLocalSigner(d.network.Keys[0], chainID.Int64())
}

func (d *Deployer) checkBalance(ctx context.Context, account common.Address) error {
	balance, err := d.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	d.logger.Info("deployer account",
		slog.String("address", account.Hex()),
		slog.String("balance_wei", balance.String()),
	)
	if balance.Sign() == 0 {
		return fmt.Errorf("%w: %s", ErrNoBalance, account.Hex())
	}
	return nil
}

func (d *Deployer) recorded(ctx context.Context, chainID int64, futureID string) (*journal.Record, bool) {
	if d.journal == nil {
		return nil, false
	}
	rec, err := d.journal.Get(ctx, chainID, futureID)
	if err != nil {
		if !errors.Is(err, journal.ErrNotFound) {
			d.logger.Warn("journal lookup failed",
				slog.String("future", futureID),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}
	return rec, true
}

// creation is the encoded contract-creation payload of a future.
type creation struct {
	data     []byte
	argsHash string
}

// prepare loads the artifact of f and encodes its constructor call.
func (d *Deployer) prepare(f *module.ContractFuture) (*creation, error) {
	a, err := d.artifacts.Load(f.Contract)
	if err != nil {
		return nil, err
	}

	code, err := a.Bytecode.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.ContractName, err)
	}
	args, err := a.EncodeConstructor(f.ResolvedArgs()...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.ContractName, err)
	}

	return &creation{
		data:     append(code, args...),
		argsHash: crypto.Keccak256Hash(args).Hex(),
	}, nil
}

func (d *Deployer) deployFuture(
	ctx context.Context,
	s signer.TransactionSigner,
	chainID *big.Int,
	runID string,
	f *module.ContractFuture,
	c *creation,
) (*journal.Record, error) {
	data := c.data

	nonce, err := d.backend.PendingNonceAt(ctx, s.Address())
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}

	gasPrice, err := d.gasPrice(ctx)
	if err != nil {
		return nil, err
	}

	gasLimit := d.gasLimit(ctx, s.Address(), gasPrice, data)

	d.logger.Info("deploying contract",
		slog.String("future", f.ID),
		slog.String("contract", f.Contract),
		slog.Uint64("nonce", nonce),
		slog.Uint64("gas_limit", gasLimit),
		slog.String("gas_price", gasPrice.String()),
	)

	tx := types.NewContractCreation(nonce, big.NewInt(0), gasLimit, gasPrice, data)

	signedTx, err := s.SignTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	if err := d.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, d.backend, signedTx)
	if err != nil {
		return nil, fmt.Errorf("wait for receipt of %s: %w", signedTx.Hash().Hex(), err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: tx %s", ErrReverted, signedTx.Hash().Hex())
	}

	d.logger.Info("contract deployed",
		slog.String("future", f.ID),
		slog.String("address", receipt.ContractAddress.Hex()),
		slog.String("tx_hash", signedTx.Hash().Hex()),
		slog.Uint64("gas_used", receipt.GasUsed),
	)

	return &journal.Record{
		RunID:        runID,
		DeploymentID: journal.DeploymentID(chainID.Int64()),
		ChainID:      chainID.Int64(),
		FutureID:     f.ID,
		ModuleID:     f.Module,
		Contract:     f.Contract,
		Address:      receipt.ContractAddress.Hex(),
		TxHash:       signedTx.Hash().Hex(),
		BlockNumber:  receipt.BlockNumber.Uint64(),
		DeployedAt:   d.now().UTC(),
		ArgsHash:     c.argsHash,
	}, nil
}

func (d *Deployer) gasPrice(ctx context.Context) (*big.Int, error) {
	if d.network.GasPrice > 0 {
		return new(big.Int).SetUint64(d.network.GasPrice), nil
	}
	price, err := d.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get gas price: %w", err)
	}
	return price, nil
}

func (d *Deployer) gasLimit(ctx context.Context, from common.Address, gasPrice *big.Int, data []byte) uint64 {
	if d.network.GasLimit > 0 {
		return d.network.GasLimit
	}

	estimate, err := d.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     from,
		GasPrice: gasPrice,
		Value:    big.NewInt(0),
		Data:     data,
	})
	if err != nil {
		d.logger.Warn("gas estimation failed, using default",
			slog.Uint64("gas_limit", FallbackGasLimit),
			slog.String("error", err.Error()),
		)
		return FallbackGasLimit
	}
	return estimate * 120 / 100
}
