// Package chain connects to the network a deployment targets.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/eth/ethconfig"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/node"
	"github.com/ethereum/go-ethereum/params"

	"github.com/EngrMohsinAzam/OwlCoin/internal/network"
	"github.com/EngrMohsinAzam/OwlCoin/internal/signer"
)

// SimulatedChainID is used for the in-process network when the profile sets none.
const SimulatedChainID = 31337

// DevBalance is the genesis balance of every development account (10000 ETH).
var DevBalance = new(big.Int).Mul(big.NewInt(10_000), big.NewInt(params.Ether))

// Backend is the subset of an Ethereum client the deployer uses.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Dial opens a backend for the resolved network: an RPC connection, or a
// fresh in-process chain for simulated profiles.
func Dial(ctx context.Context, r *network.Resolved, logger *slog.Logger) (Backend, error) {
	if r.Simulated {
		chainID := r.ChainID
		if chainID == 0 {
			chainID = SimulatedChainID
		}
		logger.Info("starting in-process network",
			slog.String("network", r.Name),
			slog.Int64("chain_id", chainID),
			slog.Int("accounts", len(r.Keys)),
		)
		return NewSimulated(chainID, r.Keys)
	}

	logger.Info("connecting to network",
		slog.String("network", r.Name),
		slog.Int64("chain_id", r.ChainID),
	)
	client, err := ethclient.DialContext(ctx, r.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", r.Name, err)
	}
	return client, nil
}

// Simulated is an in-process chain that mines a block for every transaction.
type Simulated struct {
	simulated.Client
	backend *simulated.Backend
}

// NewSimulated starts an in-process chain with chainID whose genesis funds
// the accounts of keys with DevBalance each.
func NewSimulated(chainID int64, keys []string) (*Simulated, error) {
	alloc := make(types.GenesisAlloc, len(keys))
	for _, k := range keys {
		s, err := signer.NewLocalSigner(k, chainID)
		if err != nil {
			return nil, fmt.Errorf("dev account: %w", err)
		}
		alloc[s.Address()] = types.Account{Balance: new(big.Int).Set(DevBalance)}
	}

	backend := simulated.NewBackend(alloc, func(_ *node.Config, ethConf *ethconfig.Config) {
		cfg := *ethConf.Genesis.Config
		cfg.ChainID = big.NewInt(chainID)
		ethConf.Genesis.Config = &cfg
		ethConf.NetworkId = uint64(chainID)
	})

	return &Simulated{Client: backend.Client(), backend: backend}, nil
}

// SendTransaction submits tx and mines it immediately.
func (s *Simulated) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := s.Client.SendTransaction(ctx, tx); err != nil {
		return err
	}
	s.backend.Commit()
	return nil
}

// Close stops the chain.
func (s *Simulated) Close() {
	_ = s.backend.Close()
}

var (
	_ Backend = (*ethclient.Client)(nil)
	_ Backend = (*Simulated)(nil)
)
