// Package journal persists the contracts a deployment has created so a
// later run on the same chain can skip them.
package journal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// Sentinel errors
var (
	ErrNotFound      = errors.New("journal: record not found")
	ErrUnknownDriver = errors.New("journal: unknown driver")
	ErrInvalidRecord = errors.New("journal: invalid record")
)

// Drivers
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// DefaultDir matches the Ignition deployments directory.
const DefaultDir = "ignition/deployments"

// Record is one deployed contract.
type Record struct {
	RunID        string    `json:"runId" yaml:"run_id"`
	DeploymentID string    `json:"deploymentId" yaml:"deployment_id"`
	ChainID      int64     `json:"chainId" yaml:"chain_id"`
	FutureID     string    `json:"futureId" yaml:"future_id"`
	ModuleID     string    `json:"moduleId" yaml:"module_id"`
	Contract     string    `json:"contractName" yaml:"contract"`
	Address      string    `json:"address" yaml:"address"`
	TxHash       string    `json:"txHash" yaml:"tx_hash"`
	BlockNumber  uint64    `json:"blockNumber" yaml:"block_number"`
	DeployedAt   time.Time `json:"deployedAt" yaml:"deployed_at"`
	// ArgsHash is the keccak256 of the ABI-encoded constructor arguments.
	// Records written before it existed leave it empty.
	ArgsHash string `json:"argsHash,omitempty" yaml:"args_hash,omitempty"`
}

func (r *Record) validate() error {
	switch {
	case r.ChainID <= 0:
		return fmt.Errorf("%w: chain id %d", ErrInvalidRecord, r.ChainID)
	case r.FutureID == "":
		return fmt.Errorf("%w: missing future id", ErrInvalidRecord)
	case r.Address == "":
		return fmt.Errorf("%w: %s has no address", ErrInvalidRecord, r.FutureID)
	}
	return nil
}

// DeploymentID names the journal of one chain.
func DeploymentID(chainID int64) string {
	return fmt.Sprintf("chain-%d", chainID)
}

// Store persists records keyed by chain id and future id.
type Store interface {
	// Get returns the record of futureID on chainID, or ErrNotFound.
	Get(ctx context.Context, chainID int64, futureID string) (*Record, error)
	// Put inserts or replaces a record.
	Put(ctx context.Context, rec *Record) error
	// List returns the records of chainID in deployment order. Zero lists every chain.
	List(ctx context.Context, chainID int64) ([]*Record, error)
	// Reset removes every record of chainID.
	Reset(ctx context.Context, chainID int64) error
	Close() error
}

// Config selects and configures a store.
type Config struct {
	Driver string `mapstructure:"driver" json:"driver" yaml:"driver"`
	Dir    string `mapstructure:"dir" json:"dir" yaml:"dir"`
	DSN    string `mapstructure:"dsn" json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// Open returns the store named by cfg.Driver. The file driver is the default.
func Open(cfg Config) (Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = DefaultDir
	}

	switch cfg.Driver {
	case "", DriverFile:
		return NewFileStore(dir), nil
	case DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = filepath.Join(dir, "journal.db")
		}
		return NewSQLiteStore(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
