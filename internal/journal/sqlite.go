package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore keeps records in a SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens dsn and applies pending migrations. The parent
// directory of a file DSN is created if needed.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if path, _, _ := strings.Cut(dsn, "?"); path != "" && path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sqlx.Open("sqlite3", dsn+sep+"_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal database: %w", err)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

type recordRow struct {
	ChainID      int64  `db:"chain_id"`
	FutureID     string `db:"future_id"`
	RunID        string `db:"run_id"`
	DeploymentID string `db:"deployment_id"`
	ModuleID     string `db:"module_id"`
	Contract     string `db:"contract"`
	Address      string `db:"address"`
	TxHash       string `db:"tx_hash"`
	BlockNumber  int64  `db:"block_number"`
	DeployedAt   string `db:"deployed_at"`
	ArgsHash     string `db:"args_hash"`
}

func toRow(r *Record) recordRow {
	return recordRow{
		ChainID:      r.ChainID,
		FutureID:     r.FutureID,
		RunID:        r.RunID,
		DeploymentID: r.DeploymentID,
		ModuleID:     r.ModuleID,
		Contract:     r.Contract,
		Address:      r.Address,
		TxHash:       r.TxHash,
		BlockNumber:  int64(r.BlockNumber),
		DeployedAt:   r.DeployedAt.UTC().Format(time.RFC3339Nano),
		ArgsHash:     r.ArgsHash,
	}
}

func (row recordRow) record() (*Record, error) {
	deployedAt, err := time.Parse(time.RFC3339Nano, row.DeployedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: deployed_at %q", ErrInvalidRecord, row.DeployedAt)
	}
	return &Record{
		RunID:        row.RunID,
		DeploymentID: row.DeploymentID,
		ChainID:      row.ChainID,
		FutureID:     row.FutureID,
		ModuleID:     row.ModuleID,
		Contract:     row.Contract,
		Address:      row.Address,
		TxHash:       row.TxHash,
		BlockNumber:  uint64(row.BlockNumber),
		DeployedAt:   deployedAt,
		ArgsHash:     row.ArgsHash,
	}, nil
}

const recordColumns = `chain_id, future_id, run_id, deployment_id, module_id, contract,
	address, tx_hash, block_number, deployed_at, args_hash`

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, chainID int64, futureID string) (*Record, error) {
	var row recordRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+recordColumns+` FROM deployments WHERE chain_id = ? AND future_id = ?`,
		chainID, futureID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s on %s", ErrNotFound, futureID, DeploymentID(chainID))
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", futureID, err)
	}
	return row.record()
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, rec *Record) error {
	if err := rec.validate(); err != nil {
		return err
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO deployments (`+recordColumns+`)
		VALUES (:chain_id, :future_id, :run_id, :deployment_id, :module_id, :contract,
			:address, :tx_hash, :block_number, :deployed_at, :args_hash)
		ON CONFLICT (chain_id, future_id) DO UPDATE SET
			run_id = excluded.run_id,
			deployment_id = excluded.deployment_id,
			module_id = excluded.module_id,
			contract = excluded.contract,
			address = excluded.address,
			tx_hash = excluded.tx_hash,
			block_number = excluded.block_number,
			deployed_at = excluded.deployed_at,
			args_hash = excluded.args_hash`, toRow(rec))
	if err != nil {
		return fmt.Errorf("put %s: %w", rec.FutureID, err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, chainID int64) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM deployments`
	var args []any
	if chainID != 0 {
		query += ` WHERE chain_id = ?`
		args = append(args, chainID)
	}
	query += ` ORDER BY chain_id, id`

	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}

	out := make([]*Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Reset implements Store.
func (s *SQLiteStore) Reset(ctx context.Context, chainID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM deployments WHERE chain_id = ?`, chainID); err != nil {
		return fmt.Errorf("reset %s: %w", DeploymentID(chainID), err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
