package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EngrMohsinAzam/OwlCoin/internal/network"
)

// isolate points the config search and $HOME at empty directories.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(Options{Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, "hardhat", cfg.DefaultNetwork)
	assert.Equal(t, "artifacts", cfg.Artifacts)
	assert.Equal(t, "file", cfg.Journal.Driver)
	assert.Equal(t, "ignition/deployments", cfg.Journal.Dir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.File)
	assert.Empty(t, cfg.Networks)
}

func TestLoad_File(t *testing.T) {
	dir := isolate(t)

	yaml := `
default_network: bscTestnet
artifacts: build/artifacts
journal:
  driver: sqlite
  dir: state
log:
  level: debug
networks:
  bscTestnet:
    url: https://bsc-testnet.example.org
    gas_price: 3000000000
    timeout: 2m
  opbnb:
    url: https://opbnb-testnet-rpc.bnbchain.org
    chain_id: 5611
    accounts: [OPBNB_KEY]
  localhost:
    use_dev_accounts: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "owlctl.yaml"), []byte(yaml), 0644))

	cfg, err := Load(Options{Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "owlctl.yaml"), cfg.File)
	assert.Equal(t, "bscTestnet", cfg.DefaultNetwork)
	assert.Equal(t, "build/artifacts", cfg.Artifacts)
	assert.Equal(t, "sqlite", cfg.Journal.Driver)
	assert.Equal(t, "state", cfg.Journal.Dir)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())

	table, err := cfg.NetworkTable()
	require.NoError(t, err)

	bscTestnet, err := table.Lookup("bscTestnet")
	require.NoError(t, err)
	assert.Equal(t, "https://bsc-testnet.example.org", bscTestnet.URL)
	assert.Equal(t, int64(97), bscTestnet.ChainID)
	assert.Equal(t, uint64(3_000_000_000), bscTestnet.GasPrice)
	assert.Equal(t, uint64(8_000_000), bscTestnet.GasLimit)
	assert.Equal(t, 2*time.Minute, bscTestnet.Timeout)

	opbnb, err := table.Lookup("opbnb")
	require.NoError(t, err)
	assert.Equal(t, int64(5611), opbnb.ChainID)
	assert.Equal(t, []string{"OPBNB_KEY"}, opbnb.Accounts)

	localhost, err := table.Lookup("localhost")
	require.NoError(t, err)
	assert.False(t, localhost.UseDevAccounts)
	assert.Equal(t, []string{"PRIVATE_KEY"}, localhost.Accounts)

	_, err = table.Lookup("bsctestnet")
	assert.ErrorIs(t, err, network.ErrUnknownNetwork)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := isolate(t)
	t.Setenv("OWL_NETWORK", "bsc")
	t.Setenv("OWL_LOG_LEVEL", "warn")
	t.Setenv("OWL_JOURNAL_DRIVER", "sqlite")

	cfg, err := Load(Options{Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, "bsc", cfg.DefaultNetwork)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel())
	assert.Equal(t, "sqlite", cfg.Journal.Driver)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)

	// Registers cleanup so the variable the file sets is restored.
	t.Setenv("ALCHEMY_API_KEY", "")
	require.NoError(t, os.Unsetenv("ALCHEMY_API_KEY"))

	// Variables already set win over the file.
	t.Setenv("OWL_ARTIFACTS", "preset")

	envFile := filepath.Join(dir, "deploy.env")
	require.NoError(t, os.WriteFile(envFile, []byte("ALCHEMY_API_KEY=demo\nOWL_ARTIFACTS=out\n"), 0644))

	cfg, err := Load(Options{Dir: dir, EnvFile: envFile})
	require.NoError(t, err)

	v, ok := os.LookupEnv("ALCHEMY_API_KEY")
	assert.True(t, ok)
	assert.Equal(t, "demo", v)
	assert.Equal(t, "preset", cfg.Artifacts)

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(Options{Dir: dir, EnvFile: filepath.Join(dir, "nope.env")})
		assert.Error(t, err)
	})

	t.Run("missing default file is ignored", func(t *testing.T) {
		_, err := Load(Options{Dir: dir})
		assert.NoError(t, err)
	})
}

func TestLoad_ExplicitFile(t *testing.T) {
	dir := isolate(t)

	_, err := Load(Options{File: filepath.Join(dir, "missing.yaml")})
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("networks: [\n"), 0644))
	_, err = Load(Options{File: bad})
	assert.Error(t, err)
}

func TestLoad_HomeConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.WriteFile(filepath.Join(home, ".owlctl.yaml"), []byte("default_network: sepolia\n"), 0644))

	cfg, err := Load(Options{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "sepolia", cfg.DefaultNetwork)
}

func TestNetworkTable_InvalidProfile(t *testing.T) {
	cfg := &Config{Networks: map[string]network.Override{
		"custom": {ChainID: 1},
	}}

	_, err := cfg.NetworkTable()
	assert.ErrorIs(t, err, network.ErrInvalidProfile)
}

func TestLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"error": slog.LevelError,
		"loud":  slog.LevelInfo,
		"":      slog.LevelInfo,
	}
	for in, want := range tests {
		cfg := &Config{Log: LogConfig{Level: in}}
		assert.Equal(t, want, cfg.LogLevel(), in)
	}
}
