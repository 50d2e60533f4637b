// Package network holds the named network profiles owlctl can deploy to.
package network

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultNetwork is used when no network is selected.
const DefaultNetwork = "hardhat"

const gwei = 1_000_000_000

// DevAccountKeys are the well-known development keys funded on the
// in-process network. DO NOT use them anywhere real funds live.
var DevAccountKeys = []string{
	"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80", // 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266
	"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d", // 0x70997970C51812dc3A010C7d01b50e0d17dc79C8
	"5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a", // 0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC
}

// Profile is the connection and signing configuration of one network.
type Profile struct {
	Name string `mapstructure:"-" json:"name" yaml:"name" validate:"required"`

	// URL may reference environment variables as ${NAME}.
	URL     string `mapstructure:"url" json:"url,omitempty" yaml:"url,omitempty" validate:"required_unless=Simulated true"`
	ChainID int64  `mapstructure:"chain_id" json:"chain_id,omitempty" yaml:"chain_id,omitempty" validate:"gte=0"`

	// Accounts lists the environment variables holding signing keys.
	Accounts []string `mapstructure:"accounts" json:"accounts,omitempty" yaml:"accounts,omitempty" validate:"dive,required"`
	// UseDevAccounts falls back to DevAccountKeys when no account variable is set.
	UseDevAccounts bool `mapstructure:"use_dev_accounts" json:"use_dev_accounts,omitempty" yaml:"use_dev_accounts,omitempty"`

	GasLimit uint64        `mapstructure:"gas" json:"gas,omitempty" yaml:"gas,omitempty"`
	GasPrice uint64        `mapstructure:"gas_price" json:"gas_price,omitempty" yaml:"gas_price,omitempty"`
	Timeout  time.Duration `mapstructure:"timeout" json:"timeout,omitempty" yaml:"timeout,omitempty" validate:"gte=0"`

	// Simulated selects the in-process development chain instead of an RPC endpoint.
	Simulated bool `mapstructure:"simulated" json:"simulated,omitempty" yaml:"simulated,omitempty"`
}

// Table maps network names to profiles.
type Table map[string]Profile

// Presets returns the built-in network table.
func Presets() Table {
	return Table{
		// BNB Smart Chain Mainnet
		"bsc": {
			Name:     "bsc",
			URL:      "https://bsc-dataseed.binance.org/",
			ChainID:  56,
			Accounts: []string{"PRIVATE_KEY"},
			GasLimit: 8_000_000,
			GasPrice: 5 * gwei,
			Timeout:  60 * time.Second,
		},
		// BNB Smart Chain Testnet
		"bscTestnet": {
			Name:     "bscTestnet",
			URL:      "https://data-seed-prebsc-1-s1.binance.org:8545/",
			ChainID:  97,
			Accounts: []string{"PRIVATE_KEY"},
			GasLimit: 8_000_000,
			GasPrice: 10 * gwei,
			Timeout:  60 * time.Second,
		},
		"sepolia": {
			Name:     "sepolia",
			URL:      "https://eth-sepolia.g.alchemy.com/v2/${ALCHEMY_API_KEY}",
			Accounts: []string{"PRIVATE_KEY"},
			GasLimit: 8_000_000,
			GasPrice: 20 * gwei,
			Timeout:  60 * time.Second,
		},
		"hardhat": {
			Name:           "hardhat",
			ChainID:        31337,
			UseDevAccounts: true,
			GasLimit:       12_000_000,
			GasPrice:       8 * gwei,
			Simulated:      true,
		},
		"localhost": {
			Name:           "localhost",
			URL:            "http://127.0.0.1:8545",
			ChainID:        31337,
			Accounts:       []string{"PRIVATE_KEY"},
			UseDevAccounts: true,
			Timeout:        60 * time.Second,
		},
	}
}

// Names returns the profile names in sorted order.
func (t Table) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the profile registered under name.
func (t Table) Lookup(name string) (Profile, error) {
	p, ok := t[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownNetwork, name, strings.Join(t.Names(), ", "))
	}
	return p, nil
}

// Override is a partial profile read from configuration. Zero values and nil
// pointers leave the base profile unchanged.
type Override struct {
	URL            string        `mapstructure:"url" json:"url,omitempty" yaml:"url,omitempty"`
	ChainID        int64         `mapstructure:"chain_id" json:"chain_id,omitempty" yaml:"chain_id,omitempty"`
	Accounts       []string      `mapstructure:"accounts" json:"accounts,omitempty" yaml:"accounts,omitempty"`
	UseDevAccounts *bool         `mapstructure:"use_dev_accounts" json:"use_dev_accounts,omitempty" yaml:"use_dev_accounts,omitempty"`
	GasLimit       uint64        `mapstructure:"gas" json:"gas,omitempty" yaml:"gas,omitempty"`
	GasPrice       uint64        `mapstructure:"gas_price" json:"gas_price,omitempty" yaml:"gas_price,omitempty"`
	Timeout        time.Duration `mapstructure:"timeout" json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Simulated      *bool         `mapstructure:"simulated" json:"simulated,omitempty" yaml:"simulated,omitempty"`
}

// Merge returns a copy of t with overrides applied field by field.
// Overrides for names not present in t are added as new profiles.
func (t Table) Merge(overrides map[string]Override) Table {
	out := make(Table, len(t)+len(overrides))
	for name, p := range t {
		out[name] = p
	}
	for name, o := range overrides {
		base := out[name]
		base.Name = name
		if o.URL != "" {
			base.URL = o.URL
		}
		if o.ChainID != 0 {
			base.ChainID = o.ChainID
		}
		if len(o.Accounts) > 0 {
			base.Accounts = o.Accounts
		}
		if o.UseDevAccounts != nil {
			base.UseDevAccounts = *o.UseDevAccounts
		}
		if o.GasLimit != 0 {
			base.GasLimit = o.GasLimit
		}
		if o.GasPrice != 0 {
			base.GasPrice = o.GasPrice
		}
		if o.Timeout != 0 {
			base.Timeout = o.Timeout
		}
		if o.Simulated != nil {
			base.Simulated = *o.Simulated
		}
		out[name] = base
	}
	return out
}

// Validate checks every profile in the table.
func (t Table) Validate() error {
	v := validator.New()
	for _, name := range t.Names() {
		if err := v.Struct(t[name]); err != nil {
			return &ConfigError{Network: name, Err: fmt.Errorf("%w: %v", ErrInvalidProfile, err)}
		}
	}
	return nil
}

// Env looks up an environment variable.
type Env func(key string) (string, bool)

// OSEnv reads the process environment.
var OSEnv Env = os.LookupEnv

// Resolved is a profile with its environment references filled in.
type Resolved struct {
	Profile

	// RPCURL is URL with ${VAR} references expanded. Empty for simulated networks.
	RPCURL string
	// Keys are hex private keys without 0x prefix, in account order.
	Keys []string
}

// Resolve selects the profile called name and fills in credentials from env.
// It fails with ErrUnknownNetwork or ErrMissingCredential without touching the network.
func (t Table) Resolve(name string, env Env) (*Resolved, error) {
	p, err := t.Lookup(name)
	if err != nil {
		return nil, err
	}
	if env == nil {
		env = OSEnv
	}

	rpcURL, err := expandURL(p, env)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, ref := range p.Accounts {
		val, ok := env(ref)
		val = strings.TrimSpace(val)
		if !ok || val == "" {
			if p.UseDevAccounts {
				continue
			}
			return nil, &ConfigError{Network: name, Variable: ref, Err: ErrMissingCredential}
		}
		keys = append(keys, strings.TrimPrefix(strings.TrimPrefix(val, "0x"), "0X"))
	}
	if len(keys) == 0 {
		if !p.UseDevAccounts {
			return nil, &ConfigError{Network: name, Err: fmt.Errorf("%w: no accounts configured", ErrMissingCredential)}
		}
		keys = append(keys, DevAccountKeys...)
	}

	if rpcURL != "" {
		if err := validator.New().Var(rpcURL, "url"); err != nil {
			return nil, &ConfigError{Network: name, Err: fmt.Errorf("%w: url %q", ErrInvalidProfile, rpcURL)}
		}
	}

	return &Resolved{Profile: p, RPCURL: rpcURL, Keys: keys}, nil
}

// expandURL substitutes ${VAR} references; any unset variable is a configuration error.
func expandURL(p Profile, env Env) (string, error) {
	if p.Simulated {
		return "", nil
	}
	var missing string
	out := os.Expand(p.URL, func(key string) string {
		val, ok := env(key)
		if (!ok || val == "") && missing == "" {
			missing = key
		}
		return val
	})
	if missing != "" {
		return "", &ConfigError{Network: p.Name, Variable: missing, Err: ErrMissingCredential}
	}
	return out, nil
}
