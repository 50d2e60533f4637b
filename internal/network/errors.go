package network

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrUnknownNetwork    = errors.New("network: unknown network")
	ErrMissingCredential = errors.New("network: missing credential")
	ErrInvalidProfile    = errors.New("network: invalid profile")
)

// ConfigError reports a configuration fault detected while resolving a profile.
// It is always returned before any RPC call is made.
type ConfigError struct {
	Network  string
	Variable string
	Err      error
}

func (e *ConfigError) Error() string {
	if e.Variable != "" {
		return fmt.Sprintf("network %q: %s is not set: %v", e.Network, e.Variable, e.Err)
	}
	return fmt.Sprintf("network %q: %v", e.Network, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
