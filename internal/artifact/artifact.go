// Package artifact loads compiled contract artifacts (ABI and bytecode)
// produced by an external Solidity toolchain.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Sentinel errors
var (
	ErrArtifactNotFound = errors.New("artifact: not found")
	ErrEmptyBytecode    = errors.New("artifact: empty bytecode")
	ErrUnlinked         = errors.New("artifact: bytecode has unlinked library references")
	ErrArgumentCount    = errors.New("artifact: constructor argument count mismatch")
	ErrInvalidArgument  = errors.New("artifact: invalid constructor argument")
)

// DefaultDir is where Hardhat writes artifacts.
const DefaultDir = "artifacts"

// Artifact is a compiled Solidity contract.
type Artifact struct {
	ContractName     string          `json:"contractName"`
	SourceName       string          `json:"sourceName,omitempty"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         Bytecode        `json:"bytecode"`
	DeployedBytecode Bytecode        `json:"deployedBytecode,omitempty"`

	once   sync.Once
	parsed abi.ABI
	abiErr error
}

// Bytecode accepts both the Hardhat form ("0x...") and the Foundry form ({"object": "0x..."}).
type Bytecode struct {
	Object string `json:"object"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bytecode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.Object = s
		return nil
	}
	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("bytecode must be a hex string or {\"object\": ...}: %w", err)
	}
	b.Object = obj.Object
	return nil
}

// Bytes decodes the bytecode.
func (b Bytecode) Bytes() ([]byte, error) {
	code := strings.TrimSpace(b.Object)
	if code == "" || code == "0x" {
		return nil, ErrEmptyBytecode
	}
	if strings.Contains(code, "__") {
		return nil, ErrUnlinked
	}
	if !strings.HasPrefix(code, "0x") && !strings.HasPrefix(code, "0X") {
		code = "0x" + code
	}
	out, err := hexutil.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("decode bytecode: %w", err)
	}
	return out, nil
}

// Parse decodes an artifact from JSON.
func Parse(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ContractABI returns the parsed ABI.
func (a *Artifact) ContractABI() (abi.ABI, error) {
	a.once.Do(func() {
		if len(a.ABI) == 0 {
			a.ABI = json.RawMessage("[]")
		}
		a.parsed, a.abiErr = abi.JSON(strings.NewReader(string(a.ABI)))
	})
	return a.parsed, a.abiErr
}

// DeployData returns the creation bytecode with the ABI-encoded constructor
// arguments appended. Arguments are converted to the declared input types.
func (a *Artifact) DeployData(args ...any) ([]byte, error) {
	code, err := a.Bytecode.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.ContractName, err)
	}
	encoded, err := a.EncodeConstructor(args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.ContractName, err)
	}
	return append(code, encoded...), nil
}

// EncodeConstructor ABI-encodes constructor arguments.
func (a *Artifact) EncodeConstructor(args ...any) ([]byte, error) {
	parsed, err := a.ContractABI()
	if err != nil {
		return nil, fmt.Errorf("parse ABI: %w", err)
	}

	inputs := parsed.Constructor.Inputs
	if len(args) != len(inputs) {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrArgumentCount, len(inputs), len(args))
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	converted := make([]any, len(args))
	for i, arg := range args {
		v, err := Convert(inputs[i].Type, arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s %s): %w", i, inputs[i].Type.String(), inputs[i].Name, err)
		}
		converted[i] = v
	}

	out, err := parsed.Pack("", converted...)
	if err != nil {
		return nil, fmt.Errorf("pack constructor: %w", err)
	}
	return out, nil
}

// Source provides artifacts by contract name.
type Source interface {
	Load(name string) (*Artifact, error)
}

// Directory loads artifacts from a Hardhat or Foundry output directory.
type Directory struct {
	Root string

	mu    sync.Mutex
	cache map[string]*Artifact
}

// NewDirectory creates a loader rooted at dir.
func NewDirectory(dir string) *Directory {
	if dir == "" {
		dir = DefaultDir
	}
	return &Directory{Root: dir, cache: make(map[string]*Artifact)}
}

// Candidates returns the paths searched for name, in order.
func (d *Directory) Candidates(name string) []string {
	file := name + ".json"
	return []string{
		filepath.Join(d.Root, "contracts", name+".sol", file),
		filepath.Join(d.Root, name+".sol", file),
		filepath.Join(d.Root, file),
	}
}

// Load implements Source.
func (d *Directory) Load(name string) (*Artifact, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if a, ok := d.cache[name]; ok {
		return a, nil
	}

	for _, path := range d.Candidates(name) {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		a, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if a.ContractName == "" {
			a.ContractName = name
		}
		d.cache[name] = a
		return a, nil
	}

	return nil, fmt.Errorf("%w: %s (searched %s)", ErrArtifactNotFound, name, d.Root)
}

// Memory is an in-memory Source.
type Memory map[string]*Artifact

// Load implements Source.
func (m Memory) Load(name string) (*Artifact, error) {
	a, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
	}
	return a, nil
}
