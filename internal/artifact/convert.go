package artifact

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Convert maps a loosely typed value (as found in parameter files, flags and
// descriptor literals) onto the Go type the ABI encoder expects for t.
// Unsupported types are passed through for the encoder to judge.
func Convert(t abi.Type, v any) (any, error) {
	switch t.T {
	case abi.AddressTy:
		return toAddress(v)
	case abi.UintTy, abi.IntTy:
		n, err := toBig(v)
		if err != nil {
			return nil, err
		}
		return sizedInt(t, n)
	case abi.BoolTy:
		return toBool(v)
	case abi.StringTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: want string, got %T", ErrInvalidArgument, v)
		}
		return s, nil
	case abi.BytesTy:
		return toBytes(v)
	case abi.FixedBytesTy:
		b, err := toBytes(v)
		if err != nil {
			return nil, err
		}
		if len(b) != t.Size {
			return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidArgument, t.Size, len(b))
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr.Interface(), nil
	default:
		return v, nil
	}
}

func toAddress(v any) (common.Address, error) {
	switch a := v.(type) {
	case common.Address:
		return a, nil
	case *common.Address:
		if a == nil {
			return common.Address{}, fmt.Errorf("%w: nil address", ErrInvalidArgument)
		}
		return *a, nil
	case string:
		if !common.IsHexAddress(a) {
			return common.Address{}, fmt.Errorf("%w: %q is not a hex address", ErrInvalidArgument, a)
		}
		return common.HexToAddress(a), nil
	default:
		return common.Address{}, fmt.Errorf("%w: want address, got %T", ErrInvalidArgument, v)
	}
}

func toBig(v any) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, fmt.Errorf("%w: nil integer", ErrInvalidArgument)
		}
		return new(big.Int).Set(n), nil
	case big.Int:
		return new(big.Int).Set(&n), nil
	case int:
		return big.NewInt(int64(n)), nil
	case int8:
		return big.NewInt(int64(n)), nil
	case int16:
		return big.NewInt(int64(n)), nil
	case int32:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case uint:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return nil, fmt.Errorf("%w: %v is not an integer", ErrInvalidArgument, n)
		}
		if math.Abs(n) > 1<<53 {
			return nil, fmt.Errorf("%w: %v exceeds float precision, pass it as a string", ErrInvalidArgument, n)
		}
		return big.NewInt(int64(n)), nil
	case json.Number:
		return parseBig(string(n))
	case string:
		return parseBig(n)
	default:
		return nil, fmt.Errorf("%w: want integer, got %T", ErrInvalidArgument, v)
	}
}

// parseBig accepts decimal or 0x-prefixed hex, with an optional trailing "n"
// as written for bigint literals.
func parseBig(s string) (*big.Int, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "n")
	base := 10
	digits := s
	neg := false
	if strings.HasPrefix(digits, "-") {
		neg = true
		digits = digits[1:]
	}
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		base = 16
		digits = digits[2:]
	}
	n, ok := new(big.Int).SetString(digits, base)
	if !ok || digits == "" {
		return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidArgument, s)
	}
	if neg {
		n.Neg(n)
	}
	return n, nil
}

func sizedInt(t abi.Type, n *big.Int) (any, error) {
	if t.T == abi.UintTy {
		if n.Sign() < 0 {
			return nil, fmt.Errorf("%w: %s is negative for %s", ErrInvalidArgument, n, t.String())
		}
		if n.BitLen() > t.Size {
			return nil, fmt.Errorf("%w: %s overflows %s", ErrInvalidArgument, n, t.String())
		}
		switch t.Size {
		case 8:
			return uint8(n.Uint64()), nil
		case 16:
			return uint16(n.Uint64()), nil
		case 32:
			return uint32(n.Uint64()), nil
		case 64:
			return n.Uint64(), nil
		}
		return n, nil
	}

	limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
	if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
		return nil, fmt.Errorf("%w: %s overflows %s", ErrInvalidArgument, n, t.String())
	}
	switch t.Size {
	case 8:
		return int8(n.Int64()), nil
	case 16:
		return int16(n.Int64()), nil
	case 32:
		return int32(n.Int64()), nil
	case 64:
		return n.Int64(), nil
	}
	return n, nil
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a bool", ErrInvalidArgument, b)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("%w: want bool, got %T", ErrInvalidArgument, v)
	}
}

func toBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		out, err := hexutil.Decode(b)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidArgument, b, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: want bytes, got %T", ErrInvalidArgument, v)
	}
}
