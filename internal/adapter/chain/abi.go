package chain

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// LendingPoolABI covers the pool entry points the client uses.
const LendingPoolABI = `[
  {"type":"function","name":"getPoolStats","stateMutability":"view","inputs":[],
   "outputs":[{"name":"totalValueLocked","type":"uint256"},{"name":"totalLoansActive","type":"uint256"},
              {"name":"averageAPY","type":"uint256"},{"name":"utilizationRate","type":"uint256"}]},
  {"type":"function","name":"getTotalLoans","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getLoan","stateMutability":"view",
   "inputs":[{"name":"loanId","type":"uint256"}],
   "outputs":[{"name":"borrower","type":"address"},{"name":"amount","type":"bytes32"},
              {"name":"interestRate","type":"bytes32"},{"name":"duration","type":"uint16"},
              {"name":"collateralType","type":"string"},{"name":"collateralAmount","type":"bytes32"},
              {"name":"status","type":"uint8"},{"name":"startTime","type":"uint256"},
              {"name":"endTime","type":"uint256"}]},
  {"type":"function","name":"createLoan","stateMutability":"nonpayable",
   "inputs":[{"name":"encryptedAmount","type":"bytes32"},{"name":"amountProof","type":"bytes"},
             {"name":"encryptedInterestRate","type":"bytes32"},{"name":"interestRateProof","type":"bytes"},
             {"name":"duration","type":"uint16"},{"name":"collateralType","type":"string"},
             {"name":"encryptedCollateral","type":"bytes32"},{"name":"collateralProof","type":"bytes"}],
   "outputs":[]},
  {"type":"function","name":"fundLoan","stateMutability":"nonpayable",
   "inputs":[{"name":"loanId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"repayLoan","stateMutability":"nonpayable",
   "inputs":[{"name":"loanId","type":"uint256"}],"outputs":[]}
]`

func ParseABI(def string) (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi: %w", err)
	}
	return parsed, nil
}

// coerceArgs converts loosely typed arguments (hex strings, plain ints) into
// the Go types abi.Pack expects for each declared input.
func coerceArgs(inputs abi.Arguments, args []any) ([]any, error) {
	if len(inputs) != len(args) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(inputs), len(args))
	}
	out := make([]any, len(args))
	for i, in := range inputs {
		v, err := coerce(in.Type, args[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, in.Name, err)
		}
		out[i] = v
	}
	return out, nil
}

func coerce(t abi.Type, v any) (any, error) {
	switch t.T {
	case abi.FixedBytesTy:
		if t.Size != 32 {
			break
		}
		switch x := v.(type) {
		case [32]byte:
			return x, nil
		case common.Hash:
			return [32]byte(x), nil
		case string:
			b, err := hexutil.Decode(x)
			if err != nil {
				return nil, err
			}
			if len(b) != 32 {
				return nil, fmt.Errorf("expected 32 bytes, got %d", len(b))
			}
			return [32]byte(b), nil
		}
	case abi.BytesTy:
		switch x := v.(type) {
		case []byte:
			return x, nil
		case string:
			return hexutil.Decode(x)
		}
	case abi.StringTy:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case abi.AddressTy:
		switch x := v.(type) {
		case common.Address:
			return x, nil
		case string:
			if !common.IsHexAddress(x) {
				return nil, fmt.Errorf("invalid address %q", x)
			}
			return common.HexToAddress(x), nil
		}
	case abi.UintTy:
		n, err := toBig(v)
		if err != nil {
			return nil, err
		}
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return nil, fmt.Errorf("value %s does not fit uint%d", n, t.Size)
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
	if reflect.TypeOf(v) == t.GetType() {
		return v, nil
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, t.String())
}

func toBig(v any) (*big.Int, error) {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			return nil, fmt.Errorf("nil integer")
		}
		return x, nil
	case int:
		return big.NewInt(int64(x)), nil
	case int64:
		return big.NewInt(x), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	case string:
		n, ok := new(big.Int).SetString(x, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", x)
		}
		return n, nil
	}
	return nil, fmt.Errorf("cannot use %T as integer", v)
}
