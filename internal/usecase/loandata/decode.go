package loandata

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cryptvault-client/internal/domain/loan"
)

// getLoan output layout:
// borrower, amountHandle, rateHandle, duration, collateralType,
// collateralHandle, status, startTime, endTime.
const loanTupleLen = 9

func decodeLoan(id uint64, out []any, strict bool) (loan.Entry, bool, error) {
	if len(out) != loanTupleLen {
		return loan.Entry{}, false, fmt.Errorf("getLoan(%d): expected %d outputs, got %d", id, loanTupleLen, len(out))
	}
	borrower, ok := out[0].(common.Address)
	if !ok {
		return loan.Entry{}, false, fmt.Errorf("getLoan(%d): borrower has type %T", id, out[0])
	}
	amount, err := asHash(out[1])
	if err != nil {
		return loan.Entry{}, false, fmt.Errorf("getLoan(%d) amount handle: %w", id, err)
	}
	rate, err := asHash(out[2])
	if err != nil {
		return loan.Entry{}, false, fmt.Errorf("getLoan(%d) rate handle: %w", id, err)
	}
	duration, err := asUint(out[3])
	if err != nil {
		return loan.Entry{}, false, fmt.Errorf("getLoan(%d) duration: %w", id, err)
	}
	collateralType, ok := out[4].(string)
	if !ok {
		return loan.Entry{}, false, fmt.Errorf("getLoan(%d): collateral type has type %T", id, out[4])
	}
	collateral, err := asHash(out[5])
	if err != nil {
		return loan.Entry{}, false, fmt.Errorf("getLoan(%d) collateral handle: %w", id, err)
	}
	code, err := asUint(out[6])
	if err != nil {
		return loan.Entry{}, false, fmt.Errorf("getLoan(%d) status: %w", id, err)
	}
	start, err := asUint(out[7])
	if err != nil {
		return loan.Entry{}, false, fmt.Errorf("getLoan(%d) start time: %w", id, err)
	}
	end, err := asUint(out[8])
	if err != nil {
		return loan.Entry{}, false, fmt.Errorf("getLoan(%d) end time: %w", id, err)
	}

	status, known := loan.StatusAvailable, false
	if code <= 255 {
		status, known = loan.ResolveStatus(uint8(code))
	}
	if !known && strict {
		return loan.Entry{}, false, fmt.Errorf("%w: loan %d has status %d", loan.ErrUnknownStatus, id, code)
	}

	return loan.Entry{
		ID:               id,
		Borrower:         borrower,
		Duration:         uint16(duration),
		CollateralType:   collateralType,
		Status:           status,
		StartTime:        start,
		EndTime:          end,
		AmountHandle:     amount,
		InterestHandle:   rate,
		CollateralHandle: collateral,
	}, known, nil
}

func decodeStats(out []any) (loan.PoolStats, error) {
	if len(out) != 4 {
		return loan.PoolStats{}, fmt.Errorf("getPoolStats: expected 4 outputs, got %d", len(out))
	}
	var vals [4]uint64
	for i, v := range out {
		n, err := asUint(v)
		if err != nil {
			return loan.PoolStats{}, fmt.Errorf("getPoolStats output %d: %w", i, err)
		}
		vals[i] = n
	}
	return loan.PoolStats{
		TotalValueLocked: vals[0],
		TotalLoansActive: vals[1],
		AverageAPY:       vals[2],
		UtilizationRate:  vals[3],
	}, nil
}

func asHash(v any) (common.Hash, error) {
	switch h := v.(type) {
	case [32]byte:
		return common.Hash(h), nil
	case common.Hash:
		return h, nil
	}
	return common.Hash{}, fmt.Errorf("unexpected type %T", v)
}

func asUint(v any) (uint64, error) {
	switch n := v.(type) {
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	case *big.Int:
		if n == nil || n.Sign() < 0 || !n.IsUint64() {
			return 0, fmt.Errorf("value %v out of range", n)
		}
		return n.Uint64(), nil
	}
	return 0, fmt.Errorf("unexpected type %T", v)
}
