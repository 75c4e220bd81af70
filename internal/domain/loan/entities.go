package loan

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// ResolveStatus maps the on-chain status code. Unknown codes report ok=false
// and fall back to StatusAvailable.
func ResolveStatus(code uint8) (Status, bool) {
	switch code {
	case 0:
		return StatusAvailable, true
	case 1:
		return StatusActive, true
	case 2:
		return StatusCompleted, true
	}
	return StatusAvailable, false
}

// Entry is one loan record as read from the lending pool.
// Handles are opaque ciphertext identifiers; the zero hash means "not set".
type Entry struct {
	ID               uint64         `json:"id"`
	Borrower         common.Address `json:"borrower"`
	Duration         uint16         `json:"duration"`
	CollateralType   string         `json:"collateral_type"`
	Status           Status         `json:"status"`
	StartTime        uint64         `json:"start_time"`
	EndTime          uint64         `json:"end_time"`
	AmountHandle     common.Hash    `json:"amount_handle"`
	InterestHandle   common.Hash    `json:"interest_handle"`
	CollateralHandle common.Hash    `json:"collateral_handle"`
}

// KeyFor is the decimal loan id used to key per-loan caches.
func KeyFor(id uint64) string { return strconv.FormatUint(id, 10) }

// BorrowedBy compares addresses case-insensitively on their hex form.
func (e Entry) BorrowedBy(account common.Address) bool {
	return strings.EqualFold(e.Borrower.Hex(), account.Hex())
}

type PoolStats struct {
	TotalValueLocked uint64 `json:"total_value_locked"`
	TotalLoansActive uint64 `json:"total_loans_active"`
	AverageAPY       uint64 `json:"average_apy"`
	UtilizationRate  uint64 `json:"utilization_rate"`
}

// DecryptedValues holds the plaintexts resolved for one loan.
// A nil Amount means the loan has not been decrypted.
type DecryptedValues struct {
	Amount           *big.Int `json:"amount,omitempty"`
	InterestRate     *big.Int `json:"interest_rate,omitempty"`
	CollateralAmount *big.Int `json:"collateral_amount,omitempty"`
}

func (v DecryptedValues) IsDecrypted() bool { return v.Amount != nil }

// ZeroValues is what a loan with an unset amount handle decrypts to.
func ZeroValues() DecryptedValues {
	return DecryptedValues{
		Amount:           big.NewInt(0),
		InterestRate:     big.NewInt(0),
		CollateralAmount: big.NewInt(0),
	}
}
