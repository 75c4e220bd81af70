package loan

import (
	"math"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// CreateLoanInput carries the borrower's form values. InterestRate is a
// percentage (7.5 means 7.5%) and is sent as basis points.
type CreateLoanInput struct {
	Amount           float64 `json:"amount"`
	InterestRate     float64 `json:"interest_rate"`
	Duration         int     `json:"duration"`
	CollateralType   string  `json:"collateral_type"`
	CollateralAmount float64 `json:"collateral_amount"`
}

func (in CreateLoanInput) RateBasisPoints() float64 { return math.Round(in.InterestRate * 100) }

func (in CreateLoanInput) valid() bool {
	return in.Amount > 0 &&
		in.InterestRate > 0 &&
		in.Duration > 0 && in.Duration <= math.MaxUint16 &&
		in.CollateralAmount >= 0 &&
		strings.TrimSpace(in.CollateralType) != ""
}

type TxDTO struct {
	Action string      `json:"action"`
	LoanID *uint64     `json:"loan_id,omitempty"`
	TxHash common.Hash `json:"tx_hash"`
}
