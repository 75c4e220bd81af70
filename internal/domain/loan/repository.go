package loan

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Contract entry points of the lending pool.
const (
	MethodGetPoolStats  = "getPoolStats"
	MethodGetTotalLoans = "getTotalLoans"
	MethodGetLoan       = "getLoan"
	MethodCreateLoan    = "createLoan"
	MethodFundLoan      = "fundLoan"
	MethodRepayLoan     = "repayLoan"
)

type ReadRequest struct {
	Address common.Address
	Method  string
	Args    []any
}

type WriteRequest struct {
	Address common.Address
	Method  string
	Args    []any
}

type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	Succeeded   bool
}

// ContractReader performs view calls and returns the decoded outputs in ABI order.
type ContractReader interface {
	ReadContract(ctx context.Context, req ReadRequest) ([]any, error)
}

// ContractWriter submits state-mutating calls through a connected signer.
type ContractWriter interface {
	IsConnected() bool
	WriteContract(ctx context.Context, req WriteRequest) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash) (*Receipt, error)
}

type Action string

const (
	ActionCreate Action = "create"
	ActionFund   Action = "fund"
	ActionRepay  Action = "repay"
)

// SettleEvent is published once a lifecycle transaction is confirmed.
// LoanID is unset for ActionCreate; the ledger assigns it.
type SettleEvent struct {
	Action Action
	LoanID uint64
	TxHash common.Hash
}

type SettleObserver interface {
	LoanSettled(ctx context.Context, ev SettleEvent)
}
