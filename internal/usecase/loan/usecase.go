package loan

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"cryptvault-client/internal/codec"
	"cryptvault-client/internal/domain/fhe"
	"cryptvault-client/internal/domain/loan"
	"cryptvault-client/internal/usecase/encryption"
)

// Usecase sequences encrypt -> submit -> confirm -> notify for the three
// lifecycle actions. Each action has its own in-flight flag; concurrent calls
// to the same action are not serialized here.
type Usecase struct {
	contract common.Address
	account  common.Address
	enc      *encryption.Builder
	writer   loan.ContractWriter

	mu        sync.RWMutex
	observers []loan.SettleObserver

	creating atomic.Bool
	funding  atomic.Bool
	repaying atomic.Bool
}

type Params struct {
	Contract  common.Address
	Account   common.Address
	Encryptor *encryption.Builder
	Writer    loan.ContractWriter
	Observers []loan.SettleObserver
}

func NewUsecase(p Params) *Usecase {
	return &Usecase{
		contract:  p.Contract,
		account:   p.Account,
		enc:       p.Encryptor,
		writer:    p.Writer,
		observers: append([]loan.SettleObserver(nil), p.Observers...),
	}
}

// Subscribe registers an observer notified after each confirmed transaction.
func (u *Usecase) Subscribe(o loan.SettleObserver) {
	u.mu.Lock()
	u.observers = append(u.observers, o)
	u.mu.Unlock()
}

// Account is the wallet the session writes as.
func (u *Usecase) Account() common.Address { return u.account }

func (u *Usecase) IsCreating() bool { return u.creating.Load() }
func (u *Usecase) IsFunding() bool  { return u.funding.Load() }
func (u *Usecase) IsRepaying() bool { return u.repaying.Load() }

func (u *Usecase) CreateLoan(ctx context.Context, in CreateLoanInput) (common.Hash, error) {
	if err := u.requireContract(); err != nil {
		return common.Hash{}, err
	}
	if !u.enc.Ready() || u.account == (common.Address{}) {
		return common.Hash{}, fmt.Errorf("%w: encryption system not ready, connect wallet and wait for provider init", loan.ErrEnvironmentNotReady)
	}
	if !in.valid() {
		return common.Hash{}, fmt.Errorf("%w: please review the form", loan.ErrInvalidLoanParameters)
	}

	u.creating.Store(true)
	defer u.creating.Store(false)

	// Each field gets its own input: the proofs are verified per value.
	var amountEnc, rateEnc, collateralEnc fhe.EncryptedInput
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		amountEnc, err = u.enc.EncryptValue(gctx, in.Amount, u.account, u.contract)
		return err
	})
	g.Go(func() (err error) {
		rateEnc, err = u.enc.EncryptValue(gctx, in.RateBasisPoints(), u.account, u.contract)
		return err
	})
	g.Go(func() (err error) {
		collateralEnc, err = u.enc.EncryptValue(gctx, in.CollateralAmount, u.account, u.contract)
		return err
	})
	if err := g.Wait(); err != nil {
		slog.ErrorContext(ctx, "failed to encrypt loan fields", "operation", "create_loan", "error", err)
		return common.Hash{}, err
	}

	args, err := createLoanArgs(in, amountEnc, rateEnc, collateralEnc)
	if err != nil {
		return common.Hash{}, err
	}

	if u.writer == nil || !u.writer.IsConnected() {
		return common.Hash{}, fmt.Errorf("%w: please connect your wallet first", loan.ErrWalletNotConnected)
	}
	hash, err := u.writer.WriteContract(ctx, loan.WriteRequest{
		Address: u.contract,
		Method:  loan.MethodCreateLoan,
		Args:    args,
	})
	if err != nil {
		slog.ErrorContext(ctx, "createLoan submission failed", "operation", "create_loan", "error", err)
		return common.Hash{}, err
	}
	slog.InfoContext(ctx, "createLoan submitted", "operation", "create_loan", "tx_hash", hash.Hex())
	return u.settle(ctx, loan.ActionCreate, 0, hash)
}

func (u *Usecase) FundLoan(ctx context.Context, id uint64) (common.Hash, error) {
	return u.single(ctx, &u.funding, loan.ActionFund, loan.MethodFundLoan, id)
}

func (u *Usecase) RepayLoan(ctx context.Context, id uint64) (common.Hash, error) {
	return u.single(ctx, &u.repaying, loan.ActionRepay, loan.MethodRepayLoan, id)
}

// single handles the id-only write calls.
func (u *Usecase) single(ctx context.Context, flag *atomic.Bool, action loan.Action, method string, id uint64) (common.Hash, error) {
	if err := u.requireContract(); err != nil {
		return common.Hash{}, err
	}
	flag.Store(true)
	defer flag.Store(false)

	if u.writer == nil || !u.writer.IsConnected() {
		return common.Hash{}, fmt.Errorf("%w: please connect your wallet first", loan.ErrWalletNotConnected)
	}
	hash, err := u.writer.WriteContract(ctx, loan.WriteRequest{
		Address: u.contract,
		Method:  method,
		Args:    []any{new(big.Int).SetUint64(id)},
	})
	if err != nil {
		slog.ErrorContext(ctx, "submission failed", "operation", method, "loan_id", id, "error", err)
		return common.Hash{}, err
	}
	return u.settle(ctx, action, id, hash)
}

func (u *Usecase) requireContract() error {
	if u.contract == (common.Address{}) {
		return fmt.Errorf("%w: unsupported network, switch to Hardhat or Sepolia", loan.ErrEnvironmentNotReady)
	}
	return nil
}

// settle waits for the receipt and only then notifies observers.
func (u *Usecase) settle(ctx context.Context, action loan.Action, id uint64, hash common.Hash) (common.Hash, error) {
	receipt, err := u.writer.WaitForReceipt(ctx, hash)
	if err != nil {
		return hash, fmt.Errorf("waiting for receipt %s: %w", hash.Hex(), err)
	}
	if !receipt.Succeeded {
		return hash, fmt.Errorf("%w: %s", loan.ErrTransactionReverted, hash.Hex())
	}
	slog.InfoContext(ctx, "transaction confirmed",
		"operation", string(action),
		"loan_id", id,
		"tx_hash", hash.Hex(),
		"block", receipt.BlockNumber,
	)

	ev := loan.SettleEvent{Action: action, LoanID: id, TxHash: hash}
	u.mu.RLock()
	observers := append([]loan.SettleObserver(nil), u.observers...)
	u.mu.RUnlock()
	// observers run even if the caller has gone away
	octx := context.WithoutCancel(ctx)
	for _, o := range observers {
		o.LoanSettled(octx, ev)
	}
	return hash, nil
}

// createLoanArgs lays out the createLoan arguments in contract order.
func createLoanArgs(in CreateLoanInput, amount, rate, collateral fhe.EncryptedInput) ([]any, error) {
	encoded := make([]string, 0, 6)
	for _, enc := range []fhe.EncryptedInput{amount, rate, collateral} {
		h, err := codec.FormatHandle(enc.Handles[0])
		if err != nil {
			return nil, fmt.Errorf("formatting handle: %w", err)
		}
		p, err := codec.NormalizeProof(enc.InputProof)
		if err != nil {
			return nil, fmt.Errorf("normalizing proof: %w", err)
		}
		encoded = append(encoded, h, p)
	}
	return []any{
		encoded[0], encoded[1],
		encoded[2], encoded[3],
		uint16(in.Duration),
		in.CollateralType,
		encoded[4], encoded[5],
	}, nil
}
