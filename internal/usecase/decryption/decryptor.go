// Package decryption resolves a loan's encrypted fields to plaintext for the
// connected wallet, one loan at a time.
package decryption

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"cryptvault-client/internal/domain/fhe"
	"cryptvault-client/internal/domain/loan"
)

type Outcome string

const (
	OutcomeDecrypted            Outcome = "decrypted"
	OutcomeAlreadyDecrypted     Outcome = "already_decrypted"
	OutcomeZeroHandles          Outcome = "zero_handles"
	OutcomeBusy                 Outcome = "busy"
	OutcomeNotReady             Outcome = "not_ready"
	OutcomeSignatureUnavailable Outcome = "signature_unavailable"
	OutcomeFailed               Outcome = "failed"
)

const (
	MsgNotReady      = "Decryption environment not ready. Connect wallet first."
	MsgAlready       = "Loan already decrypted."
	MsgBusy          = "Another decryption is in progress."
	MsgZeroHandles   = "Loan has no encrypted values yet."
	MsgRequestingSig = "Requesting decryption signature..."
	MsgNoSignature   = "Unable to build decryption signature. User may have rejected."
	MsgDecrypting    = "Decrypting loan values..."
	MsgDecrypted     = "Decryption completed successfully!"
	msgFailedPrefix  = "Decryption failed: "
)

// Report is the advisory result of one DecryptLoan call.
type Report struct {
	LoanID  uint64  `json:"loan_id"`
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
}

// ReportObserver receives every report, including busy ones.
type ReportObserver interface {
	DecryptFinished(ctx context.Context, r Report)
}

const (
	stateIdle int32 = iota
	stateAwaitingSignature
	stateDecrypting
)

type Params struct {
	Provider  fhe.Provider
	Contract  common.Address
	Signer    fhe.Signer
	Cache     *SignatureCache
	Observers []ReportObserver
}

// Decryptor allows a single decryption in flight across all loans.
type Decryptor struct {
	provider  fhe.Provider
	contract  common.Address
	signer    fhe.Signer
	cache     *SignatureCache
	observers []ReportObserver

	state atomic.Int32
	epoch atomic.Uint64

	mu      sync.RWMutex
	values  map[string]loan.DecryptedValues
	message string
}

func NewDecryptor(p Params) *Decryptor {
	cache := p.Cache
	if cache == nil {
		cache = NewSignatureCache(nil, nil, fhe.DefaultDurationDays)
	}
	return &Decryptor{
		provider:  p.Provider,
		contract:  p.Contract,
		signer:    p.Signer,
		cache:     cache,
		observers: p.Observers,
		values:    make(map[string]loan.DecryptedValues),
	}
}

func (d *Decryptor) IsDecrypting() bool { return d.state.Load() != stateIdle }

func (d *Decryptor) Message() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.message
}

func (d *Decryptor) GetDecryptedLoan(id uint64) (loan.DecryptedValues, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.values[loan.KeyFor(id)]
	return v, ok
}

// Values returns a copy of the per-loan cache keyed by decimal loan id.
func (d *Decryptor) Values() map[string]loan.DecryptedValues {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]loan.DecryptedValues, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

// Reset drops decrypted values and the status message. Results of a
// decryption still in flight are discarded.
func (d *Decryptor) Reset() {
	d.epoch.Add(1)
	d.mu.Lock()
	d.values = make(map[string]loan.DecryptedValues)
	d.message = ""
	d.mu.Unlock()
}

// DecryptLoan never returns an error; failures are described by the report
// and leave the loan absent from the cache so it can be retried.
func (d *Decryptor) DecryptLoan(ctx context.Context, id uint64, amountHandle, interestHandle, collateralHandle common.Hash) Report {
	if !d.state.CompareAndSwap(stateIdle, stateAwaitingSignature) {
		return d.finish(ctx, Report{LoanID: id, Outcome: OutcomeBusy, Message: MsgBusy}, false)
	}
	defer d.state.Store(stateIdle)

	epoch := d.epoch.Load()

	if d.provider == nil || d.signer == nil || d.contract == (common.Address{}) {
		return d.finish(ctx, Report{LoanID: id, Outcome: OutcomeNotReady, Message: MsgNotReady}, true)
	}
	if v, ok := d.GetDecryptedLoan(id); ok && v.IsDecrypted() {
		return d.finish(ctx, Report{LoanID: id, Outcome: OutcomeAlreadyDecrypted, Message: MsgAlready}, true)
	}
	if amountHandle == (common.Hash{}) {
		d.store(epoch, id, loan.ZeroValues())
		return d.finish(ctx, Report{LoanID: id, Outcome: OutcomeZeroHandles, Message: MsgZeroHandles}, false)
	}

	d.setMessage(MsgRequestingSig)
	sig, err := d.cache.LoadOrSign(ctx, d.provider, []common.Address{d.contract}, d.signer)
	if err != nil {
		return d.finish(ctx, failed(id, err), true)
	}
	if sig == nil {
		return d.finish(ctx, Report{LoanID: id, Outcome: OutcomeSignatureUnavailable, Message: MsgNoSignature}, true)
	}

	d.state.Store(stateDecrypting)
	d.setMessage(MsgDecrypting)

	pairs := []fhe.HandleContractPair{
		{Handle: amountHandle, Contract: d.contract},
		{Handle: interestHandle, Contract: d.contract},
	}
	if collateralHandle != (common.Hash{}) {
		pairs = append(pairs, fhe.HandleContractPair{Handle: collateralHandle, Contract: d.contract})
	}
	res, err := d.provider.UserDecrypt(ctx, fhe.UserDecryptRequest{
		Pairs:          pairs,
		PrivateKey:     sig.PrivateKey,
		PublicKey:      sig.PublicKey,
		Signature:      sig.Signature,
		Contracts:      sig.ContractAddresses,
		User:           sig.UserAddress,
		StartTimestamp: sig.StartTimestamp,
		DurationDays:   sig.DurationDays,
	})
	if err != nil {
		return d.finish(ctx, failed(id, err), true)
	}

	amount := res[amountHandle]
	if amount == nil {
		return d.finish(ctx, failed(id, fmt.Errorf("no value returned for amount handle %s", amountHandle.Hex())), true)
	}
	vals := loan.DecryptedValues{
		Amount:       new(big.Int).Set(amount),
		InterestRate: copyInt(res[interestHandle]),
	}
	if collateralHandle != (common.Hash{}) {
		vals.CollateralAmount = copyInt(res[collateralHandle])
	}
	d.store(epoch, id, vals)
	return d.finish(ctx, Report{LoanID: id, Outcome: OutcomeDecrypted, Message: MsgDecrypted}, true)
}

func failed(id uint64, err error) Report {
	return Report{LoanID: id, Outcome: OutcomeFailed, Message: msgFailedPrefix + err.Error()}
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func (d *Decryptor) store(epoch, id uint64, v loan.DecryptedValues) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.epoch.Load() != epoch {
		return
	}
	d.values[loan.KeyFor(id)] = v
}

func (d *Decryptor) setMessage(m string) {
	d.mu.Lock()
	d.message = m
	d.mu.Unlock()
}

func (d *Decryptor) finish(ctx context.Context, r Report, setMessage bool) Report {
	if setMessage {
		d.setMessage(r.Message)
	}
	if r.Outcome == OutcomeFailed {
		slog.WarnContext(ctx, "loan decryption failed", "operation", "decrypt_loan", "loan_id", r.LoanID, "message", r.Message)
	} else {
		slog.DebugContext(ctx, "loan decryption finished", "operation", "decrypt_loan", "loan_id", r.LoanID, "outcome", string(r.Outcome))
	}
	for _, o := range d.observers {
		o.DecryptFinished(ctx, r)
	}
	return r
}
