package loan

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"cryptvault-client/internal/domain/fhe"
	domain "cryptvault-client/internal/domain/loan"
	"cryptvault-client/internal/testutil/chainmock"
	"cryptvault-client/internal/testutil/providermock"
	"cryptvault-client/internal/usecase/encryption"
)

var (
	poolAddr    = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	accountAddr = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

func newTestUsecase(p *providermock.Provider, w *chainmock.Writer, obs ...domain.SettleObserver) *Usecase {
	return NewUsecase(Params{
		Contract:  poolAddr,
		Account:   accountAddr,
		Encryptor: encryption.NewBuilder(p),
		Writer:    w,
		Observers: obs,
	})
}

func validInput() CreateLoanInput {
	return CreateLoanInput{
		Amount:           50000,
		InterestRate:     7.5,
		Duration:         12,
		CollateralType:   "ETH",
		CollateralAmount: 100000,
	}
}

func TestCreateLoan_SubmitsEightArgsInOrder(t *testing.T) {
	p := &providermock.Provider{}
	w := &chainmock.Writer{}
	obs := &chainmock.Observer{}
	uc := newTestUsecase(p, w, obs)

	hash, err := uc.CreateLoan(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if hash != common.HexToHash("0x01") {
		t.Fatalf("hash = %s", hash.Hex())
	}

	calls := p.Calls()
	if len(calls) != 3 {
		t.Fatalf("expected 3 encryptions, got %d", len(calls))
	}
	var values []int
	for _, c := range calls {
		if c.Contract != poolAddr || c.Owner != accountAddr {
			t.Fatalf("input bound to wrong pair: %+v", c)
		}
		values = append(values, int(c.Values[0]))
	}
	sort.Ints(values)
	if values[0] != 750 || values[1] != 50000 || values[2] != 100000 {
		t.Fatalf("encrypted values = %v, want [750 50000 100000]", values)
	}

	writes := w.Recorded()
	if len(writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(writes))
	}
	req := writes[0]
	if req.Method != domain.MethodCreateLoan || req.Address != poolAddr {
		t.Fatalf("unexpected request: %+v", req)
	}
	if len(req.Args) != 8 {
		t.Fatalf("expected 8 args, got %d", len(req.Args))
	}
	handle := func(v int64) string { return common.BigToHash(big.NewInt(v)).Hex() }
	want := []any{
		handle(50001), "0xaa01",
		handle(751), "0xaa01",
		uint16(12), "ETH",
		handle(100001), "0xaa01",
	}
	for i := range want {
		if req.Args[i] != want[i] {
			t.Fatalf("arg %d = %v, want %v", i, req.Args[i], want[i])
		}
	}

	if obs.Count() != 1 || obs.Events[0].Action != domain.ActionCreate {
		t.Fatalf("observer not notified once: %+v", obs.Events)
	}
	if uc.IsCreating() {
		t.Fatalf("creating flag should be cleared")
	}
}

func TestCreateLoan_ValidationRejectsBeforeAnyCall(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*CreateLoanInput)
	}{
		{"zero amount", func(in *CreateLoanInput) { in.Amount = 0 }},
		{"zero rate", func(in *CreateLoanInput) { in.InterestRate = 0 }},
		{"zero duration", func(in *CreateLoanInput) { in.Duration = 0 }},
		{"duration overflow", func(in *CreateLoanInput) { in.Duration = 70000 }},
		{"negative collateral", func(in *CreateLoanInput) { in.CollateralAmount = -1 }},
		{"blank collateral type", func(in *CreateLoanInput) { in.CollateralType = "  " }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &providermock.Provider{}
			w := &chainmock.Writer{}
			uc := newTestUsecase(p, w)

			in := validInput()
			tc.mod(&in)
			_, err := uc.CreateLoan(context.Background(), in)
			if !errors.Is(err, domain.ErrInvalidLoanParameters) {
				t.Fatalf("expected ErrInvalidLoanParameters, got %v", err)
			}
			if len(p.Calls()) != 0 || len(w.Recorded()) != 0 {
				t.Fatalf("no external calls expected")
			}
		})
	}
}

func TestCreateLoan_EnvironmentNotReady(t *testing.T) {
	w := &chainmock.Writer{}

	noContract := NewUsecase(Params{Account: accountAddr, Encryptor: encryption.NewBuilder(&providermock.Provider{}), Writer: w})
	if _, err := noContract.CreateLoan(context.Background(), validInput()); !errors.Is(err, domain.ErrEnvironmentNotReady) {
		t.Fatalf("missing contract: got %v", err)
	}

	noProvider := NewUsecase(Params{Contract: poolAddr, Account: accountAddr, Encryptor: encryption.NewBuilder(nil), Writer: w})
	if _, err := noProvider.CreateLoan(context.Background(), validInput()); !errors.Is(err, domain.ErrEnvironmentNotReady) {
		t.Fatalf("missing provider: got %v", err)
	}

	noAccount := NewUsecase(Params{Contract: poolAddr, Encryptor: encryption.NewBuilder(&providermock.Provider{}), Writer: w})
	if _, err := noAccount.CreateLoan(context.Background(), validInput()); !errors.Is(err, domain.ErrEnvironmentNotReady) {
		t.Fatalf("missing account: got %v", err)
	}

	if len(w.Recorded()) != 0 {
		t.Fatalf("no writes expected")
	}
}

func TestCreateLoan_EncryptionFailureClearsFlag(t *testing.T) {
	p := &providermock.Provider{
		EncryptFn: func(ctx context.Context, in providermock.Input) (fhe.EncryptedInput, error) {
			return fhe.EncryptedInput{}, errors.New("relayer down")
		},
	}
	w := &chainmock.Writer{}
	uc := newTestUsecase(p, w)

	if _, err := uc.CreateLoan(context.Background(), validInput()); err == nil {
		t.Fatalf("expected error")
	}
	if uc.IsCreating() {
		t.Fatalf("creating flag should be cleared")
	}
	if len(w.Recorded()) != 0 {
		t.Fatalf("nothing should be submitted")
	}
}

func TestCreateLoan_WalletNotConnected(t *testing.T) {
	w := &chainmock.Writer{Disconnected: true}
	uc := newTestUsecase(&providermock.Provider{}, w)

	_, err := uc.CreateLoan(context.Background(), validInput())
	if !errors.Is(err, domain.ErrWalletNotConnected) {
		t.Fatalf("expected ErrWalletNotConnected, got %v", err)
	}
}

func TestCreateLoan_FlagSetWhileInFlight(t *testing.T) {
	var uc *Usecase
	var seen bool
	w := &chainmock.Writer{
		WriteContractFn: func(ctx context.Context, req domain.WriteRequest) (common.Hash, error) {
			seen = uc.IsCreating()
			return common.HexToHash("0x02"), nil
		},
	}
	uc = newTestUsecase(&providermock.Provider{}, w)
	if _, err := uc.CreateLoan(context.Background(), validInput()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !seen {
		t.Fatalf("IsCreating should be true during submission")
	}
}

func TestFundAndRepay(t *testing.T) {
	w := &chainmock.Writer{}
	obs := &chainmock.Observer{}
	uc := newTestUsecase(&providermock.Provider{}, w, obs)

	if _, err := uc.FundLoan(context.Background(), 5); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if _, err := uc.RepayLoan(context.Background(), 2); err != nil {
		t.Fatalf("repay: %v", err)
	}

	writes := w.Recorded()
	if len(writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(writes))
	}
	if writes[0].Method != domain.MethodFundLoan || writes[0].Args[0].(*big.Int).Uint64() != 5 {
		t.Fatalf("unexpected fund request: %+v", writes[0])
	}
	if writes[1].Method != domain.MethodRepayLoan || writes[1].Args[0].(*big.Int).Uint64() != 2 {
		t.Fatalf("unexpected repay request: %+v", writes[1])
	}
	if obs.Count() != 2 || obs.Events[0].LoanID != 5 || obs.Events[1].Action != domain.ActionRepay {
		t.Fatalf("unexpected events: %+v", obs.Events)
	}
	if uc.IsFunding() || uc.IsRepaying() {
		t.Fatalf("flags should be cleared")
	}
}

func TestFundLoan_RevertedReceiptSkipsObservers(t *testing.T) {
	w := &chainmock.Writer{
		WaitForReceiptFn: func(ctx context.Context, hash common.Hash) (*domain.Receipt, error) {
			return &domain.Receipt{TxHash: hash, Succeeded: false}, nil
		},
	}
	obs := &chainmock.Observer{}
	uc := newTestUsecase(&providermock.Provider{}, w, obs)

	_, err := uc.FundLoan(context.Background(), 1)
	if !errors.Is(err, domain.ErrTransactionReverted) {
		t.Fatalf("expected ErrTransactionReverted, got %v", err)
	}
	if obs.Count() != 0 {
		t.Fatalf("observer must not be notified on revert")
	}
	if uc.IsFunding() {
		t.Fatalf("funding flag should be cleared")
	}
}

func TestRepayLoan_RequiresConnectionAndContract(t *testing.T) {
	uc := newTestUsecase(&providermock.Provider{}, &chainmock.Writer{Disconnected: true})
	if _, err := uc.RepayLoan(context.Background(), 1); !errors.Is(err, domain.ErrWalletNotConnected) {
		t.Fatalf("expected ErrWalletNotConnected, got %v", err)
	}

	noContract := NewUsecase(Params{Writer: &chainmock.Writer{}})
	if _, err := noContract.RepayLoan(context.Background(), 1); !errors.Is(err, domain.ErrEnvironmentNotReady) {
		t.Fatalf("expected ErrEnvironmentNotReady, got %v", err)
	}
}

func TestSubscribe_AddsObserver(t *testing.T) {
	uc := newTestUsecase(&providermock.Provider{}, &chainmock.Writer{})
	obs := &chainmock.Observer{}
	uc.Subscribe(obs)
	if _, err := uc.FundLoan(context.Background(), 3); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if obs.Count() != 1 {
		t.Fatalf("subscribed observer not notified")
	}
}

type ctxObserver struct{ errs []error }

func (o *ctxObserver) LoanSettled(ctx context.Context, _ domain.SettleEvent) {
	o.errs = append(o.errs, ctx.Err())
}

func TestSettle_ObserversOutliveCancelledRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := &chainmock.Writer{
		WaitForReceiptFn: func(_ context.Context, hash common.Hash) (*domain.Receipt, error) {
			// client disconnects right after the receipt lands
			cancel()
			return &domain.Receipt{TxHash: hash, Succeeded: true}, nil
		},
	}
	obs := &ctxObserver{}
	uc := newTestUsecase(&providermock.Provider{}, w, obs)

	if _, err := uc.RepayLoan(ctx, 2); err != nil {
		t.Fatalf("repay: %v", err)
	}
	if len(obs.errs) != 1 || obs.errs[0] != nil {
		t.Fatalf("observer should get a live context, got %v", obs.errs)
	}
}
