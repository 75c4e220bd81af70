// Package loandata keeps a read model of the lending pool: pool stats, every
// loan, and the account-relative partitions derived from them.
package loandata

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"cryptvault-client/internal/domain/loan"
)

// Inputs identifies what the aggregator reads from. A change of either field
// triggers a re-fetch.
type Inputs struct {
	Contract common.Address
	Reader   loan.ContractReader
}

func (in Inputs) ready() bool { return in.Reader != nil && in.Contract != (common.Address{}) }

// State is a snapshot handed to callers. Partitions are computed from the
// account current at snapshot time.
type State struct {
	Stats          *loan.PoolStats `json:"stats"`
	Loans          []loan.Entry    `json:"loans"`
	MyLoans        []loan.Entry    `json:"my_loans"`
	AvailableLoans []loan.Entry    `json:"available_loans"`
	IsLoading      bool            `json:"is_loading"`
	Error          string          `json:"error,omitempty"`
	RefreshKey     uint64          `json:"refresh_key"`
}

const (
	defaultMaxLoans = 10_000
	readConcurrency = 16
)

type Option func(*Aggregator)

// WithStrictStatus makes unknown on-chain status codes fail the fetch
// instead of defaulting to available.
func WithStrictStatus(strict bool) Option {
	return func(a *Aggregator) { a.strict = strict }
}

// WithMaxLoans bounds the loan count accepted from getTotalLoans. Larger
// counts fail the fetch.
func WithMaxLoans(n uint64) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxLoans = n
		}
	}
}

type Aggregator struct {
	strict   bool
	maxLoans uint64
	gen      atomic.Uint64

	mu         sync.RWMutex
	in         Inputs
	account    common.Address
	refreshKey uint64
	stats      *loan.PoolStats
	loans      []loan.Entry
	loading    bool
	err        error
}

func New(in Inputs, opts ...Option) *Aggregator {
	a := &Aggregator{in: in, maxLoans: defaultMaxLoans}
	for _, o := range opts {
		o(a)
	}
	return a
}

// SetAccount changes the account used for partitioning. No fetch is needed.
func (a *Aggregator) SetAccount(account common.Address) {
	a.mu.Lock()
	a.account = account
	a.mu.Unlock()
}

// SetInputs swaps the contract/reader pair and re-fetches.
func (a *Aggregator) SetInputs(ctx context.Context, in Inputs) error {
	a.mu.Lock()
	a.in = in
	a.mu.Unlock()
	return a.Load(ctx)
}

// Refresh bumps the refresh key and re-fetches.
func (a *Aggregator) Refresh(ctx context.Context) error {
	a.mu.Lock()
	a.refreshKey++
	a.mu.Unlock()
	return a.Load(ctx)
}

// LoanSettled refreshes after a confirmed lifecycle transaction.
func (a *Aggregator) LoanSettled(ctx context.Context, ev loan.SettleEvent) {
	if err := a.Refresh(ctx); err != nil {
		slog.WarnContext(ctx, "refresh after settle failed",
			"operation", "load_loans",
			"action", string(ev.Action),
			"tx_hash", ev.TxHash.Hex(),
			"error", err,
		)
	}
}

// Load fetches stats and loans with the current inputs. A load that was
// overtaken by a newer one returns loan.ErrSuperseded and leaves state alone.
func (a *Aggregator) Load(ctx context.Context) error {
	gen := a.gen.Add(1)

	a.mu.Lock()
	in := a.in
	if !in.ready() {
		a.stats, a.loans, a.err, a.loading = nil, nil, nil, false
		a.mu.Unlock()
		return nil
	}
	a.loading = true
	a.err = nil
	a.mu.Unlock()

	stats, loans, err := a.fetch(ctx, in)

	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen.Load() {
		slog.DebugContext(ctx, "discarding superseded loan fetch", "operation", "load_loans", "generation", gen)
		return loan.ErrSuperseded
	}
	a.loading = false
	if err != nil {
		a.err = err
		slog.ErrorContext(ctx, "failed to load loan data", "operation", "load_loans", "error", err)
		return err
	}
	a.stats = &stats
	a.loans = loans
	return nil
}

func (a *Aggregator) fetch(ctx context.Context, in Inputs) (loan.PoolStats, []loan.Entry, error) {
	var (
		stats loan.PoolStats
		loans []loan.Entry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := in.Reader.ReadContract(gctx, loan.ReadRequest{Address: in.Contract, Method: loan.MethodGetPoolStats})
		if err != nil {
			return fmt.Errorf("reading pool stats: %w", err)
		}
		stats, err = decodeStats(out)
		return err
	})
	g.Go(func() (err error) {
		loans, err = a.fetchLoans(gctx, in)
		return err
	})
	if err := g.Wait(); err != nil {
		return loan.PoolStats{}, nil, err
	}
	return stats, loans, nil
}

func (a *Aggregator) fetchLoans(ctx context.Context, in Inputs) ([]loan.Entry, error) {
	out, err := in.Reader.ReadContract(ctx, loan.ReadRequest{Address: in.Contract, Method: loan.MethodGetTotalLoans})
	if err != nil {
		return nil, fmt.Errorf("reading loan count: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("getTotalLoans: expected 1 output, got %d", len(out))
	}
	total, err := asUint(out[0])
	if err != nil {
		return nil, fmt.Errorf("getTotalLoans: %w", err)
	}
	if total > a.maxLoans {
		return nil, fmt.Errorf("getTotalLoans: %d loans exceeds limit %d", total, a.maxLoans)
	}
	loans := make([]loan.Entry, total)
	if total == 0 {
		return loans, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i := uint64(0); i < total; i++ {
		g.Go(func() error {
			out, err := in.Reader.ReadContract(gctx, loan.ReadRequest{
				Address: in.Contract,
				Method:  loan.MethodGetLoan,
				Args:    []any{new(big.Int).SetUint64(i)},
			})
			if err != nil {
				return fmt.Errorf("reading loan %d: %w", i, err)
			}
			entry, known, err := decodeLoan(i, out, a.strict)
			if err != nil {
				return err
			}
			if !known {
				slog.WarnContext(gctx, "unknown loan status, treating as available", "operation", "load_loans", "loan_id", i)
			}
			loans[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return loans, nil
}

// State returns a copy of the current read model.
func (a *Aggregator) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := State{
		Loans:      append([]loan.Entry{}, a.loans...),
		IsLoading:  a.loading,
		RefreshKey: a.refreshKey,
	}
	if a.stats != nil {
		st := *a.stats
		s.Stats = &st
	}
	if a.err != nil {
		s.Error = a.err.Error()
	}
	s.MyLoans, s.AvailableLoans = Partition(s.Loans, a.account)
	return s
}

// Find returns the loan with the given id from the last successful fetch.
func (a *Aggregator) Find(id uint64) (loan.Entry, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, l := range a.loans {
		if l.ID == id {
			return l, true
		}
	}
	return loan.Entry{}, false
}

// Partition splits loans into the account's own loans and the available
// loans it could fund. With no account, myLoans is empty.
func Partition(loans []loan.Entry, account common.Address) (mine, available []loan.Entry) {
	mine, available = []loan.Entry{}, []loan.Entry{}
	hasAccount := account != (common.Address{})
	for _, l := range loans {
		own := hasAccount && l.BorrowedBy(account)
		if own {
			mine = append(mine, l)
		}
		if l.Status == loan.StatusAvailable && !own {
			available = append(available, l)
		}
	}
	return mine, available
}
