package chainmock

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"cryptvault-client/internal/domain/loan"
)

// Reader is a function-backed loan.ContractReader.
type Reader struct {
	ReadContractFn func(ctx context.Context, req loan.ReadRequest) ([]any, error)
}

func (m *Reader) ReadContract(ctx context.Context, req loan.ReadRequest) ([]any, error) {
	if m.ReadContractFn != nil {
		return m.ReadContractFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

// Writer is a function-backed loan.ContractWriter that records submitted calls.
type Writer struct {
	Disconnected     bool
	WriteContractFn  func(ctx context.Context, req loan.WriteRequest) (common.Hash, error)
	WaitForReceiptFn func(ctx context.Context, hash common.Hash) (*loan.Receipt, error)

	mu     sync.Mutex
	Writes []loan.WriteRequest
}

func (m *Writer) IsConnected() bool { return !m.Disconnected }

func (m *Writer) WriteContract(ctx context.Context, req loan.WriteRequest) (common.Hash, error) {
	m.mu.Lock()
	m.Writes = append(m.Writes, req)
	m.mu.Unlock()
	if m.WriteContractFn != nil {
		return m.WriteContractFn(ctx, req)
	}
	return common.HexToHash("0x01"), nil
}

func (m *Writer) WaitForReceipt(ctx context.Context, hash common.Hash) (*loan.Receipt, error) {
	if m.WaitForReceiptFn != nil {
		return m.WaitForReceiptFn(ctx, hash)
	}
	return &loan.Receipt{TxHash: hash, BlockNumber: 1, Succeeded: true}, nil
}

// Recorded returns a copy of the submitted writes.
func (m *Writer) Recorded() []loan.WriteRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]loan.WriteRequest(nil), m.Writes...)
}

// Observer collects settle events.
type Observer struct {
	mu     sync.Mutex
	Events []loan.SettleEvent
}

func (o *Observer) LoanSettled(_ context.Context, ev loan.SettleEvent) {
	o.mu.Lock()
	o.Events = append(o.Events, ev)
	o.mu.Unlock()
}

func (o *Observer) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.Events)
}
