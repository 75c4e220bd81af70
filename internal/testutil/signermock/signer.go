package signermock

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Signer is a function-backed fhe.Signer that counts prompts.
type Signer struct {
	Addr            common.Address
	SignTypedDataFn func(ctx context.Context, data apitypes.TypedData) ([]byte, error)

	mu      sync.Mutex
	Prompts int
}

func (s *Signer) Address() common.Address { return s.Addr }

func (s *Signer) SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error) {
	s.mu.Lock()
	s.Prompts++
	s.mu.Unlock()
	if s.SignTypedDataFn != nil {
		return s.SignTypedDataFn(ctx, data)
	}
	return []byte{0x01, 0x02, 0x03}, nil
}

func (s *Signer) PromptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Prompts
}
