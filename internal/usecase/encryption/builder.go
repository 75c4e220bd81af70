// Package encryption turns plaintext loan fields into encrypted inputs bound
// to a (contract, owner) pair.
package encryption

import (
	"context"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"

	"cryptvault-client/internal/domain/fhe"
	"cryptvault-client/internal/domain/loan"
)

type Builder struct{ provider fhe.Provider }

func NewBuilder(p fhe.Provider) *Builder { return &Builder{provider: p} }

// Ready reports whether a provider instance is attached.
func (b *Builder) Ready() bool { return b != nil && b.provider != nil }

// EncryptValue floors value, clamps it at zero and encrypts it as a 32-bit
// input. There is no retry; provider errors are returned as is.
func (b *Builder) EncryptValue(ctx context.Context, value float64, owner, contract common.Address) (fhe.EncryptedInput, error) {
	if !b.Ready() || owner == (common.Address{}) || contract == (common.Address{}) {
		return fhe.EncryptedInput{}, fmt.Errorf("%w: encryption provider, owner and contract are required", loan.ErrEnvironmentNotReady)
	}
	v, err := sanitize(value)
	if err != nil {
		return fhe.EncryptedInput{}, err
	}
	enc, err := b.provider.CreateEncryptedInput(contract, owner).Add32(v).Encrypt(ctx)
	if err != nil {
		return fhe.EncryptedInput{}, fmt.Errorf("encrypting value: %w", err)
	}
	if len(enc.Handles) == 0 {
		return fhe.EncryptedInput{}, fmt.Errorf("encrypting value: provider returned no handles")
	}
	return enc, nil
}

func sanitize(value float64) (uint32, error) {
	if math.IsNaN(value) {
		return 0, fmt.Errorf("%w: NaN", fhe.ErrValueOutOfRange)
	}
	f := math.Floor(value)
	if f < 0 {
		return 0, nil
	}
	if f > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %.0f", fhe.ErrValueOutOfRange, f)
	}
	return uint32(f), nil
}
