package providermock

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"cryptvault-client/internal/codec"
	"cryptvault-client/internal/domain/fhe"
)

// Input records one CreateEncryptedInput call.
type Input struct {
	Contract common.Address
	Owner    common.Address
	Values   []uint32
}

// Provider is a function-backed fhe.Provider. Unset functions fall back to
// deterministic fakes so tests only stub what they assert on.
type Provider struct {
	Chain uint64

	EncryptFn         func(ctx context.Context, in Input) (fhe.EncryptedInput, error)
	GenerateKeypairFn func(ctx context.Context) (fhe.Keypair, error)
	UserDecryptFn     func(ctx context.Context, req fhe.UserDecryptRequest) (map[common.Hash]*big.Int, error)

	mu           sync.Mutex
	Inputs       []Input
	DecryptCalls int
	KeypairCalls int
}

func (p *Provider) ChainID() uint64 {
	if p.Chain == 0 {
		return 31337
	}
	return p.Chain
}

func (p *Provider) CreateEncryptedInput(contract, owner common.Address) fhe.InputBuilder {
	return &builder{p: p, in: Input{Contract: contract, Owner: owner}}
}

func (p *Provider) GenerateKeypair(ctx context.Context) (fhe.Keypair, error) {
	p.mu.Lock()
	p.KeypairCalls++
	p.mu.Unlock()
	if p.GenerateKeypairFn != nil {
		return p.GenerateKeypairFn(ctx)
	}
	return fhe.Keypair{PublicKey: "0x0a0b", PrivateKey: "0x0c0d"}, nil
}

func (p *Provider) CreateEIP712(publicKey string, contracts []common.Address, start int64, days int) (apitypes.TypedData, error) {
	return fhe.NewUserDecryptTypedData(p.ChainID(), common.Address{}, publicKey, contracts, start, days), nil
}

func (p *Provider) UserDecrypt(ctx context.Context, req fhe.UserDecryptRequest) (map[common.Hash]*big.Int, error) {
	p.mu.Lock()
	p.DecryptCalls++
	p.mu.Unlock()
	if p.UserDecryptFn != nil {
		return p.UserDecryptFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

// Calls returns a copy of the recorded encryption inputs.
func (p *Provider) Calls() []Input {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Input(nil), p.Inputs...)
}

type builder struct {
	p  *Provider
	in Input
}

func (b *builder) Add32(v uint32) fhe.InputBuilder {
	b.in.Values = append(b.in.Values, v)
	return b
}

func (b *builder) Encrypt(ctx context.Context) (fhe.EncryptedInput, error) {
	b.p.mu.Lock()
	b.p.Inputs = append(b.p.Inputs, b.in)
	b.p.mu.Unlock()
	if b.p.EncryptFn != nil {
		return b.p.EncryptFn(ctx, b.in)
	}
	return FakeEncrypt(b.in), nil
}

// FakeEncrypt derives a handle from the first value and returns raw-byte
// handle and proof, the shape a wasm provider hands back.
func FakeEncrypt(in Input) fhe.EncryptedInput {
	var h common.Hash
	if len(in.Values) > 0 {
		h = common.BigToHash(new(big.Int).SetUint64(uint64(in.Values[0]) + 1))
	}
	return fhe.EncryptedInput{
		Handles:    []codec.Bytes{codec.FromRaw(h.Bytes())},
		InputProof: codec.FromRaw([]byte{0xAA, byte(len(in.Values))}),
	}
}
