package encryption

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"cryptvault-client/internal/domain/fhe"
	"cryptvault-client/internal/domain/loan"
	"cryptvault-client/internal/testutil/providermock"
)

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	contract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
)

func TestEncryptValue_BindsOwnerAndContract(t *testing.T) {
	p := &providermock.Provider{}
	b := NewBuilder(p)

	enc, err := b.EncryptValue(context.Background(), 750.9, owner, contract)
	if err != nil {
		t.Fatalf("EncryptValue err: %v", err)
	}
	if len(enc.Handles) != 1 {
		t.Fatalf("handles = %d", len(enc.Handles))
	}
	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	got := calls[0]
	if got.Owner != owner || got.Contract != contract {
		t.Fatalf("bound to %s/%s", got.Owner, got.Contract)
	}
	if len(got.Values) != 1 || got.Values[0] != 750 {
		t.Fatalf("values = %v, want [750]", got.Values)
	}
}

func TestEncryptValue_ClampsNegativeToZero(t *testing.T) {
	p := &providermock.Provider{}
	if _, err := NewBuilder(p).EncryptValue(context.Background(), -5, owner, contract); err != nil {
		t.Fatalf("EncryptValue err: %v", err)
	}
	if v := p.Calls()[0].Values[0]; v != 0 {
		t.Fatalf("value = %d, want 0", v)
	}
}

func TestEncryptValue_OutOfRange(t *testing.T) {
	p := &providermock.Provider{}
	_, err := NewBuilder(p).EncryptValue(context.Background(), 1<<33, owner, contract)
	if !errors.Is(err, fhe.ErrValueOutOfRange) {
		t.Fatalf("want ErrValueOutOfRange, got %v", err)
	}
	if len(p.Calls()) != 0 {
		t.Fatal("provider must not be called")
	}
}

func TestEncryptValue_EnvironmentNotReady(t *testing.T) {
	cases := map[string]struct {
		b        *Builder
		owner    common.Address
		contract common.Address
	}{
		"no provider": {NewBuilder(nil), owner, contract},
		"no owner":    {NewBuilder(&providermock.Provider{}), common.Address{}, contract},
		"no contract": {NewBuilder(&providermock.Provider{}), owner, common.Address{}},
	}
	for name, tc := range cases {
		_, err := tc.b.EncryptValue(context.Background(), 1, tc.owner, tc.contract)
		if !errors.Is(err, loan.ErrEnvironmentNotReady) {
			t.Fatalf("%s: want ErrEnvironmentNotReady, got %v", name, err)
		}
	}
}

func TestEncryptValue_ProviderErrorPropagates(t *testing.T) {
	boom := errors.New("relayer down")
	p := &providermock.Provider{
		EncryptFn: func(context.Context, providermock.Input) (fhe.EncryptedInput, error) {
			return fhe.EncryptedInput{}, boom
		},
	}
	_, err := NewBuilder(p).EncryptValue(context.Background(), 1, owner, contract)
	if !errors.Is(err, boom) {
		t.Fatalf("want wrapped provider error, got %v", err)
	}
	if len(p.Calls()) != 1 {
		t.Fatalf("calls = %d, want exactly 1 (no retry)", len(p.Calls()))
	}
}
