// Package fhe describes the encryption provider and wallet signer the client
// depends on. Encryption and decryption themselves happen outside this module.
package fhe

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"cryptvault-client/internal/codec"
)

// EncryptedInput is bound to the (contract, owner) pair it was created for.
type EncryptedInput struct {
	Handles    []codec.Bytes
	InputProof codec.Bytes
}

// InputBuilder accumulates plaintexts for one encrypted input.
type InputBuilder interface {
	Add32(v uint32) InputBuilder
	Encrypt(ctx context.Context) (EncryptedInput, error)
}

type HandleContractPair struct {
	Handle   common.Hash    `json:"handle"`
	Contract common.Address `json:"contractAddress"`
}

// Keypair is the ephemeral key material the provider re-encrypts results to.
type Keypair struct {
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

type UserDecryptRequest struct {
	Pairs          []HandleContractPair
	PrivateKey     string
	PublicKey      string
	Signature      string
	Contracts      []common.Address
	User           common.Address
	StartTimestamp int64
	DurationDays   int
}

type Provider interface {
	ChainID() uint64
	CreateEncryptedInput(contract, owner common.Address) InputBuilder
	GenerateKeypair(ctx context.Context) (Keypair, error)
	CreateEIP712(publicKey string, contracts []common.Address, startTimestamp int64, durationDays int) (apitypes.TypedData, error)
	UserDecrypt(ctx context.Context, req UserDecryptRequest) (map[common.Hash]*big.Int, error)
}

// Signer is the wallet. SignTypedData returns an error wrapping
// ErrUserRejected when the holder declines the prompt.
type Signer interface {
	Address() common.Address
	SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error)
}
