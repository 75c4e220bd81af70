package fhe

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	DefaultDurationDays = 365

	userDecryptPrimaryType = "UserDecryptRequestVerification"
)

// DecryptionSignature authorizes the provider to re-encrypt the user's
// handles for the listed contracts until StartTimestamp + DurationDays.
type DecryptionSignature struct {
	PublicKey         string           `json:"publicKey"`
	PrivateKey        string           `json:"privateKey"`
	Signature         string           `json:"signature"`
	StartTimestamp    int64            `json:"startTimestamp"`
	DurationDays      int              `json:"durationDays"`
	UserAddress       common.Address   `json:"userAddress"`
	ContractAddresses []common.Address `json:"contractAddresses"`
	ChainID           uint64           `json:"chainId"`
}

func (s *DecryptionSignature) ExpiresAt() time.Time {
	return time.Unix(s.StartTimestamp, 0).Add(time.Duration(s.DurationDays) * 24 * time.Hour)
}

func (s *DecryptionSignature) IsValid(now time.Time) bool {
	return s != nil && s.Signature != "" && now.Before(s.ExpiresAt())
}

// StringStorage persists serialized signatures. expiresAt lets backends with
// native expiry drop stale entries.
type StringStorage interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string, expiresAt time.Time) error
	RemoveItem(ctx context.Context, key string) error
}

// NewUserDecryptTypedData builds the EIP-712 payload the wallet signs to
// authorize user decryption.
func NewUserDecryptTypedData(chainID uint64, verifyingContract common.Address, publicKey string, contracts []common.Address, startTimestamp int64, durationDays int) apitypes.TypedData {
	if !strings.HasPrefix(publicKey, "0x") {
		publicKey = "0x" + publicKey
	}
	addrs := make([]interface{}, len(contracts))
	for i, c := range contracts {
		addrs[i] = c.Hex()
	}
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			userDecryptPrimaryType: {
				{Name: "publicKey", Type: "bytes"},
				{Name: "contractAddresses", Type: "address[]"},
				{Name: "startTimestamp", Type: "uint256"},
				{Name: "durationDays", Type: "uint256"},
				{Name: "extraData", Type: "bytes"},
			},
		},
		PrimaryType: userDecryptPrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              "Decryption",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(int64(chainID)),
			VerifyingContract: verifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"publicKey":         publicKey,
			"contractAddresses": addrs,
			"startTimestamp":    strconv.FormatInt(startTimestamp, 10),
			"durationDays":      strconv.Itoa(durationDays),
			"extraData":         "0x00",
		},
	}
}
