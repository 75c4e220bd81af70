package decryption

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"cryptvault-client/internal/domain/fhe"
)

const keyPrefix = "fhevm.decryptionSignature."

// SignatureCache hands out decryption signatures, prompting the signer only
// when no valid one exists for (user, contract set, chain).
type SignatureCache struct {
	storage fhe.StringStorage
	now     func() time.Time
	days    int

	mu  sync.Mutex
	mem map[string]*fhe.DecryptionSignature
}

func NewSignatureCache(storage fhe.StringStorage, now func() time.Time, durationDays int) *SignatureCache {
	if now == nil {
		now = time.Now
	}
	if durationDays <= 0 {
		durationDays = fhe.DefaultDurationDays
	}
	return &SignatureCache{
		storage: storage,
		now:     now,
		days:    durationDays,
		mem:     make(map[string]*fhe.DecryptionSignature),
	}
}

// CacheKey is independent of contract order and address casing.
func CacheKey(user common.Address, contracts []common.Address, chainID uint64) string {
	parts := make([]string, 0, len(contracts))
	for _, c := range sortedContracts(contracts) {
		parts = append(parts, strings.ToLower(c.Hex()))
	}
	raw := strings.ToLower(user.Hex()) + "|" + strings.Join(parts, ",") + "|" + strconv.FormatUint(chainID, 10)
	return keyPrefix + crypto.Keccak256Hash([]byte(raw)).Hex()[2:]
}

func sortedContracts(contracts []common.Address) []common.Address {
	out := append([]common.Address(nil), contracts...)
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Hex()) < strings.ToLower(out[j].Hex())
	})
	return out
}

// LoadOrSign returns a valid signature, creating one if needed. A declined or
// failed signing prompt yields (nil, nil). Errors are returned only when the
// provider cannot produce key material or typed data.
func (c *SignatureCache) LoadOrSign(ctx context.Context, provider fhe.Provider, contracts []common.Address, signer fhe.Signer) (*fhe.DecryptionSignature, error) {
	if provider == nil || signer == nil {
		return nil, nil
	}
	user := signer.Address()
	chainID := provider.ChainID()
	key := CacheKey(user, contracts, chainID)
	now := c.now()

	c.mu.Lock()
	if sig, ok := c.mem[key]; ok && sig.IsValid(now) {
		c.mu.Unlock()
		return sig, nil
	}
	c.mu.Unlock()

	if sig := c.loadPersisted(ctx, key, user, chainID, now); sig != nil {
		c.remember(key, sig)
		return sig, nil
	}

	sig, err := c.sign(ctx, provider, sortedContracts(contracts), signer, chainID, now)
	if err != nil || sig == nil {
		return nil, err
	}
	c.remember(key, sig)
	c.persist(ctx, key, sig)
	return sig, nil
}

func (c *SignatureCache) remember(key string, sig *fhe.DecryptionSignature) {
	c.mu.Lock()
	c.mem[key] = sig
	c.mu.Unlock()
}

func (c *SignatureCache) loadPersisted(ctx context.Context, key string, user common.Address, chainID uint64, now time.Time) *fhe.DecryptionSignature {
	if c.storage == nil {
		return nil
	}
	raw, ok, err := c.storage.GetItem(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "failed to read stored decryption signature", "operation", "load_signature", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var sig fhe.DecryptionSignature
	if err := json.Unmarshal([]byte(raw), &sig); err != nil {
		slog.WarnContext(ctx, "discarding malformed decryption signature", "operation", "load_signature", "error", err)
		_ = c.storage.RemoveItem(ctx, key)
		return nil
	}
	if sig.UserAddress != user || sig.ChainID != chainID || !sig.IsValid(now) {
		_ = c.storage.RemoveItem(ctx, key)
		return nil
	}
	return &sig
}

func (c *SignatureCache) persist(ctx context.Context, key string, sig *fhe.DecryptionSignature) {
	if c.storage == nil {
		return
	}
	b, err := json.Marshal(sig)
	if err != nil {
		slog.WarnContext(ctx, "failed to encode decryption signature", "operation", "store_signature", "error", err)
		return
	}
	if err := c.storage.SetItem(ctx, key, string(b), sig.ExpiresAt()); err != nil {
		slog.WarnContext(ctx, "failed to store decryption signature", "operation", "store_signature", "error", err)
	}
}

func (c *SignatureCache) sign(ctx context.Context, provider fhe.Provider, contracts []common.Address, signer fhe.Signer, chainID uint64, now time.Time) (*fhe.DecryptionSignature, error) {
	kp, err := provider.GenerateKeypair(ctx)
	if err != nil {
		return nil, fmt.Errorf("generating keypair: %w", err)
	}
	start := now.Unix()
	typed, err := provider.CreateEIP712(kp.PublicKey, contracts, start, c.days)
	if err != nil {
		return nil, fmt.Errorf("building typed data: %w", err)
	}
	raw, err := signer.SignTypedData(ctx, typed)
	if err != nil {
		if errors.Is(err, fhe.ErrUserRejected) {
			slog.InfoContext(ctx, "decryption signature declined", "operation", "sign_decryption", "user", signer.Address().Hex())
		} else {
			slog.WarnContext(ctx, "decryption signature failed", "operation", "sign_decryption", "error", err)
		}
		return nil, nil
	}
	return &fhe.DecryptionSignature{
		PublicKey:         kp.PublicKey,
		PrivateKey:        kp.PrivateKey,
		Signature:         hexutil.Encode(raw),
		StartTimestamp:    start,
		DurationDays:      c.days,
		UserAddress:       signer.Address(),
		ContractAddresses: contracts,
		ChainID:           chainID,
	}, nil
}
