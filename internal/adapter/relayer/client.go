// Package relayer implements fhe.Provider against an HTTP relayer that owns
// the encryption keys and performs encryption and user decryption.
package relayer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"cryptvault-client/internal/codec"
	"cryptvault-client/internal/domain/fhe"
)

type Config struct {
	BaseURL string
	ChainID uint64
	// Verifier is the decryption verifier contract named in the EIP-712 domain.
	Verifier common.Address
	Timeout  time.Duration
}

type Client struct {
	base     string
	chainID  uint64
	verifier common.Address
	http     *http.Client
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("%w: relayer url required", fhe.ErrProviderUnavailable)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base:     base,
		chainID:  cfg.ChainID,
		verifier: cfg.Verifier,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) ChainID() uint64 { return c.chainID }

func (c *Client) CreateEncryptedInput(contract, owner common.Address) fhe.InputBuilder {
	return &inputBuilder{c: c, contract: contract, owner: owner}
}

type keypairResponse struct {
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

func (c *Client) GenerateKeypair(ctx context.Context) (fhe.Keypair, error) {
	var resp keypairResponse
	if err := c.post(ctx, "/v1/keypair", struct{}{}, &resp); err != nil {
		return fhe.Keypair{}, err
	}
	if resp.PublicKey == "" || resp.PrivateKey == "" {
		return fhe.Keypair{}, fmt.Errorf("relayer returned an empty keypair")
	}
	return fhe.Keypair{PublicKey: resp.PublicKey, PrivateKey: resp.PrivateKey}, nil
}

func (c *Client) CreateEIP712(publicKey string, contracts []common.Address, start int64, days int) (apitypes.TypedData, error) {
	if publicKey == "" {
		return apitypes.TypedData{}, fmt.Errorf("public key required")
	}
	return fhe.NewUserDecryptTypedData(c.chainID, c.verifier, publicKey, contracts, start, days), nil
}

type userDecryptRequest struct {
	Pairs          []fhe.HandleContractPair `json:"handleContractPairs"`
	PrivateKey     string                   `json:"privateKey"`
	PublicKey      string                   `json:"publicKey"`
	Signature      string                   `json:"signature"`
	Contracts      []common.Address         `json:"contractAddresses"`
	User           common.Address           `json:"userAddress"`
	StartTimestamp int64                    `json:"startTimestamp"`
	DurationDays   int                      `json:"durationDays"`
	ChainID        uint64                   `json:"chainId"`
}

type userDecryptResponse struct {
	Results map[string]string `json:"results"`
}

// UserDecrypt returns plaintexts keyed by handle. Values arrive as decimal or
// 0x-prefixed strings so that 256-bit values survive JSON.
func (c *Client) UserDecrypt(ctx context.Context, req fhe.UserDecryptRequest) (map[common.Hash]*big.Int, error) {
	body := userDecryptRequest{
		Pairs:          req.Pairs,
		PrivateKey:     req.PrivateKey,
		PublicKey:      req.PublicKey,
		Signature:      req.Signature,
		Contracts:      req.Contracts,
		User:           req.User,
		StartTimestamp: req.StartTimestamp,
		DurationDays:   req.DurationDays,
		ChainID:        c.chainID,
	}
	var resp userDecryptResponse
	if err := c.post(ctx, "/v1/user-decrypt", body, &resp); err != nil {
		return nil, err
	}
	out := make(map[common.Hash]*big.Int, len(resp.Results))
	for k, v := range resp.Results {
		n, ok := new(big.Int).SetString(v, 0)
		if !ok {
			return nil, fmt.Errorf("relayer returned non-numeric value for %s", k)
		}
		out[common.HexToHash(k)] = n
	}
	return out, nil
}

type inputBuilder struct {
	c        *Client
	contract common.Address
	owner    common.Address
	values   []uint32
}

func (b *inputBuilder) Add32(v uint32) fhe.InputBuilder {
	b.values = append(b.values, v)
	return b
}

type encryptValue struct {
	Type  string `json:"type"`
	Value uint32 `json:"value"`
}

type encryptRequest struct {
	ChainID  uint64         `json:"chainId"`
	Contract common.Address `json:"contractAddress"`
	User     common.Address `json:"userAddress"`
	Values   []encryptValue `json:"values"`
}

type encryptResponse struct {
	Handles    []codec.Bytes `json:"handles"`
	InputProof codec.Bytes   `json:"inputProof"`
}

func (b *inputBuilder) Encrypt(ctx context.Context) (fhe.EncryptedInput, error) {
	req := encryptRequest{ChainID: b.c.chainID, Contract: b.contract, User: b.owner}
	for _, v := range b.values {
		req.Values = append(req.Values, encryptValue{Type: "euint32", Value: v})
	}
	var resp encryptResponse
	if err := b.c.post(ctx, "/v1/encrypt", req, &resp); err != nil {
		return fhe.EncryptedInput{}, err
	}
	return fhe.EncryptedInput{Handles: resp.Handles, InputProof: resp.InputProof}, nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", fhe.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s returned %d", fhe.ErrProviderUnavailable, path, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		_ = json.Unmarshal(body, &e)
		msg := e.Message
		if msg == "" {
			msg = e.Error
		}
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return fmt.Errorf("relayer %s (%d): %s", path, resp.StatusCode, msg)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
