// Package chain talks to the lending pool contract over JSON-RPC.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"cryptvault-client/internal/domain/loan"
)

// Backend is the subset of the Ethereum RPC used by the client.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

// TxSigner signs transactions for the connected wallet.
type TxSigner interface {
	Address() common.Address
	SignTx(tx *gethtypes.Transaction, chainID *big.Int) (*gethtypes.Transaction, error)
}

// Dial opens an RPC client for the endpoint.
func Dial(endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("rpc endpoint required")
	}
	return ethclient.Dial(trimmed)
}

type Options struct {
	ChainID      uint64
	PollInterval time.Duration
}

// Client implements loan.ContractReader and loan.ContractWriter. Without a
// signer it is read-only and reports itself as disconnected.
type Client struct {
	backend  Backend
	signer   TxSigner
	abi      abi.ABI
	chainID  *big.Int
	interval time.Duration
}

func NewClient(backend Backend, signer TxSigner, opts Options) (*Client, error) {
	if backend == nil {
		return nil, fmt.Errorf("chain backend required")
	}
	parsed, err := ParseABI(LendingPoolABI)
	if err != nil {
		return nil, err
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &Client{
		backend:  backend,
		signer:   signer,
		abi:      parsed,
		chainID:  new(big.Int).SetUint64(opts.ChainID),
		interval: interval,
	}, nil
}

func (c *Client) ReadContract(ctx context.Context, req loan.ReadRequest) ([]any, error) {
	data, err := c.pack(req.Method, req.Args)
	if err != nil {
		return nil, err
	}
	to := req.Address
	msg := ethereum.CallMsg{To: &to, Data: data}
	if c.signer != nil {
		msg.From = c.signer.Address()
	}
	raw, err := c.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", req.Method, err)
	}
	out, err := c.abi.Unpack(req.Method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", req.Method, err)
	}
	return out, nil
}

func (c *Client) IsConnected() bool { return c.signer != nil }

// WriteContract builds, signs and broadcasts an EIP-1559 transaction.
func (c *Client) WriteContract(ctx context.Context, req loan.WriteRequest) (common.Hash, error) {
	if c.signer == nil {
		return common.Hash{}, loan.ErrWalletNotConnected
	}
	data, err := c.pack(req.Method, req.Args)
	if err != nil {
		return common.Hash{}, err
	}
	from := c.signer.Address()
	to := req.Address

	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch nonce: %w", err)
	}
	tip, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest tip: %w", err)
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch head: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head != nil && head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data, GasTipCap: tip, GasFeeCap: feeCap})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas for %s: %w", req.Method, err)
	}

	tx := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Data:      data,
	})
	signed, err := c.signer.SignTx(tx, c.chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign %s: %w", req.Method, err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send %s: %w", req.Method, err)
	}
	slog.InfoContext(ctx, "transaction sent",
		"operation", req.Method,
		"tx_hash", signed.Hash().Hex(),
		"nonce", nonce,
		"gas", gas,
	)
	return signed.Hash(), nil
}

// WaitForReceipt polls until the receipt is available or ctx ends.
func (c *Client) WaitForReceipt(ctx context.Context, hash common.Hash) (*loan.Receipt, error) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		r, err := c.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && r != nil:
			out := &loan.Receipt{
				TxHash:    hash,
				Succeeded: r.Status == gethtypes.ReceiptStatusSuccessful,
			}
			if r.BlockNumber != nil {
				out.BlockNumber = r.BlockNumber.Uint64()
			}
			return out, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			return nil, fmt.Errorf("fetch receipt: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) pack(method string, args []any) ([]byte, error) {
	m, ok := c.abi.Methods[method]
	if !ok {
		return nil, fmt.Errorf("unknown method %q", method)
	}
	typed, err := coerceArgs(m.Inputs, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	data, err := c.abi.Pack(method, typed...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return data, nil
}
