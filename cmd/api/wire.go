package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cryptvault-client/internal/adapter/chain"
	"cryptvault-client/internal/adapter/relayer"
	"cryptvault-client/internal/adapter/repository/memory"
	"cryptvault-client/internal/adapter/repository/mysql"
	redisrepo "cryptvault-client/internal/adapter/repository/redis"
	"cryptvault-client/internal/config"
	"cryptvault-client/internal/domain/fhe"
	"cryptvault-client/internal/domain/loan"
	"cryptvault-client/internal/infrastructure/cache"
	"cryptvault-client/internal/infrastructure/db"
	"cryptvault-client/internal/infrastructure/metrics"
	"cryptvault-client/internal/usecase/decryption"
	"cryptvault-client/internal/usecase/encryption"
	loanuc "cryptvault-client/internal/usecase/loan"
	"cryptvault-client/internal/usecase/loandata"
)

const signatureKeyPrefix = "cryptvault:"

// session is the wired object graph of one wallet session.
type session struct {
	loans     *loanuc.Usecase
	pool      *loandata.Aggregator
	decryptor *decryption.Decryptor
	metrics   *metrics.Metrics
	redis     *redis.Client

	closers []func() error
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
}

func build(ctx context.Context, cfg *config.Config) (*session, error) {
	s := &session{metrics: metrics.New("cryptvault")}

	rpc, err := chain.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	s.closers = append(s.closers, func() error { rpc.Close(); return nil })

	signer, err := openSigner(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	var txSigner chain.TxSigner
	var account common.Address
	if signer != nil {
		txSigner, account = signer, signer.Address()
	} else {
		slog.Warn("no signer configured, session is read-only")
	}

	client, err := chain.NewClient(rpc, txSigner, chain.Options{
		ChainID:      cfg.ChainID,
		PollInterval: time.Duration(cfg.ReceiptPollMS) * time.Millisecond,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	provider, err := relayer.New(relayer.Config{
		BaseURL:  cfg.RelayerURL,
		ChainID:  cfg.ChainID,
		Verifier: common.HexToAddress(cfg.DecryptionVerifier),
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	// redis backs idempotency and optionally the signature store
	if cfg.RedisAddr != "" {
		rdb, err := cache.OpenRedis(ctx, cache.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		switch {
		case err == nil:
			s.redis = rdb
			s.closers = append(s.closers, rdb.Close)
		case cfg.SignatureStore == config.StoreRedis:
			s.Close()
			return nil, err
		default:
			slog.Warn("redis unavailable, idempotency disabled", "addr", cfg.RedisAddr, "error", err)
		}
	}

	storage, err := s.openSignatureStorage(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	contract := cfg.ContractAddress()

	s.pool = loandata.New(loandata.Inputs{Contract: contract, Reader: client}, loandata.WithStrictStatus(cfg.StrictLoanState))
	s.pool.SetAccount(account)

	var fheSigner fhe.Signer
	if signer != nil {
		fheSigner = signer
	}
	s.decryptor = decryption.NewDecryptor(decryption.Params{
		Provider:  provider,
		Contract:  contract,
		Signer:    fheSigner,
		Cache:     decryption.NewSignatureCache(storage, time.Now, cfg.SignatureDurationDays),
		Observers: []decryption.ReportObserver{s.metrics},
	})

	s.loans = loanuc.NewUsecase(loanuc.Params{
		Contract:  contract,
		Account:   account,
		Encryptor: encryption.NewBuilder(provider),
		Writer:    client,
		Observers: []loan.SettleObserver{s.pool, s.metrics},
	})

	if err := s.pool.Load(ctx); err != nil {
		// The pool can be refreshed later; the session still serves.
		slog.Warn("initial pool load failed", "operation", "load_loans", "error", err)
	}
	return s, nil
}

// openSigner returns nil when neither a key nor a keystore is configured.
func openSigner(cfg *config.Config) (*chain.KeySigner, error) {
	switch {
	case cfg.SignerPrivateKey != "":
		return chain.ParseKeySigner(cfg.SignerPrivateKey)
	case cfg.KeystorePath != "":
		return chain.LoadKeystoreSigner(cfg.KeystorePath, cfg.KeystorePassphrase)
	}
	return nil, nil
}

func (s *session) openSignatureStorage(ctx context.Context, cfg *config.Config) (fhe.StringStorage, error) {
	switch cfg.SignatureStore {
	case config.StoreRedis:
		return redisrepo.NewSignatureStore(s.redis, signatureKeyPrefix), nil
	case config.StoreMySQL, config.StoreSQLite:
		var (
			gdb *gorm.DB
			err error
		)
		if cfg.SignatureStore == config.StoreMySQL {
			gdb, err = db.OpenGorm(cfg.MySQLDSN())
		} else {
			gdb, err = db.OpenSQLite(cfg.SQLitePath)
		}
		if err != nil {
			return nil, err
		}
		if sqlDB, err := gdb.DB(); err == nil {
			s.closers = append(s.closers, sqlDB.Close)
		}
		repo := mysql.NewSignatureRepository(gdb)
		if err := repo.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate signature store: %w", err)
		}
		if n, err := repo.PurgeExpired(ctx); err != nil {
			slog.Warn("purge expired signatures failed", "operation", "purge_signatures", "error", err)
		} else if n > 0 {
			slog.Info("purged expired signatures", "operation", "purge_signatures", "count", n)
		}
		return repo, nil
	}
	return memory.NewStorage(), nil
}
