package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	ChainHardhat uint64 = 31337
	ChainSepolia uint64 = 11155111
)

// lendingPoolAddresses are the known deployments; other chains fall back to
// the local Hardhat address.
var lendingPoolAddresses = map[uint64]string{
	ChainHardhat: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
	ChainSepolia: "0x32b84976585134D4e1e74c4AaaB25F314d255F82",
}

func ContractAddressForChain(chainID uint64) common.Address {
	if a, ok := lendingPoolAddresses[chainID]; ok {
		return common.HexToAddress(a)
	}
	return common.HexToAddress(lendingPoolAddresses[ChainHardhat])
}

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreMySQL  = "mysql"
	StoreSQLite = "sqlite"
)

type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	RPCURL          string
	ChainID         uint64
	LendingPool     string
	ReceiptPollMS   int
	StrictLoanState bool

	SignerPrivateKey   string
	KeystorePath       string
	KeystorePassphrase string

	RelayerURL            string
	DecryptionVerifier    string
	SignatureDurationDays int
	SignatureStore        string

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	SQLitePath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	IdempTTLSecs int
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getint(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func Load() *Config {
	c := &Config{
		AppPort:  getenv("APP_PORT", "8080"),
		AppEnv:   getenv("APP_ENV", "development"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		RPCURL:        getenv("RPC_URL", "http://127.0.0.1:8545"),
		ChainID:       ChainHardhat,
		LendingPool:   os.Getenv("LENDING_POOL_ADDRESS"),
		ReceiptPollMS: getint("RECEIPT_POLL_INTERVAL_MS", 1000),

		SignerPrivateKey:   os.Getenv("SIGNER_PRIVATE_KEY"),
		KeystorePath:       os.Getenv("KEYSTORE_PATH"),
		KeystorePassphrase: os.Getenv("KEYSTORE_PASSPHRASE"),

		RelayerURL:            getenv("RELAYER_URL", "http://127.0.0.1:8787"),
		DecryptionVerifier:    os.Getenv("DECRYPTION_VERIFIER_ADDRESS"),
		SignatureDurationDays: getint("SIGNATURE_DURATION_DAYS", 365),
		SignatureStore:        strings.ToLower(getenv("SIGNATURE_STORE", StoreMemory)),

		MySQLHost: getenv("MYSQL_HOST", "mysql"),
		MySQLPort: getenv("MYSQL_PORT", "3306"),
		MySQLDB:   getenv("MYSQL_DB", "cryptvault"),
		MySQLUser: getenv("MYSQL_USER", "cryptvault"),
		MySQLPass: getenv("MYSQL_PASS", "cryptvault"),

		SQLitePath: getenv("SQLITE_PATH", "cryptvault.db"),

		RedisAddr:     getenv("REDIS_ADDR", "redis:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getint("REDIS_DB", 0),
		IdempTTLSecs:  getint("IDEMPOTENCY_TTL_SECONDS", 300),
	}
	if v := os.Getenv("CHAIN_ID"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.ChainID = n
		}
	}
	if v := os.Getenv("STRICT_LOAN_STATUS"); v != "" {
		c.StrictLoanState, _ = strconv.ParseBool(v)
	}
	return c
}

// ContractAddress returns the configured pool address or the chain default.
func (c *Config) ContractAddress() common.Address {
	if c.LendingPool != "" {
		return common.HexToAddress(c.LendingPool)
	}
	return ContractAddressForChain(c.ChainID)
}

func (c *Config) Validate() error {
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	if c.RPCURL == "" {
		return errors.New("missing RPC_URL")
	}
	if c.ChainID == 0 {
		return errors.New("invalid CHAIN_ID")
	}
	if c.LendingPool != "" && !common.IsHexAddress(c.LendingPool) {
		return fmt.Errorf("invalid LENDING_POOL_ADDRESS %q", c.LendingPool)
	}
	if c.DecryptionVerifier != "" && !common.IsHexAddress(c.DecryptionVerifier) {
		return fmt.Errorf("invalid DECRYPTION_VERIFIER_ADDRESS %q", c.DecryptionVerifier)
	}
	if c.SignerPrivateKey != "" && c.KeystorePath != "" {
		return errors.New("set only one of SIGNER_PRIVATE_KEY and KEYSTORE_PATH")
	}
	if c.SignatureDurationDays <= 0 {
		return errors.New("SIGNATURE_DURATION_DAYS must be positive")
	}
	switch c.SignatureStore {
	case StoreMemory, StoreRedis, StoreSQLite:
	case StoreMySQL:
		if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
			return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
		}
		if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
			return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
		}
	default:
		return fmt.Errorf("unknown SIGNATURE_STORE %q", c.SignatureStore)
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime is needed for DATETIME columns
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}
