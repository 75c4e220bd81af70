package config

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CHAIN_ID", "")
	t.Setenv("LENDING_POOL_ADDRESS", "")
	t.Setenv("SIGNATURE_STORE", "")

	c := Load()
	if c.ChainID != ChainHardhat || c.SignatureStore != StoreMemory || c.SignatureDurationDays != 365 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.ContractAddress() != common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3") {
		t.Fatalf("unexpected default pool %s", c.ContractAddress().Hex())
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestContractAddressForChain(t *testing.T) {
	cases := map[uint64]string{
		ChainHardhat: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		ChainSepolia: "0x32b84976585134D4e1e74c4AaaB25F314d255F82",
		1:            "0x5FbDB2315678afecb367f032d93F642f64180aa3",
	}
	for chain, want := range cases {
		if got := ContractAddressForChain(chain); got != common.HexToAddress(want) {
			t.Fatalf("chain %d: got %s want %s", chain, got.Hex(), want)
		}
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CHAIN_ID", "11155111")
	t.Setenv("STRICT_LOAN_STATUS", "true")
	t.Setenv("SIGNATURE_STORE", "Redis")
	t.Setenv("REDIS_DB", "3")

	c := Load()
	if c.ChainID != ChainSepolia || !c.StrictLoanState || c.SignatureStore != StoreRedis || c.RedisDB != 3 {
		t.Fatalf("overrides not applied: %+v", c)
	}
	if c.ContractAddress() != ContractAddressForChain(ChainSepolia) {
		t.Fatalf("expected sepolia pool")
	}
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*Config)
		want string
	}{
		{"bad pool", func(c *Config) { c.LendingPool = "0x123" }, "LENDING_POOL_ADDRESS"},
		{"both keys", func(c *Config) { c.SignerPrivateKey = "0x1"; c.KeystorePath = "/k" }, "only one"},
		{"unknown store", func(c *Config) { c.SignatureStore = "etcd" }, "SIGNATURE_STORE"},
		{"mysql port", func(c *Config) { c.SignatureStore = StoreMySQL; c.MySQLPort = "nope" }, "MYSQL_PORT"},
		{"duration", func(c *Config) { c.SignatureDurationDays = 0 }, "SIGNATURE_DURATION_DAYS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Load()
			tc.mod(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestMySQLDSN(t *testing.T) {
	c := &Config{MySQLUser: "u", MySQLPass: "p", MySQLHost: "db", MySQLPort: "3306", MySQLDB: "cv"}
	if got := c.MySQLDSN(); !strings.HasPrefix(got, "u:p@tcp(db:3306)/cv?") {
		t.Fatalf("dsn = %s", got)
	}
}
