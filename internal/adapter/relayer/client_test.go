package relayer

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"cryptvault-client/internal/codec"
	"cryptvault-client/internal/domain/fhe"
)

var (
	pool  = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	owner = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL + "/", ChainID: 31337})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return c
}

func TestEncrypt_AcceptsRawAndHexShapes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/encrypt" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req encryptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Contract != pool || req.User != owner || len(req.Values) != 1 || req.Values[0].Value != 750 {
			t.Errorf("unexpected body: %+v", req)
		}
		_, _ = w.Write([]byte(`{"handles":[[` + bytes32JSON() + `]],"inputProof":"0xAA01"}`))
	})

	enc, err := c.CreateEncryptedInput(pool, owner).Add32(750).Encrypt(context.Background())
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if enc.Handles[0].Kind() != codec.KindRaw || enc.InputProof.Kind() != codec.KindHex {
		t.Fatalf("unexpected kinds: %s %s", enc.Handles[0].Kind(), enc.InputProof.Kind())
	}
	proof, err := codec.NormalizeProof(enc.InputProof)
	if err != nil || proof != "0xaa01" {
		t.Fatalf("proof = %q, %v", proof, err)
	}
}

func bytes32JSON() string {
	s := "1"
	for i := 1; i < 32; i++ {
		s += ",0"
	}
	return s
}

func TestGenerateKeypair(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"publicKey":"0x01","privateKey":"0x02"}`))
	})
	kp, err := c.GenerateKeypair(context.Background())
	if err != nil || kp.PublicKey != "0x01" || kp.PrivateKey != "0x02" {
		t.Fatalf("keypair = %+v, %v", kp, err)
	}
}

func TestUserDecrypt_ParsesBigValues(t *testing.T) {
	h := common.HexToHash("0xa1")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req userDecryptRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Pairs) != 1 || req.Pairs[0].Handle != h || req.Signature != "0xsig" || req.ChainID != 31337 {
			t.Errorf("unexpected body: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(userDecryptResponse{Results: map[string]string{h.Hex(): "50000"}})
	})

	res, err := c.UserDecrypt(context.Background(), fhe.UserDecryptRequest{
		Pairs:     []fhe.HandleContractPair{{Handle: h, Contract: pool}},
		Signature: "0xsig",
	})
	if err != nil {
		t.Fatalf("user decrypt: %v", err)
	}
	if res[h] == nil || res[h].Int64() != 50000 {
		t.Fatalf("unexpected results: %v", res)
	}
}

func TestPost_ErrorMapping(t *testing.T) {
	down := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	if _, err := down.GenerateKeypair(context.Background()); !errors.Is(err, fhe.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}

	bad := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid signature"}`))
	})
	_, err := bad.UserDecrypt(context.Background(), fhe.UserDecryptRequest{})
	if err == nil || errors.Is(err, fhe.ErrProviderUnavailable) {
		t.Fatalf("expected a plain client error, got %v", err)
	}
	if want := "relayer /v1/user-decrypt (400): invalid signature"; err.Error() != want {
		t.Fatalf("err = %q, want %q", err.Error(), want)
	}
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, fhe.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestCreateEIP712_UsesChainAndVerifier(t *testing.T) {
	verifier := common.HexToAddress("0x1111111111111111111111111111111111111111")
	c, _ := New(Config{BaseURL: "http://relayer", ChainID: 11155111, Verifier: verifier})
	td, err := c.CreateEIP712("0x0a0b", []common.Address{pool}, 1_700_000_000, 365)
	if err != nil {
		t.Fatalf("eip712: %v", err)
	}
	if td.Domain.VerifyingContract != verifier.Hex() || (*big.Int)(td.Domain.ChainId).Int64() != 11155111 {
		t.Fatalf("unexpected domain: %+v", td.Domain)
	}
}
