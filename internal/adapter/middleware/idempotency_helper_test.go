package middleware

import (
	"context"
	"strings"
	"testing"
	"time"
)

const (
	testAccount = "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"
	testReqID   = "3f9a6a1b3d544fbe8b3a6b3e8d6b2c88"
)

func Test_buildKey_NamespaceAndAccount(t *testing.T) {
	mixed := "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	k := buildKey("31337:0x5fbdb2315678afecb367f032d93f642f64180aa3", "POST", "/loans/:id/fund", mixed, testReqID)

	want := "idemp:31337:0x5fbdb2315678afecb367f032d93f642f64180aa3:post:/loans/:id/fund:" + testAccount + ":" + testReqID
	if k != want {
		t.Fatalf("buildKey = %q, want %q", k, want)
	}
	if buildKey("31337:a", "POST", "/loans", testAccount, testReqID) == buildKey("11155111:a", "POST", "/loans", testAccount, testReqID) {
		t.Fatalf("chains must not share keys")
	}
	if buildKey("cvl", "POST", "/loans/:id/fund", testAccount, testReqID) == buildKey("cvl", "POST", "/loans/:id/repay", testAccount, testReqID) {
		t.Fatalf("fund and repay must not share keys")
	}
	if buildKey("cvl", "POST", "/loans", mixed, testReqID) != buildKey("cvl", "POST", "/loans", testAccount, testReqID) {
		t.Fatalf("account case must not change the key")
	}
}

func Test_parseAccount(t *testing.T) {
	got, err := parseAccount(" 0x70997970C51812dc3A010C7d01b50e0d17dc79C8 ")
	if err != nil || got != testAccount {
		t.Fatalf("parseAccount = %q, %v", got, err)
	}
	bad := map[string]string{
		"empty":      "",
		"no prefix":  strings.TrimPrefix(testAccount, "0x"),
		"short":      "0x1234",
		"request id": testReqID,
		"hash size":  "0x" + strings.Repeat("ab", 32),
	}
	for name, raw := range bad {
		if _, err := parseAccount(raw); err == nil {
			t.Fatalf("%s: parseAccount should reject %q", name, raw)
		}
	}
}

func Test_parseAxRequestAt(t *testing.T) {
	at := time.Date(2025, 9, 5, 3, 0, 0, 0, time.UTC)
	ok := map[string]time.Time{
		"1757041200":                at,
		"1757041200123":             at.Add(123 * time.Millisecond),
		"2025-09-05T10:00:00+07:00": at,
		"2025-09-05T03:00:00.5Z":    at.Add(500 * time.Millisecond),
	}
	for raw, want := range ok {
		got, err := parseAxRequestAt(raw)
		if err != nil || !got.Equal(want) || got.Location() != time.UTC {
			t.Fatalf("parseAxRequestAt(%q) = %v, %v; want %v", raw, got, err, want)
		}
	}
	for _, raw := range []string{"", "soon", "2025-09-05T10:00:00", "1757041200abc"} {
		if _, err := parseAxRequestAt(raw); err == nil {
			t.Fatalf("parseAxRequestAt should reject %q", raw)
		}
	}
}

// A pending transaction entry is written over the provisional lock and keeps
// its 202 code for replay; releasing a key frees it for a fresh attempt.
func Test_EntryLifecycle(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	ctx := context.Background()
	key := buildKey("31337:pool", "POST", "/loans", testAccount, testReqID)

	lock := idempEntry{InProgress: true, BodySHA256: bodyHash([]byte(`{"amount":1}`)), RequestID: testReqID, CreatedAt: nowUTC()}
	if ok, err := provisionalSet(ctx, rdb, key, lock); err != nil || !ok {
		t.Fatalf("first lock: ok=%v err=%v", ok, err)
	}
	if ttl := rdb.TTL(ctx, key).Val(); ttl <= 0 || ttl > provisionalLockTTL {
		t.Fatalf("lock TTL = %v", ttl)
	}
	if ok, _ := provisionalSet(ctx, rdb, key, lock); ok {
		t.Fatalf("second lock must fail while the first is held")
	}

	pending := lock
	pending.InProgress = false
	pending.Code = 202
	pending.Body = []byte(`{"tx_hash":"0x01","pending":true}`)
	if err := saveFinal(ctx, rdb, key, pending, time.Hour); err != nil {
		t.Fatalf("saveFinal: %v", err)
	}
	got, err := loadEntry(ctx, rdb, key)
	if err != nil {
		t.Fatalf("loadEntry: %v", err)
	}
	if got.InProgress || got.Code != 202 || string(got.Body) != string(pending.Body) || got.BodySHA256 != lock.BodySHA256 {
		t.Fatalf("stored entry mismatch: %+v", got)
	}
	if ttl := rdb.TTL(ctx, key).Val(); ttl <= provisionalLockTTL || ttl > time.Hour {
		t.Fatalf("final TTL = %v", ttl)
	}

	if err := releaseKey(ctx, rdb, key); err != nil {
		t.Fatalf("releaseKey: %v", err)
	}
	if _, err := loadEntry(ctx, rdb, key); err == nil {
		t.Fatalf("released key should be gone")
	}
	if ok, err := provisionalSet(ctx, rdb, key, lock); err != nil || !ok {
		t.Fatalf("lock after release: ok=%v err=%v", ok, err)
	}
}
