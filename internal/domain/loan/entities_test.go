package loan

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestKeyFor(t *testing.T) {
	if got := KeyFor(0); got != "0" {
		t.Fatalf("KeyFor(0) = %q", got)
	}
	if got := KeyFor(18446744073709551615); got != "18446744073709551615" {
		t.Fatalf("KeyFor(max) = %q", got)
	}
}

func TestResolveStatus(t *testing.T) {
	cases := []struct {
		code  uint8
		want  Status
		known bool
	}{
		{0, StatusAvailable, true},
		{1, StatusActive, true},
		{2, StatusCompleted, true},
		{3, StatusAvailable, false},
		{255, StatusAvailable, false},
	}
	for _, tc := range cases {
		got, known := ResolveStatus(tc.code)
		if got != tc.want || known != tc.known {
			t.Fatalf("ResolveStatus(%d) = %s,%v want %s,%v", tc.code, got, known, tc.want, tc.known)
		}
	}
}

func TestBorrowedBy_IgnoresCase(t *testing.T) {
	e := Entry{Borrower: common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")}
	if !e.BorrowedBy(common.HexToAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")) {
		t.Fatalf("same address must match")
	}
	if e.BorrowedBy(common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")) {
		t.Fatalf("different address must not match")
	}
}
