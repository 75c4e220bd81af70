package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	domain "cryptvault-client/internal/domain/loan"
	"cryptvault-client/internal/testutil/chainmock"
	"cryptvault-client/internal/usecase/loandata"
)

type gaugeRecorder struct{ last int }

func (g *gaugeRecorder) SetPoolLoans(n int) { g.last = n }

func TestGetPool_PartitionsAndFormats(t *testing.T) {
	e := echo.New()
	agg := loadedAggregator(t, []poolLoan{
		{otherAddr, 0, 1},
		{accountAddr, 0, 2},
		{otherAddr, 1, 3},
	})
	gauge := &gaugeRecorder{}
	h := NewPoolHandler(agg, gauge)

	rec := httptest.NewRecorder()
	if err := h.GetPool(e.NewContext(httptest.NewRequest(http.MethodGet, "/pool", nil), rec)); err != nil {
		t.Fatalf("GetPool error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got poolResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if len(got.Loans) != 3 || len(got.MyLoans) != 1 || len(got.AvailableLoans) != 1 {
		t.Fatalf("unexpected partitions: loans=%d mine=%d available=%d", len(got.Loans), len(got.MyLoans), len(got.AvailableLoans))
	}
	if got.MyLoans[0].ID != 1 || got.AvailableLoans[0].ID != 0 {
		t.Fatalf("wrong partition ids: mine=%d available=%d", got.MyLoans[0].ID, got.AvailableLoans[0].ID)
	}
	want := PoolDisplay{TotalValueLocked: "$12.50M", ActiveLoans: "3", AverageAPY: "8.75%", UtilizationRate: "64.20%"}
	if got.Display != want {
		t.Fatalf("display = %+v, want %+v", got.Display, want)
	}
	if gauge.last != 3 {
		t.Fatalf("gauge = %d, want 3", gauge.last)
	}
}

func TestFormatStats_Unknown(t *testing.T) {
	got := FormatStats(nil)
	if got.TotalValueLocked != "--" || got.ActiveLoans != "--" || got.AverageAPY != "--" || got.UtilizationRate != "--" {
		t.Fatalf("unexpected display: %+v", got)
	}
}

func TestRefreshPool_BumpsKeyAndRefetches(t *testing.T) {
	e := echo.New()
	calls := 0
	reader := poolReader([]poolLoan{{otherAddr, 0, 1}})
	inner := reader.ReadContractFn
	reader.ReadContractFn = func(ctx context.Context, req domain.ReadRequest) ([]any, error) {
		if req.Method == domain.MethodGetTotalLoans {
			calls++
		}
		return inner(ctx, req)
	}
	agg := loandata.New(loandata.Inputs{Contract: poolAddr, Reader: reader})
	h := NewPoolHandler(agg, nil)

	rec := httptest.NewRecorder()
	if err := h.RefreshPool(e.NewContext(httptest.NewRequest(http.MethodPost, "/pool/refresh", nil), rec)); err != nil {
		t.Fatalf("RefreshPool error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got poolResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if got.RefreshKey != 1 || len(got.Loans) != 1 || calls != 1 {
		t.Fatalf("refresh_key=%d loans=%d calls=%d", got.RefreshKey, len(got.Loans), calls)
	}
}

func TestRefreshPool_ReadFailure(t *testing.T) {
	e := echo.New()
	reader := &chainmock.Reader{
		ReadContractFn: func(ctx context.Context, req domain.ReadRequest) ([]any, error) {
			return nil, errors.New("execution reverted")
		},
	}
	h := NewPoolHandler(loandata.New(loandata.Inputs{Contract: poolAddr, Reader: reader}), nil)

	rec := httptest.NewRecorder()
	if err := h.RefreshPool(e.NewContext(httptest.NewRequest(http.MethodPost, "/pool/refresh", nil), rec)); err != nil {
		t.Fatalf("RefreshPool error: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
