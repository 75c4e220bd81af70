package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	domain "cryptvault-client/internal/domain/loan"
	"cryptvault-client/internal/usecase/loandata"
)

// LoanGauge receives the loan count of every served snapshot.
type LoanGauge interface {
	SetPoolLoans(n int)
}

type PoolHandler struct {
	agg   *loandata.Aggregator
	gauge LoanGauge
}

func NewPoolHandler(agg *loandata.Aggregator, gauge LoanGauge) *PoolHandler {
	return &PoolHandler{agg: agg, gauge: gauge}
}

// PoolDisplay is the formatted form of the pool stats. Unknown values are "--".
type PoolDisplay struct {
	TotalValueLocked string `json:"total_value_locked"`
	ActiveLoans      string `json:"active_loans"`
	AverageAPY       string `json:"average_apy"`
	UtilizationRate  string `json:"utilization_rate"`
}

type poolResponse struct {
	loandata.State
	Display PoolDisplay `json:"display"`
}

func (h *PoolHandler) GetPool(c echo.Context) error {
	st := h.agg.State()
	if h.gauge != nil {
		h.gauge.SetPoolLoans(len(st.Loans))
	}
	return c.JSON(http.StatusOK, poolResponse{State: st, Display: FormatStats(st.Stats)})
}

func (h *PoolHandler) RefreshPool(c echo.Context) error {
	// A superseded refresh still leaves a newer load behind it.
	if err := h.agg.Refresh(c.Request().Context()); err != nil && !errors.Is(err, domain.ErrSuperseded) {
		return writeError(c, err)
	}
	return h.GetPool(c)
}

// FormatStats renders TVL in millions and basis-point rates as percentages.
func FormatStats(s *domain.PoolStats) PoolDisplay {
	if s == nil {
		return PoolDisplay{TotalValueLocked: "--", ActiveLoans: "--", AverageAPY: "--", UtilizationRate: "--"}
	}
	return PoolDisplay{
		TotalValueLocked: "$" + strconv.FormatFloat(float64(s.TotalValueLocked)/1_000_000, 'f', 2, 64) + "M",
		ActiveLoans:      strconv.FormatUint(s.TotalLoansActive, 10),
		AverageAPY:       bpsPercent(s.AverageAPY),
		UtilizationRate:  bpsPercent(s.UtilizationRate),
	}
}

func bpsPercent(bps uint64) string {
	return strconv.FormatFloat(float64(bps)/100, 'f', 2, 64) + "%"
}
