package http

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"

	domain "cryptvault-client/internal/domain/loan"
	"cryptvault-client/internal/usecase/loan"
)

type LoanHandler struct{ uc *loan.Usecase }

func NewLoanHandler(uc *loan.Usecase) *LoanHandler { return &LoanHandler{uc: uc} }

type createLoanReq struct {
	Amount           float64 `json:"amount" validate:"gt=0,intlike"`
	InterestRate     float64 `json:"interest_rate" validate:"gt=0,dec2"`
	Duration         int     `json:"duration" validate:"gte=1,lte=65535"`
	CollateralType   string  `json:"collateral_type" validate:"required,oneof=ETH BTC USDC Mixed"`
	CollateralAmount float64 `json:"collateral_amount" validate:"gte=0,intlike"`
}

type txResponse struct {
	loan.TxDTO
	CollateralRatio string `json:"collateral_ratio,omitempty"`
	// Pending is set when the transaction was broadcast but its receipt could
	// not be awaited. The client must not resubmit.
	Pending bool   `json:"pending,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *LoanHandler) CreateLoan(c echo.Context) error {
	var req createLoanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}
	hash, err := h.uc.CreateLoan(c.Request().Context(), loan.CreateLoanInput(req))
	res := txResponse{
		TxDTO:           loan.TxDTO{Action: string(domain.ActionCreate), TxHash: hash},
		CollateralRatio: collateralRatio(req.Amount, req.CollateralAmount),
	}
	return respondTx(c, http.StatusCreated, res, err)
}

func (h *LoanHandler) FundLoan(c echo.Context) error {
	id, err := loanID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}
	hash, err := h.uc.FundLoan(c.Request().Context(), id)
	return respondTx(c, http.StatusOK, txResponse{TxDTO: loan.TxDTO{Action: string(domain.ActionFund), LoanID: &id, TxHash: hash}}, err)
}

func (h *LoanHandler) RepayLoan(c echo.Context) error {
	id, err := loanID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}
	hash, err := h.uc.RepayLoan(c.Request().Context(), id)
	return respondTx(c, http.StatusOK, txResponse{TxDTO: loan.TxDTO{Action: string(domain.ActionRepay), LoanID: &id, TxHash: hash}}, err)
}

// respondTx writes the outcome of a lifecycle call. Once a hash exists the
// transaction is on its way and the response always carries it.
func respondTx(c echo.Context, okCode int, res txResponse, err error) error {
	switch {
	case err == nil:
		return c.JSON(okCode, res)
	case res.TxHash == (common.Hash{}):
		return writeError(c, err)
	case errors.Is(err, domain.ErrTransactionReverted):
		res.Error = err.Error()
		return c.JSON(http.StatusConflict, res)
	}
	res.Pending = true
	res.Error = err.Error()
	return c.JSON(http.StatusAccepted, res)
}

func loanID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid loan id %q", c.Param("id"))
	}
	return id, nil
}

// collateralRatio is collateral over amount as a whole percentage.
func collateralRatio(amount, collateral float64) string {
	if amount <= 0 {
		return "0%"
	}
	return strconv.FormatFloat(math.Round(collateral/amount*100), 'f', 0, 64) + "%"
}
