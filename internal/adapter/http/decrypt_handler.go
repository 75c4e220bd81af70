package http

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"

	domain "cryptvault-client/internal/domain/loan"
	"cryptvault-client/internal/usecase/decryption"
	"cryptvault-client/internal/usecase/loandata"
)

type DecryptHandler struct {
	dec  *decryption.Decryptor
	pool *loandata.Aggregator
}

func NewDecryptHandler(dec *decryption.Decryptor, pool *loandata.Aggregator) *DecryptHandler {
	return &DecryptHandler{dec: dec, pool: pool}
}

// decryptReq optionally overrides the handles read from the pool snapshot.
type decryptReq struct {
	AmountHandle     string `json:"amount_handle" validate:"omitempty,handle"`
	InterestHandle   string `json:"interest_handle" validate:"omitempty,handle"`
	CollateralHandle string `json:"collateral_handle" validate:"omitempty,handle"`
}

func (r decryptReq) empty() bool {
	return r.AmountHandle == "" && r.InterestHandle == "" && r.CollateralHandle == ""
}

// DecryptLoan always answers 200 with the advisory report once the request is
// well formed; the outcome field says what happened.
func (h *DecryptHandler) DecryptLoan(c echo.Context) error {
	id, err := loanID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}
	var req decryptReq
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
		}
		if err := c.Validate(&req); err != nil {
			return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
		}
	}

	amount, interest, collateral := common.HexToHash(req.AmountHandle), common.HexToHash(req.InterestHandle), common.HexToHash(req.CollateralHandle)
	if req.empty() {
		entry, ok := h.pool.Find(id)
		if !ok {
			return writeError(c, domain.ErrNotFound)
		}
		amount, interest, collateral = entry.AmountHandle, entry.InterestHandle, entry.CollateralHandle
	}

	report := h.dec.DecryptLoan(c.Request().Context(), id, amount, interest, collateral)
	return c.JSON(http.StatusOK, report)
}

type decryptedResponse struct {
	LoanID uint64 `json:"loan_id"`
	domain.DecryptedValues
}

func (h *DecryptHandler) GetDecrypted(c echo.Context) error {
	id, err := loanID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}
	v, ok := h.dec.GetDecryptedLoan(id)
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not decrypted"})
	}
	return c.JSON(http.StatusOK, decryptedResponse{LoanID: id, DecryptedValues: v})
}

// ListDecrypted returns every decrypted loan keyed by decimal id.
func (h *DecryptHandler) ListDecrypted(c echo.Context) error {
	return c.JSON(http.StatusOK, h.dec.Values())
}

// ClearDecrypted drops every decrypted value of the session.
func (h *DecryptHandler) ClearDecrypted(c echo.Context) error {
	h.dec.Reset()
	return c.NoContent(http.StatusNoContent)
}
