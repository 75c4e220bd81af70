package http

import (
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"

	"cryptvault-client/internal/usecase/decryption"
	"cryptvault-client/internal/usecase/loan"
)

type Handler struct {
	loans *loan.Usecase
	dec   *decryption.Decryptor
}

func NewHandler(loans *loan.Usecase, dec *decryption.Decryptor) *Handler {
	return &Handler{loans: loans, dec: dec}
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339Nano),
	})
}

type OperationsDTO struct {
	Account           string `json:"account,omitempty"`
	IsCreating        bool   `json:"is_creating"`
	IsFunding         bool   `json:"is_funding"`
	IsRepaying        bool   `json:"is_repaying"`
	IsDecrypting      bool   `json:"is_decrypting"`
	DecryptionMessage string `json:"decryption_message,omitempty"`
}

// Operations reports the in-flight flags of the session.
func (h *Handler) Operations(c echo.Context) error {
	var out OperationsDTO
	if h.loans != nil {
		if a := h.loans.Account(); a != (common.Address{}) {
			out.Account = a.Hex()
		}
		out.IsCreating, out.IsFunding, out.IsRepaying = h.loans.IsCreating(), h.loans.IsFunding(), h.loans.IsRepaying()
	}
	if h.dec != nil {
		out.IsDecrypting, out.DecryptionMessage = h.dec.IsDecrypting(), h.dec.Message()
	}
	return c.JSON(http.StatusOK, out)
}
