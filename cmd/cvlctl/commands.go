package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type loanView struct {
	ID             uint64 `json:"id"`
	Borrower       string `json:"borrower"`
	Duration       uint16 `json:"duration"`
	CollateralType string `json:"collateral_type"`
	Status         string `json:"status"`
}

type poolView struct {
	Loans          []loanView `json:"loans"`
	MyLoans        []loanView `json:"my_loans"`
	AvailableLoans []loanView `json:"available_loans"`
	Error          string     `json:"error"`
	Display        struct {
		TotalValueLocked string `json:"total_value_locked"`
		ActiveLoans      string `json:"active_loans"`
		AverageAPY       string `json:"average_apy"`
		UtilizationRate  string `json:"utilization_rate"`
	} `json:"display"`
}

type txView struct {
	Action          string  `json:"action"`
	LoanID          *uint64 `json:"loan_id"`
	TxHash          string  `json:"tx_hash"`
	CollateralRatio string  `json:"collateral_ratio"`
	Pending         bool    `json:"pending"`
	Error           string  `json:"error"`
}

// render writes raw JSON in json mode, otherwise decodes into v and calls text.
func render(w io.Writer, raw []byte, v any, text func()) error {
	if output == "json" {
		_, err := fmt.Fprintln(w, string(raw))
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	text()
	return nil
}

// resolveAccount asks the session for its wallet when --account is unset.
func resolveAccount() error {
	if account != "" {
		return nil
	}
	raw, err := call(http.MethodGet, "/operations", nil, http.StatusOK)
	if err != nil {
		return err
	}
	var ops struct {
		Account string `json:"account"`
	}
	if err := json.Unmarshal(raw, &ops); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	if ops.Account == "" {
		return fmt.Errorf("session has no wallet connected, pass --account")
	}
	account = ops.Account
	return nil
}

func poolCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Show pool stats and loans",
		RunE: func(cmd *cobra.Command, args []string) error {
			method, path := http.MethodGet, "/pool"
			if refresh {
				method, path = http.MethodPost, "/pool/refresh"
			}
			raw, err := call(method, path, nil, http.StatusOK)
			if err != nil {
				return err
			}
			var p poolView
			return render(cmd.OutOrStdout(), raw, &p, func() {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "TVL %s  active %s  APY %s  utilization %s\n",
					p.Display.TotalValueLocked, p.Display.ActiveLoans, p.Display.AverageAPY, p.Display.UtilizationRate)
				if p.Error != "" {
					fmt.Fprintf(out, "last refresh failed: %s\n", p.Error)
				}
				mine := make(map[uint64]bool, len(p.MyLoans))
				for _, l := range p.MyLoans {
					mine[l.ID] = true
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSTATUS\tDURATION\tCOLLATERAL\tBORROWER\tMINE")
				for _, l := range p.Loans {
					fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%v\n", l.ID, l.Status, l.Duration, l.CollateralType, l.Borrower, mine[l.ID])
				}
				tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Re-read the pool before printing")
	return cmd
}

func createCmd() *cobra.Command {
	var (
		amount, rate, collateral float64
		duration                 int
		collateralType           string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit an encrypted loan request",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveAccount(); err != nil {
				return err
			}
			body := map[string]any{
				"amount":            amount,
				"interest_rate":     rate,
				"duration":          duration,
				"collateral_type":   collateralType,
				"collateral_amount": collateral,
			}
			raw, err := call(http.MethodPost, "/loans", body, http.StatusCreated, http.StatusAccepted)
			if err != nil {
				return err
			}
			return printTx(cmd.OutOrStdout(), raw)
		},
	}
	cmd.Flags().Float64Var(&amount, "amount", 0, "Loan amount (required)")
	cmd.Flags().Float64Var(&rate, "rate", 0, "Interest rate in percent, e.g. 7.5 (required)")
	cmd.Flags().IntVar(&duration, "duration", 0, "Duration (required)")
	cmd.Flags().StringVar(&collateralType, "collateral-type", "ETH", "Collateral type: ETH, BTC, USDC, Mixed")
	cmd.Flags().Float64Var(&collateral, "collateral", 0, "Collateral amount")
	cmd.MarkFlagRequired("amount")
	cmd.MarkFlagRequired("rate")
	cmd.MarkFlagRequired("duration")
	return cmd
}

// txCmd builds the fund and repay commands, which only take a loan id.
func txCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <loan-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid loan id %q", args[0])
			}
			if err := resolveAccount(); err != nil {
				return err
			}
			raw, err := call(http.MethodPost, fmt.Sprintf("/loans/%d/%s", id, action), nil, http.StatusOK, http.StatusAccepted)
			if err != nil {
				return err
			}
			return printTx(cmd.OutOrStdout(), raw)
		},
	}
}

func printTx(w io.Writer, raw []byte) error {
	var tx txView
	return render(w, raw, &tx, func() {
		switch {
		case tx.Pending:
			fmt.Fprintf(w, "%s submitted as %s, receipt not confirmed yet: %s\n", tx.Action, tx.TxHash, tx.Error)
		case tx.LoanID != nil:
			fmt.Fprintf(w, "%s loan %d confirmed in %s\n", tx.Action, *tx.LoanID, tx.TxHash)
		default:
			fmt.Fprintf(w, "loan created in %s (collateral ratio %s)\n", tx.TxHash, tx.CollateralRatio)
		}
	})
}

func decryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt <loan-id>",
		Short: "Decrypt the values of one loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := strconv.ParseUint(args[0], 10, 64); err != nil {
				return fmt.Errorf("invalid loan id %q", args[0])
			}
			raw, err := call(http.MethodPost, "/loans/"+args[0]+"/decrypt", nil, http.StatusOK)
			if err != nil {
				return err
			}
			var r struct {
				Outcome string `json:"outcome"`
				Message string `json:"message"`
			}
			return render(cmd.OutOrStdout(), raw, &r, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", r.Outcome, r.Message)
			})
		},
	}
}

func decryptedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypted <loan-id>",
		Short: "Show the decrypted values of a loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := call(http.MethodGet, "/loans/"+args[0]+"/decrypted", nil, http.StatusOK)
			if err != nil {
				return err
			}
			var v struct {
				LoanID           uint64       `json:"loan_id"`
				Amount           *json.Number `json:"amount"`
				InterestRate     *json.Number `json:"interest_rate"`
				CollateralAmount *json.Number `json:"collateral_amount"`
			}
			return render(cmd.OutOrStdout(), raw, &v, func() {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "loan %d\n", v.LoanID)
				fmt.Fprintf(out, "  amount:        %s\n", numberOrDash(v.Amount))
				fmt.Fprintf(out, "  interest rate: %s bps\n", numberOrDash(v.InterestRate))
				fmt.Fprintf(out, "  collateral:    %s\n", numberOrDash(v.CollateralAmount))
			})
		},
	}
}

func numberOrDash(n *json.Number) string {
	if n == nil {
		return "--"
	}
	return n.String()
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget every decrypted value of the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := call(http.MethodDelete, "/session/decrypted", nil, http.StatusNoContent); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "decrypted values cleared")
			return nil
		},
	}
}

func operationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "operations",
		Short: "Show in-flight operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := call(http.MethodGet, "/operations", nil, http.StatusOK)
			if err != nil {
				return err
			}
			var ops struct {
				Account           string `json:"account"`
				IsCreating        bool   `json:"is_creating"`
				IsFunding         bool   `json:"is_funding"`
				IsRepaying        bool   `json:"is_repaying"`
				IsDecrypting      bool   `json:"is_decrypting"`
				DecryptionMessage string `json:"decryption_message"`
			}
			return render(cmd.OutOrStdout(), raw, &ops, func() {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "account:    %s\n", ops.Account)
				fmt.Fprintf(out, "creating:   %v\nfunding:    %v\nrepaying:   %v\ndecrypting: %v\n",
					ops.IsCreating, ops.IsFunding, ops.IsRepaying, ops.IsDecrypting)
				if ops.DecryptionMessage != "" {
					fmt.Fprintf(out, "message:    %s\n", ops.DecryptionMessage)
				}
			})
		},
	}
}
