// Package main is the command line client of the session service.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"cryptvault-client/pkg/id"
)

const version = "0.1.0"

var (
	apiURL    string
	account   string
	requestID string
	output    string
	timeout   time.Duration
)

var httpClient *http.Client

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cvlctl",
		Short:        "CryptVault Lend session CLI",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if apiURL == "" {
				apiURL = os.Getenv("CVLCTL_API_URL")
			}
			if apiURL == "" {
				apiURL = "http://127.0.0.1:8080"
			}
			if account == "" {
				account = os.Getenv("CVLCTL_ACCOUNT")
			}
			if requestID != "" && !id.Valid(requestID) {
				return fmt.Errorf("--request-id must be a lowercase uuid or 32 hex chars")
			}
			httpClient = &http.Client{Timeout: timeout}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&apiURL, "api-url", "", "Session API URL (or set CVLCTL_API_URL)")
	root.PersistentFlags().StringVar(&account, "account", "", "Wallet address sent as Ax-Account (or set CVLCTL_ACCOUNT)")
	// reuse the id of a timed out call to replay its stored response
	root.PersistentFlags().StringVar(&requestID, "request-id", "", "Ax-Request-Id to send instead of a generated one")
	root.PersistentFlags().StringVar(&output, "output", "text", "Output format: text, json")
	// receipts can take a while on public networks
	root.PersistentFlags().DurationVar(&timeout, "timeout", 3*time.Minute, "Request timeout")

	root.AddCommand(poolCmd())
	root.AddCommand(createCmd())
	root.AddCommand(txCmd("fund", "Fund an available loan"))
	root.AddCommand(txCmd("repay", "Repay one of your active loans"))
	root.AddCommand(decryptCmd())
	root.AddCommand(decryptedCmd())
	root.AddCommand(clearCmd())
	root.AddCommand(operationsCmd())
	root.AddCommand(versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cvlctl version %s\n", version)
		},
	}
}
