package loan

import "errors"

var (
	// ErrEnvironmentNotReady: signer, provider or contract address missing.
	ErrEnvironmentNotReady = errors.New("environment not ready")

	ErrInvalidLoanParameters = errors.New("invalid loan parameters")
	ErrWalletNotConnected    = errors.New("wallet not connected")
	ErrUnknownStatus         = errors.New("unknown loan status")
	ErrTransactionReverted   = errors.New("transaction reverted")
	ErrNotFound              = errors.New("loan not found")

	// ErrSuperseded is returned by a fetch whose result was discarded because
	// newer inputs arrived while it was in flight.
	ErrSuperseded = errors.New("fetch superseded")
)
