package fhe

import "errors"

var (
	// ErrUserRejected means the wallet holder declined a signing prompt.
	ErrUserRejected = errors.New("user rejected the request")

	ErrValueOutOfRange     = errors.New("value does not fit in 32 bits")
	ErrProviderUnavailable = errors.New("encryption provider unavailable")
)
