package bybit

import (
	"errors"
	"fmt"
)

// APIError is a non-zero retCode in a Bybit v5 response envelope
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit retCode %d: %s", e.Code, e.Message)
}

// Error codes the bot reacts to; anything unlisted fails the call as-is
const (
	codeInvalidAPIKey    = 10003
	codeInvalidSignature = 10004
	codeInvalidTimestamp = 10005
	codeRateLimited      = 10006
	codeServerBusy       = 10016
	codeSymbolNotFound   = 110009
	codeMarketClosed     = 110043
)

// ParseAPIError converts a response envelope's retCode/retMsg pair into
// an error, or nil on success
func ParseAPIError(retCode int, retMsg string) error {
	if retCode == 0 {
		return nil
	}
	return &APIError{Code: retCode, Message: retMsg}
}

// IsRetryable reports whether the failed call may simply be repeated.
// Evaluation ticks retry naturally, so only transient venue conditions
// qualify.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case codeRateLimited, codeServerBusy, codeMarketClosed:
		return true
	}
	return false
}

// IsAuthError reports whether the failure is a credential problem that
// no retry will fix
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case codeInvalidAPIKey, codeInvalidSignature, codeInvalidTimestamp:
		return true
	}
	return false
}

// IsUnknownSymbol reports whether the venue rejected the symbol itself
func IsUnknownSymbol(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == codeSymbolNotFound
}
