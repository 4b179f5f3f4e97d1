package service

import "errors"

var (
	ErrValidation        = errors.New("invalid request")
	ErrAmountMismatch    = errors.New("declared amount does not match the authoritative price")
	ErrTourNotFound      = errors.New("tour not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrMethodUnsupported = errors.New("payment method is not supported")
	ErrGatewayAuth       = errors.New("gateway authentication failed")
	ErrGatewaySubmission = errors.New("gateway submission failed")
	ErrGatewayTimeout    = errors.New("gateway request timed out")
	ErrPersistence       = errors.New("persistence failure")
	ErrCallbackUnmatched = errors.New("no pending booking matches the callback")
	ErrInvalidStatus     = errors.New("invalid booking status for this operation")
)
