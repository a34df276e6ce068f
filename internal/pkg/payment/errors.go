package payment

import (
	"errors"
	"fmt"
)

// Kind groups payment errors by who caused them and how callers react.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindIntegrity
	KindConflict
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindIntegrity:
		return "integrity"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error is a classified payment error. Two errors are equal under errors.Is
// when their codes match, so decoded copies compare equal to the sentinels.
type Error struct {
	Code    string
	Message string
	Kind    Kind
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Wrap returns a copy of e carrying err as cause.
func (e *Error) Wrap(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Kind: e.Kind, Err: err}
}

var (
	ErrMissingTransactionID       = &Error{Code: "missing_transaction_id", Message: "Missing transaction ID", Kind: KindValidation}
	ErrInvalidAmount              = &Error{Code: "invalid_amount", Message: "Invalid amount", Kind: KindValidation}
	ErrMissingIdentifier          = &Error{Code: "missing_identifier", Message: "Missing product identifier", Kind: KindValidation}
	ErrInvalidDateRange           = &Error{Code: "invalid_date_range", Message: "Invalid date range", Kind: KindValidation}
	ErrMissingOrderIdentification = &Error{Code: "missing_order_identification", Message: "Missing order identification", Kind: KindValidation}
	ErrInvalidOrderIDFormat       = &Error{Code: "invalid_order_id_format", Message: "Invalid order ID format", Kind: KindValidation}
	ErrUnauthorized               = &Error{Code: "unauthorized", Message: "login required", Kind: KindAuth}
	ErrForbidden                  = &Error{Code: "forbidden", Message: "admin role required", Kind: KindAuth}
	ErrHashVerificationFailed     = &Error{Code: "hash_verification_failed", Message: "Hash verification failed", Kind: KindIntegrity}
	ErrPaymentFailed              = &Error{Code: "payment_failed", Message: "Payment failed", Kind: KindConflict}
	ErrNoTicketsAvailable         = &Error{Code: "no_tickets_available", Message: "No tickets available", Kind: KindConflict}
	ErrCustomerNotFound           = &Error{Code: "customer_not_found", Message: "Customer not found", Kind: KindConflict}
	ErrDuplicateTransaction       = &Error{Code: "duplicate_transaction", Message: "Duplicate transaction detected", Kind: KindConflict}
	ErrGatewayUnavailable         = &Error{Code: "gateway_unavailable", Message: "Payment gateway unavailable", Kind: KindUpstream}
	ErrMissingMerchantConfig      = &Error{Code: "missing_merchant_config", Message: "Payment merchant is not configured", Kind: KindUpstream}
)

var allErrors = []*Error{
	ErrMissingTransactionID,
	ErrInvalidAmount,
	ErrMissingIdentifier,
	ErrInvalidDateRange,
	ErrMissingOrderIdentification,
	ErrInvalidOrderIDFormat,
	ErrUnauthorized,
	ErrForbidden,
	ErrHashVerificationFailed,
	ErrPaymentFailed,
	ErrNoTicketsAvailable,
	ErrCustomerNotFound,
	ErrDuplicateTransaction,
	ErrGatewayUnavailable,
	ErrMissingMerchantConfig,
}

// knownWebhookMessages is the allow-list of messages the webhook endpoints
// return verbatim as 400 responses.
var knownWebhookMessages = map[string]struct{}{
	ErrHashVerificationFailed.Message:     {},
	ErrPaymentFailed.Message:              {},
	ErrNoTicketsAvailable.Message:         {},
	ErrMissingOrderIdentification.Message: {},
	ErrInvalidOrderIDFormat.Message:       {},
	ErrCustomerNotFound.Message:           {},
	ErrDuplicateTransaction.Message:       {},
	ErrMissingTransactionID.Message:       {},
	ErrInvalidAmount.Message:              {},
}

// KnownMessage returns the client-facing message for err if it is on the
// webhook allow-list.
func KnownMessage(err error) (string, bool) {
	var pe *Error
	if !errors.As(err, &pe) {
		return "", false
	}
	if _, ok := knownWebhookMessages[pe.Message]; !ok {
		return "", false
	}
	return pe.Message, true
}

// ErrorFromCode rebuilds a classified error from its code, e.g. after it
// crossed a process boundary. Unknown codes produce an internal error.
func ErrorFromCode(code, message string) error {
	for _, e := range allErrors {
		if e.Code == code {
			return e
		}
	}
	if message == "" {
		message = "internal error"
	}
	return &Error{Code: code, Message: message, Kind: KindInternal}
}

// CodeOf returns the code of a classified error, or "internal_error".
func CodeOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return "internal_error"
}

// KindOf returns the kind of a classified error, KindInternal otherwise.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}
