package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies business errors so handlers can map them to HTTP
// statuses without inspecting message text.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindInvalid
	KindUnauthorized
	KindForbidden
	KindUpstream
)

type Error struct {
	Kind    Kind
	Message string // stable, safe to return to clients
	Err     error  // underlying cause, logs only
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Errors raised by the order, courtesy and reconciliation flows.
var (
	ErrEventNotFound       = New(KindNotFound, "event not found")
	ErrOrderNotFound       = New(KindNotFound, "order not found")
	ErrTicketNotFound      = New(KindNotFound, "ticket not found")
	ErrCodeNotFound        = New(KindNotFound, "promotional code not found")
	ErrEventFull           = New(KindConflict, "event is sold out")
	ErrCodeExhausted       = New(KindConflict, "promotional code has no remaining uses")
	ErrLinkInactive        = New(KindConflict, "courtesy link is inactive")
	ErrLinkExhausted       = New(KindConflict, "courtesy link has no remaining tickets")
	ErrDuplicateAttendee   = New(KindConflict, "cpf already registered for this event")
	ErrAlreadyProcessed    = New(KindConflict, "order can no longer be changed")
	ErrTicketAlreadyUsed   = New(KindConflict, "ticket already verified")
	ErrPaymentNotConfirmed = New(KindConflict, "payment not confirmed")
	ErrWrongCodeFlow       = New(KindInvalid, "this code must be used through the other redemption flow")
	ErrExternalRefMissing  = New(KindInvalid, "external reference missing")
	ErrAuthInvalid         = New(KindUnauthorized, "invalid credentials")
	ErrStaffOnly           = New(KindForbidden, "staff access required")
)

// HTTPStatus maps an error to the status code handlers should write.
// Unclassified errors are treated as internal so their text never leaks.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInvalid:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns a message safe for API responses.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal server error"
}
