package derror

import (
	stdErrors "errors"
	"fmt"
	"net/http"

	"ai-image-billing/internal/domain"
)

type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeInvalidSignature    Code = "INVALID_SIGNATURE"
	CodePayment             Code = "PAYMENT_ERROR"
	CodePaymentRejected     Code = "PAYMENT_REJECTED"
	CodeNotFound            Code = "NOT_FOUND"
	CodeInsufficientCredits Code = "INSUFFICIENT_CREDITS"
	CodeUnsupportedProvider Code = "UNSUPPORTED_PROVIDER"
	CodeMaintenance         Code = "PAYMENTS_UNAVAILABLE"
	CodeRateLimit           Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal            Code = "INTERNAL_ERROR"
)

type Metadata struct {
	HTTPStatus    int
	PublicMessage string
	// ShowMessage allows the error's own message to reach the client.
	ShowMessage bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:          {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", ShowMessage: true},
	CodeUnauthorized:        {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
	CodeForbidden:           {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied"},
	CodeInvalidSignature:    {HTTPStatus: http.StatusBadRequest, PublicMessage: "invalid webhook signature"},
	CodePayment:             {HTTPStatus: http.StatusBadGateway, PublicMessage: "payment provider error", ShowMessage: true},
	CodePaymentRejected:     {HTTPStatus: http.StatusBadRequest, PublicMessage: "payment provider rejected the request", ShowMessage: true},
	CodeNotFound:            {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
	CodeInsufficientCredits: {HTTPStatus: http.StatusBadRequest, PublicMessage: "insufficient credits"},
	CodeUnsupportedProvider: {HTTPStatus: http.StatusBadRequest, PublicMessage: "unsupported payment provider", ShowMessage: true},
	CodeMaintenance:         {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "payments are temporarily unavailable"},
	CodeRateLimit:           {HTTPStatus: http.StatusTooManyRequests, PublicMessage: "rate limit exceeded"},
	CodeInternal:            {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error"},
}

func MetadataFor(code Code) Metadata {
	if md, ok := metadataByCode[code]; ok {
		return md
	}
	return metadataByCode[CodeInternal]
}

// Error is a classified failure. Use cases return it so the transport layer
// can map the kind to a status without inspecting causes.
type Error struct {
	code    Code
	message string
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func (e *Error) Code() Code { return e.code }
func (e *Error) Message() string { return e.message }
func (e *Error) Unwrap() error { return e.cause }
func (e *Error) HTTPStatus() int { return MetadataFor(e.code).HTTPStatus }

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

// PublicMessage is the text safe to return to a client.
func (e *Error) PublicMessage() string {
	md := MetadataFor(e.code)
	if md.ShowMessage && e.message != "" {
		return e.message
	}
	return md.PublicMessage
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// Classify maps any error to a typed one. Domain sentinels get their natural
// code; everything else is internal.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if typed := As(err); typed != nil {
		return typed
	}
	switch {
	case stdErrors.Is(err, domain.ErrInvalidArgument):
		return Wrap(CodeValidation, err, "invalid request")
	case stdErrors.Is(err, domain.ErrInsufficientCredits):
		return Wrap(CodeInsufficientCredits, err, "insufficient credits")
	case stdErrors.Is(err, domain.ErrNotFound),
		stdErrors.Is(err, domain.ErrUserNotFound),
		stdErrors.Is(err, domain.ErrOrderNotFound):
		return Wrap(CodeNotFound, err, "not found")
	case stdErrors.Is(err, domain.ErrInvalidSignature):
		return Wrap(CodeInvalidSignature, err, "invalid webhook signature")
	case stdErrors.Is(err, domain.ErrUnsupportedProvider):
		return Wrap(CodeUnsupportedProvider, err, "unsupported payment provider")
	case stdErrors.Is(err, domain.ErrMaintenanceMode), stdErrors.Is(err, domain.ErrNoProviderAvailable):
		return Wrap(CodeMaintenance, err, "payments unavailable")
	}
	return Wrap(CodeInternal, err, "internal error")
}
