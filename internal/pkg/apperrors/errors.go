package apperrors

import (
	"fmt"
	"net/http"
)

type ErrorType string

const (
	// Authorization / identity
	ErrNotOwner     ErrorType = "NOT_OWNER"
	ErrNotRequester ErrorType = "NOT_REQUESTER"
	ErrNotOracle    ErrorType = "NOT_ORACLE"
	ErrNotPlayer    ErrorType = "NOT_PLAYER"
	ErrMissingRole  ErrorType = "MISSING_ROLE"
	ErrAuthFailed   ErrorType = "AUTH_FAILED"

	// Randomness protocol
	ErrUnknownRequest   ErrorType = "UNKNOWN_REQUEST"
	ErrNotFulfilled     ErrorType = "NOT_FULFILLED"
	ErrAlreadyPending   ErrorType = "ALREADY_PENDING"
	ErrAlreadyFulfilled ErrorType = "ALREADY_FULFILLED"
	ErrRequestExpired   ErrorType = "REQUEST_EXPIRED"

	// Multisig
	ErrUnknownProposal       ErrorType = "UNKNOWN_PROPOSAL"
	ErrAlreadyApproved       ErrorType = "ALREADY_APPROVED"
	ErrAlreadyExecuted       ErrorType = "ALREADY_EXECUTED"
	ErrInsufficientApprovals ErrorType = "INSUFFICIENT_APPROVALS"

	// Treasury
	ErrTooSoon        ErrorType = "TOO_SOON"
	ErrAlreadyHandled ErrorType = "ALREADY_HANDLED"

	// Dealer
	ErrInvalidGameState ErrorType = "INVALID_GAME_STATE"
	ErrBetOutOfRange    ErrorType = "BET_OUT_OF_RANGE"
	ErrUnknownGame      ErrorType = "UNKNOWN_GAME"

	// Ledger
	ErrInsufficientFunds ErrorType = "INSUFFICIENT_FUNDS"
	ErrPaused            ErrorType = "PAUSED"

	// Transport / generic
	ErrInvalidRequest ErrorType = "INVALID_REQUEST"
	ErrNotFound       ErrorType = "NOT_FOUND"
	ErrInternal       ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match two AppErrors by type, so callers can compare
// against sentinel-style values without caring about the message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func Newf(errType ErrorType, format string, args ...any) *AppError {
	return New(errType, fmt.Sprintf(format, args...), nil)
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// IsType reports whether err is an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Type == t
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrNotOwner, ErrNotRequester, ErrNotOracle, ErrNotPlayer, ErrMissingRole:
		return http.StatusForbidden
	case ErrAuthFailed:
		return http.StatusUnauthorized
	case ErrUnknownRequest, ErrUnknownProposal, ErrUnknownGame, ErrNotFound:
		return http.StatusNotFound
	case ErrNotFulfilled, ErrAlreadyPending, ErrAlreadyFulfilled, ErrAlreadyApproved,
		ErrAlreadyExecuted, ErrAlreadyHandled, ErrInvalidGameState, ErrTooSoon, ErrRequestExpired:
		return http.StatusConflict
	case ErrInsufficientApprovals, ErrBetOutOfRange, ErrInvalidRequest, ErrInsufficientFunds:
		return http.StatusBadRequest
	case ErrPaused:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrNotFulfilled:
		return "Wait for the oracle callback and retry."
	case ErrAlreadyPending:
		return "Wait for the outstanding request to be fulfilled or expired."
	case ErrTooSoon:
		return "Retry after the cooldown interval has elapsed."
	case ErrInsufficientApprovals:
		return "Collect more owner approvals before executing."
	case ErrInsufficientFunds:
		return "Check balance and allowance before retrying."
	case ErrPaused:
		return "Wait for the ledger to be unpaused."
	case ErrBetOutOfRange:
		return "Adjust the bet to fit the configured table limits."
	default:
		return ""
	}
}
