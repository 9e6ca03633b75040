package api

import (
	"errors"
	"net/http"
)

// AppError is an HTTP-mappable fault. Business denials (rate limited, quota
// exceeded, insufficient credits) are not AppErrors; they are decision
// values returned by the engine services and rendered by their handlers.
// AppError covers request faults and infrastructure faults only.
type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest     = &AppError{Code: http.StatusBadRequest, Message: "bad request"}
	ErrUnauthorized   = &AppError{Code: http.StatusUnauthorized, Message: "unauthorized"}
	ErrForbidden      = &AppError{Code: http.StatusForbidden, Message: "forbidden"}
	ErrNotFound       = &AppError{Code: http.StatusNotFound, Message: "not found"}
	ErrConflict       = &AppError{Code: http.StatusConflict, Message: "conflict"}
	ErrInternalServer = &AppError{Code: http.StatusInternalServerError, Message: "internal server error"}
	ErrValidation     = &AppError{Code: http.StatusBadRequest, Message: "validation error"}

	// ErrStorageUnavailable maps ledger-store faults to 503. It must never
	// be conflated with a business denial: a storage outage is retryable,
	// "no credits" is not.
	ErrStorageUnavailable = &AppError{Code: http.StatusServiceUnavailable, Message: "storage unavailable"}
)

func NewBadRequestError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func NewNotFoundError(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: msg}
}

func NewValidationError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func HandleError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		JSONErrorMessage(w, appErr.Code, appErr.Message)
		return
	}
	JSONErrorMessage(w, http.StatusInternalServerError, "internal server error")
}

// HandleStorageError logs nothing itself; callers log with slog first.
// Every repository failure surfaces as 503, never as a denial.
func HandleStorageError(w http.ResponseWriter) {
	JSONErrorMessage(w, ErrStorageUnavailable.Code, ErrStorageUnavailable.Message)
}
