// Package chaterr holds the error taxonomy shared by the repositories, the
// authorization rules, the message service and both transports.
package chaterr

import (
	"context"
	"errors"
	"net/http"
)

var (
	ErrNotAMember             = errors.New("not a member of the chat")
	ErrInsufficientRole       = errors.New("admin role required")
	ErrInvalidChatKind        = errors.New("invalid request for chat kind")
	ErrEmptyMembership        = errors.New("chat requires at least one member")
	ErrMustTransferAdminFirst = errors.New("promote another admin before leaving")
	ErrReadOnlyChat           = errors.New("chat is read-only for this user")
	ErrNotFound               = errors.New("not found")
	ErrTimeout                = errors.New("store operation timed out")
	ErrStoreUnavailable       = errors.New("store unavailable")
)

// HTTPStatus maps a taxonomy error to its REST status. Anything outside the
// taxonomy is an internal failure and surfaces as 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotAMember),
		errors.Is(err, ErrInsufficientRole),
		errors.Is(err, ErrReadOnlyChat):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidChatKind), errors.Is(err, ErrEmptyMembership):
		return http.StatusBadRequest
	case errors.Is(err, ErrMustTransferAdminFirst):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Client reports whether the error is safe to return to the caller verbatim.
func Client(err error) bool {
	return HTTPStatus(err) != http.StatusInternalServerError
}

// FromStore normalizes infrastructure failures coming out of a bounded
// repository call.
func FromStore(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

// Retryable reports whether a read-only caller may retry the operation once.
func Retryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrStoreUnavailable)
}
