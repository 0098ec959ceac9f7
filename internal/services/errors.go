package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports malformed input (empty cart, negative price or
// amount, zero quantity). It is raised before any state mutation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError reports an advance request whose target status
// does not immediately follow the order's current status.
type InvalidTransitionError struct {
	OrderID string
	From    string
	To      string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s cannot move from %s to %s", e.OrderID, e.From, e.To)
}

// AuthorizationError reports an actor attempting to mutate an order or
// ledger pair it does not own.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return e.Reason }

func authorizationErrorf(format string, args ...any) *AuthorizationError {
	return &AuthorizationError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a referenced order/shop/product/customer id that
// does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }

// SendDomainError maps a core error to the HTTP status a UI needs to
// tell the failure modes apart, falling back to 500 for anything
// unclassified.
func SendDomainError(w http.ResponseWriter, err error) {
	var (
		validationErr *ValidationError
		transitionErr *InvalidTransitionError
		authErr       *AuthorizationError
		notFoundErr   *NotFoundError
	)
	switch {
	case errors.As(err, &validationErr):
		SendErrorResponse(w, validationErr.Reason, http.StatusBadRequest, nil)
	case errors.As(err, &transitionErr):
		SendErrorResponse(w, transitionErr.Error(), http.StatusConflict, nil)
	case errors.As(err, &authErr):
		SendErrorResponse(w, authErr.Reason, http.StatusForbidden, nil)
	case errors.As(err, &notFoundErr):
		SendErrorResponse(w, notFoundErr.Error(), http.StatusNotFound, nil)
	default:
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
	}
}
