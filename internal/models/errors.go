package models

import "errors"

// Domain errors shared by all services. Local validation errors
// (ErrForbidden, ErrSelfReport, ErrRecipientBlocked) are raised before any
// remote call is attempted; ErrRemoteUnavailable wraps transport failures
// from the persistence collaborator.
var (
	// ErrNotAuthenticated means no acting user identity is configured
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrForbidden means a mutation was attempted by a non-owner
	ErrForbidden = errors.New("forbidden")

	// ErrSelfReport means a user attempted to report themselves
	ErrSelfReport = errors.New("cannot report yourself")

	// ErrRecipientBlocked means the direct recipient is blocked by moderation
	ErrRecipientBlocked = errors.New("recipient is blocked")

	// ErrRemoteUnavailable means a persistence or transport call failed
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrNotFound means the mutation target does not exist
	ErrNotFound = errors.New("not found")
)
