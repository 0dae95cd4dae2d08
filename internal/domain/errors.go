package domain

import "errors"

// Authentication errors.
var (
	ErrInvalidPhoneFormat     = errors.New("phone number must start with + followed by digits")
	ErrInvalidCode            = errors.New("login code is invalid")
	ErrCodeExpired            = errors.New("login code has expired")
	ErrInvalidPassword        = errors.New("two-factor password is invalid")
	ErrInvalidStateTransition = errors.New("operation is not valid in the current auth state")
)

// Fetch errors.
var (
	ErrNotAuthenticated     = errors.New("session is not authorized")
	ErrConversationNotFound = errors.New("conversation is no longer reachable")
)

// Download errors.
var (
	ErrAttachmentMissing = errors.New("message has no attachment")
	ErrStorageWrite      = errors.New("writing downloaded file failed")
	ErrDirectoryCreate   = errors.New("creating download directory failed")
)

// Shared remote errors. Both are reported for the caller to apply
// backoff policy; the core never retries on its own.
var (
	ErrRemoteUnavailable = errors.New("remote service unavailable")
	ErrRateLimited       = errors.New("rate limited by remote service")
)
