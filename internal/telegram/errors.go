package telegram

import (
	"context"
	"errors"

	"tgpull/internal/domain"

	"github.com/gotd/td/tgerr"
)

var (
	ErrNotConfigured        = errors.New("telegram api credentials are not configured")
	ErrCodeNotPending       = errors.New("telegram login code was not requested")
	ErrFileReferenceExpired = errors.New("telegram file reference expired")
)

// mapRPCError folds protocol-level failures into the domain error
// taxonomy while keeping the underlying cause reachable via errors.As.
func mapRPCError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if alreadyMapped(err) {
		return err
	}
	// A blown caller deadline means the remote stalled; cancellation is
	// the caller's own doing and passes through untouched.
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(domain.ErrRemoteUnavailable, err)
	}
	if _, ok := tgerr.AsFloodWait(err); ok {
		return errors.Join(domain.ErrRateLimited, err)
	}
	if rpcErr, ok := tgerr.As(err); ok {
		switch {
		case rpcErr.IsOneOf("PHONE_NUMBER_INVALID", "PHONE_NUMBER_BANNED"):
			return errors.Join(domain.ErrInvalidPhoneFormat, err)
		case rpcErr.IsOneOf("PHONE_CODE_INVALID", "PHONE_CODE_EMPTY"):
			return errors.Join(domain.ErrInvalidCode, err)
		case rpcErr.IsOneOf("PHONE_CODE_EXPIRED", "PHONE_CODE_HASH_EMPTY"):
			return errors.Join(domain.ErrCodeExpired, err)
		case rpcErr.IsOneOf("PASSWORD_HASH_INVALID"):
			return errors.Join(domain.ErrInvalidPassword, err)
		case rpcErr.IsOneOf("AUTH_KEY_UNREGISTERED", "AUTH_KEY_INVALID", "SESSION_REVOKED", "SESSION_EXPIRED", "USER_DEACTIVATED"):
			return errors.Join(domain.ErrNotAuthenticated, err)
		case rpcErr.IsOneOf("PEER_ID_INVALID", "CHANNEL_PRIVATE", "CHANNEL_INVALID", "CHAT_ID_INVALID", "USER_ID_INVALID", "MSG_ID_INVALID"):
			return errors.Join(domain.ErrConversationNotFound, err)
		}
		return errors.Join(domain.ErrRemoteUnavailable, err)
	}
	// Transport-level failure: connect refused, timeout, closed
	// connection.
	return errors.Join(domain.ErrRemoteUnavailable, err)
}

// alreadyMapped keeps mapRPCError idempotent when a domain sentinel
// bubbled out of a nested callback.
func alreadyMapped(err error) bool {
	for _, sentinel := range []error{
		domain.ErrInvalidPhoneFormat,
		domain.ErrInvalidCode,
		domain.ErrCodeExpired,
		domain.ErrInvalidPassword,
		domain.ErrInvalidStateTransition,
		domain.ErrNotAuthenticated,
		domain.ErrConversationNotFound,
		domain.ErrAttachmentMissing,
		domain.ErrRemoteUnavailable,
		domain.ErrRateLimited,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func isFileReferenceError(err error) bool {
	var rpcErr *tgerr.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.IsOneOf("FILE_REFERENCE_EXPIRED", "FILE_REFERENCE_INVALID", "FILE_REFERENCE_EMPTY")
	}
	return false
}
