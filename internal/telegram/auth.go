package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tgpull/internal/auth"
	"tgpull/internal/domain"

	tdtelegram "github.com/gotd/td/telegram"
	tdauth "github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// SendCode asks Telegram to deliver a one-time login code and keeps
// the phone/code-hash pair for the sign-in step.
func (s *Service) SendCode(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return domain.ErrInvalidPhoneFormat
	}

	apiID, apiHash, err := s.credentials()
	if err != nil {
		return err
	}

	err = s.withClient(ctx, apiID, apiHash, func(runCtx context.Context, client *tdtelegram.Client) error {
		sentCode, sendErr := client.Auth().SendCode(runCtx, phone, tdauth.SendCodeOptions{})
		if sendErr != nil {
			return sendErr
		}

		switch sent := sentCode.(type) {
		case *tg.AuthSentCode:
			s.setPending(phone, sent.PhoneCodeHash)
		case *tg.AuthSentCodeSuccess:
			// Already signed in on this session; nothing pending.
			s.clearPending()
		default:
			return fmt.Errorf("unexpected send code result type: %T", sentCode)
		}
		return nil
	})
	return mapRPCError(err)
}

// SignIn submits the one-time code. A SESSION_PASSWORD_NEEDED response
// becomes a password-required outcome instead of an error, so the flow
// can branch to its AwaitingPassword state.
func (s *Service) SignIn(ctx context.Context, code string) (auth.SignInResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return auth.SignInResult{}, domain.ErrInvalidCode
	}

	phone, hash, ok := s.pendingCode()
	if !ok {
		return auth.SignInResult{}, ErrCodeNotPending
	}
	apiID, apiHash, err := s.credentials()
	if err != nil {
		return auth.SignInResult{}, err
	}

	passwordNeeded := false
	err = s.withClient(ctx, apiID, apiHash, func(runCtx context.Context, client *tdtelegram.Client) error {
		_, signInErr := client.Auth().SignIn(runCtx, phone, code, hash)
		if isPasswordNeeded(signInErr) {
			passwordNeeded = true
			return nil
		}
		return signInErr
	})
	if err != nil {
		return auth.SignInResult{}, mapRPCError(err)
	}

	if passwordNeeded {
		return auth.SignInResult{PasswordRequired: true}, nil
	}

	s.clearPending()
	sess, err := s.SessionSnapshot(ctx, phone)
	if err != nil {
		return auth.SignInResult{}, err
	}
	return auth.SignInResult{Session: sess}, nil
}

// SignInPassword completes a two-factor protected sign-in.
func (s *Service) SignInPassword(ctx context.Context, password string) (domain.Session, error) {
	phone, _, ok := s.pendingCode()
	if !ok {
		return domain.Session{}, ErrCodeNotPending
	}
	apiID, apiHash, err := s.credentials()
	if err != nil {
		return domain.Session{}, err
	}

	err = s.withClient(ctx, apiID, apiHash, func(runCtx context.Context, client *tdtelegram.Client) error {
		_, pwdErr := client.Auth().Password(runCtx, password)
		return pwdErr
	})
	if err != nil {
		if errors.Is(err, tdauth.ErrPasswordInvalid) {
			return domain.Session{}, errors.Join(domain.ErrInvalidPassword, err)
		}
		return domain.Session{}, mapRPCError(err)
	}

	s.clearPending()
	return s.SessionSnapshot(ctx, phone)
}

func isPasswordNeeded(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, tdauth.ErrPasswordAuthNeeded) {
		return true
	}
	if rpcErr, ok := tgerr.As(err); ok {
		return rpcErr.IsOneOf("SESSION_PASSWORD_NEEDED")
	}
	return false
}
