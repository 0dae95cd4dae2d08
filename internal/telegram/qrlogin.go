package telegram

import (
	"context"
	"encoding/base64"

	"tgpull/internal/domain"

	tdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth/qrlogin"
	"github.com/gotd/td/tg"
	"rsc.io/qr"
)

// QRToken is handed to the caller every time Telegram issues a fresh
// login token. PasswordNeeded marks the two-factor branch; the caller
// answers through SubmitQRPassword.
type QRToken struct {
	DataURI        string
	ExpiresAtUnix  int64
	PasswordNeeded bool
}

// QRLogin performs token-based login. showQR is invoked with a PNG
// data URI for each issued token (tokens rotate until one is scanned).
func (s *Service) QRLogin(ctx context.Context, showQR func(token QRToken) error) (domain.Session, error) {
	apiID, apiHash, err := s.credentials()
	if err != nil {
		return domain.Session{}, err
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	qrCtx, qrCancel := context.WithCancel(ctx)
	defer qrCancel()

	s.qrMu.Lock()
	s.qrCancel = qrCancel
	s.qrMu.Unlock()
	defer func() {
		s.qrMu.Lock()
		s.qrCancel = nil
		s.qrMu.Unlock()
	}()

	dispatcher := tg.NewUpdateDispatcher()
	loggedIn := qrlogin.OnLoginToken(dispatcher)

	err = s.withClientUsingOptions(qrCtx, apiID, apiHash, tdtelegram.Options{
		SessionStorage: s.sessionStorage(),
		UpdateHandler:  dispatcher,
		Logger:         s.logger.Named("gotd"),
	}, func(runCtx context.Context, client *tdtelegram.Client) error {
		status, statusErr := client.Auth().Status(runCtx)
		if statusErr != nil {
			return statusErr
		}
		if status.Authorized {
			return nil
		}

		_, authErr := client.QR().Auth(runCtx, loggedIn, func(_ context.Context, token qrlogin.Token) error {
			code, codeErr := qr.Encode(token.URL(), qr.M)
			if codeErr != nil {
				return codeErr
			}
			return showQR(QRToken{
				DataURI:       "data:image/png;base64," + base64.StdEncoding.EncodeToString(code.PNG()),
				ExpiresAtUnix: token.Expires().Unix(),
			})
		})
		if authErr != nil {
			if !isPasswordNeeded(authErr) {
				return authErr
			}
			// The channel must exist before the caller is told to
			// submit: showQR may answer synchronously via
			// SubmitQRPassword.
			passwordCh := s.getPasswordCh()
			if notifyErr := showQR(QRToken{PasswordNeeded: true}); notifyErr != nil {
				return notifyErr
			}
			var password string
			select {
			case password = <-passwordCh:
			case <-runCtx.Done():
				return runCtx.Err()
			}
			if _, pwdErr := client.Auth().Password(runCtx, password); pwdErr != nil {
				return pwdErr
			}
		}
		return nil
	})
	if err != nil {
		return domain.Session{}, mapRPCError(err)
	}
	return s.SessionSnapshot(ctx, "")
}

// CancelQRLogin aborts an in-flight QRLogin, if any.
func (s *Service) CancelQRLogin() {
	s.qrMu.Lock()
	defer s.qrMu.Unlock()
	if s.qrCancel != nil {
		s.qrCancel()
	}
}

// SubmitQRPassword answers the two-factor branch of QRLogin.
func (s *Service) SubmitQRPassword(password string) {
	s.qrMu.Lock()
	ch := s.qrPasswordCh
	s.qrMu.Unlock()
	if ch != nil {
		select {
		case ch <- password:
		default:
		}
	}
}

func (s *Service) getPasswordCh() chan string {
	s.qrMu.Lock()
	defer s.qrMu.Unlock()
	if s.qrPasswordCh == nil {
		s.qrPasswordCh = make(chan string, 1)
	} else {
		// drain stale value
		select {
		case <-s.qrPasswordCh:
		default:
		}
	}
	return s.qrPasswordCh
}
