// Package auth drives the interactive login state machine against the
// remote messaging service. It owns no protocol details: the Client
// capability is injected and mapped errors come back as domain
// sentinels.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"tgpull/internal/domain"
)

type State string

const (
	StateAwaitingPhone    State = "awaiting_phone"
	StateAwaitingCode     State = "awaiting_code"
	StateAwaitingPassword State = "awaiting_password"
	StateAuthenticated    State = "authenticated"
)

var phonePattern = regexp.MustCompile(`^\+[0-9]{6,15}$`)

// SignInResult is what the remote client reports after a code is
// submitted: either a completed session or a demand for the account's
// two-factor password.
type SignInResult struct {
	PasswordRequired bool
	Session          domain.Session
}

// Client is the slice of the remote capability the flow needs.
type Client interface {
	SendCode(ctx context.Context, phone string) error
	SignIn(ctx context.Context, code string) (SignInResult, error)
	SignInPassword(ctx context.Context, password string) (domain.Session, error)
}

// SessionStore receives the session for persistence once the flow
// reaches Authenticated. Implementations decide where it lives.
type SessionStore interface {
	SaveSession(ctx context.Context, sess domain.Session) error
}

// Outcome reports a SubmitCode result to the caller.
type Outcome struct {
	PasswordRequired bool
	Session          domain.Session
}

// Flow is the phone → code (→ password) → authenticated machine. All
// methods are safe for concurrent use; an out-of-order call fails with
// domain.ErrInvalidStateTransition and leaves the state untouched.
type Flow struct {
	client Client
	store  SessionStore

	mu      sync.Mutex
	state   State
	phone   string
	session domain.Session
}

func NewFlow(client Client, store SessionStore) *Flow {
	return &Flow{
		client: client,
		store:  store,
		state:  StateAwaitingPhone,
	}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Session returns the session produced by the flow, valid once the
// state is Authenticated.
func (f *Flow) Session() (domain.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, f.state == StateAuthenticated
}

func (f *Flow) SubmitPhone(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if !phonePattern.MatchString(phone) {
		return domain.ErrInvalidPhoneFormat
	}

	f.mu.Lock()
	if f.state != StateAwaitingPhone {
		f.mu.Unlock()
		return domain.ErrInvalidStateTransition
	}
	f.mu.Unlock()

	if err := f.client.SendCode(ctx, phone); err != nil {
		return err
	}

	f.mu.Lock()
	f.phone = phone
	f.state = StateAwaitingCode
	f.mu.Unlock()
	return nil
}

func (f *Flow) SubmitCode(ctx context.Context, code string) (Outcome, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Outcome{}, domain.ErrInvalidCode
	}

	f.mu.Lock()
	if f.state != StateAwaitingCode {
		f.mu.Unlock()
		return Outcome{}, domain.ErrInvalidStateTransition
	}
	f.mu.Unlock()

	result, err := f.client.SignIn(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrCodeExpired) {
			// The code hash is dead; the caller has to request a
			// fresh one starting from the phone step.
			f.mu.Lock()
			f.state = StateAwaitingPhone
			f.mu.Unlock()
		}
		// ErrInvalidCode keeps the state so the caller may retry.
		return Outcome{}, err
	}

	if result.PasswordRequired {
		f.mu.Lock()
		f.state = StateAwaitingPassword
		f.mu.Unlock()
		return Outcome{PasswordRequired: true}, nil
	}

	// The remote side is signed in and the code hash is consumed, so
	// the machine reaches Authenticated no matter what the store says.
	// A persistence failure is reported alongside the usable session.
	sess := f.stampSession(result.Session)
	persistErr := f.persist(ctx, sess)

	f.mu.Lock()
	f.session = sess
	f.state = StateAuthenticated
	f.mu.Unlock()
	return Outcome{Session: sess}, persistErr
}

func (f *Flow) SubmitPassword(ctx context.Context, password string) (domain.Session, error) {
	f.mu.Lock()
	if f.state != StateAwaitingPassword {
		f.mu.Unlock()
		return domain.Session{}, domain.ErrInvalidStateTransition
	}
	f.mu.Unlock()

	result, err := f.client.SignInPassword(ctx, password)
	if err != nil {
		// ErrInvalidPassword keeps the state; retries are up to the
		// caller, no attempt cap here.
		return domain.Session{}, err
	}

	sess := f.stampSession(result)
	persistErr := f.persist(ctx, sess)

	f.mu.Lock()
	f.session = sess
	f.state = StateAuthenticated
	f.mu.Unlock()
	return sess, persistErr
}

func (f *Flow) stampSession(sess domain.Session) domain.Session {
	f.mu.Lock()
	phone := f.phone
	f.mu.Unlock()
	if sess.Phone == "" {
		sess.Phone = phone
	}
	if sess.IssuedAtUnix == 0 {
		sess.IssuedAtUnix = time.Now().Unix()
	}
	return sess
}

func (f *Flow) persist(ctx context.Context, sess domain.Session) error {
	if f.store == nil {
		return nil
	}
	if err := f.store.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}
