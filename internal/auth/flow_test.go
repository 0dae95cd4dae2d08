package auth

import (
	"context"
	"errors"
	"testing"

	"tgpull/internal/domain"
)

type fakeClient struct {
	sendCodeErr  error
	signInResult SignInResult
	signInErr    error
	passwordSess domain.Session
	passwordErr  error

	sentPhones []string
	codes      []string
	passwords  []string
}

func (f *fakeClient) SendCode(_ context.Context, phone string) error {
	f.sentPhones = append(f.sentPhones, phone)
	return f.sendCodeErr
}

func (f *fakeClient) SignIn(_ context.Context, code string) (SignInResult, error) {
	f.codes = append(f.codes, code)
	return f.signInResult, f.signInErr
}

func (f *fakeClient) SignInPassword(_ context.Context, password string) (domain.Session, error) {
	f.passwords = append(f.passwords, password)
	return f.passwordSess, f.passwordErr
}

type fakeStore struct {
	saved []domain.Session
	err   error
}

func (f *fakeStore) SaveSession(_ context.Context, sess domain.Session) error {
	f.saved = append(f.saved, sess)
	return f.err
}

func TestSubmitPhoneTransitions(t *testing.T) {
	client := &fakeClient{}
	flow := NewFlow(client, nil)

	if err := flow.SubmitPhone(context.Background(), "+15551234567"); err != nil {
		t.Fatalf("submit phone failed: %v", err)
	}
	if got := flow.State(); got != StateAwaitingCode {
		t.Fatalf("expected state %s, got %s", StateAwaitingCode, got)
	}
	if len(client.sentPhones) != 1 || client.sentPhones[0] != "+15551234567" {
		t.Fatalf("expected one SendCode call, got %v", client.sentPhones)
	}

	// A second submit is out of order now.
	if err := flow.SubmitPhone(context.Background(), "+15551234567"); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected invalid state transition, got %v", err)
	}
}

func TestSubmitPhoneRejectsBadFormats(t *testing.T) {
	for _, phone := range []string{"", "15551234567", "+", "+1555abc", "+1 555 123", "phone"} {
		client := &fakeClient{}
		flow := NewFlow(client, nil)
		err := flow.SubmitPhone(context.Background(), phone)
		if !errors.Is(err, domain.ErrInvalidPhoneFormat) {
			t.Fatalf("phone %q: expected format error, got %v", phone, err)
		}
		if flow.State() != StateAwaitingPhone {
			t.Fatalf("phone %q: state changed to %s", phone, flow.State())
		}
		if len(client.sentPhones) != 0 {
			t.Fatalf("phone %q: remote was called", phone)
		}
	}
}

func TestSubmitPhoneRemoteFailureKeepsState(t *testing.T) {
	client := &fakeClient{sendCodeErr: domain.ErrRemoteUnavailable}
	flow := NewFlow(client, nil)

	err := flow.SubmitPhone(context.Background(), "+15551234567")
	if !errors.Is(err, domain.ErrRemoteUnavailable) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if flow.State() != StateAwaitingPhone {
		t.Fatalf("state should stay awaiting_phone, got %s", flow.State())
	}
}

func TestSubmitCodeOutOfOrder(t *testing.T) {
	flow := NewFlow(&fakeClient{}, nil)
	_, err := flow.SubmitCode(context.Background(), "12345")
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected invalid state transition, got %v", err)
	}
	if flow.State() != StateAwaitingPhone {
		t.Fatalf("state changed to %s", flow.State())
	}
}

func TestSubmitCodeSuccessPersistsSession(t *testing.T) {
	client := &fakeClient{signInResult: SignInResult{Session: domain.Session{Blob: []byte("blob")}}}
	store := &fakeStore{}
	flow := NewFlow(client, store)

	if err := flow.SubmitPhone(context.Background(), "+15551234567"); err != nil {
		t.Fatalf("submit phone failed: %v", err)
	}
	outcome, err := flow.SubmitCode(context.Background(), "12345")
	if err != nil {
		t.Fatalf("submit code failed: %v", err)
	}
	if outcome.PasswordRequired {
		t.Fatal("password should not be required")
	}
	if flow.State() != StateAuthenticated {
		t.Fatalf("expected authenticated, got %s", flow.State())
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected one persisted session, got %d", len(store.saved))
	}
	if store.saved[0].Phone != "+15551234567" {
		t.Fatalf("session phone not stamped: %+v", store.saved[0])
	}
	if store.saved[0].IssuedAtUnix == 0 {
		t.Fatal("session issued-at not stamped")
	}
}

func TestSubmitCodeInvalidAllowsRetry(t *testing.T) {
	client := &fakeClient{signInErr: domain.ErrInvalidCode}
	flow := NewFlow(client, nil)
	if err := flow.SubmitPhone(context.Background(), "+15551234567"); err != nil {
		t.Fatalf("submit phone failed: %v", err)
	}

	_, err := flow.SubmitCode(context.Background(), "00000")
	if !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("expected invalid code, got %v", err)
	}
	if flow.State() != StateAwaitingCode {
		t.Fatalf("invalid code must keep awaiting_code, got %s", flow.State())
	}

	// Retry succeeds.
	client.signInErr = nil
	if _, err := flow.SubmitCode(context.Background(), "12345"); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if flow.State() != StateAuthenticated {
		t.Fatalf("expected authenticated, got %s", flow.State())
	}
}

func TestSubmitCodeExpiredRestartsFromPhone(t *testing.T) {
	client := &fakeClient{signInErr: domain.ErrCodeExpired}
	flow := NewFlow(client, nil)
	if err := flow.SubmitPhone(context.Background(), "+15551234567"); err != nil {
		t.Fatalf("submit phone failed: %v", err)
	}

	_, err := flow.SubmitCode(context.Background(), "12345")
	if !errors.Is(err, domain.ErrCodeExpired) {
		t.Fatalf("expected code expired, got %v", err)
	}
	if flow.State() != StateAwaitingPhone {
		t.Fatalf("expired code must reset to awaiting_phone, got %s", flow.State())
	}
}

func TestPasswordBranch(t *testing.T) {
	client := &fakeClient{
		signInResult: SignInResult{PasswordRequired: true},
		passwordSess: domain.Session{Blob: []byte("blob")},
	}
	store := &fakeStore{}
	flow := NewFlow(client, store)

	if err := flow.SubmitPhone(context.Background(), "+15551234567"); err != nil {
		t.Fatalf("submit phone failed: %v", err)
	}
	outcome, err := flow.SubmitCode(context.Background(), "12345")
	if err != nil {
		t.Fatalf("submit code failed: %v", err)
	}
	if !outcome.PasswordRequired {
		t.Fatal("expected password required outcome")
	}
	if flow.State() != StateAwaitingPassword {
		t.Fatalf("expected awaiting_password, got %s", flow.State())
	}

	// Wrong password keeps the state; retries are uncapped.
	client.passwordErr = domain.ErrInvalidPassword
	if _, err := flow.SubmitPassword(context.Background(), "wrong"); !errors.Is(err, domain.ErrInvalidPassword) {
		t.Fatalf("expected invalid password, got %v", err)
	}
	if flow.State() != StateAwaitingPassword {
		t.Fatalf("invalid password must keep awaiting_password, got %s", flow.State())
	}

	client.passwordErr = nil
	sess, err := flow.SubmitPassword(context.Background(), "hunter2")
	if err != nil {
		t.Fatalf("submit password failed: %v", err)
	}
	if flow.State() != StateAuthenticated {
		t.Fatalf("expected authenticated, got %s", flow.State())
	}
	if sess.Phone != "+15551234567" {
		t.Fatalf("session phone not stamped: %+v", sess)
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected one persisted session, got %d", len(store.saved))
	}
}

func TestSubmitCodePersistFailureStillAuthenticates(t *testing.T) {
	client := &fakeClient{signInResult: SignInResult{Session: domain.Session{Blob: []byte("blob")}}}
	store := &fakeStore{err: domain.ErrStorageWrite}
	flow := NewFlow(client, store)

	if err := flow.SubmitPhone(context.Background(), "+15551234567"); err != nil {
		t.Fatalf("submit phone failed: %v", err)
	}
	outcome, err := flow.SubmitCode(context.Background(), "12345")
	if !errors.Is(err, domain.ErrStorageWrite) {
		t.Fatalf("expected storage error reported, got %v", err)
	}
	// The remote is signed in and the code hash is gone: the machine
	// must reflect that instead of inviting a doomed retry.
	if flow.State() != StateAuthenticated {
		t.Fatalf("persist failure stranded flow in %s", flow.State())
	}
	if len(outcome.Session.Blob) == 0 {
		t.Fatal("session not returned alongside the persist error")
	}
	if sess, ok := flow.Session(); !ok || len(sess.Blob) == 0 {
		t.Fatal("session not recorded on the flow")
	}
}

func TestSubmitPasswordPersistFailureStillAuthenticates(t *testing.T) {
	client := &fakeClient{
		signInResult: SignInResult{PasswordRequired: true},
		passwordSess: domain.Session{Blob: []byte("blob")},
	}
	store := &fakeStore{err: domain.ErrStorageWrite}
	flow := NewFlow(client, store)

	if err := flow.SubmitPhone(context.Background(), "+15551234567"); err != nil {
		t.Fatalf("submit phone failed: %v", err)
	}
	if _, err := flow.SubmitCode(context.Background(), "12345"); err != nil {
		t.Fatalf("submit code failed: %v", err)
	}

	sess, err := flow.SubmitPassword(context.Background(), "hunter2")
	if !errors.Is(err, domain.ErrStorageWrite) {
		t.Fatalf("expected storage error reported, got %v", err)
	}
	if flow.State() != StateAuthenticated {
		t.Fatalf("persist failure stranded flow in %s", flow.State())
	}
	if len(sess.Blob) == 0 {
		t.Fatal("session not returned alongside the persist error")
	}
}

func TestSubmitPasswordOutOfOrder(t *testing.T) {
	flow := NewFlow(&fakeClient{}, nil)
	if _, err := flow.SubmitPassword(context.Background(), "pw"); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected invalid state transition, got %v", err)
	}
}
