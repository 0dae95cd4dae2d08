// Package telegram adapts the gotd/td client to the capability
// interfaces the auth flow, conversation index, and media downloader
// consume. Everything protocol-shaped is mapped to domain types and
// domain error sentinels at this boundary.
package telegram

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tgpull/internal/domain"

	tdtelegram "github.com/gotd/td/telegram"
	"go.uber.org/zap"
)

const dialogBatchSize = 100

// Service owns the shared connection to Telegram. Protocol requests
// are serialized through runMu, so concurrent callers of the public
// methods never interleave on the wire.
type Service struct {
	sessionPath string
	logger      *zap.Logger

	mu           sync.RWMutex
	runMu        sync.Mutex
	qrMu         sync.Mutex
	apiID        int
	apiHash      string
	pendingPhone string
	pendingHash  string
	qrCancel     context.CancelFunc
	qrPasswordCh chan string
}

func NewService(sessionPath string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessionPath: sessionPath,
		logger:      logger,
	}
}

// Configure sets the api credentials obtained from my.telegram.org.
func (s *Service) Configure(apiID int, apiHash string) error {
	apiHash = strings.TrimSpace(apiHash)
	if apiID <= 0 || apiHash == "" {
		return ErrNotConfigured
	}

	s.mu.Lock()
	s.apiID = apiID
	s.apiHash = apiHash
	s.mu.Unlock()
	return nil
}

// Authorized reports whether the stored session is still accepted by
// the remote service.
func (s *Service) Authorized(ctx context.Context) (bool, error) {
	apiID, apiHash, err := s.credentials()
	if err != nil {
		return false, err
	}

	authorized := false
	err = s.withClient(ctx, apiID, apiHash, func(runCtx context.Context, client *tdtelegram.Client) error {
		status, statusErr := client.Auth().Status(runCtx)
		if statusErr != nil {
			return statusErr
		}
		authorized = status.Authorized
		return nil
	})
	if err != nil {
		return false, mapRPCError(err)
	}
	return authorized, nil
}

// Logout invalidates the remote session and removes the local blob.
func (s *Service) Logout(ctx context.Context) error {
	apiID, apiHash, err := s.credentials()
	if err != nil {
		return err
	}

	err = s.withClient(ctx, apiID, apiHash, func(runCtx context.Context, client *tdtelegram.Client) error {
		_, logoutErr := client.API().AuthLogOut(runCtx)
		return logoutErr
	})
	if err != nil {
		return mapRPCError(err)
	}
	s.clearPending()
	return s.sessionStorage().Remove()
}

// SessionSnapshot reads the persisted session blob and wraps it with
// metadata. Used after a successful sign-in.
func (s *Service) SessionSnapshot(ctx context.Context, phone string) (domain.Session, error) {
	blob, err := s.sessionStorage().LoadSession(ctx)
	if err != nil {
		// The blob is owned by the protocol layer; worst case the
		// caller holds metadata only.
		blob = nil
	}
	return domain.Session{
		Phone:        phone,
		IssuedAtUnix: time.Now().Unix(),
		Blob:         blob,
	}, nil
}

func (s *Service) sessionStorage() *SafeFileSessionStorage {
	return &SafeFileSessionStorage{Path: s.sessionPath}
}

func (s *Service) credentials() (int, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.apiID <= 0 || strings.TrimSpace(s.apiHash) == "" {
		return 0, "", ErrNotConfigured
	}
	return s.apiID, s.apiHash, nil
}

func (s *Service) pendingCode() (phone string, hash string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pendingPhone == "" || s.pendingHash == "" {
		return "", "", false
	}
	return s.pendingPhone, s.pendingHash, true
}

func (s *Service) setPending(phone, hash string) {
	s.mu.Lock()
	s.pendingPhone = phone
	s.pendingHash = hash
	s.mu.Unlock()
}

func (s *Service) clearPending() {
	s.mu.Lock()
	s.pendingPhone = ""
	s.pendingHash = ""
	s.mu.Unlock()
}

func (s *Service) withClient(ctx context.Context, apiID int, apiHash string, fn func(context.Context, *tdtelegram.Client) error) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	return s.withClientUsingOptions(ctx, apiID, apiHash, tdtelegram.Options{
		SessionStorage: s.sessionStorage(),
		Logger:         s.logger.Named("gotd"),
	}, fn)
}

func (s *Service) withClientUsingOptions(ctx context.Context, apiID int, apiHash string, opts tdtelegram.Options, fn func(context.Context, *tdtelegram.Client) error) error {
	if err := os.MkdirAll(filepath.Dir(s.sessionPath), 0o755); err != nil {
		return err
	}

	client := tdtelegram.NewClient(apiID, apiHash, opts)
	return client.Run(ctx, func(runCtx context.Context) error {
		return fn(runCtx, client)
	})
}

// requireAuthorized is the shared precondition for fetch and download
// calls.
func requireAuthorized(ctx context.Context, client *tdtelegram.Client) error {
	status, err := client.Auth().Status(ctx)
	if err != nil {
		return err
	}
	if !status.Authorized {
		return domain.ErrNotAuthenticated
	}
	return nil
}
