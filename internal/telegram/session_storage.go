package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/gotd/td/session"
)

// SafeFileSessionStorage implements session.Storage with atomic writes
// so a crash can never leave a corrupt session blob. Writes land in a
// temporary file first and are renamed over the target path.
//
// On load the blob must be valid JSON; anything else (for example null
// bytes after a power loss) is treated as session.ErrNotFound so the
// client falls back to a fresh login.
type SafeFileSessionStorage struct {
	Path string
	mux  sync.Mutex
}

func (s *SafeFileSessionStorage) LoadSession(_ context.Context) ([]byte, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || !json.Valid(data) {
		return nil, session.ErrNotFound
	}
	return data, nil
}

func (s *SafeFileSessionStorage) StoreSession(_ context.Context, data []byte) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, s.Path)
}

// Remove deletes the persisted blob. Used on logout; a missing file is
// not an error.
func (s *SafeFileSessionStorage) Remove() error {
	s.mux.Lock()
	defer s.mux.Unlock()

	err := os.Remove(s.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
