package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/gateway"
	"github.com/bluehorizon/skydesk/pkg/security"
)

// Store keeps the credentials of the last session across restarts.
type Store interface {
	// Load returns nil when nothing is stored.
	Load(ctx context.Context) (*gateway.Credentials, error)
	Save(ctx context.Context, creds gateway.Credentials) error
	Clear(ctx context.Context) error
}

// FileStore seals credentials into a single file with a passphrase vault.
type FileStore struct {
	path  string
	vault *security.Vault
	mu    sync.Mutex
}

func NewFileStore(path string, vault *security.Vault) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("session file path is required")
	}
	if vault == nil {
		return nil, errors.New("vault is required")
	}
	return &FileStore{path: path, vault: vault}, nil
}

func (s *FileStore) Load(context.Context) (*gateway.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "read session file")
	}
	plain, err := s.vault.Open(string(sealed))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeCredential, err, "open session file")
	}
	var creds gateway.Credentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode stored session")
	}
	return &creds, nil
}

// Save replaces the file atomically.
func (s *FileStore) Save(_ context.Context, creds gateway.Credentials) error {
	plain, err := json.Marshal(creds)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode session")
	}
	sealed, err := s.vault.Seal(plain)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seal session")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "create session directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "create session temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(sealed); err != nil {
		_ = tmp.Close()
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "write session file")
	}
	if err := tmp.Close(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "close session file")
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "chmod session file")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, fmt.Sprintf("replace %s", s.path))
	}
	return nil
}

func (s *FileStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "remove session file")
	}
	return nil
}

// MemoryStore keeps credentials for the life of the process only.
type MemoryStore struct {
	mu    sync.RWMutex
	creds *gateway.Credentials
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(context.Context) (*gateway.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return nil, nil
	}
	out := *s.creds
	return &out, nil
}

func (s *MemoryStore) Save(_ context.Context, creds gateway.Credentials) error {
	s.mu.Lock()
	s.creds = &creds
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	s.creds = nil
	s.mu.Unlock()
	return nil
}
