package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is how often a contended credential lock is retried.
const lockRetryDelay = 50 * time.Millisecond

// Store persists a single Credential.
type Store interface {
	// Load returns the stored credential, or an error wrapping
	// ErrNoCredential when nothing is stored.
	Load() (*Credential, error)

	// Save replaces the stored credential.
	Save(c *Credential) error

	// Remove deletes the stored credential. Removing a missing credential
	// is not an error.
	Remove() error

	// Lock acquires exclusive access to the stored credential until the
	// returned function is called.
	Lock(ctx context.Context) (unlock func(), err error)
}

// FileStore stores the credential as a JSON file. Writes go to a temporary
// file in the same directory which is then renamed over the target.
type FileStore struct {
	path string
	lock *flock.Flock
}

// NewFileStore returns a FileStore for the given credential file path.
// The advisory lock lives at path + ".lock".
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the credential file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads and decodes the credential file.
func (s *FileStore) Load() (*Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrNoCredential, s.path)
		}
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode credential file %s: %w", s.path, err)
	}
	if c.AccessToken == "" && c.RefreshToken == "" {
		return nil, fmt.Errorf("credential file %s holds no token", s.path)
	}

	return &c, nil
}

// Save writes the credential file with mode 0600.
func (s *FileStore) Save(c *Credential) error {
	if c == nil {
		return fmt.Errorf("credential cannot be nil")
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary credential file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set credential file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close credential file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace credential file: %w", err)
	}
	committed = true

	return nil
}

// Remove deletes the credential file.
func (s *FileStore) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove credential file: %w", err)
	}
	return nil
}

// Lock takes the exclusive advisory lock, waiting until it is free or ctx
// is done.
func (s *FileStore) Lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", s.lock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to lock %s", s.lock.Path())
	}

	return func() { _ = s.lock.Unlock() }, nil
}
