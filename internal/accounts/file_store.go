// File: internal/accounts/file_store.go
package accounts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/avelaine/kzfleet/internal/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FileStore keeps the roster in a single JSON file. Writes go through a
// temp-file rename so a crash mid-write cannot corrupt the roster.
type FileStore struct {
	path   string
	logger *zap.Logger

	mu       sync.RWMutex
	accounts []schemas.Account
}

// NewFileStore loads the roster at path, creating an empty store if the
// file does not exist yet.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	fs := &FileStore{
		path:   path,
		logger: logger.Named("account_store"),
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			fs.accounts = nil
			return nil
		}
		return fmt.Errorf("reading account roster %s: %w", fs.path, err)
	}

	var loaded []schemas.Account
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing account roster %s: %w", fs.path, err)
	}

	valid := loaded[:0]
	for _, acc := range loaded {
		if err := acc.Validate(); err != nil {
			fs.logger.Warn("Skipping invalid roster entry.", zap.String("email", acc.Email), zap.Error(err))
			continue
		}
		valid = append(valid, acc)
	}
	fs.accounts = valid
	fs.logger.Info("Account roster loaded.", zap.Int("accounts", len(valid)))
	return nil
}

func (fs *FileStore) persist() error {
	data, err := json.MarshalIndent(fs.accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding account roster: %w", err)
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating roster directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".roster-*.json")
	if err != nil {
		return fmt.Errorf("creating temp roster file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp roster file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp roster file: %w", err)
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing account roster %s: %w", fs.path, err)
	}
	return nil
}

// List returns a copy of the roster, sorted by email.
func (fs *FileStore) List(ctx context.Context) ([]schemas.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	out := make([]schemas.Account, len(fs.accounts))
	copy(out, fs.accounts)
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// Add validates, stores, and persists a new account.
func (fs *FileStore) Add(ctx context.Context, account schemas.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := account.Validate(); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	for _, existing := range fs.accounts {
		if strings.EqualFold(existing.Email, account.Email) {
			return fmt.Errorf("%s: %w", account.Email, ErrDuplicate)
		}
	}

	fs.accounts = append(fs.accounts, account)
	if err := fs.persist(); err != nil {
		fs.accounts = fs.accounts[:len(fs.accounts)-1]
		return err
	}
	fs.logger.Info("Account added to roster.", zap.String("email", account.Email))
	return nil
}

// Remove deletes an account by email, case-insensitively.
func (fs *FileStore) Remove(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	for i, existing := range fs.accounts {
		if strings.EqualFold(existing.Email, email) {
			removed := fs.accounts[i]
			fs.accounts = append(fs.accounts[:i], fs.accounts[i+1:]...)
			if err := fs.persist(); err != nil {
				fs.accounts = append(fs.accounts[:i], append([]schemas.Account{removed}, fs.accounts[i:]...)...)
				return err
			}
			fs.logger.Info("Account removed from roster.", zap.String("email", email))
			return nil
		}
	}
	return fmt.Errorf("%s: %w", email, ErrNotFound)
}

// Count returns the roster size.
func (fs *FileStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.accounts), nil
}

var _ Store = (*FileStore)(nil)
