// Package auth obtains and caches the Microsoft credential a bot session
// needs before it can connect. The relay core treats this purely as a
// prerequisite to connect; polling and expiry live entirely in here.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"

	"github.com/cobblechat/cobblechat/pkg/utils"
)

// ErrNoCachedToken is returned by Load when no credential is cached for the
// owner.
var ErrNoCachedToken = errors.New("no cached token")

// Store is a file-backed token cache, one JSON file per owner under dir.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(owner string) (string, error) {
	if err := utils.ValidateOwnerName(owner); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, owner+".json"), nil
}

// Load returns the cached token for the owner, or ErrNoCachedToken.
func (s *Store) Load(owner string) (*oauth2.Token, error) {
	p, err := s.path(owner)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoCachedToken
	}
	if err != nil {
		return nil, fmt.Errorf("reading token cache: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decoding token cache: %w", err)
	}
	return &tok, nil
}

// Save writes the owner's token to the cache, creating the directory as
// needed. Token files are owner-readable only.
func (s *Store) Save(owner string, tok *oauth2.Token) error {
	p, err := s.path(owner)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating token cache dir: %w", err)
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return fmt.Errorf("writing token cache: %w", err)
	}
	return nil
}

// Delete removes the owner's cached token. Removing a missing entry is a
// no-op.
func (s *Store) Delete(owner string) error {
	p, err := s.path(owner)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
