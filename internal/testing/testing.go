// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/tubesync/internal/models"
)

// TokenStore is an in-memory stand-in for the user and session repositories.
type TokenStore struct {
	mu       sync.Mutex
	Tokens   map[string]*models.Token
	Cleared  []string
	Sessions map[string]int
	Err      error
}

func NewTokenStore() *TokenStore {
	return &TokenStore{Tokens: map[string]*models.Token{}, Sessions: map[string]int{}}
}

func (s *TokenStore) SaveToken(ctx context.Context, userID string, tok *models.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	copied := *tok
	s.Tokens[userID] = &copied
	return nil
}

func (s *TokenStore) ClearToken(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Tokens, userID)
	s.Cleared = append(s.Cleared, userID)
	return nil
}

func (s *TokenStore) DeleteForUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Sessions, userID)
	return nil
}

// Token returns the saved token for userID, or nil.
func (s *TokenStore) Token(userID string) *models.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Tokens[userID]
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
