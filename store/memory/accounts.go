// Package memory provides an in-process authcore.AccountStore for tests,
// demos and single-node tooling. Lockout and password history stay on Redis.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/authcore"
)

// AccountStore is a mutex-guarded map implementation of
// authcore.AccountStore. The zero value is not usable; call NewAccountStore.
type AccountStore struct {
	mu      sync.RWMutex
	byID    map[string]authcore.Account
	byEmail map[string]string
}

// NewAccountStore returns an empty store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		byID:    make(map[string]authcore.Account),
		byEmail: make(map[string]string),
	}
}

var _ authcore.AccountStore = (*AccountStore)(nil)

// GetByEmail returns the account registered under email.
func (s *AccountStore) GetByEmail(_ context.Context, email string) (authcore.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return authcore.Account{}, authcore.ErrAccountNotFound
	}
	return s.byID[id], nil
}

// GetByID returns the account with id.
func (s *AccountStore) GetByID(_ context.Context, id string) (authcore.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return authcore.Account{}, authcore.ErrAccountNotFound
	}
	return a, nil
}

// Create stores account. Email and ID must both be unused.
func (s *AccountStore) Create(_ context.Context, account authcore.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[account.Email]; ok {
		return authcore.ErrAccountExists
	}
	if _, ok := s.byID[account.ID]; ok {
		return authcore.ErrAccountExists
	}
	s.byID[account.ID] = account
	s.byEmail[account.Email] = account.ID
	return nil
}

// UpdatePasswordHash replaces the stored hash.
func (s *AccountStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return s.update(id, func(a *authcore.Account) { a.PasswordHash = hash })
}

// RecordLogin sets LastLoginAt.
func (s *AccountStore) RecordLogin(_ context.Context, id string, at time.Time) error {
	return s.update(id, func(a *authcore.Account) { a.LastLoginAt = at })
}

// Delete removes the account.
func (s *AccountStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return authcore.ErrAccountNotFound
	}
	delete(s.byID, id)
	delete(s.byEmail, a.Email)
	return nil
}

// Len reports the number of stored accounts.
func (s *AccountStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *AccountStore) update(id string, fn func(*authcore.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return authcore.ErrAccountNotFound
	}
	fn(&a)
	s.byID[id] = a
	return nil
}
