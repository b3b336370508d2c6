// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package authtest provides in-memory auth repositories and a controllable
// clock for tests.
package authtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/stockevaluator/authcore/internal/auth"
)

// Store is an in-memory implementation of every auth repository and the
// Transactor. Transactions are serialized and roll back on error, which gives
// GetByEmailForUpdate the same per-account exclusion as a row lock.
type Store struct {
	txMu sync.Mutex

	mu       sync.Mutex
	accounts map[ulid.ULID]auth.Account
	refresh  map[ulid.ULID]auth.RefreshToken
	resets   map[ulid.ULID]auth.PasswordReset
	failures map[string]error
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[ulid.ULID]auth.Account),
		refresh:  make(map[ulid.ULID]auth.RefreshToken),
		resets:   make(map[ulid.ULID]auth.PasswordReset),
		failures: make(map[string]error),
	}
}

// Accounts returns the store as an AccountRepository.
func (s *Store) Accounts() auth.AccountRepository { return accountRepo{s} }

// RefreshTokens returns the store as a RefreshTokenRepository.
func (s *Store) RefreshTokens() auth.RefreshTokenRepository { return refreshRepo{s} }

// Resets returns the store as a PasswordResetRepository.
func (s *Store) Resets() auth.PasswordResetRepository { return resetRepo{s} }

// FailOn makes the named operation (for example "accounts.Update") return err
// until cleared with a nil err.
func (s *Store) FailOn(operation string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, operation)
		return
	}
	s.failures[operation] = err
}

// InTransaction implements auth.Transactor.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := s.injected("tx.Begin"); err != nil {
		return err
	}

	snap := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(snap)
		return err
	}
	if err := s.injected("tx.Commit"); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// Account returns a copy of the stored account with the given email.
func (s *Store) Account(email string) (auth.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == auth.NormalizeEmail(email) {
			return copyAccount(a), true
		}
	}
	return auth.Account{}, false
}

// RefreshTokenCount returns the number of live refresh token records.
func (s *Store) RefreshTokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refresh)
}

// ResetCount returns the number of stored password resets.
func (s *Store) ResetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resets)
}

// PutReset stores reset directly, bypassing the service.
func (s *Store) PutReset(reset *auth.PasswordReset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets[reset.ID] = *reset
}

// PutAccount stores account directly, bypassing the service.
func (s *Store) PutAccount(account *auth.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = copyAccount(*account)
}

type snapshot struct {
	accounts map[ulid.ULID]auth.Account
	refresh  map[ulid.ULID]auth.RefreshToken
	resets   map[ulid.ULID]auth.PasswordReset
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		accounts: make(map[ulid.ULID]auth.Account, len(s.accounts)),
		refresh:  make(map[ulid.ULID]auth.RefreshToken, len(s.refresh)),
		resets:   make(map[ulid.ULID]auth.PasswordReset, len(s.resets)),
	}
	for k, v := range s.accounts {
		snap.accounts[k] = copyAccount(v)
	}
	for k, v := range s.refresh {
		snap.refresh[k] = v
	}
	for k, v := range s.resets {
		snap.resets[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = snap.accounts
	s.refresh = snap.refresh
	s.resets = snap.resets
}

// injected returns the configured failure for operation. Callers hold no lock.
func (s *Store) injected(operation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[operation]
}

func copyAccount(a auth.Account) auth.Account {
	if a.LockedUntil != nil {
		until := *a.LockedUntil
		a.LockedUntil = &until
	}
	a.Roles = append([]string(nil), a.Roles...)
	return a
}

func notFound(entity string) error {
	return oops.Code(entity + "_NOT_FOUND").Wrap(auth.ErrNotFound)
}

type accountRepo struct{ s *Store }

func (r accountRepo) Create(_ context.Context, account *auth.Account) error {
	if err := r.s.injected("accounts.Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.Email == account.Email {
			return oops.With("email", account.Email).Wrap(auth.ErrDuplicate)
		}
	}
	r.s.accounts[account.ID] = copyAccount(*account)
	return nil
}

func (r accountRepo) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	if err := r.s.injected("accounts.GetByID"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, notFound("ACCOUNT")
	}
	found := copyAccount(a)
	return &found, nil
}

func (r accountRepo) GetByEmail(_ context.Context, email string) (*auth.Account, error) {
	if err := r.s.injected("accounts.GetByEmail"); err != nil {
		return nil, err
	}
	return r.byEmail(email)
}

func (r accountRepo) GetByEmailForUpdate(_ context.Context, email string) (*auth.Account, error) {
	if err := r.s.injected("accounts.GetByEmailForUpdate"); err != nil {
		return nil, err
	}
	return r.byEmail(email)
}

func (r accountRepo) byEmail(email string) (*auth.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	normalized := auth.NormalizeEmail(email)
	for _, a := range r.s.accounts {
		if a.Email == normalized {
			found := copyAccount(a)
			return &found, nil
		}
	}
	return nil, notFound("ACCOUNT")
}

func (r accountRepo) Update(_ context.Context, account *auth.Account) error {
	if err := r.s.injected("accounts.Update"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[account.ID]; !ok {
		return notFound("ACCOUNT")
	}
	r.s.accounts[account.ID] = copyAccount(*account)
	return nil
}

func (r accountRepo) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	if err := r.s.injected("accounts.UpdatePassword"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return notFound("ACCOUNT")
	}
	a.PasswordHash = passwordHash
	a.FailedAttempts = 0
	a.LockedUntil = nil
	r.s.accounts[id] = a
	return nil
}

type refreshRepo struct{ s *Store }

func (r refreshRepo) Create(_ context.Context, token *auth.RefreshToken) error {
	if err := r.s.injected("refresh.Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.refresh {
		if t.TokenHash == token.TokenHash {
			return oops.Wrap(auth.ErrDuplicate)
		}
	}
	r.s.refresh[token.ID] = *token
	return nil
}

func (r refreshRepo) GetByTokenHash(_ context.Context, tokenHash string) (*auth.RefreshToken, error) {
	if err := r.s.injected("refresh.GetByTokenHash"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.refresh {
		if t.TokenHash == tokenHash {
			found := t
			return &found, nil
		}
	}
	return nil, notFound("REFRESH_TOKEN")
}

func (r refreshRepo) Delete(_ context.Context, id ulid.ULID) error {
	if err := r.s.injected("refresh.Delete"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.refresh[id]; !ok {
		return notFound("REFRESH_TOKEN")
	}
	delete(r.s.refresh, id)
	return nil
}

func (r refreshRepo) DeleteByAccount(_ context.Context, accountID ulid.ULID) (int64, error) {
	if err := r.s.injected("refresh.DeleteByAccount"); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, t := range r.s.refresh {
		if t.AccountID == accountID {
			delete(r.s.refresh, id)
			n++
		}
	}
	return n, nil
}

type resetRepo struct{ s *Store }

func (r resetRepo) Create(_ context.Context, reset *auth.PasswordReset) error {
	if err := r.s.injected("resets.Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.resets[reset.ID] = *reset
	return nil
}

func (r resetRepo) GetByTokenHash(_ context.Context, tokenHash string) (*auth.PasswordReset, error) {
	if err := r.s.injected("resets.GetByTokenHash"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, reset := range r.s.resets {
		if reset.TokenHash == tokenHash {
			found := reset
			return &found, nil
		}
	}
	return nil, notFound("RESET")
}

func (r resetRepo) ListByAccount(_ context.Context, accountID ulid.ULID) ([]*auth.PasswordReset, error) {
	if err := r.s.injected("resets.ListByAccount"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*auth.PasswordReset
	for _, reset := range r.s.resets {
		if reset.AccountID == accountID {
			found := reset
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r resetRepo) Delete(_ context.Context, id ulid.ULID) error {
	if err := r.s.injected("resets.Delete"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.resets[id]; !ok {
		return notFound("RESET")
	}
	delete(r.s.resets, id)
	return nil
}

func (r resetRepo) DeleteByAccount(_ context.Context, accountID ulid.ULID) error {
	if err := r.s.injected("resets.DeleteByAccount"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, reset := range r.s.resets {
		if reset.AccountID == accountID {
			delete(r.s.resets, id)
		}
	}
	return nil
}

func (r resetRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	if err := r.s.injected("resets.DeleteExpired"); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, reset := range r.s.resets {
		if reset.IsExpiredAt(now) {
			delete(r.s.resets, id)
			n++
		}
	}
	return n, nil
}

// Verify interfaces are satisfied.
var (
	_ auth.Transactor              = (*Store)(nil)
	_ auth.AccountRepository       = accountRepo{}
	_ auth.RefreshTokenRepository  = refreshRepo{}
	_ auth.PasswordResetRepository = resetRepo{}
)
