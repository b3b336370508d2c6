// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Token lifetimes used when none are configured.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// RegisterRequest carries the fields needed to create an account.
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// ServiceDeps are the collaborators required by Service.
type ServiceDeps struct {
	Accounts      AccountRepository
	RefreshTokens RefreshTokenRepository
	Transactor    Transactor
	Hasher        PasswordHasher
	Codec         *TokenCodec
}

// Service provides register, login, refresh and token authentication.
type Service struct {
	accounts   AccountRepository
	refresh    RefreshTokenRepository
	tx         Transactor
	hasher     PasswordHasher
	codec      *TokenCodec
	policy     LockoutPolicy
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger used for login and refresh events.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock sets the clock used for lockout and record timestamps. Pair it
// with WithCodecClock on the codec when tests advance time.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithTokenTTLs overrides the access and refresh token lifetimes.
func WithTokenTTLs(access, refresh time.Duration) ServiceOption {
	return func(s *Service) {
		s.accessTTL = access
		s.refreshTTL = refresh
	}
}

// WithLockoutPolicy overrides the default lockout policy.
func WithLockoutPolicy(policy LockoutPolicy) ServiceOption {
	return func(s *Service) {
		s.policy = policy
	}
}

// NewAuthService creates a Service after checking that every dependency is set.
func NewAuthService(deps ServiceDeps, opts ...ServiceOption) (*Service, error) {
	switch {
	case deps.Accounts == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("account repository is required")
	case deps.RefreshTokens == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("refresh token repository is required")
	case deps.Transactor == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("transactor is required")
	case deps.Hasher == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	case deps.Codec == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token codec is required")
	}

	s := &Service{
		accounts:   deps.Accounts,
		refresh:    deps.RefreshTokens,
		tx:         deps.Transactor,
		hasher:     deps.Hasher,
		codec:      deps.Codec,
		policy:     DefaultLockoutPolicy(),
		accessTTL:  DefaultAccessTokenTTL,
		refreshTTL: DefaultRefreshTokenTTL,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.policy.Threshold <= 0 || s.policy.Cooldown <= 0 {
		return nil, oops.Code("AUTH_INVALID_CONFIG").
			With("threshold", s.policy.Threshold).
			With("cooldown", s.policy.Cooldown.String()).
			Errorf("lockout policy must have a positive threshold and cooldown")
	}
	if s.accessTTL <= 0 || s.refreshTTL <= 0 {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token lifetimes must be positive")
	}
	return s, nil
}

// dummyPasswordHash is verified when no account matches so that unknown
// emails cost the same as wrong passwords. It never matches any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Register creates an account. It does not authenticate the caller.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	defer observeDuration("register", time.Now())

	if err := ValidateEmail(req.Email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}
	if req.FirstName == "" {
		return nil, ErrMissingField("first_name")
	}
	if req.LastName == "" {
		return nil, ErrMissingField("last_name")
	}

	email := NormalizeEmail(req.Email)
	_, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrDuplicateEmail(email)
	case !errors.Is(err, ErrNotFound):
		return nil, storeUnavailable("get account by email", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, oops.With("operation", "hash password").Wrap(err)
	}

	account, err := NewAccount(email, hash, req.FirstName, req.LastName, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, ErrDuplicateEmail(email)
		}
		return nil, storeUnavailable("create account", err)
	}

	s.logger.InfoContext(ctx, "account registered",
		"account_id", account.ID.String(),
		"email", account.Email,
	)
	return account, nil
}

// Login authenticates email and password and issues an access and refresh
// token. The account row stays locked for the whole attempt so concurrent
// attempts serialize their counter updates. A failed attempt commits the
// incremented counter before InvalidCredentials is returned.
func (s *Service) Login(ctx context.Context, email, password string) (pair *TokenPair, err error) {
	defer observeDuration("login", time.Now())
	defer func() { recordLogin(outcomeFor(err)) }()

	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrMissingField("email")
	}
	if password == "" {
		return nil, ErrMissingField("password")
	}

	var denied error
	txErr := runInTransaction(ctx, s.tx, "login", func(ctx context.Context) error {
		account, err := s.accounts.GetByEmailForUpdate(ctx, email)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				_, _ = s.hasher.Verify(password, dummyPasswordHash) //nolint:errcheck // timing only
				denied = ErrUnknownAccount(email)
				return nil
			}
			return storeUnavailable("get account by email for update", err)
		}

		now := s.now()
		if decision := s.policy.Evaluate(account.FailedAttempts, account.LockedUntil, now); decision.Locked {
			denied = ErrAccountLocked(decision.Until)
			s.logger.WarnContext(ctx, "login rejected for locked account",
				"account_id", account.ID.String(),
				"locked_until", decision.Until,
			)
			return nil
		}

		valid, err := s.hasher.Verify(password, account.PasswordHash)
		if err != nil {
			return oops.With("operation", "verify password").
				With("account_id", account.ID.String()).
				Wrap(err)
		}

		if !valid {
			account.RecordFailure(s.policy, now)
			if err := s.accounts.Update(ctx, account); err != nil {
				return storeUnavailable("record login failure", err)
			}
			s.logger.WarnContext(ctx, "login failed",
				"account_id", account.ID.String(),
				"failed_attempts", account.FailedAttempts,
			)
			if account.LockedUntil != nil {
				Lockouts.Inc()
				s.logger.WarnContext(ctx, "account locked",
					"account_id", account.ID.String(),
					"locked_until", *account.LockedUntil,
				)
			}
			denied = ErrInvalidCredentials()
			return nil
		}

		dirty := false
		if account.FailedAttempts > 0 {
			account.RecordSuccess(s.policy, now)
			dirty = true
		}
		if s.hasher.NeedsUpgrade(account.PasswordHash) {
			upgraded, hashErr := s.hasher.Hash(password)
			if hashErr != nil {
				s.logger.WarnContext(ctx, "password rehash failed",
					"account_id", account.ID.String(),
					"error", hashErr,
				)
			} else {
				account.PasswordHash = upgraded
				account.UpdatedAt = now
				dirty = true
			}
		}
		if dirty {
			if err := s.accounts.Update(ctx, account); err != nil {
				return storeUnavailable("reset login failures", err)
			}
		}

		issued, err := s.issuePair(ctx, account)
		if err != nil {
			return err
		}
		pair = issued

		s.logger.InfoContext(ctx, "login succeeded", "account_id", account.ID.String())
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	if denied != nil {
		return nil, denied
	}
	return pair, nil
}

// Refresh rotates a refresh token: the old record is deleted and a new pair
// is issued and persisted in the same transaction. Each refresh token mints
// at most one successor; a racing or repeated call sees TokenNotFound.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (pair *TokenPair, err error) {
	defer observeDuration("refresh", time.Now())
	defer func() { recordRefresh(outcomeFor(err)) }()

	if refreshToken == "" {
		return nil, ErrMissingField("refresh_token")
	}

	claims, err := s.codec.Decode(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken(ErrorCode(err))
	}
	if KindOf(claims) != TokenKindRefresh {
		return nil, ErrInvalidToken("wrong token kind")
	}

	err = runInTransaction(ctx, s.tx, "refresh", func(ctx context.Context) error {
		record, err := s.refresh.GetByTokenHash(ctx, HashToken(refreshToken))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrTokenNotFound()
			}
			return storeUnavailable("get refresh token", err)
		}

		if s.codec.IsExpired(claims) {
			return ErrInvalidToken("expired")
		}

		account, err := s.accounts.GetByEmail(ctx, SubjectOf(claims))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrInvalidToken("subject does not resolve")
			}
			return storeUnavailable("get account by email", err)
		}
		if account.ID != record.AccountID {
			return ErrInvalidToken("subject does not own token")
		}

		if err := s.refresh.Delete(ctx, record.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrTokenNotFound()
			}
			return storeUnavailable("delete refresh token", err)
		}

		issued, err := s.issuePair(ctx, account)
		if err != nil {
			return err
		}
		pair = issued
		return nil
	})
	if err != nil {
		s.logger.DebugContext(ctx, "refresh rejected", "code", ErrorCode(err))
		return nil, err
	}
	return pair, nil
}

// Authenticate validates an access token presented as a bearer credential.
func (s *Service) Authenticate(_ context.Context, accessToken string) (*Claims, error) {
	if accessToken == "" {
		return nil, ErrMissingField("access_token")
	}
	claims, err := s.codec.Decode(accessToken)
	if err != nil {
		return nil, ErrInvalidToken(ErrorCode(err))
	}
	if KindOf(claims) != TokenKindAccess {
		return nil, ErrInvalidToken("wrong token kind")
	}
	if s.codec.IsExpired(claims) {
		return nil, ErrInvalidToken("expired")
	}
	return claims, nil
}

// Logout deletes the record behind a refresh token so it can no longer be rotated.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return ErrMissingField("refresh_token")
	}

	record, err := s.refresh.GetByTokenHash(ctx, HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrTokenNotFound()
		}
		return storeUnavailable("get refresh token", err)
	}
	if err := s.refresh.Delete(ctx, record.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrTokenNotFound()
		}
		return storeUnavailable("delete refresh token", err)
	}

	s.logger.InfoContext(ctx, "logged out", "account_id", record.AccountID.String())
	return nil
}

// issuePair mints an access and refresh token for account and persists the
// refresh record through ctx.
func (s *Service) issuePair(ctx context.Context, account *Account) (*TokenPair, error) {
	access, err := s.codec.Issue(account.Email, account.Roles, TokenKindAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.Issue(account.Email, account.Roles, TokenKindRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	record, err := NewRefreshToken(account.ID, refresh.Token, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.refresh.Create(ctx, record); err != nil {
		return nil, storeUnavailable("create refresh token", err)
	}

	return &TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}
