// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package auth provides credential-based authentication.
//
// # Domain Types
//
// Account, RefreshToken and PasswordReset should be created with their
// constructors (NewAccount, NewRefreshToken, NewPasswordReset). Repository
// implementations receive pre-validated values from these constructors.
//
// # Primitives
//
//   - PasswordHasher derives and verifies salted argon2id digests
//   - TokenCodec issues and decodes HS256 signed access and refresh tokens
//   - LockoutPolicy decides when repeated failures lock an account
//
// # Services
//
//   - Service - register, login, refresh, authenticate, logout
//   - PasswordResetService - request and complete password resets
//   - Janitor - periodic purge of expired reset tokens
//
// Every error returned by a service carries an oops code from this
// package; see ErrorCode and PublicMessage.
package auth
