// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Argon2Params are the tunable argon2id cost parameters.
type Argon2Params struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

// DefaultArgon2Params returns the OWASP-recommended argon2id parameters.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Time:    1,
		Memory:  64 * 1024,
		Threads: 4,
		SaltLen: 16,
		KeyLen:  32,
	}
}

// Upper bounds on parameters read back from a stored digest. A digest
// beyond them is treated as corrupt rather than evaluated.
const (
	maxArgon2Time   = 64
	maxArgon2Memory = 1024 * 1024 // KiB, 1 GiB
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code(CodeEmptyPassword).Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted one-way digest of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the digest.
	// Returns (true, nil) on match, (false, nil) on mismatch, or a
	// CorruptDigest error when the digest cannot be parsed.
	Verify(password, hash string) (bool, error)

	// NeedsUpgrade returns true if the digest should be recomputed with the
	// current algorithm and parameters.
	NeedsUpgrade(hash string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id. It also verifies
// bcrypt digests carried over from older deployments.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates an Argon2idHasher with the default parameters.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{params: DefaultArgon2Params()}
}

// NewArgon2idHasherWithParams creates an Argon2idHasher with custom parameters.
func NewArgon2idHasherWithParams(params Argon2Params) *Argon2idHasher {
	return &Argon2idHasher{params: params}
}

// Hash produces an argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks if the password matches the hash.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		return verifyBcrypt(password, encodedHash)
	}

	digest, err := parseArgon2id(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), digest.salt, digest.params.Time, digest.params.Memory,
		digest.params.Threads, digest.params.KeyLen)

	return subtle.ConstantTimeCompare(computed, digest.key) == 1, nil
}

// NeedsUpgrade reports whether hash is bcrypt or argon2id with weaker
// parameters than the hasher's configuration.
func (h *Argon2idHasher) NeedsUpgrade(hash string) bool {
	if isBcrypt(hash) {
		return true
	}
	digest, err := parseArgon2id(hash)
	if err != nil {
		return true
	}
	p := digest.params
	return p.Time < h.params.Time || p.Memory < h.params.Memory || p.Threads < h.params.Threads ||
		p.KeyLen < h.params.KeyLen
}

type argon2Digest struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func corruptDigest(format string, args ...any) error {
	return oops.Code(CodeCorruptDigest).Errorf(format, args...)
}

func parseArgon2id(encodedHash string) (*argon2Digest, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return nil, corruptDigest("invalid hash format")
	}

	if parts[1] != "argon2id" {
		return nil, corruptDigest("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, oops.Code(CodeCorruptDigest).Wrap(err)
	}
	if version != argon2.Version {
		return nil, corruptDigest("unsupported argon2 version: %d", version)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, oops.Code(CodeCorruptDigest).Wrap(err)
	}

	if time == 0 || time > maxArgon2Time {
		return nil, corruptDigest("time value %d out of range", time)
	}
	if memory == 0 || memory > maxArgon2Memory {
		return nil, corruptDigest("memory value %d out of range", memory)
	}

	// threads must fit in uint8 without silent truncation
	if threads == 0 || threads > 255 {
		return nil, corruptDigest("threads value %d out of range", threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, oops.Code(CodeCorruptDigest).Wrap(err)
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, oops.Code(CodeCorruptDigest).Wrap(err)
	}

	keyLen := len(key)
	if keyLen == 0 || keyLen > 1<<30 {
		return nil, corruptDigest("invalid hash key length: %d", keyLen)
	}

	return &argon2Digest{
		params: Argon2Params{
			Time:    time,
			Memory:  memory,
			Threads: uint8(threads),
			SaltLen: uint32(len(salt)), //nolint:gosec // bounded by the base64 segment length
			KeyLen:  uint32(keyLen),    //nolint:gosec // checked above
		},
		salt: salt,
		key:  key,
	}, nil
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

func verifyBcrypt(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, oops.Code(CodeCorruptDigest).Wrap(err)
	}
}
