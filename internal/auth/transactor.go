// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import "context"

// Transactor runs fn inside a single store transaction. If fn returns an
// error every mutation made through ctx is rolled back.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// runInTransaction runs fn through tx. Failures that carry no code of their
// own come from the store and become StoreUnavailable.
func runInTransaction(ctx context.Context, tx Transactor, operation string, fn func(ctx context.Context) error) error {
	err := tx.InTransaction(ctx, fn)
	if err != nil && ErrorCode(err) == "" {
		return storeUnavailable(operation, err)
	}
	return err
}
