// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package store

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/samber/oops"
)

const upSuffix = ".up.sql"

// Migration is one embedded schema change.
type Migration struct {
	Version uint
	Name    string
}

// String returns the file stem, e.g. 000002_create_refresh_tokens.
func (m Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

var catalog = sync.OnceValues(readCatalog)

// Migrations returns the embedded migrations ordered by version. The
// slice is a copy; callers may modify it.
func Migrations() ([]Migration, error) {
	all, err := catalog()
	if err != nil {
		return nil, err
	}
	return slices.Clone(all), nil
}

// Lookup returns the embedded migration with version, if any.
func Lookup(version uint) (Migration, bool, error) {
	all, err := catalog()
	if err != nil {
		return Migration{}, false, err
	}
	i, found := slices.BinarySearchFunc(all, version, func(m Migration, v uint) int {
		return cmp.Compare(m.Version, v)
	})
	if !found {
		return Migration{}, false, nil
	}
	return all[i], true, nil
}

func readCatalog() ([]Migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").With("operation", "read migrations dir").Wrap(err)
	}

	var out []Migration
	for _, entry := range entries {
		stem, ok := strings.CutSuffix(entry.Name(), upSuffix)
		if !ok {
			continue
		}
		mig, err := parseStem(stem)
		if err != nil {
			slog.Warn("skipping migration with unexpected file name",
				"filename", entry.Name(),
				"expected_format", "NNNNNN_name"+upSuffix,
				"error", err)
			continue
		}
		out = append(out, mig)
	}
	slices.SortFunc(out, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return out, nil
}

func parseStem(stem string) (Migration, error) {
	prefix, name, ok := strings.Cut(stem, "_")
	if !ok || name == "" {
		return Migration{}, oops.Errorf("missing name after version in %q", stem)
	}
	v, err := strconv.ParseUint(prefix, 10, 0)
	if err != nil {
		return Migration{}, oops.With("prefix", prefix).Wrap(err)
	}
	return Migration{Version: uint(v), Name: name}, nil
}
