// Package fixture builds the journals and descriptors shared by package tests.
// It imports testing and must only be used from _test.go files.
package fixture

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/usepat/SW-soniccontrol/internal/protocols"
	"github.com/usepat/SW-soniccontrol/internal/schema"
	"github.com/usepat/SW-soniccontrol/internal/store"
)

// OpenStore opens a journal in a temporary directory that is closed when the
// test ends.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// Descriptor returns the built-in descriptor for key, e.g.
// "mvp_worker/v1.0.0/release".
func Descriptor(t testing.TB, key string) *schema.ProtocolDescriptor {
	t.Helper()
	k, err := schema.ParseKey(key)
	require.NoError(t, err)
	table, err := protocols.Table(k)
	require.NoError(t, err)
	desc, err := schema.NewProtocolDescriptor(table)
	require.NoError(t, err)
	return desc
}
