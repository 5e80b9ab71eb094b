package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePut(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(filepath.Join(dir, "tickets"), "https://tickets.example.com/files/")
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "tok-ticket-1.png", []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://tickets.example.com/files/tok-ticket-1.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "tickets", "tok-ticket-1.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	// Overwrites are allowed: a retried fulfillment rewrites the same names.
	_, err = store.Put(context.Background(), "tok-ticket-1.png", []byte("png2"), "image/png")
	require.NoError(t, err)
	data, err = os.ReadFile(filepath.Join(dir, "tickets", "tok-ticket-1.png"))
	require.NoError(t, err)
	assert.Equal(t, "png2", string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "tickets"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalStoreRejectsPaths(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/files")
	require.NoError(t, err)

	for _, name := range []string{"", "..", "../escape.png", "a/b.png", `a\b.png`} {
		_, err := store.Put(context.Background(), name, []byte("x"), "")
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestFTPStoreRejectsPathsBeforeDialing(t *testing.T) {
	store := NewFTPStore(FTPConfig{Host: "127.0.0.1", Port: 1})

	_, err := store.Put(context.Background(), "../x.png", []byte("x"), "")
	assert.ErrorIs(t, err, ErrInvalidName)
}
