package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLocalObjectStore_RoundTrip saves, reads back, and deletes an object.
func TestLocalObjectStore_RoundTrip(t *testing.T) {
	store, err := NewLocalObjectStore(t.TempDir(), "/objects/")
	require.NoError(t, err)

	n, err := store.Save("chats/c1/photo.png", strings.NewReader("payload"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	r, err := store.Open("chats/c1/photo.png")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	r.Close()
	assert.Equal(t, "payload", string(data))

	assert.Equal(t, "/objects/chats/c1/photo.png", store.URL("chats/c1/photo.png"))

	require.NoError(t, store.Delete("chats/c1/photo.png"))
	_, err = store.Open("chats/c1/photo.png")
	assert.Error(t, err)
}

// TestLocalObjectStore_RejectsTraversal refuses keys that escape the root.
func TestLocalObjectStore_RejectsTraversal(t *testing.T) {
	store, err := NewLocalObjectStore(t.TempDir(), "/objects")
	require.NoError(t, err)

	_, err = store.Save("../outside.txt", strings.NewReader("x"))
	assert.Error(t, err)
	_, err = store.Save("a/../../outside.txt", strings.NewReader("x"))
	assert.Error(t, err)
}
