package storage

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
)

func newTestStore(t *testing.T, maxBytes int) (*LocalStore, string) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{Storage: config.StorageConfig{
		LocalPath:     root,
		PublicPrefix:  "/uploads/",
		MaxImageBytes: maxBytes,
	}}
	return NewLocalStore(cfg), root
}

func dataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func TestSaveDataURL(t *testing.T) {
	store, root := newTestStore(t, 1024)
	content := []byte("\x89PNG fake image bytes")

	url, err := store.SaveDataURL(dataURL("image/png", content))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/images/products/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)

	onDisk, err := os.ReadFile(filepath.Join(root, "images", "products", filepath.Base(url)))
	require.NoError(t, err)
	assert.Equal(t, content, onDisk)
}

func TestSaveDataURLExtensions(t *testing.T) {
	store, _ := newTestStore(t, 1024)

	url, err := store.SaveDataURL(dataURL("image/jpeg", []byte("jpeg")))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, ".jpg"))

	url, err = store.SaveDataURL(dataURL("image/webp", []byte("webp")))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, ".webp"))

	url, err = store.SaveDataURL(dataURL("image/svg+xml", []byte("<svg/>")))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, ".png"))
}

func TestSaveDataURLRejectsInvalidInput(t *testing.T) {
	store, _ := newTestStore(t, 1024)

	for _, input := range []string{
		"",
		"https://cdn.example.com/a.png",
		"data:image/png,notbase64flag",
		"data:text/plain;base64,aGVsbG8=",
		"data:image/png;base64,",
		"data:image/png;base64,!!!",
	} {
		_, err := store.SaveDataURL(input)
		assert.ErrorIs(t, err, ErrInvalidDataURL, input)
	}
}

func TestSaveDataURLRejectsLargeImages(t *testing.T) {
	store, root := newTestStore(t, 16)

	_, err := store.SaveDataURL(dataURL("image/png", make([]byte, 64)))
	assert.ErrorIs(t, err, ErrImageTooLarge)

	_, err = os.Stat(filepath.Join(root, "images"))
	assert.True(t, os.IsNotExist(err), "nothing should be written")
}

func TestRemove(t *testing.T) {
	store, root := newTestStore(t, 1024)

	url, err := store.SaveDataURL(dataURL("image/gif", []byte("gif")))
	require.NoError(t, err)

	require.NoError(t, store.Remove(url))
	_, err = os.Stat(filepath.Join(root, "images", "products", filepath.Base(url)))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Remove(url), "removing twice is not an error")
	assert.NoError(t, store.Remove("https://cdn.example.com/x.png"))
	assert.NoError(t, store.Remove("/uploads/images/products/../../secret"))
}
