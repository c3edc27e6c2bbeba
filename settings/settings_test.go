package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, passphrase string) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "settings.toml"), passphrase)
	require.NoError(t, err)
	return s
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t, "secret")

	st, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, Settings{}, st)

	_, _, ok := s.Credentials()
	assert.False(t, ok)
}

func TestSaveCredentials_RoundTrip(t *testing.T) {
	s := newTestStore(t, "secret")
	require.NoError(t, s.SaveCredentials("admin", "hunter2"))

	user, pass, ok := s.Credentials()
	require.True(t, ok)
	assert.Equal(t, "admin", user)
	assert.Equal(t, "hunter2", pass)

	// A fresh store reads the file back.
	reopened, err := NewFileStore(s.Path(), "secret")
	require.NoError(t, err)
	user, pass, ok = reopened.Credentials()
	require.True(t, ok)
	assert.Equal(t, "admin", user)
	assert.Equal(t, "hunter2", pass)
}

func TestSaveCredentials_PasswordNotInPlaintext(t *testing.T) {
	s := newTestStore(t, "secret")
	require.NoError(t, s.SaveCredentials("admin", "hunter2"))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
	assert.Contains(t, string(data), "admin")

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCredentials_WrongPassphrase(t *testing.T) {
	s := newTestStore(t, "secret")
	require.NoError(t, s.SaveCredentials("admin", "hunter2"))

	other, err := NewFileStore(s.Path(), "different")
	require.NoError(t, err)
	_, _, ok := other.Credentials()
	assert.False(t, ok)
}

func TestForget(t *testing.T) {
	s := newTestStore(t, "secret")
	require.NoError(t, s.SaveCredentials("admin", "hunter2"))
	require.NoError(t, s.Forget())

	_, _, ok := s.Credentials()
	assert.False(t, ok)

	st, err := s.Load()
	require.NoError(t, err)
	assert.False(t, st.Remembered)
}

func TestLoad_InvalidTOML(t *testing.T) {
	s := newTestStore(t, "secret")
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o700))
	require.NoError(t, os.WriteFile(s.Path(), []byte("username = "), 0o600))

	_, err := s.Load()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "parse settings"))
}

func TestNewFileStore_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	s, err := NewFileStore("", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "gateway-monitor", "settings.toml"), s.Path())
}

func TestEncryptDecrypt(t *testing.T) {
	key := make([]byte, keySize)
	sealed, err := encrypt(key, "pw")
	require.NoError(t, err)

	plain, err := decrypt(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, "pw", plain)

	_, err = decrypt(key, "AAAA")
	assert.Error(t, err)
}
