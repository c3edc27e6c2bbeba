// Package settings persists remembered gateway credentials.
// Settings are stored in ~/.config/gateway-monitor/settings.toml with the
// password encrypted at rest.
package settings

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
	"golang.org/x/crypto/pbkdf2"
)

const (
	defaultPath = "~/.config/gateway-monitor/settings.toml"

	saltSize   = 16
	keySize    = 32
	iterations = 100000
)

// Settings is the on-disk document.
type Settings struct {
	Username   string `toml:"username,omitempty"`
	Password   string `toml:"password,omitempty"`
	Remembered bool   `toml:"remembered"`
	Salt       string `toml:"salt,omitempty"`
}

// FileStore reads and writes Settings at a fixed path. It satisfies both the
// gateway credential store and the monitor credential source.
type FileStore struct {
	path       string
	passphrase string

	mu       sync.Mutex
	settings Settings
	loaded   bool
}

// DefaultPath returns the default settings file path.
func DefaultPath() string {
	return defaultPath
}

// NewFileStore creates a store at path. An empty passphrase derives the key
// from the host and user names.
func NewFileStore(path, passphrase string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		path = defaultPath
	}
	resolved, err := expandPath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve settings path: %w", err)
	}
	if passphrase == "" {
		passphrase = machinePassphrase()
	}
	return &FileStore{path: resolved, passphrase: passphrase}, nil
}

// Path returns the resolved file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the settings file. A missing file yields empty settings.
func (s *FileStore) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return Settings{}, err
	}
	return s.settings, nil
}

func (s *FileStore) loadLocked() error {
	if s.loaded {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.loaded = true
			return nil
		}
		return fmt.Errorf("read settings: %w", err)
	}
	var st Settings
	if err := toml.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("parse settings: %w", err)
	}
	s.settings = st
	s.loaded = true
	return nil
}

// SaveCredentials remembers a login. The password is encrypted with a fresh
// salt on every save.
func (s *FileStore) SaveCredentials(username, password string) error {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	sealed, err := encrypt(s.key(salt), password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	s.settings.Username = username
	s.settings.Password = sealed
	s.settings.Salt = base64.StdEncoding.EncodeToString(salt)
	s.settings.Remembered = true
	return s.saveLocked()
}

// Credentials returns the remembered login, if any.
func (s *FileStore) Credentials() (string, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil || !s.settings.Remembered || s.settings.Password == "" {
		return "", "", false
	}
	salt, err := base64.StdEncoding.DecodeString(s.settings.Salt)
	if err != nil {
		return "", "", false
	}
	password, err := decrypt(s.key(salt), s.settings.Password)
	if err != nil {
		return "", "", false
	}
	return s.settings.Username, password, true
}

// Forget clears the remembered login.
func (s *FileStore) Forget() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	s.settings = Settings{}
	return s.saveLocked()
}

func (s *FileStore) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	data, err := toml.Marshal(s.settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func (s *FileStore) key(salt []byte) []byte {
	return pbkdf2.Key([]byte(s.passphrase), salt, iterations, keySize, sha256.New)
}

// encrypt seals plaintext with AES-256-GCM. The nonce is prepended to the
// ciphertext.
func encrypt(key []byte, plaintext string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func decrypt(key []byte, encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode password: %w", err)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", errors.New("password ciphertext too short")
	}
	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt password: %w", err)
	}
	return string(plain), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}

func machinePassphrase() string {
	hostname, _ := os.Hostname()
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	return fmt.Sprintf("gateway-monitor-%s-%s", hostname, username)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
