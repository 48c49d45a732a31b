// internal/session/store.go
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/law-makers/pagefetch/pkg/models"
	"github.com/rs/zerolog/log"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name used for keyring entries
	KeyringService = "pagefetch"
	// DefaultDir is the file fallback location relative to the home directory
	DefaultDir = ".pagefetch/sessions"

	manifestKey = "_manifest"
	checkKey    = "_check_"
)

var (
	// ErrNotFound is returned when a session does not exist
	ErrNotFound = errors.New("session not found")
	// ErrExpired is returned when a stored session is past its expiry
	ErrExpired = errors.New("session expired")

	validName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// Session holds cookies and headers that are injected into every request
// made while it is active
type Session struct {
	Name      string            `json:"name"`
	URL       string            `json:"url,omitempty"`
	Cookies   []models.Cookie   `json:"cookies"`
	Headers   map[string]string `json:"headers,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at,omitempty"`
}

// Expired reports whether the session has an expiry in the past
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// EarliestCookieExpiry returns the soonest cookie expiry, or the zero time
// when every cookie is a session cookie
func EarliestCookieExpiry(cookies []models.Cookie) time.Time {
	var earliest time.Time
	for _, c := range cookies {
		if c.Expires <= 0 {
			continue
		}
		exp := time.Unix(int64(c.Expires), 0)
		if earliest.IsZero() || exp.Before(earliest) {
			earliest = exp
		}
	}
	return earliest
}

// Store persists sessions
type Store interface {
	Save(s *Session) error
	Load(name string) (*Session, error)
	Delete(name string) error
	List() ([]string, error)
}

// NewStore returns a keyring-backed store when the OS keyring works, and a
// file store under the home directory otherwise.
func NewStore() (Store, error) {
	if keyringUsable() {
		return &KeyringStore{}, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to locate home directory: %w", err)
	}
	log.Debug().Msg("Keyring unavailable, using file-based session storage")
	return NewFileStore(filepath.Join(home, DefaultDir)), nil
}

func keyringUsable() bool {
	if os.Getenv("CODESPACES") != "" || os.Getenv("CI") != "" {
		return false
	}
	if err := keyring.Set(KeyringService, checkKey, "ok"); err != nil {
		return false
	}
	_ = keyring.Delete(KeyringService, checkKey)
	return true
}

func checkName(name string) error {
	if !validName.MatchString(name) || name == manifestKey {
		return fmt.Errorf("invalid session name %q", name)
	}
	return nil
}

func decode(name string, raw []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session %q: %w", name, err)
	}
	if s.Expired(time.Now()) {
		return nil, fmt.Errorf("%w: %s (expired %s)", ErrExpired, name, s.ExpiresAt.Format(time.RFC1123))
	}
	return &s, nil
}

// FileStore keeps one JSON file per session in a directory
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the storage directory
func (f *FileStore) Dir() string {
	return f.dir
}

func (f *FileStore) path(name string) string {
	return filepath.Join(f.dir, name+".json")
}

// Save writes the session with owner-only permissions
func (f *FileStore) Save(s *Session) error {
	if err := checkName(s.Name); err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(f.path(s.Name), raw, 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Load reads a session, rejecting expired ones
func (f *FileStore) Load(name string) (*Session, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(f.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return decode(name, raw)
}

// Delete removes a session file
func (f *FileStore) Delete(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	err := os.Remove(f.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return err
}

// List returns stored session names in sorted order
func (f *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// KeyringStore keeps sessions in the OS keyring. The keyring cannot be
// enumerated, so names are tracked in a manifest entry.
type KeyringStore struct{}

// Save stores the session and records it in the manifest
func (k *KeyringStore) Save(s *Session) error {
	if err := checkName(s.Name); err != nil {
		return err
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := keyring.Set(KeyringService, s.Name, string(raw)); err != nil {
		return fmt.Errorf("failed to save to keyring: %w", err)
	}

	names, err := k.List()
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == s.Name {
			return nil
		}
	}
	return k.writeManifest(append(names, s.Name))
}

// Load reads a session from the keyring
func (k *KeyringStore) Load(name string) (*Session, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	raw, err := keyring.Get(KeyringService, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read from keyring: %w", err)
	}
	return decode(name, []byte(raw))
}

// Delete removes a session and its manifest entry
func (k *KeyringStore) Delete(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	err := keyring.Delete(KeyringService, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	names, err := k.List()
	if err != nil {
		return err
	}
	kept := names[:0]
	for _, n := range names {
		if n != name {
			kept = append(kept, n)
		}
	}
	return k.writeManifest(kept)
}

// List returns the names recorded in the manifest
func (k *KeyringStore) List() ([]string, error) {
	raw, err := keyring.Get(KeyringService, manifestKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session manifest: %w", err)
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("corrupt session manifest: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (k *KeyringStore) writeManifest(names []string) error {
	raw, err := json.Marshal(names)
	if err != nil {
		return err
	}
	if err := keyring.Set(KeyringService, manifestKey, string(raw)); err != nil {
		return fmt.Errorf("failed to update session manifest: %w", err)
	}
	return nil
}
