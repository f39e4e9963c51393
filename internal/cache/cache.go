package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ErrMiss is returned by Get when no value has ever been stored under the
// requested key.
var ErrMiss = errors.New("cache: miss")

// meta records when a slot was last overwritten. Nothing in this package
// reads UpdatedAt back; it exists so a surrounding collaborator can add
// staleness checks without a format change.
type meta struct {
	Key       string    `json:"key"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a durable key-value shadow of server responses: one opaque
// named slot per resource key, whole-value overwrite semantics. Values
// round-trip through JSON, so a slot must always be read back into the
// same type that was stored.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created lazily
// on the first Put.
func NewStore(dir string) *Store {
	if dir == "" {
		// Development fallback; production config sets this explicitly.
		dir = "./var/cache"
	}
	return &Store{dir: dir}
}

// Get reads the slot for key into out, which must be a pointer. Returns
// ErrMiss when the slot has never been written.
func (s *Store) Get(key string, out any) error {
	if key == "" {
		return errors.New("cache: empty key")
	}

	data, err := os.ReadFile(s.valuePath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrMiss
		}
		return err
	}
	return json.Unmarshal(data, out)
}

// Put overwrites the slot for key with v. The write is atomic: partial
// writes are never observable by Get.
func (s *Store) Put(key string, v any) error {
	if key == "" {
		return errors.New("cache: empty key")
	}

	slot := s.slotDir(key)
	if err := os.MkdirAll(slot, 0o700); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.valuePath(key), data); err != nil {
		return err
	}

	m := meta{Key: key, UpdatedAt: time.Now().UTC()}
	metaData, err := json.MarshalIndent(&m, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(slot, "meta.json"), metaData)
}

func (s *Store) slotDir(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:8]))
}

func (s *Store) valuePath(key string) string {
	return filepath.Join(s.slotDir(key), "value.json")
}

// writeFileAtomic writes data to path via a temp file in the same
// directory followed by a rename, with 0600 permissions.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".volpin-cache-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
