package storage

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"chatcore/pkg/errors"
)

// ObjectStore is where attachment payloads live. The message ledger stores
// only the opaque key; everything binary goes through here.
type ObjectStore interface {
	Save(key string, r io.Reader) (int64, error)
	Open(key string) (io.ReadCloser, error)
	Delete(key string) error
	URL(key string) string
}

// LocalObjectStore keeps objects as plain files under a root directory and
// serves them from a static file route.
type LocalObjectStore struct {
	root    string
	baseURL string
}

func NewLocalObjectStore(root, baseURL string) (*LocalObjectStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalObjectStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalObjectStore) Save(key string, r io.Reader) (int64, error) {
	p, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(p)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(f, r)
}

func (s *LocalObjectStore) Open(key string) (io.ReadCloser, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (s *LocalObjectStore) Delete(key string) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	return os.Remove(p)
}

func (s *LocalObjectStore) URL(key string) string {
	return s.baseURL + "/" + key
}

// resolve maps a key to a path under root, rejecting traversal.
func (s *LocalObjectStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", errors.InvalidArg("invalid storage key")
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}
