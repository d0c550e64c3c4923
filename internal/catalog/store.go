package catalog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	apperrors "github.com/traceforge/traceforge/internal/errors"
)

// Store persists catalogs keyed by service name.
type Store interface {
	Save(c *Catalog) error
	Load(service string) (*Catalog, error)
	List() ([]string, error)
	Close() error
}

var bucketCatalogs = []byte("catalogs")

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// NewBoltStore opens (or creates) a BoltDB-backed catalog store.
func NewBoltStore(path string) (*BoltStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apperrors.NewStoreError(dir, "open", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, apperrors.NewStoreError(path, "open", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCatalogs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, apperrors.NewStoreError(path, "open", err)
	}

	return &BoltStore{db: db, path: path}, nil
}

func (s *BoltStore) Save(c *Catalog) error {
	data, err := json.Marshal(c)
	if err != nil {
		return apperrors.NewStoreError(c.Service, "save", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCatalogs)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Put([]byte(c.Service), data)
	})
}

// Load returns the stored catalog, or nil when the service is unknown.
func (s *BoltStore) Load(service string) (*Catalog, error) {
	var c Catalog
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCatalogs)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		data := b.Get([]byte(service))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &c)
	})
	if err != nil {
		return nil, apperrors.NewStoreError(service, "load", err)
	}
	if !found {
		return nil, nil
	}
	return &c, nil
}

func (s *BoltStore) List() ([]string, error) {
	var services []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCatalogs)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			services = append(services, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, apperrors.NewStoreError(s.path, "list", err)
	}
	return services, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// FileStore implements Store with one JSON file per service in a directory.
type FileStore struct {
	dir        string
	compressed bool
}

// NewFileStore creates a file-based catalog store rooted at dir.
func NewFileStore(dir string, compressed bool) *FileStore {
	return &FileStore{dir: dir, compressed: compressed}
}

func (s *FileStore) filePath(service string) string {
	name := strings.ReplaceAll(service, string(os.PathSeparator), "_") + ".json"
	if s.compressed {
		name += ".gz"
	}
	return filepath.Join(s.dir, name)
}

func (s *FileStore) Save(c *Catalog) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return apperrors.NewStoreError(c.Service, "save", err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return apperrors.NewStoreError(s.dir, "save", err)
	}

	if s.compressed {
		return s.saveCompressed(c.Service, data)
	}
	if err := os.WriteFile(s.filePath(c.Service), data, 0644); err != nil {
		return apperrors.NewStoreError(c.Service, "save", err)
	}
	return nil
}

func (s *FileStore) saveCompressed(service string, data []byte) error {
	file, err := os.Create(s.filePath(service))
	if err != nil {
		return apperrors.NewStoreError(service, "save", err)
	}
	defer file.Close()

	gw := gzip.NewWriter(file)
	defer gw.Close()

	if _, err := gw.Write(data); err != nil {
		return apperrors.NewStoreError(service, "save", err)
	}
	return nil
}

func (s *FileStore) Load(service string) (*Catalog, error) {
	var data []byte
	var err error

	if s.compressed {
		data, err = s.loadCompressed(service)
	} else {
		data, err = os.ReadFile(s.filePath(service))
	}
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.NewStoreError(service, "load", err)
	}

	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, apperrors.NewStoreError(service, "load", err)
	}
	return &c, nil
}

func (s *FileStore) loadCompressed(service string) ([]byte, error) {
	file, err := os.Open(s.filePath(service))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gr, err := gzip.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	return io.ReadAll(gr)
}

func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.NewStoreError(s.dir, "list", err)
	}
	var services []string
	for _, e := range entries {
		name := e.Name()
		name = strings.TrimSuffix(name, ".gz")
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		services = append(services, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(services)
	return services, nil
}

func (s *FileStore) Close() error {
	return nil
}

// MemoryStore implements Store in memory, for tests and one-shot runs.
type MemoryStore struct {
	mu       sync.RWMutex
	catalogs map[string]*Catalog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{catalogs: make(map[string]*Catalog)}
}

func (s *MemoryStore) Save(c *Catalog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalogs[c.Service] = c
	return nil
}

func (s *MemoryStore) Load(service string) (*Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalogs[service], nil
}

func (s *MemoryStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	services := make([]string, 0, len(s.catalogs))
	for svc := range s.catalogs {
		services = append(services, svc)
	}
	sort.Strings(services)
	return services, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
