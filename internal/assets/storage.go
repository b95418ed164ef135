package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/glefebvre/guidepost/internal/fetcher"
)

// LockFileName is the lock held on a cache directory while a Cache is open
const LockFileName = ".lock"

// ErrLocked is returned when another process holds the cache directory
var ErrLocked = errors.New("image cache is locked by another process")

// FileInfo describes one stored file
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Storage is where cached files live
type Storage interface {
	// Stat reports whether name is stored
	Stat(name string) (FileInfo, bool)
	// Put stores data under name, replacing any previous content
	Put(name string, data []byte) error
	Remove(name string) error
	// Touch sets the modification time of name
	Touch(name string, t time.Time) error
	// List returns every stored file except internal ones
	List() ([]FileInfo, error)
	// Location is the reference handed to consumers in place of the remote URL
	Location(name string) string
	// Lock takes exclusive ownership of the storage; the returned func releases it
	Lock() (func() error, error)
}

// DiskStorage keeps files in a flat directory
type DiskStorage struct {
	dir     string
	minFree uint64
}

// NewDiskStorage creates dir if needed. Writes are refused when they would leave
// less than minFreeBytes available on the filesystem.
func NewDiskStorage(dir string, minFreeBytes uint64) (*DiskStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &DiskStorage{dir: dir, minFree: minFreeBytes}, nil
}

// Dir returns the cache directory
func (s *DiskStorage) Dir() string {
	return s.dir
}

func (s *DiskStorage) Stat(name string) (FileInfo, bool) {
	info, err := os.Stat(filepath.Join(s.dir, name))
	if err != nil || info.IsDir() {
		return FileInfo{}, false
	}
	return FileInfo{Name: name, Size: info.Size(), ModTime: info.ModTime()}, true
}

func (s *DiskStorage) Put(name string, data []byte) error {
	if s.minFree > 0 {
		if err := ensureRoom(s.dir, uint64(len(data)), s.minFree); err != nil {
			return err
		}
	}
	return fetcher.WriteAtomic(filepath.Join(s.dir, name), data)
}

func (s *DiskStorage) Remove(name string) error {
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *DiskStorage) Touch(name string, t time.Time) error {
	return os.Chtimes(filepath.Join(s.dir, name), t, t)
}

func (s *DiskStorage) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == LockFileName || strings.HasPrefix(entry.Name(), ".download_") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{Name: entry.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return files, nil
}

func (s *DiskStorage) Location(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *DiskStorage) Lock() (func() error, error) {
	lock := flock.New(filepath.Join(s.dir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return lock.Unlock, nil
}
