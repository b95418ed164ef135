package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// ErrDiskFull is returned by DiskStorage.Put when the write would eat into
// the configured free-space reserve
var ErrDiskFull = errors.New("insufficient disk space")

// availableBytes returns the space an unprivileged process may still write on
// the filesystem holding path, resolving a missing path to its closest
// existing ancestor
func availableBytes(path string) (uint64, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}
	for {
		if _, err := os.Stat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return 0, fmt.Errorf("no existing ancestor for %s", path)
		}
		dir = parent
	}

	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", dir, err)
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// ensureRoom fails with ErrDiskFull when size more bytes under dir would leave
// less than reserve available
func ensureRoom(dir string, size, reserve uint64) error {
	avail, err := availableBytes(dir)
	if err != nil {
		return fmt.Errorf("failed to check disk space: %w", err)
	}
	if avail < size+reserve {
		return fmt.Errorf("%w: %s available, %s needed plus %s reserve",
			ErrDiskFull, humanSize(avail), humanSize(size), humanSize(reserve))
	}
	return nil
}

// humanSize renders n in binary units, e.g. "1.5 MB"
func humanSize(n uint64) string {
	units := []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	v, i := float64(n), 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", v, units[i])
}
