package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/i474232898/weather-region-dashboard/internal/dashboard"
)

var (
	// ErrNotFound is returned when no snapshot has been saved yet.
	ErrNotFound = errors.New("no dashboard snapshot found")
)

// FileSnapshotter persists dashboard snapshots to a single file. Paths ending
// in ".zst" are zstd-compressed.
type FileSnapshotter struct {
	mu   sync.Mutex
	path string
}

// NewFileSnapshotter creates a snapshotter for path.
func NewFileSnapshotter(path string) *FileSnapshotter {
	return &FileSnapshotter{path: path}
}

// Path returns the snapshot file path.
func (f *FileSnapshotter) Path() string {
	return f.path
}

func (f *FileSnapshotter) compressed() bool {
	return strings.HasSuffix(f.path, ".zst")
}

// Load reads and decodes the snapshot. It returns ErrNotFound when the file
// does not exist.
func (f *FileSnapshotter) Load() (dashboard.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return dashboard.State{}, ErrNotFound
		}
		return dashboard.State{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	var r io.Reader = file
	if f.compressed() {
		dec, err := zstd.NewReader(file)
		if err != nil {
			return dashboard.State{}, fmt.Errorf("open zstd snapshot: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return dashboard.State{}, fmt.Errorf("read snapshot: %w", err)
	}
	return dashboard.DecodeSnapshot(data)
}

// Save encodes s and replaces the snapshot file atomically.
func (f *FileSnapshotter) Save(s dashboard.State) error {
	data, err := dashboard.EncodeSnapshot(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := f.write(tmp, data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func (f *FileSnapshotter) write(w io.Writer, data []byte) error {
	if !f.compressed() {
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		return nil
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	return nil
}
