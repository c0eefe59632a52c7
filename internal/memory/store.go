package memory

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"golang.org/x/sys/unix"
)

// ErrMissingFile marks an absent file or directory. Callers treat it as
// empty input, never as a fatal condition.
var ErrMissingFile = errors.New("memory file missing")

// Store is the minimal contract the core needs from the memory persistence
// layer: string keys (relative paths) to structured text. An embedded store
// could replace DirStore without touching the reader or writer.
type Store interface {
	// Read returns the full content of the file at the relative path.
	// Returns ErrMissingFile if the file does not exist.
	Read(path string) (string, error)

	// Append adds one line to the end of the file, creating it if absent.
	// The line must not interleave with a concurrent append.
	Append(path, line string) error
}

// Rewriter is the extended contract used only by the listener's task
// insert, which must place a line under a specific heading. The core
// briefing pipeline never rewrites; it reads, and appends feedback.
type Rewriter interface {
	// Rewrite atomically replaces the file content with fn(old). A missing
	// file is passed to fn as the empty string. Readers observe either the
	// old or the new content, never a partial write.
	Rewrite(path string, fn func(old string) (string, error)) error
}

// DirStore implements Store and Rewriter over a base directory.
//
// Writers take an exclusive flock on a sidecar "<file>.lock" so two writer
// processes cannot interleave. Readers never lock: an append is a single
// write(2) of a full line and a rewrite is an atomic rename, so a reader
// sees either the pre- or post-write state.
type DirStore struct {
	base string
}

// NewDirStore creates a store rooted at base.
func NewDirStore(base string) *DirStore {
	return &DirStore{base: base}
}

// Base returns the store's root directory.
func (s *DirStore) Base() string { return s.base }

func (s *DirStore) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.base, path)
}

// Read returns the file content, or ErrMissingFile when absent.
func (s *DirStore) Read(path string) (string, error) {
	data, err := os.ReadFile(s.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrMissingFile, path)
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// ListMarkdown returns the sorted names of *.md files in the directory at
// the relative path. A missing directory yields an empty list.
func (s *DirStore) ListMarkdown(dir string) ([]string, error) {
	entries, err := os.ReadDir(s.abs(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Append writes one line to the end of the file under an exclusive lock.
// The line is newline-terminated; if the existing file does not end with a
// newline, one is inserted first so prior content is never rewritten.
func (s *DirStore) Append(path, line string) error {
	abs := s.abs(path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}

	unlock, err := lockSidecar(abs)
	if err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer unlock()

	f, err := os.OpenFile(abs, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	payload := line
	if !strings.HasSuffix(payload, "\n") {
		payload += "\n"
	}
	if missing, err := missingFinalNewline(f); err != nil {
		return fmt.Errorf("inspect %s: %w", path, err)
	} else if missing {
		payload = "\n" + payload
	}

	// One write(2) for the whole line: a concurrent reader sees the line
	// entirely or not at all.
	if _, err := f.WriteString(payload); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	return f.Sync()
}

// Rewrite replaces the file atomically under the same sidecar lock.
func (s *DirStore) Rewrite(path string, fn func(old string) (string, error)) error {
	abs := s.abs(path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}

	unlock, err := lockSidecar(abs)
	if err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer unlock()

	old, err := s.Read(path)
	if err != nil && !errors.Is(err, ErrMissingFile) {
		return err
	}
	updated, err := fn(old)
	if err != nil {
		return err
	}
	if updated == old {
		return nil
	}
	if err := atomic.WriteFile(abs, strings.NewReader(updated)); err != nil {
		return fmt.Errorf("rewrite %s: %w", path, err)
	}
	return nil
}

// lockSidecar takes a blocking exclusive flock on "<abs>.lock". The sidecar
// is stable on disk so the lock survives atomic replacement of the target.
func lockSidecar(abs string) (func(), error) {
	lf, err := os.OpenFile(abs+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := flockRetryEINTR(int(lf.Fd()), unix.LOCK_EX); err != nil {
		lf.Close()
		return nil, err
	}
	return func() {
		// Closing the descriptor releases the flock.
		_ = flockRetryEINTR(int(lf.Fd()), unix.LOCK_UN)
		_ = lf.Close()
	}, nil
}

func flockRetryEINTR(fd, how int) error {
	for {
		err := unix.Flock(fd, how)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

// missingFinalNewline reports whether a non-empty file lacks a trailing
// newline. f must be positioned for append; position is not disturbed.
func missingFinalNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	buf := make([]byte, 1)
	if _, err := f.ReadAt(buf, info.Size()-1); err != nil && err != io.EOF {
		return false, err
	}
	return buf[0] != '\n', nil
}
