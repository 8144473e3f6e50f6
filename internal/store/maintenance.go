package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Backup copies the store file to dst. Writers are held off for the
// duration and the WAL is checkpointed first so dst is a complete snapshot.
func (s *SQLiteStore) Backup(dst string) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	dst = strings.TrimSpace(dst)
	if dst == "" {
		return errors.New("store: empty backup path")
	}
	if s.path == ":memory:" {
		return errors.New("store: cannot back up in-memory store")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("store: checkpoint wal: %w", err)
	}
	if err := copyFileAtomic(s.path, dst); err != nil {
		return fmt.Errorf("store: backup: %w", err)
	}
	return nil
}

// Restore atomically replaces the store file with src and reopens the
// database. On a reopen failure the store is unusable and the error says so.
func (s *SQLiteStore) Restore(src string) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	src = strings.TrimSpace(src)
	if src == "" {
		return errors.New("store: empty restore path")
	}
	if s.path == ":memory:" {
		return errors.New("store: cannot restore in-memory store")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.closeLocked(); err != nil {
		return fmt.Errorf("store: close before restore: %w", err)
	}

	// WAL and SHM sidecars from the old database must not survive the swap.
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(s.path + suffix)
	}

	if err := copyFileAtomic(src, s.path); err != nil {
		return fmt.Errorf("store: restore: %w", err)
	}
	if err := s.open(); err != nil {
		return fmt.Errorf("store: reopen after restore: %w", err)
	}
	return nil
}

// copyFileAtomic copies src into dst via a temp file in dst's directory,
// so a crash mid-copy never leaves a truncated dst.
func copyFileAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	dir := filepath.Dir(dst)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, dst)
}
