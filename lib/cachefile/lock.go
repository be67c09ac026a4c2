package cachefile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// dirLock holds an exclusive advisory flock on an open directory handle.
// The lock lives as long as the handle; closing the handle releases it.
type dirLock struct {
	dir    string
	handle *os.File
}

// acquire opens the directory and takes an exclusive flock on it. If the
// lock is already held by another process, a one-line notice is written to
// w before falling back to a blocking wait, and a newline once acquired.
func (l *dirLock) acquire(w io.Writer) error {
	if l.handle != nil {
		return ErrAlreadyLocked
	}

	f, err := os.Open(l.dir)
	if err != nil {
		return err
	}

	err = unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == nil {
		l.handle = f
		return nil
	}
	if !errors.Is(err, unix.EWOULDBLOCK) {
		f.Close()
		return fmt.Errorf("failed to lock cache directory: %w", err)
	}

	fmt.Fprintf(w, "waiting for another process to release %s...", l.dir)
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return fmt.Errorf("failed to lock cache directory: %w", err)
	}
	fmt.Fprintln(w)

	l.handle = f
	return nil
}

// release drops the lock and closes the directory handle. Safe to call on
// an unlocked dirLock.
func (l *dirLock) release() error {
	if l.handle == nil {
		return nil
	}

	if err := unix.Flock(int(l.handle.Fd()), unix.LOCK_UN); err != nil {
		l.handle.Close()
		l.handle = nil
		return err
	}

	err := l.handle.Close()
	l.handle = nil
	return err
}
