//go:build unix

package lock

import (
	"os"

	"golang.org/x/sys/unix"
)

// Unlinking a flock'd file is allowed on Unix, so the holder removes it
// before unlocking and no waiter can lock a file that is about to vanish
// without noticing.
const removeWhileLocked = true

func tryLockFile(f *os.File) (bool, error) {
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		switch err {
		case nil:
			return true, nil
		case unix.EINTR:
			continue
		case unix.EWOULDBLOCK:
			return false, nil
		default:
			return false, err
		}
	}
}

func unlockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
