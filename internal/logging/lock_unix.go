//go:build unix

package logging

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func lockFile(f *os.File) (func(), error) {
	fd := int(f.Fd())
	for {
		err := unix.Flock(fd, unix.LOCK_EX)
		if err == nil {
			break
		}
		if err != unix.EINTR {
			return nil, fmt.Errorf("flock: %w", err)
		}
	}
	return func() { _ = unix.Flock(fd, unix.LOCK_UN) }, nil
}
