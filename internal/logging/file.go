package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// appender writes whole lines to an append-only file. Each write holds an
// advisory lock so concurrent processes sharing the file do not interleave.
type appender struct {
	f *os.File
}

func openAppend(path string) (*appender, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &appender{f: f}, nil
}

// Append writes line under the file lock.
func (a *appender) Append(line string) error {
	unlock, err := lockFile(a.f)
	if err != nil {
		return err
	}
	defer unlock()

	_, err = a.f.WriteString(line)
	return err
}

func (a *appender) Close() error {
	return a.f.Close()
}
