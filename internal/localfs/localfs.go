// Package localfs is the thin local-filesystem collaborator behind `get`,
// `put` and `lcd`: plain os/io access, kept out of the NFS wire-codec and
// session packages so the protocol code never touches a local path.
package localfs

import (
	"fmt"
	"io"
	"os"
)

// State tracks the shell's local working directory, independent of the
// process's own working directory.
type State struct {
	cwd string
}

// New returns a local-fs state rooted at the process's actual working
// directory.
func New() (*State, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return &State{cwd: wd}, nil
}

// Cwd reports the current local directory.
func (s *State) Cwd() string {
	return s.cwd
}

// Chdir changes the local working directory. An empty path means "go to
// HOME", matching the shell's bare `lcd` behavior.
func (s *State) Chdir(path string) error {
	if path == "" {
		home := os.Getenv("HOME")
		if home == "" {
			return fmt.Errorf("lcd: HOME is not set")
		}
		path = home
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("lcd %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("lcd %s: not a directory", path)
	}

	s.cwd = resolve(s.cwd, path)
	return nil
}

func resolve(cwd, path string) string {
	if len(path) > 0 && path[0] == '/' {
		return path
	}
	return cwd + "/" + path
}

// CreateForWrite opens (or creates/truncates) a local file under the
// current local directory, for `get` to write into.
func (s *State) CreateForWrite(name string) (*os.File, error) {
	f, err := os.Create(resolve(s.cwd, name))
	if err != nil {
		return nil, fmt.Errorf("create local file %s: %w", name, err)
	}
	return f, nil
}

// OpenForRead opens a local file under the current local directory, for
// `put` to read from.
func (s *State) OpenForRead(name string) (*os.File, error) {
	f, err := os.Open(resolve(s.cwd, name))
	if err != nil {
		return nil, fmt.Errorf("open local file %s: %w", name, err)
	}
	return f, nil
}

// CopyAll is a direct io.Copy wrapper, kept here so callers never need to
// import "io" themselves just to move bytes between a local file and a
// remote read/write loop's in-memory buffer.
func CopyAll(dst io.Writer, src io.Reader) (int64, error) {
	return io.Copy(dst, src)
}
