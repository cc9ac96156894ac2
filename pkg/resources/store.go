// Package resources exposes the reference files bundled into the binary
// (dangerous permission lists per API level, Android callback interfaces and
// the third-party library exclusion list) and copies them onto disk for
// consumers that can only read real files.
package resources

import (
	"bufio"
	"embed"
	"errors"
	"io"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

//go:embed arpcompat/*.txt
var bundled embed.FS

const (
	// AndroidCallbacksName is the list of framework callback interfaces
	AndroidCallbacksName = "AndroidCallbacks.txt"
	// ExcludeListName is the list of third-party package patterns
	ExcludeListName = "exclude_list.txt"

	dangerousSuffix = "Dangerous.txt"
	tempPattern     = "arpcompat-*.txt"
)

var defaultSource = mustSub(bundled, "arpcompat")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// DangerousName returns the resource name of the dangerous permission list for an API level
func DangerousName(version int) string {
	return strconv.Itoa(version) + dangerousSuffix
}

// Store reads bundled resources and materializes them as files.
// Files written by CopyToTemp are tracked but never removed unless Cleanup is called.
type Store struct {
	src     fs.FS
	fs      afero.Fs
	dir     string
	created []string
}

// Option configures a Store
type Option func(*Store)

// WithFs sets the filesystem temp files are written to
func WithFs(afs afero.Fs) Option {
	return func(s *Store) { s.fs = afs }
}

// WithDir sets the directory temp files are created in (default: the OS temp dir)
func WithDir(dir string) Option {
	return func(s *Store) { s.dir = dir }
}

// WithSource replaces the bundled resource tree
func WithSource(src fs.FS) Option {
	return func(s *Store) { s.src = src }
}

// NewStore creates a store backed by the bundled resources and the OS filesystem
func NewStore(opts ...Option) *Store {
	s := &Store{
		src: defaultSource,
		fs:  afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens a bundled resource by name
func (s *Store) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &MissingResourceError{Name: name}
	}
	f, err := s.src.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MissingResourceError{Name: name}
		}
		return nil, &IOError{Op: "open", Name: name, Err: err}
	}
	return f, nil
}

// ReadLines returns the trimmed, non-empty, non-comment lines of a resource in file order
func (s *Store) ReadLines(name string) ([]string, error) {
	f, err := s.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, &IOError{Op: "read", Name: name, Err: err}
	}
	return lines, nil
}

// CopyToTemp copies a bundled resource into a new, uniquely named temp file and returns its path.
// Every call creates a fresh file.
func (s *Store) CopyToTemp(name string) (string, error) {
	in, err := s.Open(name)
	if err != nil {
		return "", err
	}
	defer in.Close()

	tmp, err := afero.TempFile(s.fs, s.dir, tempPattern)
	if err != nil {
		return "", &IOError{Op: "create temp file for", Name: name, Err: err}
	}
	path := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		_ = s.fs.Remove(path)
		return "", &IOError{Op: "copy", Name: name, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(path)
		return "", &IOError{Op: "close temp file for", Name: name, Err: err}
	}

	s.created = append(s.created, path)
	zap.S().Debugw("materialized bundled resource", "resource", name, "path", path)
	return path, nil
}

// Versions lists the API levels that have a bundled dangerous permission list, ascending
func (s *Store) Versions() ([]int, error) {
	names, err := fs.Glob(s.src, "*"+dangerousSuffix)
	if err != nil {
		return nil, err
	}
	var versions []int
	for _, name := range names {
		v, err := strconv.Atoi(strings.TrimSuffix(name, dangerousSuffix))
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions, nil
}

// Created returns the paths written by CopyToTemp so far
func (s *Store) Created() []string {
	return append([]string(nil), s.created...)
}

// Cleanup removes every file this store created
func (s *Store) Cleanup() error {
	var errs []error
	for _, path := range s.created {
		if err := s.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		zap.S().Debugw("removed materialized resource", "path", path)
	}
	s.created = nil
	return errors.Join(errs...)
}
