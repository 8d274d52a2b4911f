// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

// Package storage writes pastes to a directory, one file per paste.
package storage

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Prefix is the fixed part of every paste file name.
const Prefix = "beans."

// Files are created owner-only and chmod'ed to the configured mode once
// the body is written.
const createMode = 0600

const maxAttempts = 100

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	// ErrExhausted means every candidate file name was already taken.
	ErrExhausted = errors.New("storage: no free file name found")
)

// PartialError reports a failure after the paste file was created. The
// file exists and its ID is valid, but its content or mode may be wrong.
type PartialError struct {
	Op   string
	Path string
	Err  error
}

func (e *PartialError) Error() string {
	return "storage: " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PartialError) Unwrap() error {
	return e.Err
}

// Paste is a stored paste file.
type Paste struct {
	ID   string
	Path string
	Size int
}

// File is the part of *os.File a Store writes through.
type File interface {
	io.Writer
	Chmod(mode os.FileMode) error
	Close() error
	Name() string
}

func openFile(name string, flag int, perm os.FileMode) (File, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Store creates paste files in one directory. It is safe for concurrent use.
type Store struct {
	dir      string
	mode     os.FileMode
	idLength int

	// Rand is the source for file name suffixes.
	Rand io.Reader

	// OpenFile creates paste files. Defaults to os.OpenFile.
	OpenFile func(name string, flag int, perm os.FileMode) (File, error)
}

// New returns a Store writing to dir with final permissions mode and
// idLength-character IDs.
func New(dir string, mode os.FileMode, idLength int) *Store {
	return &Store{
		dir:      dir,
		mode:     mode,
		idLength: idLength,
		Rand:     rand.Reader,
		OpenFile: openFile,
	}
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// IDFromPath returns the part of the file name after Prefix.
func IDFromPath(path string) string {
	return strings.TrimPrefix(filepath.Base(path), Prefix)
}

func (s *Store) newID() (string, error) {
	out := make([]byte, 0, s.idLength)
	buf := make([]byte, s.idLength*2)

	for len(out) < s.idLength {
		if _, err := io.ReadFull(s.Rand, buf); err != nil {
			return "", fmt.Errorf("storage: read random: %w", err)
		}
		for _, b := range buf {
			// Reject the tail of the byte range so every letter is equally likely.
			if int(b) >= 256-256%len(alphabet) {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == s.idLength {
				break
			}
		}
	}

	return string(out), nil
}

func (s *Store) create() (File, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return nil, err
		}

		f, err := s.OpenFile(filepath.Join(s.dir, Prefix+id), os.O_RDWR|os.O_CREATE|os.O_EXCL, createMode)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("storage: create: %w", err)
		}
		return f, nil
	}

	return nil, ErrExhausted
}

// Save stores body in a new file. If the file could not be created the
// returned error is not a *PartialError and no file exists. Write, chmod
// and close failures come back as *PartialError together with the Paste.
func (s *Store) Save(body []byte) (Paste, error) {
	f, err := s.create()
	if err != nil {
		return Paste{}, err
	}

	p := Paste{
		ID:   IDFromPath(f.Name()),
		Path: f.Name(),
	}

	var partial error

	p.Size, err = f.Write(body)
	if err != nil {
		partial = &PartialError{Op: "write", Path: p.Path, Err: err}
	}

	if err := f.Chmod(s.mode); err != nil && partial == nil {
		partial = &PartialError{Op: "chmod", Path: p.Path, Err: err}
	}

	if err := f.Close(); err != nil && partial == nil {
		partial = &PartialError{Op: "close", Path: p.Path, Err: err}
	}

	return p, partial
}
