// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

package storage

import (
	"bytes"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, 0600, 6)

	body := make([]byte, 10000)
	if _, err := rand.Read(body); err != nil {
		t.Fatal(err)
	}

	p, err := s.Save(body)
	if err != nil {
		t.Fatal(err)
	}

	if p.Path != filepath.Join(dir, Prefix+p.ID) {
		t.Error("expected path to be dir/beans.<id> but got", p.Path)
	}
	if len(p.ID) != 6 || strings.Trim(p.ID, alphabet) != "" {
		t.Error("unexpected id", p.ID)
	}
	if p.Size != len(body) {
		t.Error("expected", len(body), "but got", p.Size)
	}

	got, err := os.ReadFile(p.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, body) {
		t.Error("stored content differs from body")
	}
}

func TestSaveMode(t *testing.T) {
	for _, mode := range []os.FileMode{0600, 0644, 0400, 0640} {
		s := New(t.TempDir(), mode, 6)

		p, err := s.Save([]byte("x"))
		if err != nil {
			t.Fatal(err)
		}

		info, err := os.Stat(p.Path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != mode {
			t.Errorf("expected %o but got %o", mode, info.Mode().Perm())
		}
	}
}

func TestIDFromPath(t *testing.T) {
	testData := map[string]string{
		"/tmp/beans.Ab3xYz":            "Ab3xYz",
		"/srv/www.example.com/beans.q": "q",
		"beans.abcdef":                 "abcdef",
		"relative/dir.d/beans.ZZZZZZ":  "ZZZZZZ",
	}

	for path, exp := range testData {
		if res := IDFromPath(path); res != exp {
			t.Error("expected", exp, "but got", res, "(input:", path, ")")
		}
	}
}

func TestSaveInDottedDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "paste.example.com")
	if err := os.Mkdir(dir, 0700); err != nil {
		t.Fatal(err)
	}

	p, err := New(dir, 0600, 8).Save([]byte("dots"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(p.ID, ".") || len(p.ID) != 8 {
		t.Error("unexpected id", p.ID)
	}
}

// fixedReader always yields the same bytes, so every generated ID collides.
type fixedReader struct{}

func (fixedReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 7
	}
	return len(p), nil
}

func TestSaveCollisionExhausts(t *testing.T) {
	s := New(t.TempDir(), 0600, 6)
	s.Rand = fixedReader{}

	if _, err := s.Save([]byte("first")); err != nil {
		t.Fatal(err)
	}

	_, err := s.Save([]byte("second"))
	if !errors.Is(err, ErrExhausted) {
		t.Error("expected ErrExhausted but got", err)
	}

	st, err := Scan(s.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if st.Count != 1 {
		t.Error("expected exactly one file but got", st.Count)
	}
}

func TestSaveCreateFailure(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing"), 0600, 6)

	_, err := s.Save([]byte("x"))
	if err == nil {
		t.Fatal("expected error")
	}
	var partial *PartialError
	if errors.As(err, &partial) {
		t.Error("create failure must not be a PartialError")
	}
}

func TestSaveConcurrentUnique(t *testing.T) {
	s := New(t.TempDir(), 0600, 6)

	const n = 64
	ids := make(chan string, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := s.Save([]byte("same body"))
			if err != nil {
				t.Error(err)
				return
			}
			ids <- p.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		if seen[id] {
			t.Error("duplicate id", id)
		}
		seen[id] = true
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, 0600, 6)

	for _, body := range []string{"a", "bb", "ccc"} {
		if _, err := s.Save([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("ignored"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "beans.dir"), 0700); err != nil {
		t.Fatal(err)
	}

	st, err := Scan(dir)
	if err != nil {
		t.Fatal(err)
	}
	if st.Count != 3 || st.Bytes != 6 {
		t.Error("expected 3 files and 6 bytes but got", st.Count, st.Bytes)
	}
}

// faultyFile fails the named operation and passes the rest through.
type faultyFile struct {
	File
	fail string
}

var errInjected = errors.New("injected failure")

func (f faultyFile) Write(p []byte) (int, error) {
	if f.fail == "write" {
		return 0, errInjected
	}
	return f.File.Write(p)
}

func (f faultyFile) Chmod(mode os.FileMode) error {
	if f.fail == "chmod" {
		return errInjected
	}
	return f.File.Chmod(mode)
}

func TestSavePartialFailure(t *testing.T) {
	for _, op := range []string{"write", "chmod"} {
		s := New(t.TempDir(), 0644, 6)
		s.OpenFile = func(name string, flag int, perm os.FileMode) (File, error) {
			f, err := openFile(name, flag, perm)
			if err != nil {
				return nil, err
			}
			return faultyFile{File: f, fail: op}, nil
		}

		p, err := s.Save([]byte("body"))

		var partial *PartialError
		if !errors.As(err, &partial) {
			t.Fatal("expected *PartialError for", op, "but got", err)
		}
		if partial.Op != op || !errors.Is(err, errInjected) {
			t.Error("expected op", op, "but got", partial.Op, err)
		}
		if p.ID == "" || p.Path != filepath.Join(s.Dir(), Prefix+p.ID) {
			t.Error("expected a usable paste for", op, "but got", p)
		}
		if _, err := os.Stat(p.Path); err != nil {
			t.Error("file must exist after a", op, "failure:", err)
		}
	}
}
