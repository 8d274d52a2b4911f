// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

package paste

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"
)

func TestReadAll(t *testing.T) {
	for _, size := range []int{0, 1, 511, 512, 513, 1024, 10000} {
		body := bytes.Repeat([]byte{'x'}, size)

		res, err := ReadAll(bytes.NewReader(body), 0)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(res, body) {
			t.Error("expected", size, "bytes but got", len(res))
		}
		if res == nil {
			t.Error("expected non-nil slice for size", size)
		}

		res, err = ReadAll(iotest.OneByteReader(bytes.NewReader(body)), 0)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(res, body) {
			t.Error("one byte reader: expected", size, "bytes but got", len(res))
		}
	}
}

func TestReadAllDataThenEOF(t *testing.T) {
	res, err := ReadAll(iotest.DataErrReader(bytes.NewReader([]byte("hello"))), 0)
	if err != nil {
		t.Fatal(err)
	}
	if string(res) != "hello" {
		t.Error("expected hello but got", string(res))
	}
}

func TestReadAllError(t *testing.T) {
	errReset := errors.New("connection reset")
	r := io.MultiReader(bytes.NewReader(bytes.Repeat([]byte{'a'}, 2000)), iotest.ErrReader(errReset))

	res, err := ReadAll(r, 0)
	if !errors.Is(err, errReset) {
		t.Error("expected", errReset, "but got", err)
	}
	if res != nil {
		t.Error("partial data must be dropped but got", len(res), "bytes")
	}
}

func TestReadAllMax(t *testing.T) {
	body := bytes.Repeat([]byte{'z'}, 1000)

	res, err := ReadAll(bytes.NewReader(body), 1000)
	if err != nil || len(res) != 1000 {
		t.Error("payload at the limit must be accepted:", len(res), err)
	}

	res, err = ReadAll(bytes.NewReader(body), 999)
	if !errors.Is(err, ErrTooLarge) {
		t.Error("expected", ErrTooLarge, "but got", err)
	}
	if res != nil {
		t.Error("expected nil slice but got", len(res), "bytes")
	}
}
