// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

package paste

import (
	"errors"
	"io"
)

const initialBufSize = 512

var ErrTooLarge = errors.New("paste: payload exceeds size limit")

// ReadAll reads r until EOF into a buffer that starts at 512 bytes and
// doubles when full. max == 0 means no limit. On a read error the partial
// data is dropped and the error returned. An empty stream gives an empty,
// non-nil slice.
func ReadAll(r io.Reader, max int64) ([]byte, error) {
	buf := make([]byte, 0, initialBufSize)

	for {
		if len(buf) == cap(buf) {
			grown := make([]byte, len(buf), cap(buf)*2)
			copy(grown, buf)
			buf = grown
		}

		n, err := r.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]

		if max > 0 && int64(len(buf)) > max {
			return nil, ErrTooLarge
		}

		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
