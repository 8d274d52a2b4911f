// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

// Package journal keeps an optional durable record of stored pastes. It is
// write-only from the server's point of view: nothing reads pastes back
// through it.
package journal

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"github.com/alecthomas/chroma/v2/lexers"
	"golang.org/x/crypto/blake2b"

	"github.com/casjay-forks/beans/src/validation"
)

const defaultQueryTimeout = 5 * time.Second

// Only the head of a paste is used to guess its syntax.
const syntaxSampleSize = 16 * 1024

type Entry struct {
	ID        string    `json:"id"`
	ConnID    string    `json:"conn_id"`
	Remote    string    `json:"remote"`
	Size      int       `json:"size"`
	Digest    string    `json:"digest"`
	Syntax    string    `json:"syntax"`
	Mode      string    `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
}

type Journal interface {
	Record(ctx context.Context, e Entry) error
	Close() error
}

// NewEntry fills in the fields derived from the paste body.
func NewEntry(id string, body []byte) Entry {
	sum := blake2b.Sum256(body)
	return Entry{
		ID:        id,
		Size:      len(body),
		Digest:    "blake2b-256:" + hex.EncodeToString(sum[:]),
		Syntax:    Syntax(body),
		CreatedAt: time.Now().UTC(),
	}
}

// Syntax guesses the language of body. It returns "plaintext" when no
// lexer claims it.
func Syntax(body []byte) string {
	if len(body) > syntaxSampleSize {
		body = body[:syntaxSampleSize]
	}

	lexer := lexers.Analyse(string(body))
	if lexer == nil {
		return "plaintext"
	}
	return lexer.Config().Name
}

type nop struct{}

func (nop) Record(context.Context, Entry) error { return nil }
func (nop) Close() error                        { return nil }

// Open returns the journal for source. An empty source gives a journal
// that discards everything.
func Open(ctx context.Context, source string) (Journal, error) {
	if source == "" {
		return nop{}, nil
	}

	driver, err := validation.DetectDriver(source)
	if err != nil {
		return nil, err
	}

	switch driver {
	case validation.DriverRedis:
		return OpenRedis(ctx, source)
	case validation.DriverSQLite, validation.DriverPostgres, validation.DriverMySQL:
		return OpenSQL(ctx, driver, validation.NormalizeConnectionString(driver, source))
	}

	return nil, fmt.Errorf("journal: unsupported driver %q", driver)
}

// Redact hides the password in a journal source for display.
func Redact(source string) string {
	u, err := url.Parse(source)
	if err != nil || u.User == nil {
		return source
	}
	return u.Redacted()
}
