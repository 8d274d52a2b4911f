// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

// Package paste handles a single paste connection: read everything the
// client sends, store it, and answer with the paste ID.
package paste

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/casjay-forks/beans/src/cli"
	"github.com/casjay-forks/beans/src/config"
	"github.com/casjay-forks/beans/src/journal"
	"github.com/casjay-forks/beans/src/logger"
	"github.com/casjay-forks/beans/src/metrics"
	"github.com/casjay-forks/beans/src/storage"
)

// NothingPasted is the reply for an empty or failed upload.
const NothingPasted = "Nothing pasted.\n"

// Handler serves paste connections. One Handler is shared by all of them.
type Handler struct {
	Store   *storage.Store
	Journal journal.Journal
	Log     logger.Logger

	Base        string
	Mode        os.FileMode
	MaxSize     int64
	ReadTimeout time.Duration
}

// NewHandler returns a Handler configured from cfg.
func NewHandler(cfg config.Config, store *storage.Store, j journal.Journal) *Handler {
	return &Handler{
		Store:       store,
		Journal:     j,
		Log:         cfg.Log,
		Base:        cfg.Base,
		Mode:        cfg.Mode,
		MaxSize:     cfg.MaxSize,
		ReadTimeout: cfg.ReadTimeout,
	}
}

// Reply returns the text sent back for a stored paste.
func (h *Handler) Reply(id string) string {
	return h.Base + id + "\n"
}

// fail logs a per-connection failure on the error stream.
func (h *Handler) fail(rec *logger.ConnRecord, op string, err error) {
	h.Log.Error(fmt.Errorf("conn %s from %s: %s: %w", rec.ID, rec.Remote, op, err))
}

func (h *Handler) send(conn net.Conn, rec *logger.ConnRecord, text string) {
	if _, err := io.WriteString(conn, text); err != nil {
		h.fail(rec, "send reply", err)
	}
}

// Serve handles conn until the reply is sent, then closes it.
func (h *Handler) Serve(ctx context.Context, conn net.Conn) {
	start := time.Now()
	done := metrics.ConnStart()

	rec := logger.ConnRecord{
		ID:     uuid.NewString(),
		Remote: conn.RemoteAddr().String(),
	}

	defer func() {
		if err := conn.Close(); err != nil {
			h.fail(&rec, "close", err)
		}
		rec.Duration = time.Since(start)
		done(rec.Outcome, rec.Bytes)
		h.Log.Conn(rec)
	}()

	if h.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(start.Add(h.ReadTimeout)); err != nil {
			h.fail(&rec, "set read deadline", err)
		}
	}

	body, err := ReadAll(conn, h.MaxSize)
	if err != nil {
		rec.Outcome = metrics.OutcomeReadError
		if errors.Is(err, ErrTooLarge) {
			rec.Outcome = metrics.OutcomeTooLarge
		}
		h.fail(&rec, "read", err)
		h.send(conn, &rec, NothingPasted)
		return
	}

	rec.Bytes = len(body)
	if len(body) == 0 {
		rec.Outcome = metrics.OutcomeEmpty
		h.send(conn, &rec, NothingPasted)
		return
	}

	p, err := h.Store.Save(body)
	var partial *storage.PartialError
	switch {
	case err == nil:
		rec.Outcome = metrics.OutcomeStored

	case errors.As(err, &partial):
		// The file exists and the ID is valid; the client still gets it.
		rec.Outcome = metrics.OutcomePartial
		h.fail(&rec, "store", err)

	default:
		// No file was created, so there is nothing to tell the client.
		rec.Outcome = metrics.OutcomeStoreFailed
		h.fail(&rec, "store", err)
		return
	}

	rec.PasteID = p.ID
	h.send(conn, &rec, h.Reply(p.ID))

	h.record(ctx, rec, body)
}

func (h *Handler) record(ctx context.Context, rec logger.ConnRecord, body []byte) {
	if h.Journal == nil {
		return
	}

	e := journal.NewEntry(rec.PasteID, body)
	e.ConnID = rec.ID
	e.Remote = rec.Remote
	e.Mode = cli.FormatFileMode(h.Mode)

	// Pastes accepted before a shutdown are still journaled.
	if err := h.Journal.Record(context.WithoutCancel(ctx), e); err != nil {
		metrics.RecordJournalError()
		h.fail(&rec, "journal", err)
	}
}
