// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDisabledRecordsNothing(t *testing.T) {
	Init(context.Background(), Config{Enabled: false}, "test")

	before := testutil.ToFloat64(ConnectionsAcceptedTotal)
	RecordAccept()
	done := ConnStart()
	done(OutcomeStored, 10)

	if testutil.ToFloat64(ConnectionsAcceptedTotal) != before {
		t.Error("disabled metrics must not count")
	}
}

func TestConnStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	Init(ctx, Config{Enabled: true}, "test")
	defer Init(ctx, Config{Enabled: false}, "test")

	stored := testutil.ToFloat64(PastesHandledTotal.WithLabelValues(OutcomeStored))
	empty := testutil.ToFloat64(PastesHandledTotal.WithLabelValues(OutcomeEmpty))

	done := ConnStart()
	if testutil.ToFloat64(ConnectionsActive) != 1 {
		t.Error("expected one active connection")
	}
	done(OutcomeStored, 512)
	ConnStart()(OutcomeEmpty, 0)

	if testutil.ToFloat64(ConnectionsActive) != 0 {
		t.Error("expected no active connections")
	}
	if testutil.ToFloat64(PastesHandledTotal.WithLabelValues(OutcomeStored)) != stored+1 {
		t.Error("stored outcome not counted")
	}
	if testutil.ToFloat64(PastesHandledTotal.WithLabelValues(OutcomeEmpty)) != empty+1 {
		t.Error("empty outcome not counted")
	}

	UpdatePasteStats(3, 300)
	if testutil.ToFloat64(PastesTotal) != 3 || testutil.ToFloat64(PastesBytesTotal) != 300 {
		t.Error("paste stats not updated")
	}
}

func TestHandlerToken(t *testing.T) {
	h := Handler(Config{Enabled: true, Token: "secret"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Error("expected 401 but got", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Error("expected 200 but got", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "beans_connections_accepted_total") {
		t.Error("expected beans metrics in output")
	}
}
