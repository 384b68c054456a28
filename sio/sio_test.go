package sio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/feedline/feedline/core"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func emitSome(signals *core.Signals) {
	signals.Emit(core.Signal{Kind: core.SignalFileOpen, Phase: core.PhaseBegin, File: "a"})
	signals.Emit(core.Signal{Kind: core.SignalEvent, Phase: core.PhaseBegin,
		EventID: &core.EventID{Run: 1, Lumi: 1, Event: 1}})
	signals.Emit(core.Signal{Kind: core.SignalEvent, Phase: core.PhaseEnd,
		EventID: &core.EventID{Run: 1, Lumi: 1, Event: 1}})
	signals.Emit(core.Signal{Kind: core.SignalReport, ReadCount: 1})
}

func TestStdio(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdio(&buf)
	s.Tags = true

	signals := &core.Signals{}
	s.Attach(signals)
	emitSome(signals)

	scanner := bufio.NewScanner(&buf)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 4 {
		t.Fatalf("got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "fileOpen") {
		t.Fatalf("no tag: %q", lines[0])
	}

	var sig core.Signal
	js := strings.TrimSpace(strings.TrimPrefix(lines[1], "event"))
	if err := json.Unmarshal([]byte(js), &sig); err != nil {
		t.Fatal(err)
	}
	if sig.Kind != core.SignalEvent || sig.EventID == nil || sig.EventID.Event != 1 {
		t.Fatalf("got %+v", sig)
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	signals := &core.Signals{}
	m.Attach(signals)
	emitSome(signals)

	got := testutil.ToFloat64(m.signals.WithLabelValues("event", "begin"))
	if got != 1 {
		t.Fatalf("event begins: %v", got)
	}
	if got := testutil.ToFloat64(m.readCount); got != 1 {
		t.Fatalf("read count gauge: %v", got)
	}

	// The handler serves the private registry.
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "feedline_signals_total") {
		t.Fatalf("scrape output:\n%s", rec.Body.String())
	}
}

func TestWS(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWS()
	go w.fanout(ctx)

	srv := httptest.NewServer(w.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	signals := &core.Signals{}
	w.Attach(signals)

	// The connection registers asynchronously with respect to Dial
	// returning; emit until the client hears something.
	got := make(chan core.Signal, 1)
	go func() {
		var sig core.Signal
		for {
			_, js, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := json.Unmarshal(js, &sig); err == nil {
				got <- sig
				return
			}
		}
	}()

	deadline := time.After(5 * time.Second)
	for {
		signals.Emit(core.Signal{Kind: core.SignalRun, Phase: core.PhaseBegin, Run: 42})
		select {
		case sig := <-got:
			if sig.Kind != core.SignalRun || sig.Run != 42 {
				t.Fatalf("got %+v", sig)
			}
			return
		case <-deadline:
			t.Fatal("no signal arrived")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
