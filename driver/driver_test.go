package driver

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/feedline/feedline/core"
)

func script() []core.ScriptRun {
	return []core.ScriptRun{
		{Run: 1, Lumis: []core.ScriptLumi{{Lumi: 1, Events: 2}, {Lumi: 2, Events: 1}}},
		{Run: 2, Lumis: []core.ScriptLumi{{Lumi: 1, Events: 3}}},
	}
}

// tally counts begin/end signals per kind.
type tally struct {
	mu     sync.Mutex
	begins map[core.SignalKind]int
	ends   map[core.SignalKind]int
}

func newTally(src *core.Source) *tally {
	t := &tally{
		begins: map[core.SignalKind]int{},
		ends:   map[core.SignalKind]int{},
	}
	src.Signals().Notify(func(sig core.Signal) {
		t.mu.Lock()
		if sig.Phase == core.PhaseBegin {
			t.begins[sig.Kind]++
		} else {
			t.ends[sig.Kind]++
		}
		t.mu.Unlock()
	})
	return t
}

func (ta *tally) check(t *testing.T, kind core.SignalKind, want int) {
	t.Helper()
	ta.mu.Lock()
	defer ta.mu.Unlock()
	if ta.begins[kind] != want || ta.ends[kind] != want {
		t.Fatalf("%s: %d begins, %d ends, wanted %d of each",
			kind, ta.begins[kind], ta.ends[kind], want)
	}
}

func TestRunEndToEnd(t *testing.T) {
	a := core.NewSliceAdapter(script()...)
	a.ProcessNames = []string{"GEN"}
	src := core.NewSource(a, core.DefaultSourceOptions())
	ta := newTally(src)

	var processed int32
	report, err := Run(context.Background(), src, Options{
		Process: func(ctx context.Context, ev *core.Event) error {
			atomic.AddInt32(&processed, 1)
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.Runs != 2 || report.Lumis != 3 || report.Events != 6 {
		t.Fatalf("report: %+v", report)
	}
	if report.StopReason != "exhausted" {
		t.Fatalf("stop reason %q", report.StopReason)
	}
	if processed != 6 {
		t.Fatalf("processed %d events", processed)
	}
	if report.ProcessBlocks != 1 {
		t.Fatalf("process blocks: %d", report.ProcessBlocks)
	}

	ta.check(t, core.SignalFileOpen, 1)
	ta.check(t, core.SignalFileClose, 1)
	ta.check(t, core.SignalRun, 2)
	ta.check(t, core.SignalLumi, 3)
	ta.check(t, core.SignalEvent, 6)
	ta.check(t, core.SignalProcessBlock, 1)
}

func TestRunEventLimit(t *testing.T) {
	src := core.NewSource(core.NewSliceAdapter(script()...), core.SourceOptions{
		MaxEvents: 3,
		MaxLumis:  core.Unbounded,
	})
	report, err := Run(context.Background(), src, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Events != 3 {
		t.Fatalf("read %d events, wanted 3", report.Events)
	}
}

func TestRunModeFiltering(t *testing.T) {
	src := core.NewSource(core.NewSliceAdapter(script()...), core.SourceOptions{
		MaxEvents: core.Unbounded,
		MaxLumis:  core.Unbounded,
		Mode:      core.RunsAndLumis,
	})
	called := false
	report, err := Run(context.Background(), src, Options{
		Process: func(ctx context.Context, ev *core.Event) error {
			called = true
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if called || report.Events != 0 {
		t.Fatalf("events leaked through: %+v", report)
	}
	if report.Runs != 2 || report.Lumis != 3 {
		t.Fatalf("report: %+v", report)
	}
}

func TestRunWorkers(t *testing.T) {
	a := core.NewSliceAdapter(script()...)
	a.Shared = core.NewSharedResource("delayed read")
	src := core.NewSource(a, core.DefaultSourceOptions())

	var processed int32
	report, err := Run(context.Background(), src, Options{
		Workers: 4,
		Process: func(ctx context.Context, ev *core.Event) error {
			// Reads of shared per-file state go through the lock the
			// adapter exported.
			src.ResourceSharedWithDelayedReader().With(func() {
				atomic.AddInt32(&processed, 1)
			})
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if processed != 6 || report.Events != 6 {
		t.Fatalf("processed %d, report %+v", processed, report)
	}
}

func TestRunProcessError(t *testing.T) {
	src := core.NewSource(core.NewSliceAdapter(script()...), core.DefaultSourceOptions())
	boom := errors.New("boom")
	report, err := Run(context.Background(), src, Options{
		Process: func(ctx context.Context, ev *core.Event) error {
			if ev.ID.Event == 2 {
				return boom
			}
			return nil
		},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	if report.StopReason != "event processing failed" {
		t.Fatalf("stop reason %q", report.StopReason)
	}
}

func TestRunMerges(t *testing.T) {
	// The same run appears twice; the second occurrence merges, and so
	// does its lumi.
	a := core.NewSliceAdapter(
		core.ScriptRun{Run: 7, Lumis: []core.ScriptLumi{{Lumi: 1, Events: 1}}},
		core.ScriptRun{Run: 7, Lumis: []core.ScriptLumi{{Lumi: 1, Events: 1}}},
	)
	src := core.NewSource(a, core.DefaultSourceOptions())
	report, err := Run(context.Background(), src, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Runs != 1 || report.Merges != 2 {
		t.Fatalf("report: %+v", report)
	}
	if report.Events != 2 {
		t.Fatalf("report: %+v", report)
	}
}

func TestReportMarkdown(t *testing.T) {
	src := core.NewSource(core.NewSliceAdapter(script()...), core.DefaultSourceOptions())
	report, err := Run(context.Background(), src, Options{})
	if err != nil {
		t.Fatal(err)
	}
	md := report.Markdown()
	for _, want := range []string{"# Input report", "| events | 6 |", "`slice`"} {
		if !strings.Contains(md, want) {
			t.Fatalf("report lacks %q:\n%s", want, md)
		}
	}
}
