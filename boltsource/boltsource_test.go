package boltsource

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/feedline/feedline/core"
)

func seed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.db")
	store, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	begin := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.PutRunAux(&core.RunAuxiliary{Run: 1, BeginTime: begin}); err != nil {
		t.Fatal(err)
	}
	for lumi := uint64(1); lumi <= 2; lumi++ {
		aux := &core.LumiAuxiliary{Run: 1, Lumi: lumi, BeginTime: begin}
		if err := store.PutLumiAux(aux); err != nil {
			t.Fatal(err)
		}
		for event := uint64(1); event <= 3; event++ {
			ev := &core.Event{
				ID:      core.EventID{Run: 1, Lumi: lumi, Event: event},
				Time:    begin.Add(time.Duration(event) * time.Second),
				Payload: map[string]interface{}{"lumi": lumi, "event": event},
			}
			if err := store.PutEvent(ev); err != nil {
				t.Fatal(err)
			}
		}
	}
	return path
}

func TestAdapterSequence(t *testing.T) {
	src := core.NewSource(New(seed(t)), core.DefaultSourceOptions())

	var (
		events int
		lumis  int
		runs   int
	)
	for {
		info, err := src.NextItemType()
		if err != nil {
			t.Fatal(err)
		}
		switch info.Type() {
		case core.IsStop:
			if runs != 1 || lumis != 2 || events != 6 {
				t.Fatalf("saw %d runs, %d lumis, %d events", runs, lumis, events)
			}
			if err := src.CloseFile(false); err != nil {
				t.Fatal(err)
			}
			return
		case core.IsFile:
			fb, err := src.ReadFile()
			if err != nil {
				t.Fatal(err)
			}
			if fb.Meta["events"] != 6 {
				t.Fatalf("file block meta: %v", fb.Meta)
			}
		case core.IsRun:
			r, err := src.ReadRun()
			if err != nil {
				t.Fatal(err)
			}
			if r.Aux.Run != 1 || r.Aux.BeginTime.IsZero() {
				t.Fatalf("bad run aux: %+v", r.Aux)
			}
			runs++
		case core.IsLumi:
			l, err := src.ReadLumi()
			if err != nil {
				t.Fatal(err)
			}
			if l.Aux.Run != 1 {
				t.Fatalf("bad lumi aux: %+v", l.Aux)
			}
			lumis++
		case core.IsEvent:
			ev, err := src.ReadEvent(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if ev.Payload == nil {
				t.Fatalf("event %s has no payload", ev.ID)
			}
			events++
		default:
			t.Fatalf("unexpected item %s", info)
		}
	}
}

func TestAdapterRandomAccess(t *testing.T) {
	a := New(seed(t))
	src := core.NewSource(a, core.DefaultSourceOptions())

	if info, err := src.NextItemType(); err != nil || !info.Is(core.IsFile) {
		t.Fatalf("info=%v err=%v", info, err)
	}
	if _, err := src.ReadFile(); err != nil {
		t.Fatal(err)
	}

	if !src.RandomAccess() {
		t.Fatal("boltsource supports random access")
	}
	if res := src.ResourceSharedWithDelayedReader(); res == nil {
		t.Fatal("boltsource shares its delayed-read buffer")
	}

	found, err := src.GoToEvent(core.EventID{Run: 1, Lumi: 2, Event: 2})
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("event 1/2/2 was seeded")
	}
	info, err := src.NextItemType()
	if err != nil {
		t.Fatal(err)
	}
	if !info.Is(core.IsEvent) {
		t.Fatalf("got %s after seek", info)
	}
	ev, err := src.ReadEvent(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ev.ID != (core.EventID{Run: 1, Lumi: 2, Event: 2}) {
		t.Fatalf("got %s", ev.ID)
	}

	// Skip backward over the event just read; it comes again.
	if err := src.SkipEvents(-1); err != nil {
		t.Fatal(err)
	}
	info, err = src.NextItemType()
	if err != nil {
		t.Fatal(err)
	}
	if !info.Is(core.IsEvent) {
		t.Fatalf("got %s after backward skip", info)
	}
	ev, err = src.ReadEvent(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ev.ID.Event != 2 {
		t.Fatalf("got event %d", ev.ID.Event)
	}

	if err := src.Rewind(); err != nil {
		t.Fatal(err)
	}
	info, err = src.NextItemType()
	if err != nil {
		t.Fatal(err)
	}
	if !info.Is(core.IsRun) {
		t.Fatalf("got %s after rewind", info)
	}

	if err := src.CloseFile(false); err != nil {
		t.Fatal(err)
	}
}

func TestAdapterMissingEvent(t *testing.T) {
	a := New(seed(t))
	src := core.NewSource(a, core.DefaultSourceOptions())
	src.NextItemType()
	if _, err := src.ReadFile(); err != nil {
		t.Fatal(err)
	}
	defer src.CloseFile(false)

	found, err := a.GoToEvent(core.EventID{Run: 9, Lumi: 9, Event: 9})
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("event 9/9/9 was never seeded")
	}
}
