package core

import (
	"context"
	"testing"
)

func nextType(t *testing.T, a Adapter) ItemType {
	t.Helper()
	info, err := a.NextItemType()
	if err != nil {
		t.Fatal(err)
	}
	return info.Type()
}

func TestSliceAdapterSequence(t *testing.T) {
	a := NewSliceAdapter(
		ScriptRun{Run: 1, Lumis: []ScriptLumi{{Lumi: 1, Events: 2}, {Lumi: 2, Events: 1}}},
		ScriptRun{Run: 2, Lumis: []ScriptLumi{{Lumi: 1, Events: 1}}},
	)
	want := []ItemType{
		IsFile,
		IsRun, IsLumi, IsEvent, IsEvent, IsLumi, IsEvent,
		IsRun, IsLumi, IsEvent,
		IsStop, IsStop,
	}
	for i, w := range want {
		if got := nextType(t, a); got != w {
			t.Fatalf("item %d: got %s, wanted %s", i, got, w)
		}
	}
}

func TestSliceAdapterSkipForward(t *testing.T) {
	a := NewSliceAdapter(
		ScriptRun{Run: 1, Lumis: []ScriptLumi{{Lumi: 1, Events: 4}}},
	)
	nextType(t, a) // file
	nextType(t, a) // run
	nextType(t, a) // lumi
	if got := nextType(t, a); got != IsEvent {
		t.Fatalf("got %s", got)
	}
	// The cursor sits on event 1; skipping 2 consumes events 1
	// and 2.
	if err := a.Skip(2); err != nil {
		t.Fatal(err)
	}
	if got := nextType(t, a); got != IsEvent {
		t.Fatalf("got %s", got)
	}
	ev, err := a.ReadEvent(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ev.ID.Event != 3 {
		t.Fatalf("got event %d, wanted 3", ev.ID.Event)
	}
}

func TestSliceAdapterSkipBackward(t *testing.T) {
	a := NewSliceAdapter(
		ScriptRun{Run: 1, Lumis: []ScriptLumi{{Lumi: 1, Events: 3}}},
	)
	for i := 0; i < 5; i++ { // file, run, lumi, event1, event2
		nextType(t, a)
	}
	if _, err := a.ReadEvent(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Back up over event 2; it gets delivered again.
	if err := a.Skip(-1); err != nil {
		t.Fatal(err)
	}
	if got := nextType(t, a); got != IsEvent {
		t.Fatalf("got %s", got)
	}
	ev, err := a.ReadEvent(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ev.ID.Event != 2 {
		t.Fatalf("got event %d, wanted 2", ev.ID.Event)
	}
}

func TestSliceAdapterNavigationStates(t *testing.T) {
	a := NewSliceAdapter(
		ScriptRun{Run: 1, Lumis: []ScriptLumi{{Lumi: 1, Events: 2}}},
	)
	if !a.RandomAccess() {
		t.Fatal("slice adapters support random access")
	}
	if got := a.ForwardState(); got != EventsAheadInFile {
		t.Fatalf("got %s", got)
	}
	if got := a.ReverseState(); got != AtFirstEvent {
		t.Fatalf("got %s", got)
	}

	for nextType(t, a) != IsStop {
	}
	if got := a.ForwardState(); got != AtLastEvent {
		t.Fatalf("got %s at end", got)
	}
	if got := a.ReverseState(); got != EventsBackwardInFile {
		t.Fatalf("got %s at end", got)
	}

	if err := a.Rewind(); err != nil {
		t.Fatal(err)
	}
	if got := nextType(t, a); got != IsFile {
		t.Fatalf("got %s after rewind", got)
	}
}

func TestSliceAdapterProcessBlocks(t *testing.T) {
	a := NewSliceAdapter(
		ScriptRun{Run: 1, Lumis: []ScriptLumi{{Lumi: 1, Events: 1}}},
	)
	a.ProcessNames = []string{"HLT", "RECO"}

	var names []string
	for {
		pb := &ProcessBlock{}
		ok, err := a.NextProcessBlock(pb)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		if err := a.ReadProcessBlock(pb); err != nil {
			t.Fatal(err)
		}
		names = append(names, pb.ProcessName)
	}
	if len(names) != 2 || names[0] != "HLT" || names[1] != "RECO" {
		t.Fatalf("got %v", names)
	}
}
