package core

import (
	"testing"
)

func collectSignals(src *Source) *[]Signal {
	sigs := &[]Signal{}
	src.Signals().Notify(func(sig Signal) {
		*sigs = append(*sigs, sig)
	})
	return sigs
}

func checkPair(t *testing.T, sigs []Signal, kind SignalKind) {
	t.Helper()
	if len(sigs) != 2 {
		t.Fatalf("%s: got %d signals, wanted a begin/end pair", kind, len(sigs))
	}
	if sigs[0].Kind != kind || sigs[0].Phase != PhaseBegin {
		t.Fatalf("%s: first signal was %s/%s", kind, sigs[0].Kind, sigs[0].Phase)
	}
	if sigs[1].Kind != kind || sigs[1].Phase != PhaseEnd {
		t.Fatalf("%s: second signal was %s/%s", kind, sigs[1].Kind, sigs[1].Phase)
	}
}

func TestSentriesEmitPairs(t *testing.T) {
	tests := []struct {
		kind SignalKind
		work func(src *Source)
	}{
		{SignalEvent, func(src *Source) {
			sentry := NewEventSourceSentry(src, EventID{Run: 1, Lumi: 2, Event: 3})
			defer sentry.Close()
		}},
		{SignalLumi, func(src *Source) {
			sentry := NewLumiSourceSentry(src, 1, 2)
			defer sentry.Close()
		}},
		{SignalRun, func(src *Source) {
			sentry := NewRunSourceSentry(src, 1)
			defer sentry.Close()
		}},
		{SignalProcessBlock, func(src *Source) {
			sentry := NewProcessBlockSourceSentry(src, "RECO")
			defer sentry.Close()
		}},
		{SignalFileOpen, func(src *Source) {
			sentry := NewFileOpenSentry(src, "file.db")
			defer sentry.Close()
		}},
		{SignalFileClose, func(src *Source) {
			sentry := NewFileCloseSentry(src, "file.db")
			defer sentry.Close()
		}},
	}

	for _, test := range tests {
		src := NewSource(EmptyAdapter{}, DefaultSourceOptions())
		sigs := collectSignals(src)
		test.work(src)
		checkPair(t, *sigs, test.kind)
		if (*sigs)[0].Source != src.ProcessGUID() {
			t.Fatalf("%s: signal source %q, wanted the process GUID", test.kind, (*sigs)[0].Source)
		}
	}
}

func TestSentryEndFiresOnPanic(t *testing.T) {
	src := NewSource(EmptyAdapter{}, DefaultSourceOptions())
	sigs := collectSignals(src)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("the panic went missing")
			}
		}()
		sentry := NewRunSourceSentry(src, 42)
		defer sentry.Close()
		panic("fault during run transition")
	}()

	checkPair(t, *sigs, SignalRun)
	if (*sigs)[1].Run != 42 {
		t.Fatalf("end signal lost the run number: %d", (*sigs)[1].Run)
	}
}

func TestSentryCloseIsIdempotent(t *testing.T) {
	src := NewSource(EmptyAdapter{}, DefaultSourceOptions())
	sigs := collectSignals(src)

	sentry := NewEventSourceSentry(src, EventID{Run: 1, Lumi: 1, Event: 1})
	sentry.Close()
	sentry.Close()
	sentry.Close()

	checkPair(t, *sigs, SignalEvent)
}
