/* Copyright 2024 The Feedline Authors
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package driver runs a core.Source to completion.
//
// The driver owns the advance/dispatch loop: it asks the source what
// comes next, reads that item, brackets it with the matching sentry,
// and hands events to a bounded pool of workers.  The core stays free
// of policy about what to do with the data; that arrives here as
// Options.Process.
package driver

import (
	"context"
	"sync"
	"time"

	"github.com/feedline/feedline/core"

	"github.com/rs/zerolog"
)

// Options configure one driver run.
type Options struct {
	// Process is called for every event, possibly from several
	// goroutines at once.  Nil means discard.
	Process func(ctx context.Context, ev *core.Event) error

	// Workers is the number of goroutines processing events.
	// Anything less than 1 means 1.
	Workers int

	// Logger gets the driver's progress output.  Defaults to
	// zerolog.Nop().
	Logger *zerolog.Logger
}

// Report summarizes one driver run.
type Report struct {
	Files         []string  `json:"files,omitempty"`
	Runs          int       `json:"runs"`
	Lumis         int       `json:"lumis"`
	Events        int       `json:"events"`
	Merges        int       `json:"merges"`
	ProcessBlocks int       `json:"processBlocks"`
	Repeats       int       `json:"repeats"`
	Started       time.Time `json:"started"`
	Finished      time.Time `json:"finished"`
	StopReason    string    `json:"stopReason"`
}

// Run drives src until it reports stop, the context is canceled, or
// something breaks.  The report is returned even on error, describing
// what got done before the trouble.
func Run(ctx context.Context, src *core.Source, opts Options) (*Report, error) {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	process := opts.Process
	if process == nil {
		process = func(context.Context, *core.Event) error { return nil }
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	report := &Report{Started: time.Now()}
	defer func() {
		report.Finished = time.Now()
	}()

	if err := src.DoBeginJob(); err != nil {
		report.StopReason = "begin job failed"
		return report, err
	}
	defer src.DoEndJob()

	d := &driver{
		src:     src,
		logger:  logger,
		report:  report,
		process: process,
	}
	err := d.loop(ctx, workers)

	logger.Info().
		Int("runs", report.Runs).
		Int("lumis", report.Lumis).
		Int("events", report.Events).
		Str("stop", report.StopReason).
		Msg("driver finished")

	return report, err
}

type driver struct {
	src     *core.Source
	logger  *zerolog.Logger
	report  *Report
	process func(ctx context.Context, ev *core.Event) error

	// Hierarchy position, for new-vs-merge decisions and for closing
	// sentries when the position moves.
	curRun     *core.Run
	curLumi    *core.Lumi
	runSentry  *core.RunSourceSentry
	lumiSentry *core.LumiSourceSentry

	fileOpen bool
	fileName string
}

func (d *driver) loop(ctx context.Context, workers int) error {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := newPool(wctx, workers, d)
	defer pool.drain()

	for {
		if err := pool.failed(); err != nil {
			d.fail("event processing failed")
			return err
		}
		if err := ctx.Err(); err != nil {
			d.fail("canceled")
			return err
		}

		info, err := d.src.NextItemType()
		if err != nil {
			d.fail("advance failed")
			return err
		}

		switch info.Type() {
		case core.IsStop:
			// Events may still be in flight; their sentries must
			// close before the lumi's.
			pool.wait()
			d.closeHierarchy()
			err := d.closeFile(false)
			if d.report.StopReason == "" {
				d.report.StopReason = "exhausted"
			}
			return err

		case core.IsFile:
			if err := d.openFile(); err != nil {
				d.fail("file open failed")
				return err
			}

		case core.IsRun:
			if err := d.beginRun(); err != nil {
				d.fail("run read failed")
				return err
			}

		case core.IsLumi:
			if err := d.beginLumi(); err != nil {
				d.fail("lumi read failed")
				return err
			}

		case core.IsEvent:
			ev, err := d.src.ReadEvent(wctx)
			if err != nil {
				d.fail("event read failed")
				return err
			}
			d.report.Events++
			pool.submit(ev)

		case core.IsRepeat:
			pool.wait()
			d.closeHierarchy()
			d.report.Repeats++
			d.logger.Info().Msg("repeating input")
			d.src.Repeat()
			d.src.Synchronize()
			if err := d.src.Rewind(); err != nil {
				d.fail("rewind failed")
				return err
			}

		case core.IsSynchronize:
			d.logger.Debug().Msg("synchronize")
			d.src.Synchronize()

		default:
			d.fail("invalid item")
			return &core.PreconditionError{Op: "driver", State: info, Want: core.IsStop}
		}
	}
}

// fail records the stop reason and closes whatever is open, letting
// secondary faults from the close path go unreported.
func (d *driver) fail(reason string) {
	d.report.StopReason = reason
	d.closeHierarchy()
	d.closeFile(true)
}

func (d *driver) openFile() error {
	// A new file ends the previous one.
	if err := d.closeFile(false); err != nil {
		return err
	}
	sentry := core.NewFileOpenSentry(d.src, d.src.ModuleDescription())
	fb, err := d.src.ReadFile()
	sentry.Close()
	if err != nil {
		return err
	}
	d.fileOpen = true
	d.fileName = fb.Name
	d.report.Files = append(d.report.Files, fb.Name)
	d.logger.Info().Str("file", fb.Name).Msg("opened input")

	// Process blocks arrive per file, before any run.
	for {
		pb, ok, err := d.src.NextProcessBlock()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		sentry := core.NewProcessBlockSourceSentry(d.src, pb.ProcessName)
		err = d.src.ReadProcessBlock(pb)
		sentry.Close()
		if err != nil {
			return err
		}
		d.report.ProcessBlocks++
		d.logger.Debug().Str("process", pb.ProcessName).Msg("process block")
	}
}

func (d *driver) closeFile(cleaningUp bool) error {
	if !d.fileOpen {
		return nil
	}
	d.fileOpen = false
	sentry := core.NewFileCloseSentry(d.src, d.fileName)
	err := d.src.CloseFile(cleaningUp)
	sentry.Close()
	return err
}

func (d *driver) beginRun() error {
	aux, err := d.src.ReadRunAuxiliary()
	if err != nil {
		return err
	}
	if d.curRun != nil && d.curRun.Aux.SameIdentity(aux) {
		if err := d.src.ReadAndMergeRun(d.curRun); err != nil {
			return err
		}
		d.report.Merges++
		d.logger.Debug().Uint64("run", aux.Run).Msg("merged run")
		return nil
	}
	d.closeHierarchy()
	d.runSentry = core.NewRunSourceSentry(d.src, aux.Run)
	r, err := d.src.ReadRun()
	if err != nil {
		return err
	}
	d.curRun = r
	d.report.Runs++
	d.logger.Info().Uint64("run", r.Aux.Run).Msg("begin run")
	return nil
}

func (d *driver) beginLumi() error {
	aux, err := d.src.ReadLumiAuxiliary()
	if err != nil {
		return err
	}
	if d.curLumi != nil && d.curLumi.Aux.SameIdentity(aux) {
		if err := d.src.ReadAndMergeLumi(d.curLumi); err != nil {
			return err
		}
		d.report.Merges++
		d.logger.Debug().Uint64("run", aux.Run).Uint64("lumi", aux.Lumi).Msg("merged lumi")
		return nil
	}
	d.closeLumi()
	d.lumiSentry = core.NewLumiSourceSentry(d.src, aux.Run, aux.Lumi)
	l, err := d.src.ReadLumi()
	if err != nil {
		return err
	}
	d.curLumi = l
	d.report.Lumis++
	d.logger.Debug().Uint64("run", l.Aux.Run).Uint64("lumi", l.Aux.Lumi).Msg("begin lumi")
	return nil
}

func (d *driver) closeLumi() {
	if d.lumiSentry != nil {
		d.lumiSentry.Close()
		d.lumiSentry = nil
	}
	d.curLumi = nil
}

func (d *driver) closeHierarchy() {
	d.closeLumi()
	if d.runSentry != nil {
		d.runSentry.Close()
		d.runSentry = nil
	}
	d.curRun = nil
}

// pool runs Options.Process over events on a fixed set of workers.
type pool struct {
	ctx      context.Context
	jobs     chan *core.Event
	workers  sync.WaitGroup
	inflight sync.WaitGroup
	d        *driver
	mu       sync.Mutex
	err      error
	drained  bool
}

func newPool(ctx context.Context, workers int, d *driver) *pool {
	p := &pool{
		ctx:  ctx,
		jobs: make(chan *core.Event, workers),
		d:    d,
	}
	for i := 0; i < workers; i++ {
		p.workers.Add(1)
		go p.work()
	}
	return p
}

func (p *pool) work() {
	defer p.workers.Done()
	for ev := range p.jobs {
		sentry := core.NewEventSourceSentry(p.d.src, ev.ID)
		err := p.d.process(p.ctx, ev)
		sentry.Close()
		if err != nil {
			p.mu.Lock()
			if p.err == nil {
				p.err = err
			}
			p.mu.Unlock()
		}
		p.inflight.Done()
	}
}

func (p *pool) submit(ev *core.Event) {
	p.inflight.Add(1)
	p.jobs <- ev
}

func (p *pool) failed() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// wait blocks until every submitted event has been processed.  The
// pool stays usable.
func (p *pool) wait() {
	p.inflight.Wait()
}

// drain shuts the pool down, waiting for in-flight events.  Safe to
// call more than once.
func (p *pool) drain() {
	p.mu.Lock()
	done := p.drained
	p.drained = true
	p.mu.Unlock()
	if done {
		return
	}
	close(p.jobs)
	p.workers.Wait()
}
