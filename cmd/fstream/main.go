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

// Package main is fstream, a command-line harness for running one
// source to completion.
//
// The input is named by -in:
//
//	empty        nothing to read; stops immediately
//	bolt:PATH    a bbolt database written by -seed (or by you)
//	js:FILE      a JavaScript program defining next()
//
// Signals can be coupled to stdout, an MQTT broker, a WebSocket
// firehose (see fsmon), and a Prometheus endpoint, in any
// combination.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/feedline/feedline/boltsource"
	"github.com/feedline/feedline/core"
	"github.com/feedline/feedline/driver"
	"github.com/feedline/feedline/jsource"
	"github.com/feedline/feedline/sio"
	"github.com/feedline/feedline/tools"

	"github.com/gorhill/cronexpr"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fstream: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile = flag.String("c", "", "Optional YAML config file")

		in        = flag.String("in", "empty", "Input: empty, bolt:PATH, or js:FILE")
		maxEvents = flag.Int("max-events", core.Unbounded, "Event budget (-1 for unbounded)")
		maxLumis  = flag.Int("max-lumis", core.Unbounded, "Lumi budget (-1 for unbounded)")
		rampdown  = flag.Duration("rampdown", 0, "Stop at the next boundary after this long")
		rdCron    = flag.String("rampdown-cron", "", "Stop at the next boundary after this cron expression next fires")
		mode      = flag.String("mode", "runsLumisAndEvents", "runs, runsAndLumis, or runsLumisAndEvents")
		workers   = flag.Int("workers", 1, "Parallel event workers")

		reportEvery = flag.Int("report-every", 0, "Emit a progress report every N events")
		statusFile  = flag.String("status-file", "", "File to record the last reported event id")

		stdout     = flag.Bool("stdout", false, "Write signals to stdout as JSON lines")
		tags       = flag.Bool("tags", false, "Prefix stdout signals with the signal kind")
		timestamps = flag.Bool("timestamps", false, "Prefix stdout signals with a timestamp")

		mqttBroker = flag.String("mqtt", "", "Optional MQTT broker (tcp://host:port)")
		mqttTopic  = flag.String("mqtt-topic", "feedline", "MQTT topic prefix")
		mqttQoS    = flag.Int("mqtt-qos", 0, "MQTT QoS")

		wsAddr      = flag.String("ws", "", "Optional WebSocket firehose address (e.g. :8080)")
		metricsAddr = flag.String("metrics", "", "Optional Prometheus address (e.g. :9090)")

		reportFile = flag.String("report", "", "Write the final report (Markdown) here; - for stdout")
		reportHTML = flag.String("report-html", "", "Write the final report (HTML) here")
		printEv    = flag.Bool("print-events", false, "Write each event to stdout as JSON")

		seedPath   = flag.String("seed", "", "Write a demo bolt database here and exit")
		seedRuns   = flag.Int("seed-runs", 2, "Runs in the seeded database")
		seedLumis  = flag.Int("seed-lumis", 3, "Lumis per seeded run")
		seedEvents = flag.Int("seed-events", 10, "Events per seeded lumi")

		verbose = flag.Bool("v", false, "Verbose logging")
	)

	flag.Parse()

	if *configFile != "" {
		if err := overlayConfig(*configFile, map[string]interface{}{
			"in":           in,
			"maxEvents":    maxEvents,
			"maxLumis":     maxLumis,
			"rampdownCron": rdCron,
			"mode":         mode,
			"workers":      workers,
			"reportEvery":  reportEvery,
			"statusFile":   statusFile,
			"stdout":       stdout,
			"mqttBroker":   mqttBroker,
			"mqttTopic":    mqttTopic,
			"wsAddr":       wsAddr,
			"metricsAddr":  metricsAddr,
		}, rampdown); err != nil {
			return err
		}
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
	if !*verbose {
		logger = logger.Level(zerolog.InfoLevel)
	}

	if *seedPath != "" {
		return seed(*seedPath, *seedRuns, *seedLumis, *seedEvents, &logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Info().Msg("interrupted")
		cancel()
	}()

	adapter, err := makeAdapter(*in)
	if err != nil {
		return err
	}

	rampdownSeconds := int(rampdown.Seconds())
	if *rdCron != "" {
		expr, err := cronexpr.Parse(*rdCron)
		if err != nil {
			return fmt.Errorf("bad -rampdown-cron: %w", err)
		}
		next := expr.Next(time.Now())
		if next.IsZero() {
			return fmt.Errorf("-rampdown-cron %q never fires", *rdCron)
		}
		rampdownSeconds = int(time.Until(next).Seconds())
		logger.Info().Time("at", next).Msg("rampdown scheduled")
	}

	m, err := parseMode(*mode)
	if err != nil {
		return err
	}

	src := core.NewSource(adapter, core.SourceOptions{
		MaxEvents:         *maxEvents,
		MaxLumis:          *maxLumis,
		RampdownSeconds:   rampdownSeconds,
		Mode:              m,
		ModuleDescription: "fstream",
		ReportEvery:       *reportEvery,
		StatusFile:        *statusFile,
	})

	if *stdout {
		s := sio.NewStdio(os.Stdout)
		s.Tags = *tags
		s.Timestamps = *timestamps
		s.Attach(src.Signals())
	}
	if *mqttBroker != "" {
		mq := &sio.MQ{
			Broker:   *mqttBroker,
			ClientID: "fstream-" + src.ProcessGUID(),
			Topic:    *mqttTopic,
			QoS:      byte(*mqttQoS),
		}
		if err := mq.Connect(); err != nil {
			return err
		}
		defer mq.Close(100)
		mq.Attach(src.Signals())
		logger.Info().Str("broker", *mqttBroker).Msg("publishing to MQTT")
	}
	if *wsAddr != "" {
		ws := sio.NewWS()
		ws.Logger = &logger
		ws.Attach(src.Signals())
		go func() {
			if err := ws.Serve(ctx, *wsAddr); err != nil {
				logger.Error().Err(err).Msg("firehose died")
			}
		}()
		logger.Info().Str("addr", *wsAddr).Msg("firehose listening")
	}
	if *metricsAddr != "" {
		metrics := sio.NewMetrics()
		metrics.Attach(src.Signals())
		go serveMetrics(ctx, *metricsAddr, metrics, &logger)
		logger.Info().Str("addr", *metricsAddr).Msg("metrics listening")
	}

	var process func(ctx context.Context, ev *core.Event) error
	if *printEv {
		enc := json.NewEncoder(os.Stdout)
		process = func(ctx context.Context, ev *core.Event) error {
			return enc.Encode(ev)
		}
	}

	report, err := driver.Run(ctx, src, driver.Options{
		Process: process,
		Workers: *workers,
		Logger:  &logger,
	})
	if report != nil {
		if werr := writeReports(report, *reportFile, *reportHTML); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

// overlayConfig applies file values for flags the command line did not
// set explicitly.
func overlayConfig(path string, targets map[string]interface{}, rampdown *time.Duration) error {
	bs, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var conf map[string]interface{}
	if err := yaml.Unmarshal(bs, &conf); err != nil {
		return fmt.Errorf("bad config %s: %w", path, err)
	}

	given := map[string]bool{}
	flag.Visit(func(f *flag.Flag) {
		given[f.Name] = true
	})
	flagFor := map[string]string{
		"in": "in", "maxEvents": "max-events", "maxLumis": "max-lumis",
		"rampdown": "rampdown", "rampdownCron": "rampdown-cron",
		"mode": "mode", "workers": "workers",
		"reportEvery": "report-every", "statusFile": "status-file",
		"stdout": "stdout", "mqttBroker": "mqtt", "mqttTopic": "mqtt-topic",
		"wsAddr": "ws", "metricsAddr": "metrics",
	}

	for key, v := range conf {
		if given[flagFor[key]] {
			continue
		}
		if key == "rampdown" {
			s, is := v.(string)
			if !is {
				return fmt.Errorf("config rampdown must be a duration string")
			}
			d, err := time.ParseDuration(s)
			if err != nil {
				return err
			}
			*rampdown = d
			continue
		}
		target, known := targets[key]
		if !known {
			return fmt.Errorf("unknown config key %q", key)
		}
		if err := assign(key, target, v); err != nil {
			return err
		}
	}
	return nil
}

func assign(key string, target, v interface{}) error {
	switch t := target.(type) {
	case *string:
		s, is := v.(string)
		if !is {
			return fmt.Errorf("config %s: wanted a string, got %T", key, v)
		}
		*t = s
	case *int:
		n, is := v.(int)
		if !is {
			return fmt.Errorf("config %s: wanted an int, got %T", key, v)
		}
		*t = n
	case *bool:
		b, is := v.(bool)
		if !is {
			return fmt.Errorf("config %s: wanted a bool, got %T", key, v)
		}
		*t = b
	default:
		return fmt.Errorf("config %s: unsupported target %T", key, target)
	}
	return nil
}

func makeAdapter(in string) (core.Adapter, error) {
	switch {
	case in == "empty":
		return &core.EmptyAdapter{}, nil
	case strings.HasPrefix(in, "bolt:"):
		return boltsource.New(strings.TrimPrefix(in, "bolt:")), nil
	case strings.HasPrefix(in, "js:"):
		bs, err := os.ReadFile(strings.TrimPrefix(in, "js:"))
		if err != nil {
			return nil, err
		}
		a, err := jsource.New(string(bs))
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	return nil, fmt.Errorf("unknown input %q", in)
}

func parseMode(s string) (core.ProcessingMode, error) {
	switch s {
	case "runs":
		return core.Runs, nil
	case "runsAndLumis":
		return core.RunsAndLumis, nil
	case "runsLumisAndEvents":
		return core.RunsLumisAndEvents, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

func serveMetrics(ctx context.Context, addr string, m *sio.Metrics, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("metrics server died")
	}
}

func writeReports(r *driver.Report, mdPath, htmlPath string) error {
	if mdPath == "-" {
		fmt.Print(r.Markdown())
	} else if mdPath != "" {
		if err := os.WriteFile(mdPath, []byte(r.Markdown()), 0644); err != nil {
			return err
		}
	}
	if htmlPath != "" {
		f, err := os.Create(htmlPath)
		if err != nil {
			return err
		}
		defer f.Close()
		return tools.RenderReportHTML(r, f)
	}
	return nil
}

// seed writes a demo database for bolt:PATH inputs.
func seed(path string, runs, lumis, events int, logger *zerolog.Logger) error {
	store, err := boltsource.Create(path)
	if err != nil {
		return err
	}
	defer store.Close()

	now := time.Now().UTC()
	n := 0
	for run := 1; run <= runs; run++ {
		if err := store.PutRunAux(&core.RunAuxiliary{Run: uint64(run), BeginTime: now}); err != nil {
			return err
		}
		for lumi := 1; lumi <= lumis; lumi++ {
			aux := &core.LumiAuxiliary{Run: uint64(run), Lumi: uint64(lumi), BeginTime: now}
			if err := store.PutLumiAux(aux); err != nil {
				return err
			}
			for event := 1; event <= events; event++ {
				n++
				ev := &core.Event{
					ID:      core.EventID{Run: uint64(run), Lumi: uint64(lumi), Event: uint64(event)},
					Time:    now.Add(time.Duration(n) * time.Second),
					Payload: map[string]interface{}{"n": n},
				}
				if err := store.PutEvent(ev); err != nil {
					return err
				}
			}
		}
	}
	logger.Info().Str("path", path).Int("events", n).Msg("seeded")
	return nil
}
