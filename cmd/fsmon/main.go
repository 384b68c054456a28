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

// Package main is fsmon, which tails an fstream WebSocket firehose
// and pretty-prints the signals.
//
//	fstream -in bolt:events.db -ws :8080 &
//	fsmon -url ws://localhost:8080/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feedline/feedline/core"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func main() {
	var (
		urls = flag.String("url", "ws://localhost:8080/", "Firehose URL")
		raw  = flag.Bool("raw", false, "Print the JSON as heard")
		kind = flag.String("kind", "", "Only print signals of this kind")
	)

	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	if err := monitor(*urls, *raw, core.SignalKind(*kind), &logger); err != nil {
		logger.Fatal().Err(err).Msg("fsmon")
	}
}

func monitor(urls string, raw bool, only core.SignalKind, logger *zerolog.Logger) error {
	u, err := url.Parse(urls)
	if err != nil {
		return err
	}

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return err
	}
	defer c.Close()

	logger.Info().Str("url", urls).Msg("connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
		c.Close()
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var sig core.Signal
		if err := json.Unmarshal(message, &sig); err != nil {
			logger.Error().Err(err).Str("message", string(message)).Msg("bad signal")
			continue
		}
		if only != "" && sig.Kind != only {
			continue
		}
		if raw {
			fmt.Printf("%s\n", message)
			continue
		}
		fmt.Println(render(sig))
	}
}

func render(sig core.Signal) string {
	head := fmt.Sprintf("%s %-12s %-5s", sig.Time.Format("15:04:05.000"), sig.Kind, sig.Phase)
	switch sig.Kind {
	case core.SignalEvent:
		if sig.EventID != nil {
			return fmt.Sprintf("%s %s", head, sig.EventID)
		}
	case core.SignalRun:
		return fmt.Sprintf("%s run: %d", head, sig.Run)
	case core.SignalLumi:
		return fmt.Sprintf("%s run: %d lumi: %d", head, sig.Run, sig.Lumi)
	case core.SignalProcessBlock:
		return fmt.Sprintf("%s process: %s", head, sig.Process)
	case core.SignalFileOpen, core.SignalFileClose:
		return fmt.Sprintf("%s file: %s", head, sig.File)
	case core.SignalReport:
		if sig.EventID != nil {
			return fmt.Sprintf("%s read: %d last: %s", head, sig.ReadCount, sig.EventID)
		}
	}
	return head
}
