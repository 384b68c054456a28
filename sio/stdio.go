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

// Package sio couples lifecycle signals to the outside world: stdout,
// MQTT, WebSockets, and Prometheus.  Each sink has an Attach method
// that subscribes it to a core.Signals hub; a job can attach any
// combination.
package sio

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/feedline/feedline/core"
)

// Stdio writes each signal as a line of JSON.
//
// Despite the name, any Writer will do; the CLI points it at stdout.
type Stdio struct {
	// Out gets one line per signal.
	Out io.Writer

	// Tags prefixes each line with the signal kind.
	Tags bool

	// Timestamps prepends a wall-clock timestamp to each line.
	Timestamps bool

	// Writes are serialized; sentries fire from parallel workers.
	mu sync.Mutex
}

// NewStdio creates a Stdio sink writing to out.
func NewStdio(out io.Writer) *Stdio {
	return &Stdio{Out: out}
}

// Attach subscribes the sink.
func (s *Stdio) Attach(signals *core.Signals) {
	signals.Notify(s.emit)
}

func (s *Stdio) emit(sig core.Signal) {
	js, err := json.Marshal(&sig)
	if err != nil {
		// A Signal always marshals; only an exotic payload in a
		// future field could get here.
		js = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Timestamps {
		fmt.Fprintf(s.Out, "%s ", time.Now().UTC().Format(time.RFC3339Nano))
	}
	if s.Tags {
		fmt.Fprintf(s.Out, "%-12s ", sig.Kind)
	}
	fmt.Fprintf(s.Out, "%s\n", js)
}
