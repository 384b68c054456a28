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

package sio

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/feedline/feedline/core"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WS is a WebSocket firehose: every signal is broadcast as JSON to
// every connected client.  A client that cannot keep up misses
// signals rather than stalling the source.
type WS struct {
	// Logger gets connection and backpressure notices.  Defaults to
	// zerolog.Nop().
	Logger *zerolog.Logger

	ops      chan core.Signal
	conns    sync.Map // conn id -> chan core.Signal
	upgrader websocket.Upgrader
}

// NewWS creates the firehose.  Call Serve (or mount Handler) to
// accept clients.
func NewWS() *WS {
	return &WS{
		ops: make(chan core.Signal, 1024),
	}
}

func (w *WS) logger() *zerolog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

// Attach subscribes the firehose.  When the broadcast buffer is full
// the signal is dropped.
func (w *WS) Attach(signals *core.Signals) {
	signals.Notify(func(sig core.Signal) {
		select {
		case w.ops <- sig:
		default:
			w.logger().Warn().Msg("firehose backlogged; dropping signal")
		}
	})
}

// Serve fans signals out to clients and serves the WebSocket endpoint
// on addr until the context is canceled.
func (w *WS) Serve(ctx context.Context, addr string) error {
	go w.fanout(ctx)

	srv := &http.Server{Addr: addr, Handler: w.Handler()}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	err := srv.ListenAndServe()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (w *WS) fanout(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-w.ops:
			w.conns.Range(func(k, v interface{}) bool {
				c := v.(chan core.Signal)
				select {
				case c <- sig:
				default:
					w.logger().Warn().Str("conn", k.(string)).Msg("client backlogged; dropping signal")
				}
				return true
			})
		}
	}
}

// Handler upgrades connections and streams signals to them.  Inbound
// messages are read and discarded to service control frames.
func (w *WS) Handler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		c, err := w.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			w.logger().Error().Err(err).Msg("upgrade failed")
			return
		}
		defer c.Close()

		id := c.RemoteAddr().String()
		w.logger().Info().Str("conn", id).Msg("monitor connected")

		in := make(chan core.Signal, 32)
		w.conns.Store(id, in)
		defer w.conns.Delete(id)

		done := make(chan bool)
		go func() {
			defer close(done)
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				w.logger().Info().Str("conn", id).Msg("monitor disconnected")
				return
			case sig := <-in:
				js, err := json.Marshal(&sig)
				if err != nil {
					continue
				}
				if err := c.WriteMessage(websocket.TextMessage, js); err != nil {
					w.logger().Info().Str("conn", id).Err(err).Msg("write failed")
					return
				}
			}
		}
	})
}
