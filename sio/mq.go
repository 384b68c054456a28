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
	"encoding/json"
	"fmt"
	"time"

	"github.com/feedline/feedline/core"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQ publishes signals to an MQTT broker as JSON.
//
// Topics are Topic + "/" + the signal kind, so subscribers can pick
// the traffic they want (say feedline/event vs feedline/report).
type MQ struct {
	// Broker is the broker URL (tcp://host:port).
	Broker string

	// ClientID identifies this client to the broker.
	ClientID string

	// Topic is the topic prefix.  Defaults to "feedline".
	Topic string

	// QoS for published messages.
	QoS byte

	// Username and Password are optional broker credentials.
	Username string
	Password string

	client mqtt.Client
}

// Connect dials the broker.  Call before Attach.
func (m *MQ) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.Broker)
	opts.SetClientID(m.ClientID)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.Username = m.Username
	opts.Password = m.Password

	m.client = mqtt.NewClient(opts)
	if t := m.client.Connect(); t.Wait() && t.Error() != nil {
		return t.Error()
	}
	return nil
}

// Attach subscribes the sink.  Publishes are fire-and-forget; a slow
// broker does not stall the source.
func (m *MQ) Attach(signals *core.Signals) {
	signals.Notify(func(sig core.Signal) {
		js, err := json.Marshal(&sig)
		if err != nil {
			return
		}
		m.client.Publish(m.topic(sig.Kind), m.QoS, false, js)
	})
}

func (m *MQ) topic(kind core.SignalKind) string {
	prefix := m.Topic
	if prefix == "" {
		prefix = "feedline"
	}
	return fmt.Sprintf("%s/%s", prefix, kind)
}

// Close disconnects from the broker, allowing quiesce milliseconds
// for in-flight publishes.
func (m *MQ) Close(quiesce uint) {
	if m.client != nil {
		m.client.Disconnect(quiesce)
	}
}
