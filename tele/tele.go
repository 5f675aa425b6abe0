// Package tele publishes measurement telemetry over MQTT. Optional:
// a disabled or nil Tele is a no-op, the driver never blocks on it.
package tele

import (
	"fmt"
	"time"

	"github.com/juju/errors"

	"github.com/mbi-div-b/keithley6514/log2"
)

type Config struct {
	Enable       bool   `hcl:"enable"`
	Broker       string `hcl:"broker"`
	TopicPrefix  string `hcl:"topic_prefix"`
	ClientID     string `hcl:"client_id"`
	Password     string `hcl:"password"`
	KeepaliveSec int    `hcl:"keepalive_sec"`
}

const defaultKeepalive = 60 * time.Second

type Tele struct {
	log     *log2.Log
	tr      transporter
	enabled bool

	topicCurrent string
	topicState   string
}

func New() *Tele { return &Tele{} }

// Init connects in the background; network faults are logged, not
// returned. Only an invalid config fails Init.
func (self *Tele) Init(log *log2.Log, c Config) error {
	return self.init(log, c, nil)
}

// tr overrides the broker connection when not nil, for tests.
func (self *Tele) init(log *log2.Log, c Config, tr transporter) error {
	if self == nil || !c.Enable {
		return nil
	}
	if c.Broker == "" {
		return errors.Errorf("tele: enabled but broker is empty")
	}
	self.log = log
	clientID := c.ClientID
	if clientID == "" {
		clientID = "keithley6514"
	}
	prefix := c.TopicPrefix
	if prefix == "" {
		prefix = clientID
	}
	self.topicCurrent = prefix + "/w/current"
	self.topicState = prefix + "/w/state"

	keepAlive := defaultKeepalive
	if c.KeepaliveSec > 0 {
		keepAlive = time.Duration(c.KeepaliveSec) * time.Second
	}
	if tr == nil {
		tr = newTransportMqtt(log, c, clientID, keepAlive)
	}
	self.tr = tr
	self.enabled = true
	return nil
}

// Measurement publishes one live reading, fire-and-forget QoS 0.
func (self *Tele) Measurement(value float64) {
	if self == nil || !self.enabled {
		return
	}
	self.tr.publish(self.topicCurrent, 0, false, fmt.Sprintf("%e", value))
}

// State publishes device state transitions, retained so late
// subscribers see the current one.
func (self *Tele) State(s string) {
	if self == nil || !self.enabled {
		return
	}
	self.tr.publish(self.topicState, 1, true, s)
}

func (self *Tele) Close() {
	if self == nil || !self.enabled {
		return
	}
	self.tr.close()
	self.enabled = false
}
