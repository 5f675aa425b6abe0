package tele

import (
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mbi-div-b/keithley6514/log2"
)

type transportMqtt struct {
	log *log2.Log
	m   mqtt.Client
}

// newTransportMqtt connects in the background; the paho client retries
// on its own, so a dead broker never fails startup.
func newTransportMqtt(log *log2.Log, c Config, clientID string, keepAlive time.Duration) *transportMqtt {
	self := &transportMqtt{log: log}
	opts := mqtt.NewClientOptions().
		AddBroker(c.Broker).
		SetClientID(clientID).
		SetPassword(c.Password).
		SetKeepAlive(keepAlive).
		SetConnectRetry(true).
		SetOrderMatters(false).
		SetOnConnectHandler(func(mqtt.Client) { self.log.Infof("tele connected broker=%s", c.Broker) }).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) { self.log.Infof("tele disconnect err=%v", err) })
	self.m = mqtt.NewClient(opts)
	if token := self.m.Connect(); token.Error() != nil {
		self.log.Errorf("tele connect: %v", token.Error())
	}
	return self
}

func (self *transportMqtt) publish(topic string, qos byte, retained bool, payload string) {
	self.m.Publish(topic, qos, retained, payload)
}

func (self *transportMqtt) close() {
	self.m.Disconnect(250)
}
