package tele

// transporter hides the broker connection. Publishes are
// fire-and-forget: network faults are the transport's problem, the
// driver never blocks on delivery.
type transporter interface {
	publish(topic string, qos byte, retained bool, payload string)
	close()
}
