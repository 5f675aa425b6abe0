package keithley

type DeviceState uint32

const (
	StateInvalid DeviceState = iota // new, transport not attached
	StateInited                     // transport attached, identity not verified yet
	StateReady                      // identity verified, baseline setup done
	StateFaulted                    // identity rejected or fatal startup fault, transport released
)

func (s DeviceState) String() string {
	switch s {
	case StateInvalid:
		return "invalid"
	case StateInited:
		return "inited"
	case StateReady:
		return "ready"
	case StateFaulted:
		return "faulted"
	}
	return "unknown"
}

func (s DeviceState) Ready() bool { return s == StateReady }
