package keithley

// TriggerMode decides read semantics: Automatic makes every read
// trigger a fresh acquisition, External returns the most recently
// latched sample without re-triggering.
type TriggerMode uint8

const (
	TriggerAutomatic TriggerMode = iota
	TriggerExternal
)

func (m TriggerMode) Valid() bool { return m <= TriggerExternal }

func (m TriggerMode) String() string {
	switch m {
	case TriggerAutomatic:
		return "automatic"
	case TriggerExternal:
		return "external"
	}
	return "unknown"
}

func (m TriggerMode) directive() string {
	if m == TriggerExternal {
		return cmdTrigExternal
	}
	return cmdTrigImmediate
}

func TriggerModeFromString(s string) (TriggerMode, error) {
	switch s {
	case "automatic":
		return TriggerAutomatic, nil
	case "external":
		return TriggerExternal, nil
	}
	return 0, ValidationError{Prop: "trigger", Value: s, Reason: "want automatic or external"}
}
