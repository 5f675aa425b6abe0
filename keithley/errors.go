package keithley

import (
	"fmt"

	"github.com/juju/errors"

	"github.com/mbi-div-b/keithley6514/gpib"
)

// Fault kinds, so callers can tell a caller mistake (validation) from a
// link/device level problem at the type level. Anything else coming out
// of this package is a transport fault from the gpib layer.

// ErrIdentity: the instrument behind the address is not a 6514. Fatal
// at startup, the directive set is model specific.
var ErrIdentity = fmt.Errorf("keithley: identity response missing %q token", expectModel)

// ValidationError: requested value outside its domain. Nothing was sent
// to the instrument, cached config is untouched.
type ValidationError struct {
	Prop   string
	Value  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("keithley: validation %s=%s: %s", e.Prop, e.Value, e.Reason)
}

// ProtocolError: the query went out fine but the response has no usable
// numeric shape. Never silently coerced to a zero reading.
type ProtocolError struct {
	Directive string
	Response  string
}

func (e ProtocolError) Error() string {
	return fmt.Sprintf("keithley: protocol directive=%q unusable response=%q", e.Directive, e.Response)
}

func IsValidation(err error) bool {
	_, ok := errors.Cause(err).(ValidationError)
	return ok
}

func IsProtocol(err error) bool {
	_, ok := errors.Cause(err).(ProtocolError)
	return ok
}

func IsIdentity(err error) bool { return errors.Cause(err) == ErrIdentity }

// numericFault maps a QueryNumeric failure: parse problems become
// ProtocolError, everything else stays a transport fault.
func numericFault(directive string, err error) error {
	if pe, ok := errors.Cause(err).(*gpib.ParseError); ok {
		return ProtocolError{Directive: directive, Response: pe.Raw}
	}
	return errors.Annotatef(err, "directive=%s", directive)
}
