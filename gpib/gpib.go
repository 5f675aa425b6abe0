// Package gpib provides the instrument link: synchronous write/query of
// textual directives to a single GPIB device behind a Prologix
// controller, reached over a serial port or a TCP gateway.
package gpib

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

// Conn is one instrument link. All operations are blocking with at most
// one in flight; implementations serialize concurrent callers.
// Write is send-and-forget: nil result means the link accepted the
// directive, not that the instrument liked it.
type Conn interface {
	Write(directive string) error
	Query(directive string) (string, error)
	QueryNumeric(directive string) ([]float64, error)
	Clear() error
	Close() error
}

// ParseError marks a response that arrived fine over the link but does
// not have the requested numeric shape. Callers use it to tell a broken
// link from a confused instrument.
type ParseError struct {
	Raw   string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("gpib: response not numeric raw=%q: %v", e.Raw, e.Cause)
}

func IsParse(err error) bool {
	_, ok := errors.Cause(err).(*ParseError)
	return ok
}

// ParseNumeric splits a comma separated instrument response into floats.
// Empty response is an empty slice, not an error; the caller decides
// whether zero fields is acceptable.
func ParseNumeric(raw string) ([]float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, &ParseError{Raw: raw, Cause: err}
		}
		out = append(out, f)
	}
	return out, nil
}
