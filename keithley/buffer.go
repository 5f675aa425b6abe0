package keithley

import (
	"fmt"

	"github.com/juju/errors"
)

// Buffered acquisition: configure arms the instrument-side sample ring,
// triggers fill it (the caller picked the trigger mode beforehand, the
// core does not enforce that ordering), drain fetches whatever is
// stored. Each stored entry is a reading plus its time-delta per the
// configured trace format.

type BufferStatus uint8

const (
	BufferUnconfigured BufferStatus = iota
	BufferArmed
	BufferHasData
	BufferEmpty
)

func (s BufferStatus) String() string {
	switch s {
	case BufferUnconfigured:
		return "unconfigured"
	case BufferArmed:
		return "armed"
	case BufferHasData:
		return "has-data"
	case BufferEmpty:
		return "empty"
	}
	return "unknown"
}

const (
	cmdBufClear      = "TRAC:CLE"
	cmdBufPointsFmt  = "TRAC:POIN %d"
	cmdBufFeedSensor = "TRAC:FEED SENS"
	cmdBufFeedNext   = "TRAC:FEED:CONT NEXT"
	cmdBufCount      = "TRAC:POIN:ACT?"
	cmdBufData       = "TRAC:DATA?"
)

// emptySentinel distinguishes "buffer stored nothing" from a reading of
// exactly zero. Downstream consumers rely on this exact pair.
var emptySentinel = [2]float64{-1, -1}

func (self *Device) BufferStatus() BufferStatus {
	self.lk.Lock()
	defer self.lk.Unlock()
	return self.buffer
}

// BufferCapacity is the requested sample count of the current session,
// 0 while unconfigured.
func (self *Device) BufferCapacity() int {
	self.lk.Lock()
	defer self.lk.Unlock()
	return self.bufferCap
}

// ConfigureBuffer arms buffered acquisition for capacity samples:
// clear, set capacity, feed from the sensor, accumulate continuously.
// A transport fault mid-sequence leaves the instrument half configured,
// status drops back to unconfigured and the caller must re-arm.
func (self *Device) ConfigureBuffer(capacity int) error {
	const tag = "keithley.ConfigureBuffer"
	if capacity <= 0 {
		return ValidationError{
			Prop:   "buffer",
			Value:  fmt.Sprintf("%d", capacity),
			Reason: "capacity must be a positive integer",
		}
	}

	self.lk.Lock()
	defer self.lk.Unlock()
	seq := []string{
		cmdBufClear,
		fmt.Sprintf(cmdBufPointsFmt, capacity),
		cmdBufFeedSensor,
		cmdBufFeedNext,
	}
	for _, d := range seq {
		if err := self.conn.Write(d); err != nil {
			self.buffer = BufferUnconfigured
			self.bufferCap = 0
			return errors.Annotatef(err, "%s directive=%s", tag, d)
		}
	}
	self.buffer = BufferArmed
	self.bufferCap = capacity
	self.log.Debugf("buffer armed capacity=%d", self.bufferCap)
	return nil
}

// ReadBuffer drains the sample ring: query the stored count, then fetch
// the full array of reading/time-delta values. An empty buffer returns
// the [-1, -1] sentinel.
func (self *Device) ReadBuffer() ([]float64, error) {
	const tag = "keithley.ReadBuffer"

	self.lk.Lock()
	defer self.lk.Unlock()
	if self.buffer == BufferUnconfigured {
		return nil, ValidationError{Prop: "buffer", Value: "", Reason: "not configured"}
	}

	counts, err := self.conn.QueryNumeric(cmdBufCount)
	if err != nil {
		self.buffer = BufferUnconfigured
		return nil, errors.Annotate(numericFault(cmdBufCount, err), tag)
	}
	if len(counts) == 0 {
		self.buffer = BufferUnconfigured
		return nil, ProtocolError{Directive: cmdBufCount, Response: ""}
	}
	count := int(counts[0])
	self.log.Debugf("buffer stored count=%d", count)
	if count == 0 {
		self.buffer = BufferEmpty
		return []float64{emptySentinel[0], emptySentinel[1]}, nil
	}

	vals, err := self.conn.QueryNumeric(cmdBufData)
	if err != nil {
		self.buffer = BufferUnconfigured
		return nil, errors.Annotate(numericFault(cmdBufData, err), tag)
	}
	if len(vals) == 0 {
		self.buffer = BufferUnconfigured
		return nil, ProtocolError{Directive: cmdBufData, Response: ""}
	}
	self.buffer = BufferHasData
	return vals, nil
}
